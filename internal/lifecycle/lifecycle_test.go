package lifecycle

import (
	"testing"
)

func TestStatusIsIgnoresCase(t *testing.T) {
	if !Status("delete-approval").Is(StatusDeleteApproval) {
		t.Fatal("expected case-insensitive match")
	}
	if Status("Approved").Is(StatusPending) {
		t.Fatal("distinct statuses must not match")
	}
}

func TestApproveEffect(t *testing.T) {
	if ApproveEffect(StatusDeleteApproval) != EffectHardDelete {
		t.Fatal("approving a delete request must hard-delete")
	}
	for _, s := range []Status{StatusPending, StatusApproved, StatusRejected, StatusAwaitingApproval} {
		if ApproveEffect(s) != EffectConfirm {
			t.Fatalf("approving %s must confirm", s)
		}
	}
}

func TestSplitPartitionsAndDropsUnknown(t *testing.T) {
	statuses := map[string]Status{
		"A": StatusDeleteApproval,
		"B": StatusPending,
		"C": StatusApproved,
	}
	toDelete, toConfirm := Split([]string{"A", "B", "C", "X"}, statuses)
	if len(toDelete) != 1 || toDelete[0] != "A" {
		t.Fatalf("unexpected delete set %v", toDelete)
	}
	if len(toConfirm) != 2 || toConfirm[0] != "B" || toConfirm[1] != "C" {
		t.Fatalf("unexpected confirm set %v", toConfirm)
	}
}

func TestReviewStatus(t *testing.T) {
	if ReviewStatus(true) != StatusPending {
		t.Fatal("entities re-enter review as Pending")
	}
	if ReviewStatus(false) != StatusAwaitingApproval {
		t.Fatal("non-entities re-enter review as Awaiting-Approval")
	}
}

func TestInReview(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusAwaitingApproval, StatusDeleteApproval} {
		if !s.InReview() {
			t.Fatalf("%s should be in review", s)
		}
	}
	for _, s := range []Status{StatusApproved, StatusRejected, StatusDeleteApproved} {
		if s.InReview() {
			t.Fatalf("%s should not be in review", s)
		}
	}
}
