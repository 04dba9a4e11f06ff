// Package lifecycle implements the approval state machine shared by master
// entities, users, roles, exposures, and role-permission grants. Records are
// created Pending, move to Approved or Rejected under review, re-enter review
// on any edit, and are hard-deleted only when a reviewer approves a prior
// delete request.
package lifecycle

import "strings"

// Status is an approval-lifecycle state. Stored values are compared
// case-insensitively because historic rows carry mixed casing.
type Status string

const (
	StatusPending          Status = "Pending"
	StatusApproved         Status = "Approved"
	StatusRejected         Status = "Rejected"
	StatusDeleteApproval   Status = "Delete-Approval"
	StatusDeleteApproved   Status = "Delete-Approved"
	StatusAwaitingApproval Status = "Awaiting-Approval"
)

// Is reports whether s equals other ignoring case.
func (s Status) Is(other Status) bool {
	return strings.EqualFold(string(s), string(other))
}

// IsApproved reports whether the record is live and visible.
func (s Status) IsApproved() bool { return s.Is(StatusApproved) }

// IsDeleteRequested reports whether a deletion is awaiting review.
func (s Status) IsDeleteRequested() bool { return s.Is(StatusDeleteApproval) }

// InReview reports whether the record sits in any review queue.
func (s Status) InReview() bool {
	return s.Is(StatusPending) || s.Is(StatusAwaitingApproval) || s.Is(StatusDeleteApproval)
}

// Effect is what an approve decision does to a record. The verb "approve" is
// overloaded at the API surface: confirming a creation or edit sets the
// record Approved, while confirming a prior delete request removes it. The
// state before the call selects the effect.
type Effect int

const (
	// EffectConfirm transitions the record to Approved.
	EffectConfirm Effect = iota
	// EffectHardDelete removes the record (final state Delete-Approved).
	EffectHardDelete
)

// ApproveEffect returns the effect an approve decision has on a record
// currently in the given status.
func ApproveEffect(current Status) Effect {
	if current.IsDeleteRequested() {
		return EffectHardDelete
	}
	return EffectConfirm
}

// Split partitions ids for a bulk approval: ids whose current status is
// Delete-Approval are hard-deleted, everything else is confirmed. Ids absent
// from statusOf are dropped (they no longer exist).
func Split[ID comparable](ids []ID, statusOf map[ID]Status) (toDelete, toConfirm []ID) {
	for _, id := range ids {
		status, ok := statusOf[id]
		if !ok {
			continue
		}
		if ApproveEffect(status) == EffectHardDelete {
			toDelete = append(toDelete, id)
			continue
		}
		toConfirm = append(toConfirm, id)
	}
	return toDelete, toConfirm
}

// ReviewStatus is the state a record re-enters when edited. Master entities
// return to Pending; every other family uses Awaiting-Approval. Edits always
// re-enter review regardless of which field changed.
func ReviewStatus(entity bool) Status {
	if entity {
		return StatusPending
	}
	return StatusAwaitingApproval
}
