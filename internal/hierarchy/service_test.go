package hierarchy

import (
	"context"
	"errors"
	"sort"
	"testing"

	"treasura.org/internal/lifecycle"
)

type stubStore struct {
	insert             func(ctx context.Context, e Entity) error
	get                func(ctx context.Context, id string) (Entity, error)
	list               func(ctx context.Context) ([]Entity, error)
	names              func(ctx context.Context) ([]string, error)
	namesAtLevel       func(ctx context.Context, level string) ([]string, error)
	update             func(ctx context.Context, id string, upd Update, status lifecycle.Status) (Entity, error)
	statuses           func(ctx context.Context, entityIDs []string) (map[string]lifecycle.Status, error)
	relationships      func(ctx context.Context) ([]Relationship, error)
	insertRelationship func(ctx context.Context, parentID, childID string) (bool, error)
	cascade            func(ctx context.Context, roots, descendants []string, status lifecycle.Status, rootComment, descendantComment string) ([]Entity, error)
	hardDelete         func(ctx context.Context, entityIDs []string) ([]string, error)
}

func (s *stubStore) Insert(ctx context.Context, e Entity) error { return s.insert(ctx, e) }
func (s *stubStore) Get(ctx context.Context, id string) (Entity, error) {
	return s.get(ctx, id)
}
func (s *stubStore) List(ctx context.Context) ([]Entity, error)  { return s.list(ctx) }
func (s *stubStore) Names(ctx context.Context) ([]string, error) { return s.names(ctx) }
func (s *stubStore) NamesAtLevel(ctx context.Context, level string) ([]string, error) {
	return s.namesAtLevel(ctx, level)
}
func (s *stubStore) Update(ctx context.Context, id string, upd Update, status lifecycle.Status) (Entity, error) {
	return s.update(ctx, id, upd, status)
}
func (s *stubStore) Statuses(ctx context.Context, entityIDs []string) (map[string]lifecycle.Status, error) {
	return s.statuses(ctx, entityIDs)
}
func (s *stubStore) Relationships(ctx context.Context) ([]Relationship, error) {
	return s.relationships(ctx)
}
func (s *stubStore) InsertRelationship(ctx context.Context, parentID, childID string) (bool, error) {
	return s.insertRelationship(ctx, parentID, childID)
}
func (s *stubStore) Cascade(ctx context.Context, roots, descendants []string, status lifecycle.Status, rootComment, descendantComment string) ([]Entity, error) {
	return s.cascade(ctx, roots, descendants, status, rootComment, descendantComment)
}
func (s *stubStore) HardDelete(ctx context.Context, entityIDs []string) ([]string, error) {
	return s.hardDelete(ctx, entityIDs)
}

func strPtr(s string) *string { return &s }

// fixture: A → B → C, A → D, plus standalone root R flagged top-level.
func fixtureEntities() []Entity {
	return []Entity{
		{EntityID: "EA", EntityName: "Alpha", IsTopLevel: true, ApprovalStatus: lifecycle.StatusApproved},
		{EntityID: "EB", EntityName: "Beta", ParentName: strPtr("Alpha"), ApprovalStatus: lifecycle.StatusApproved},
		{EntityID: "EC", EntityName: "Gamma", ParentName: strPtr("Beta"), ApprovalStatus: lifecycle.StatusApproved},
		{EntityID: "ED", EntityName: "Delta", ParentName: strPtr("Alpha"), ApprovalStatus: lifecycle.StatusPending},
		{EntityID: "ER", EntityName: "Rho", IsTopLevel: true, ApprovalStatus: lifecycle.StatusApproved},
	}
}

func fixtureRelationships() []Relationship {
	return []Relationship{
		{ID: 1, ParentEntityID: "EA", ChildEntityID: "EB", Status: RelationshipActive},
		{ID: 2, ParentEntityID: "EB", ChildEntityID: "EC", Status: RelationshipActive},
		{ID: 3, ParentEntityID: "EA", ChildEntityID: "ED", Status: RelationshipActive},
	}
}

func fixtureStore() *stubStore {
	entities := fixtureEntities()
	byID := map[string]Entity{}
	for _, e := range entities {
		byID[e.EntityID] = e
	}
	return &stubStore{
		get: func(_ context.Context, id string) (Entity, error) {
			e, ok := byID[id]
			if !ok {
				return Entity{}, ErrNotFound
			}
			return e, nil
		},
		list: func(context.Context) ([]Entity, error) { return entities, nil },
		statuses: func(_ context.Context, entityIDs []string) (map[string]lifecycle.Status, error) {
			out := map[string]lifecycle.Status{}
			for _, id := range entityIDs {
				if e, ok := byID[id]; ok {
					out[id] = e.ApprovalStatus
				}
			}
			return out, nil
		},
		relationships: func(context.Context) ([]Relationship, error) { return fixtureRelationships(), nil },
	}
}

func TestCreateGeneratesIDAndPendingStatus(t *testing.T) {
	var inserted Entity
	st := &stubStore{insert: func(_ context.Context, e Entity) error {
		inserted = e
		return nil
	}}
	svc, err := NewService(st)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	got, err := svc.Create(context.Background(), CreateInput{EntityName: "  Alpha  ", IsTopLevel: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.EntityName != "Alpha" {
		t.Fatalf("expected trimmed name, got %q", got.EntityName)
	}
	if got.ApprovalStatus != lifecycle.StatusPending {
		t.Fatalf("expected Pending, got %q", got.ApprovalStatus)
	}
	if len(got.EntityID) != 9 || got.EntityID[0] != 'E' {
		t.Fatalf("unexpected entity id %q", got.EntityID)
	}
	if inserted.EntityID != got.EntityID {
		t.Fatalf("inserted id %q does not match returned id %q", inserted.EntityID, got.EntityID)
	}
}

func TestCreateRequiresParentForNonTopLevel(t *testing.T) {
	svc, _ := NewService(&stubStore{})
	_, err := svc.Create(context.Background(), CreateInput{EntityName: "Beta"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSyncRelationshipsInsertsOnlyMissingEdges(t *testing.T) {
	st := fixtureStore()
	existing := map[string]bool{"EA/EB": true}
	st.insertRelationship = func(_ context.Context, parentID, childID string) (bool, error) {
		key := parentID + "/" + childID
		if existing[key] {
			return false, nil
		}
		existing[key] = true
		return true, nil
	}
	svc, _ := NewService(st)

	res, err := svc.SyncRelationships(context.Background())
	if err != nil {
		t.Fatalf("SyncRelationships: %v", err)
	}
	if res.RelationshipsAdded != 2 {
		t.Fatalf("expected 2 inserts, got %d (%+v)", res.RelationshipsAdded, res.Details)
	}

	// second run is a no-op
	res, err = svc.SyncRelationships(context.Background())
	if err != nil {
		t.Fatalf("SyncRelationships again: %v", err)
	}
	if res.RelationshipsAdded != 0 {
		t.Fatalf("expected idempotent rerun, got %d inserts", res.RelationshipsAdded)
	}
}

func TestHierarchyForestRoots(t *testing.T) {
	svc, _ := NewService(fixtureStore())
	forest, err := svc.Hierarchy(context.Background())
	if err != nil {
		t.Fatalf("Hierarchy: %v", err)
	}
	if len(forest) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(forest))
	}
	roots := []string{forest[0].ID, forest[1].ID}
	sort.Strings(roots)
	if roots[0] != "EA" || roots[1] != "ER" {
		t.Fatalf("unexpected roots %v", roots)
	}
	var alpha *Node
	for _, n := range forest {
		if n.ID == "EA" {
			alpha = n
		}
	}
	if alpha == nil || len(alpha.Children) != 2 {
		t.Fatalf("expected Alpha with 2 children, got %+v", alpha)
	}
}

func TestDescendantsIncludesRootAndSubtree(t *testing.T) {
	svc, _ := NewService(fixtureStore())
	got, err := svc.Descendants(context.Background(), "EA")
	if err != nil {
		t.Fatalf("Descendants: %v", err)
	}
	sort.Strings(got)
	want := []string{"EA", "EB", "EC", "ED"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestDescendantsUnknownRoot(t *testing.T) {
	svc, _ := NewService(fixtureStore())
	if _, err := svc.Descendants(context.Background(), "EZ"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScopeNamesPrunesUnapprovedSubtrees(t *testing.T) {
	// ED is Pending, so it is invisible. EC sits under approved EB and stays.
	svc, _ := NewService(fixtureStore())
	got, err := svc.ScopeNames(context.Background(), "EA")
	if err != nil {
		t.Fatalf("ScopeNames: %v", err)
	}
	sort.Strings(got)
	want := []string{"Alpha", "Beta", "Gamma"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestScopeNamesHidesSubtreeOfUnapprovedNode(t *testing.T) {
	st := fixtureStore()
	entities := fixtureEntities()
	// Beta unapproved: Gamma must disappear even though Gamma itself is approved.
	entities[1].ApprovalStatus = lifecycle.StatusAwaitingApproval
	st.list = func(context.Context) ([]Entity, error) { return entities, nil }
	svc, _ := NewService(st)

	got, err := svc.ScopeNames(context.Background(), "EA")
	if err != nil {
		t.Fatalf("ScopeNames: %v", err)
	}
	if len(got) != 1 || got[0] != "Alpha" {
		t.Fatalf("expected only Alpha, got %v", got)
	}
}

func TestRequestDeleteCascadesToClosure(t *testing.T) {
	st := fixtureStore()
	var gotRoots, gotDescendants []string
	var gotStatus lifecycle.Status
	var gotDescComment string
	st.cascade = func(_ context.Context, roots, descendants []string, status lifecycle.Status, _, descendantComment string) ([]Entity, error) {
		gotRoots, gotDescendants, gotStatus, gotDescComment = roots, descendants, status, descendantComment
		return []Entity{}, nil
	}
	svc, _ := NewService(st)

	if _, err := svc.RequestDelete(context.Background(), "EB", "restructure"); err != nil {
		t.Fatalf("RequestDelete: %v", err)
	}
	if gotStatus != lifecycle.StatusDeleteApproval {
		t.Fatalf("expected Delete-Approval, got %q", gotStatus)
	}
	if len(gotRoots) != 1 || gotRoots[0] != "EB" {
		t.Fatalf("unexpected roots %v", gotRoots)
	}
	if len(gotDescendants) != 1 || gotDescendants[0] != "EC" {
		t.Fatalf("unexpected descendants %v", gotDescendants)
	}
	if gotDescComment != commentParentDeleted {
		t.Fatalf("unexpected descendant comment %q", gotDescComment)
	}
}

func TestApproveBulkSplitsDeleteFromConfirm(t *testing.T) {
	st := fixtureStore()
	entities := fixtureEntities()
	entities[1].ApprovalStatus = lifecycle.StatusDeleteApproval // EB flagged for deletion
	byID := map[string]Entity{}
	for _, e := range entities {
		byID[e.EntityID] = e
	}
	st.list = func(context.Context) ([]Entity, error) { return entities, nil }
	st.statuses = func(_ context.Context, entityIDs []string) (map[string]lifecycle.Status, error) {
		out := map[string]lifecycle.Status{}
		for _, id := range entityIDs {
			if e, ok := byID[id]; ok {
				out[id] = e.ApprovalStatus
			}
		}
		return out, nil
	}
	var deleted []string
	st.hardDelete = func(_ context.Context, entityIDs []string) ([]string, error) {
		deleted = entityIDs
		return entityIDs, nil
	}
	var confirmed []string
	st.cascade = func(_ context.Context, roots, _ []string, status lifecycle.Status, _, _ string) ([]Entity, error) {
		if status != lifecycle.StatusApproved {
			t.Fatalf("expected Approved cascade, got %q", status)
		}
		confirmed = roots
		out := make([]Entity, 0, len(roots))
		for _, id := range roots {
			e := byID[id]
			e.ApprovalStatus = lifecycle.StatusApproved
			out = append(out, e)
		}
		return out, nil
	}
	svc, _ := NewService(st)

	out, err := svc.ApproveBulk(context.Background(), []string{"EB", "ED"}, "ok")
	if err != nil {
		t.Fatalf("ApproveBulk: %v", err)
	}
	sort.Strings(deleted)
	if len(deleted) != 2 || deleted[0] != "EB" || deleted[1] != "EC" {
		t.Fatalf("expected EB subtree hard-deleted, got %v", deleted)
	}
	if len(confirmed) != 1 || confirmed[0] != "ED" {
		t.Fatalf("expected ED confirmed, got %v", confirmed)
	}
	if len(out.Deleted) != 2 || len(out.Approved) != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestApproveBulkUnknownEntity(t *testing.T) {
	svc, _ := NewService(fixtureStore())
	if _, err := svc.ApproveBulk(context.Background(), []string{"EZ"}, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectBulkCascadesWithParentComment(t *testing.T) {
	st := fixtureStore()
	var gotDescendants []string
	var gotDescComment string
	st.cascade = func(_ context.Context, _, descendants []string, status lifecycle.Status, _, descendantComment string) ([]Entity, error) {
		if status != lifecycle.StatusRejected {
			t.Fatalf("expected Rejected cascade, got %q", status)
		}
		gotDescendants, gotDescComment = descendants, descendantComment
		return []Entity{}, nil
	}
	svc, _ := NewService(st)

	if _, err := svc.RejectBulk(context.Background(), []string{"EA"}, "nope"); err != nil {
		t.Fatalf("RejectBulk: %v", err)
	}
	sort.Strings(gotDescendants)
	want := []string{"EB", "EC", "ED"}
	if len(gotDescendants) != len(want) {
		t.Fatalf("expected %v, got %v", want, gotDescendants)
	}
	if gotDescComment != commentParentRejected {
		t.Fatalf("unexpected descendant comment %q", gotDescComment)
	}
}

func TestUpdateForcesPendingReview(t *testing.T) {
	st := fixtureStore()
	var gotStatus lifecycle.Status
	st.update = func(_ context.Context, id string, upd Update, status lifecycle.Status) (Entity, error) {
		gotStatus = status
		return Entity{EntityID: id, ApprovalStatus: status}, nil
	}
	svc, _ := NewService(st)

	if _, err := svc.Update(context.Background(), "EA", Update{Address: strPtr("1 Main St")}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if gotStatus != lifecycle.StatusPending {
		t.Fatalf("expected Pending, got %q", gotStatus)
	}
}

func TestUpdateRejectsEmptyChangeSet(t *testing.T) {
	svc, _ := NewService(fixtureStore())
	if _, err := svc.Update(context.Background(), "EA", Update{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestParentCandidatesTopLevelHasNone(t *testing.T) {
	svc, _ := NewService(&stubStore{})
	got, err := svc.ParentCandidates(context.Background(), 1)
	if err != nil {
		t.Fatalf("ParentCandidates: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %v", got)
	}
}
