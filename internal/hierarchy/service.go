package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"treasura.org/internal/ids"
	"treasura.org/internal/lifecycle"
)

var (
	// ErrInvalidInput marks request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrConflict is returned when a unique constraint is violated.
	ErrConflict = errors.New("conflict")
)

const (
	commentParentDeleted  = "Parent Deleted"
	commentParentRejected = "Parent Rejected"
)

// Store is the persistence surface the service needs. Cascade and HardDelete
// run their whole statement set inside one transaction.
type Store interface {
	Insert(ctx context.Context, e Entity) error
	Get(ctx context.Context, id string) (Entity, error)
	List(ctx context.Context) ([]Entity, error)
	Names(ctx context.Context) ([]string, error)
	NamesAtLevel(ctx context.Context, level string) ([]string, error)
	Update(ctx context.Context, id string, upd Update, status lifecycle.Status) (Entity, error)
	Statuses(ctx context.Context, entityIDs []string) (map[string]lifecycle.Status, error)
	Relationships(ctx context.Context) ([]Relationship, error)
	InsertRelationship(ctx context.Context, parentID, childID string) (bool, error)
	Cascade(ctx context.Context, roots []string, descendants []string, status lifecycle.Status, rootComment, descendantComment string) ([]Entity, error)
	HardDelete(ctx context.Context, entityIDs []string) ([]string, error)
}

// Service implements hierarchy management and the entity approval lifecycle.
type Service struct {
	store Store
}

func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is nil", ErrInvalidInput)
	}
	return &Service{store: store}, nil
}

// Create registers a new entity in Pending state. The id is generated here,
// never taken from the caller.
func (s *Service) Create(ctx context.Context, in CreateInput) (Entity, error) {
	in.EntityName = strings.TrimSpace(in.EntityName)
	if in.EntityName == "" {
		return Entity{}, fmt.Errorf("%w: entity_name is required", ErrInvalidInput)
	}
	if !in.IsTopLevel {
		if in.ParentName == nil || strings.TrimSpace(*in.ParentName) == "" {
			return Entity{}, fmt.Errorf("%w: parentname is required for non top-level entities", ErrInvalidInput)
		}
	}

	e := Entity{
		EntityID:       ids.NewEntityID(),
		EntityName:     in.EntityName,
		ParentName:     in.ParentName,
		IsTopLevel:     in.IsTopLevel,
		Level:          in.Level,
		ApprovalStatus: lifecycle.ReviewStatus(true),

		Address:                   in.Address,
		ContactPhone:              in.ContactPhone,
		ContactEmail:              in.ContactEmail,
		RegistrationNumber:        in.RegistrationNumber,
		PanGST:                    in.PanGST,
		LegalEntityIdentifier:     in.LegalEntityIdentifier,
		TaxIdentificationNumber:   in.TaxIdentificationNumber,
		DefaultCurrency:           in.DefaultCurrency,
		AssociatedBusinessUnits:   in.AssociatedBusinessUnits,
		ReportingCurrency:         in.ReportingCurrency,
		UniqueIdentifier:          in.UniqueIdentifier,
		LegalEntityType:           in.LegalEntityType,
		FxTradingAuthority:        in.FxTradingAuthority,
		InternalFxTradingLimit:    in.InternalFxTradingLimit,
		AssociatedTreasuryContact: in.AssociatedTreasuryContact,
	}
	if err := s.store.Insert(ctx, e); err != nil {
		return Entity{}, err
	}
	return e, nil
}

// Get returns a single entity.
func (s *Service) Get(ctx context.Context, id string) (Entity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Entity{}, fmt.Errorf("%w: entity id is required", ErrInvalidInput)
	}
	return s.store.Get(ctx, id)
}

// List returns every entity row, unfiltered.
func (s *Service) List(ctx context.Context) ([]Entity, error) {
	return s.store.List(ctx)
}

// Names returns all entity names, for parent pickers.
func (s *Service) Names(ctx context.Context) ([]string, error) {
	return s.store.Names(ctx)
}

// ParentCandidates returns the names of entities sitting one level above the
// given one. Level 1 and below have no parents.
func (s *Service) ParentCandidates(ctx context.Context, level int) ([]string, error) {
	if level <= 1 {
		return []string{}, nil
	}
	return s.store.NamesAtLevel(ctx, fmt.Sprintf("%d", level-1))
}

// Update applies an allow-listed change set and sends the entity back through
// review: the stored approval status is always reset to Pending.
func (s *Service) Update(ctx context.Context, id string, upd Update) (Entity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Entity{}, fmt.Errorf("%w: entity id is required", ErrInvalidInput)
	}
	if upd.Empty() {
		return Entity{}, fmt.Errorf("%w: no updatable fields provided", ErrInvalidInput)
	}
	return s.store.Update(ctx, id, upd, lifecycle.ReviewStatus(true))
}

// SyncRelationships derives parent→child edges from the parentname column and
// inserts the ones not present yet. Existing edges are left untouched, so the
// operation is idempotent.
func (s *Service) SyncRelationships(ctx context.Context) (SyncResult, error) {
	entities, err := s.store.List(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	byName := make(map[string]Entity, len(entities))
	for _, e := range entities {
		byName[strings.ToLower(e.EntityName)] = e
	}

	res := SyncResult{Details: []RelationPair{}}
	for _, e := range entities {
		if e.IsTopLevel || e.ParentName == nil {
			continue
		}
		parent, ok := byName[strings.ToLower(strings.TrimSpace(*e.ParentName))]
		if !ok {
			continue
		}
		inserted, err := s.store.InsertRelationship(ctx, parent.EntityID, e.EntityID)
		if err != nil {
			return SyncResult{}, err
		}
		if inserted {
			res.RelationshipsAdded++
			res.Details = append(res.Details, RelationPair{ParentID: parent.EntityID, ChildID: e.EntityID})
		}
	}
	return res, nil
}

// Hierarchy renders the full forest. Roots are entities flagged top-level
// plus any entity that never appears as a child of an active edge.
func (s *Service) Hierarchy(ctx context.Context) ([]*Node, error) {
	entities, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	rels, err := s.activeRelationships(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Entity, len(entities))
	for _, e := range entities {
		byID[e.EntityID] = e
	}
	children := childIndex(rels)
	isChild := make(map[string]bool, len(rels))
	for _, r := range rels {
		isChild[r.ChildEntityID] = true
	}

	var build func(id string, seen map[string]bool) *Node
	build = func(id string, seen map[string]bool) *Node {
		e, ok := byID[id]
		if !ok || seen[id] {
			return nil
		}
		seen[id] = true
		n := &Node{ID: e.EntityID, Name: e.EntityName, Data: e, Children: []*Node{}}
		for _, childID := range children[id] {
			if c := build(childID, seen); c != nil {
				n.Children = append(n.Children, c)
			}
		}
		return n
	}

	forest := []*Node{}
	seen := map[string]bool{}
	for _, e := range entities {
		if e.IsTopLevel || !isChild[e.EntityID] {
			if n := build(e.EntityID, seen); n != nil {
				forest = append(forest, n)
			}
		}
	}
	return forest, nil
}

// Descendants returns the ids of the full subtree rooted at the given entity,
// the root included, walking active edges only.
func (s *Service) Descendants(ctx context.Context, rootID string) ([]string, error) {
	rootID = strings.TrimSpace(rootID)
	if rootID == "" {
		return nil, fmt.Errorf("%w: entity id is required", ErrInvalidInput)
	}
	if _, err := s.store.Get(ctx, rootID); err != nil {
		return nil, err
	}
	rels, err := s.activeRelationships(ctx)
	if err != nil {
		return nil, err
	}
	return walk(childIndex(rels), []string{rootID}, nil), nil
}

// ScopeNames returns the names of the approved, non-deleted subtree rooted at
// the given entity. The approval filter applies at every hop: descendants of
// an unapproved node stay invisible even if themselves approved.
func (s *Service) ScopeNames(ctx context.Context, rootID string) ([]string, error) {
	root, err := s.store.Get(ctx, strings.TrimSpace(rootID))
	if err != nil {
		return nil, err
	}
	entities, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	rels, err := s.activeRelationships(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Entity, len(entities))
	for _, e := range entities {
		byID[e.EntityID] = e
	}
	visible := func(id string) bool {
		e, ok := byID[id]
		return ok && e.ApprovalStatus.IsApproved() && !e.IsDeleted
	}
	inScope := walk(childIndex(rels), []string{root.EntityID}, visible)

	names := make([]string, 0, len(inScope))
	for _, id := range inScope {
		names = append(names, byID[id].EntityName)
	}
	return names, nil
}

// RequestDelete flags an entity and its whole subtree for deletion approval.
// Nothing is removed until a checker approves.
func (s *Service) RequestDelete(ctx context.Context, id, comment string) ([]Entity, error) {
	return s.RequestDeleteBulk(ctx, []string{id}, comment)
}

// RequestDeleteBulk flags several subtrees for deletion approval in one
// transaction.
func (s *Service) RequestDeleteBulk(ctx context.Context, entityIDs []string, comment string) ([]Entity, error) {
	roots, descendants, err := s.closures(ctx, entityIDs)
	if err != nil {
		return nil, err
	}
	return s.store.Cascade(ctx, roots, descendants, lifecycle.StatusDeleteApproval, comment, commentParentDeleted)
}

// Approve resolves one pending change. What "approve" means depends on the
// current status: approving a deletion request removes the subtree for good,
// approving anything else confirms it.
func (s *Service) Approve(ctx context.Context, id, comment string) (BulkOutcome, error) {
	return s.ApproveBulk(ctx, []string{id}, comment)
}

// ApproveBulk splits the batch by current status first, then applies each
// action to its whole group: deletion confirmations hard-delete the subtree,
// the rest become Approved.
func (s *Service) ApproveBulk(ctx context.Context, entityIDs []string, comment string) (BulkOutcome, error) {
	entityIDs = dedupe(entityIDs)
	if len(entityIDs) == 0 {
		return BulkOutcome{}, fmt.Errorf("%w: no entity ids provided", ErrInvalidInput)
	}
	statuses, err := s.store.Statuses(ctx, entityIDs)
	if err != nil {
		return BulkOutcome{}, err
	}
	for _, id := range entityIDs {
		if _, ok := statuses[id]; !ok {
			return BulkOutcome{}, fmt.Errorf("%w: entity %s", ErrNotFound, id)
		}
	}

	toDelete, toConfirm := lifecycle.Split(entityIDs, statuses)
	out := BulkOutcome{Deleted: []string{}, Approved: []Entity{}}

	if len(toDelete) > 0 {
		roots, descendants, err := s.closures(ctx, toDelete)
		if err != nil {
			return BulkOutcome{}, err
		}
		deleted, err := s.store.HardDelete(ctx, append(roots, descendants...))
		if err != nil {
			return BulkOutcome{}, err
		}
		out.Deleted = deleted
	}
	if len(toConfirm) > 0 {
		approved, err := s.store.Cascade(ctx, toConfirm, nil, lifecycle.StatusApproved, comment, "")
		if err != nil {
			return BulkOutcome{}, err
		}
		out.Approved = approved
	}
	return out, nil
}

// Reject marks a single entity Rejected without touching its subtree.
func (s *Service) Reject(ctx context.Context, id, comment string) (Entity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Entity{}, fmt.Errorf("%w: entity id is required", ErrInvalidInput)
	}
	rows, err := s.store.Cascade(ctx, []string{id}, nil, lifecycle.StatusRejected, comment, "")
	if err != nil {
		return Entity{}, err
	}
	if len(rows) == 0 {
		return Entity{}, fmt.Errorf("%w: entity %s", ErrNotFound, id)
	}
	return rows[0], nil
}

// RejectBulk rejects each entity and its whole subtree. Descendants carry a
// fixed comment so their rejection is traceable to the parent decision.
func (s *Service) RejectBulk(ctx context.Context, entityIDs []string, comment string) ([]Entity, error) {
	roots, descendants, err := s.closures(ctx, entityIDs)
	if err != nil {
		return nil, err
	}
	return s.store.Cascade(ctx, roots, descendants, lifecycle.StatusRejected, comment, commentParentRejected)
}

// closures resolves the given roots plus the union of their subtrees,
// deduplicated, with descendants that are themselves roots kept in the roots
// group.
func (s *Service) closures(ctx context.Context, entityIDs []string) (roots, descendants []string, err error) {
	entityIDs = dedupe(entityIDs)
	if len(entityIDs) == 0 {
		return nil, nil, fmt.Errorf("%w: no entity ids provided", ErrInvalidInput)
	}
	statuses, err := s.store.Statuses(ctx, entityIDs)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range entityIDs {
		if _, ok := statuses[id]; !ok {
			return nil, nil, fmt.Errorf("%w: entity %s", ErrNotFound, id)
		}
	}
	rels, err := s.activeRelationships(ctx)
	if err != nil {
		return nil, nil, err
	}

	isRoot := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		isRoot[id] = true
	}
	for _, id := range walk(childIndex(rels), entityIDs, nil) {
		if !isRoot[id] {
			descendants = append(descendants, id)
		}
	}
	return entityIDs, descendants, nil
}

func (s *Service) activeRelationships(ctx context.Context) ([]Relationship, error) {
	rels, err := s.store.Relationships(ctx)
	if err != nil {
		return nil, err
	}
	active := rels[:0]
	for _, r := range rels {
		if strings.EqualFold(r.Status, RelationshipActive) {
			active = append(active, r)
		}
	}
	return active, nil
}

// childIndex builds a parent→children adjacency map.
func childIndex(rels []Relationship) map[string][]string {
	idx := make(map[string][]string, len(rels))
	for _, r := range rels {
		idx[r.ParentEntityID] = append(idx[r.ParentEntityID], r.ChildEntityID)
	}
	return idx
}

// walk runs a breadth-first traversal from the given roots. Roots are always
// included; children pass through the visible filter when one is set, and a
// pruned node hides its whole subtree.
func walk(children map[string][]string, roots []string, visible func(string) bool) []string {
	seen := make(map[string]bool, len(roots))
	order := make([]string, 0, len(roots))
	queue := make([]string, 0, len(roots))
	for _, id := range roots {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range children[cur] {
			if seen[child] {
				continue
			}
			if visible != nil && !visible(child) {
				continue
			}
			seen[child] = true
			order = append(order, child)
			queue = append(queue, child)
		}
	}
	return order
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
