package exposure

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"treasura.org/internal/access"
	"treasura.org/internal/lifecycle"
)

// Track selects which lifecycle column an approval operation drives.
type Track int

const (
	// TrackPrimary is the upload/delete lifecycle (status column).
	TrackPrimary Track = iota
	// TrackBucketing is the month-allocation lifecycle (status_bucketing).
	TrackBucketing
)

// Store is the persistence surface. InsertBatch writes the whole upload in
// one transaction.
type Store interface {
	InsertBatch(ctx context.Context, rows []Exposure) (int, error)
	Get(ctx context.Context, id string) (Exposure, error)
	List(ctx context.Context, scope []string) ([]Exposure, error)
	Awaiting(ctx context.Context, scope []string, track Track) ([]Exposure, error)
	Statuses(ctx context.Context, ids []string, track Track) (map[string]lifecycle.Status, error)
	SetStatus(ctx context.Context, ids []string, track Track, status lifecycle.Status, comment string) ([]Exposure, error)
	UpdateBuckets(ctx context.Context, id string, b Buckets, status lifecycle.Status) (Exposure, error)
	HardDelete(ctx context.Context, ids []string) ([]string, error)
	HedgingProposals(ctx context.Context, scope []string) ([]HedgingProposal, error)
}

// BulkOutcome reports a split bulk approval over exposures.
type BulkOutcome struct {
	Deleted  []string   `json:"deleted"`
	Approved []Exposure `json:"approved"`
}

// UploadResult reports an accepted CSV batch.
type UploadResult struct {
	Inserted   int      `json:"inserted"`
	References []string `json:"references"`
}

// Service owns the exposure workflow: CSV ingestion gated by access scope,
// the two approval tracks, and hedging-proposal aggregation.
type Service struct {
	store Store
}

func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is nil", ErrInvalidInput)
	}
	return &Service{store: store}, nil
}

// Upload parses a CSV batch and inserts it atomically. If any row's business
// unit falls outside the caller's scope the whole batch is rejected and the
// error carries the offending reference numbers.
func (s *Service) Upload(ctx context.Context, scope []string, r io.Reader) (UploadResult, error) {
	if len(scope) == 0 {
		return UploadResult{}, fmt.Errorf("%w: caller has no business-unit scope", ErrInvalidInput)
	}
	rows, err := ParseCSV(r)
	if err != nil {
		return UploadResult{}, err
	}

	var outside []string
	for _, row := range rows {
		if !access.InScope(scope, row.BusinessUnit) {
			outside = append(outside, row.ReferenceNo)
		}
	}
	if len(outside) > 0 {
		sort.Strings(outside)
		return UploadResult{}, &OutOfScopeError{References: outside}
	}

	n, err := s.store.InsertBatch(ctx, rows)
	if err != nil {
		return UploadResult{}, err
	}
	refs := make([]string, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, row.ReferenceNo)
	}
	return UploadResult{Inserted: n, References: refs}, nil
}

// Get returns one exposure.
func (s *Service) Get(ctx context.Context, id string) (Exposure, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Exposure{}, fmt.Errorf("%w: exposure id is required", ErrInvalidInput)
	}
	return s.store.Get(ctx, id)
}

// List returns exposures whose business unit is inside the caller's scope.
func (s *Service) List(ctx context.Context, scope []string) ([]Exposure, error) {
	if len(scope) == 0 {
		return []Exposure{}, nil
	}
	return s.store.List(ctx, scope)
}

// Awaiting returns in-scope exposures sitting in a review state on the given
// track.
func (s *Service) Awaiting(ctx context.Context, scope []string, track Track) ([]Exposure, error) {
	if len(scope) == 0 {
		return []Exposure{}, nil
	}
	return s.store.Awaiting(ctx, scope, track)
}

// RequestDelete flags exposures for deletion approval on the primary track.
func (s *Service) RequestDelete(ctx context.Context, ids []string, comment string) ([]Exposure, error) {
	ids, err := s.known(ctx, ids, TrackPrimary)
	if err != nil {
		return nil, err
	}
	return s.store.SetStatus(ctx, ids, TrackPrimary, lifecycle.StatusDeleteApproval, comment)
}

// Approve resolves pending changes on a track with split semantics: rows in
// Delete-Approval are removed outright, the rest become Approved.
func (s *Service) Approve(ctx context.Context, ids []string, track Track, comment string) (BulkOutcome, error) {
	ids, err := s.known(ctx, ids, track)
	if err != nil {
		return BulkOutcome{}, err
	}
	statuses, err := s.store.Statuses(ctx, ids, track)
	if err != nil {
		return BulkOutcome{}, err
	}

	toDelete, toConfirm := lifecycle.Split(ids, statuses)
	out := BulkOutcome{Deleted: []string{}, Approved: []Exposure{}}
	if len(toDelete) > 0 {
		deleted, err := s.store.HardDelete(ctx, toDelete)
		if err != nil {
			return BulkOutcome{}, err
		}
		out.Deleted = deleted
	}
	if len(toConfirm) > 0 {
		approved, err := s.store.SetStatus(ctx, toConfirm, track, lifecycle.StatusApproved, comment)
		if err != nil {
			return BulkOutcome{}, err
		}
		out.Approved = approved
	}
	return out, nil
}

// Reject marks exposures Rejected on a track, unconditionally.
func (s *Service) Reject(ctx context.Context, ids []string, track Track, comment string) ([]Exposure, error) {
	ids, err := s.known(ctx, ids, track)
	if err != nil {
		return nil, err
	}
	return s.store.SetStatus(ctx, ids, track, lifecycle.StatusRejected, comment)
}

// UpdateBuckets writes a month allocation and sends the bucketing track back
// through review.
func (s *Service) UpdateBuckets(ctx context.Context, id string, b Buckets) (Exposure, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Exposure{}, fmt.Errorf("%w: exposure id is required", ErrInvalidInput)
	}
	if b.Empty() {
		return Exposure{}, fmt.Errorf("%w: no bucket values provided", ErrInvalidInput)
	}
	return s.store.UpdateBuckets(ctx, id, b, lifecycle.ReviewStatus(false))
}

// HedgingProposals aggregates approved-bucketing exposures inside the
// caller's scope by (business_unit, po_currency, type).
func (s *Service) HedgingProposals(ctx context.Context, scope []string) ([]HedgingProposal, error) {
	if len(scope) == 0 {
		return []HedgingProposal{}, nil
	}
	return s.store.HedgingProposals(ctx, scope)
}

func (s *Service) known(ctx context.Context, ids []string, track Track) ([]string, error) {
	deduped := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		deduped = append(deduped, id)
	}
	if len(deduped) == 0 {
		return nil, fmt.Errorf("%w: no exposure ids provided", ErrInvalidInput)
	}
	statuses, err := s.store.Statuses(ctx, deduped, track)
	if err != nil {
		return nil, err
	}
	for _, id := range deduped {
		if _, ok := statuses[id]; !ok {
			return nil, fmt.Errorf("%w: exposure %s", ErrNotFound, id)
		}
	}
	return deduped, nil
}
