package directory

import (
	"context"
	"fmt"
	"strings"

	"treasura.org/internal/lifecycle"
)

// Role is one role-directory record. Office hours are stored as wall-clock
// strings in IST, the timezone the back office operates in.
type Role struct {
	ID                 int64            `json:"id"`
	RoleName           string           `json:"role_name"`
	RoleCode           string           `json:"rolecode"`
	Description        *string          `json:"description,omitempty"`
	OfficeStartTimeIST *string          `json:"office_start_time_ist,omitempty"`
	OfficeEndTimeIST   *string          `json:"office_end_time_ist,omitempty"`
	Status             lifecycle.Status `json:"status"`
	CreatedBy          *string          `json:"created_by,omitempty"`
	ApprovedBy         *string          `json:"approved_by,omitempty"`
	RejectedBy         *string          `json:"rejected_by,omitempty"`
	Comments           *string          `json:"comments,omitempty"`
}

// NewRole carries the fields accepted at role creation.
type NewRole struct {
	RoleName           string  `json:"role_name"`
	RoleCode           string  `json:"rolecode"`
	Description        *string `json:"description"`
	OfficeStartTimeIST *string `json:"office_start_time_ist"`
	OfficeEndTimeIST   *string `json:"office_end_time_ist"`
	CreatedBy          *string `json:"created_by"`
}

// RoleUpdate is the allow-listed updatable field set.
type RoleUpdate struct {
	RoleName           *string `json:"role_name"`
	Description        *string `json:"description"`
	OfficeStartTimeIST *string `json:"office_start_time_ist"`
	OfficeEndTimeIST   *string `json:"office_end_time_ist"`
	Comments           *string `json:"comments"`
}

// Empty reports whether the update carries no fields.
func (u RoleUpdate) Empty() bool {
	return u.RoleName == nil && u.Description == nil &&
		u.OfficeStartTimeIST == nil && u.OfficeEndTimeIST == nil && u.Comments == nil
}

// RoleBulkOutcome reports a split bulk approval over roles.
type RoleBulkOutcome struct {
	Deleted  []int64 `json:"deleted"`
	Approved []Role  `json:"approved"`
}

// RoleStore is the persistence surface for roles.
type RoleStore interface {
	Insert(ctx context.Context, r Role) (Role, error)
	Get(ctx context.Context, id int64) (Role, error)
	List(ctx context.Context, status *lifecycle.Status) ([]Role, error)
	Update(ctx context.Context, id int64, upd RoleUpdate, status lifecycle.Status) (Role, error)
	Statuses(ctx context.Context, ids []int64) (map[int64]lifecycle.Status, error)
	SetStatus(ctx context.Context, ids []int64, status lifecycle.Status, actor, comment string) ([]Role, error)
	HardDelete(ctx context.Context, ids []int64) ([]int64, error)
}

// RoleService owns the role directory and its approval lifecycle.
type RoleService struct {
	store RoleStore
}

func NewRoleService(store RoleStore) (*RoleService, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is nil", ErrInvalidInput)
	}
	return &RoleService{store: store}, nil
}

// Create registers a role in Pending state. Rolecodes are stored uppercase.
func (s *RoleService) Create(ctx context.Context, in NewRole) (Role, error) {
	in.RoleName = strings.TrimSpace(in.RoleName)
	in.RoleCode = strings.ToUpper(strings.TrimSpace(in.RoleCode))
	if in.RoleName == "" {
		return Role{}, fmt.Errorf("%w: role_name is required", ErrInvalidInput)
	}
	if in.RoleCode == "" {
		return Role{}, fmt.Errorf("%w: rolecode is required", ErrInvalidInput)
	}
	return s.store.Insert(ctx, Role{
		RoleName:           in.RoleName,
		RoleCode:           in.RoleCode,
		Description:        in.Description,
		OfficeStartTimeIST: in.OfficeStartTimeIST,
		OfficeEndTimeIST:   in.OfficeEndTimeIST,
		CreatedBy:          in.CreatedBy,
		Status:             lifecycle.StatusPending,
	})
}

// Get returns one role.
func (s *RoleService) Get(ctx context.Context, id int64) (Role, error) {
	if id <= 0 {
		return Role{}, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	return s.store.Get(ctx, id)
}

// List returns roles, optionally filtered to one status.
func (s *RoleService) List(ctx context.Context, status string) ([]Role, error) {
	var filter *lifecycle.Status
	if status = strings.TrimSpace(status); status != "" {
		st := lifecycle.Status(status)
		filter = &st
	}
	return s.store.List(ctx, filter)
}

// Update applies an allow-listed change set and forces the role back through
// review as Awaiting-Approval.
func (s *RoleService) Update(ctx context.Context, id int64, upd RoleUpdate) (Role, error) {
	if id <= 0 {
		return Role{}, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	if upd.Empty() {
		return Role{}, fmt.Errorf("%w: no updatable fields provided", ErrInvalidInput)
	}
	return s.store.Update(ctx, id, upd, lifecycle.ReviewStatus(false))
}

// RequestDelete flags roles for deletion approval.
func (s *RoleService) RequestDelete(ctx context.Context, ids []int64, actor, comment string) ([]Role, error) {
	ids, err := s.known(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.store.SetStatus(ctx, ids, lifecycle.StatusDeleteApproval, actor, comment)
}

// Approve resolves pending changes with split semantics: roles currently in
// Delete-Approval are removed, every other id becomes Approved.
func (s *RoleService) Approve(ctx context.Context, ids []int64, approvedBy, comment string) (RoleBulkOutcome, error) {
	ids, err := s.known(ctx, ids)
	if err != nil {
		return RoleBulkOutcome{}, err
	}
	statuses, err := s.store.Statuses(ctx, ids)
	if err != nil {
		return RoleBulkOutcome{}, err
	}

	toDelete, toConfirm := lifecycle.Split(ids, statuses)
	out := RoleBulkOutcome{Deleted: []int64{}, Approved: []Role{}}
	if len(toDelete) > 0 {
		deleted, err := s.store.HardDelete(ctx, toDelete)
		if err != nil {
			return RoleBulkOutcome{}, err
		}
		out.Deleted = deleted
	}
	if len(toConfirm) > 0 {
		approved, err := s.store.SetStatus(ctx, toConfirm, lifecycle.StatusApproved, approvedBy, comment)
		if err != nil {
			return RoleBulkOutcome{}, err
		}
		out.Approved = approved
	}
	return out, nil
}

// Reject marks roles Rejected unconditionally.
func (s *RoleService) Reject(ctx context.Context, ids []int64, rejectedBy, comment string) ([]Role, error) {
	ids, err := s.known(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.store.SetStatus(ctx, ids, lifecycle.StatusRejected, rejectedBy, comment)
}

func (s *RoleService) known(ctx context.Context, ids []int64) ([]int64, error) {
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no role ids provided", ErrInvalidInput)
	}
	statuses, err := s.store.Statuses(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := statuses[id]; !ok {
			return nil, fmt.Errorf("%w: role %d", ErrNotFound, id)
		}
	}
	return ids, nil
}
