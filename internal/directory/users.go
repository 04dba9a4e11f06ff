package directory

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"treasura.org/internal/auth"
	"treasura.org/internal/lifecycle"
)

var (
	// ErrInvalidInput marks request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a user or role cannot be resolved.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on unique constraint violations (duplicate
	// email, duplicate rolecode).
	ErrConflict = errors.New("conflict")
)

// User is one directory record. PasswordHash never crosses the API boundary.
type User struct {
	ID               int64            `json:"id"`
	EmployeeName     string           `json:"employee_name"`
	Email            string           `json:"email"`
	PasswordHash     string           `json:"-"`
	MobileNumber     *string          `json:"mobile_number,omitempty"`
	Address          *string          `json:"address,omitempty"`
	BusinessUnitName *string          `json:"business_unit_name"`
	RoleName         string           `json:"role_name,omitempty"`
	RoleCode         string           `json:"rolecode,omitempty"`
	Status           lifecycle.Status `json:"status"`
	ApprovedBy       *string          `json:"approved_by,omitempty"`
	RejectedBy       *string          `json:"rejected_by,omitempty"`
	Comments         *string          `json:"comments,omitempty"`
}

// NewUser carries the fields accepted at user creation.
type NewUser struct {
	EmployeeName     string  `json:"employee_name"`
	Email            string  `json:"email"`
	Password         string  `json:"password"`
	MobileNumber     *string `json:"mobile_number"`
	Address          *string `json:"address"`
	BusinessUnitName *string `json:"business_unit_name"`
	RoleName         string  `json:"role_name"`
}

// UserUpdate is the allow-listed updatable field set.
type UserUpdate struct {
	EmployeeName     *string `json:"employee_name"`
	MobileNumber     *string `json:"mobile_number"`
	Address          *string `json:"address"`
	BusinessUnitName *string `json:"business_unit_name"`
	Comments         *string `json:"comments"`
}

// Empty reports whether the update carries no fields.
func (u UserUpdate) Empty() bool {
	return u.EmployeeName == nil && u.MobileNumber == nil && u.Address == nil &&
		u.BusinessUnitName == nil && u.Comments == nil
}

// UserBulkOutcome reports a split bulk approval over users.
type UserBulkOutcome struct {
	Deleted  []int64 `json:"deleted"`
	Approved []User  `json:"approved"`
}

// UserStore is the persistence surface. CreateWithRole inserts the user row,
// resolves the role, and inserts the join row inside one transaction,
// rolling back on any failure.
type UserStore interface {
	CreateWithRole(ctx context.Context, u User, roleName string) (User, error)
	Get(ctx context.Context, id int64) (User, error)
	List(ctx context.Context, scope []string, status *lifecycle.Status) ([]User, error)
	Awaiting(ctx context.Context, scope []string) ([]User, error)
	Update(ctx context.Context, id int64, upd UserUpdate, status lifecycle.Status) (User, error)
	Statuses(ctx context.Context, ids []int64) (map[int64]lifecycle.Status, error)
	SetStatus(ctx context.Context, ids []int64, status lifecycle.Status, actor, comment string) ([]User, error)
	HardDelete(ctx context.Context, ids []int64) ([]int64, error)
}

// UserService owns the user directory and its approval lifecycle.
type UserService struct {
	store UserStore
}

func NewUserService(store UserStore) (*UserService, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is nil", ErrInvalidInput)
	}
	return &UserService{store: store}, nil
}

// Create registers a user in Pending state. The password is hashed here; the
// store transaction links the role in the same commit.
func (s *UserService) Create(ctx context.Context, in NewUser) (User, error) {
	in.EmployeeName = strings.TrimSpace(in.EmployeeName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.RoleName = strings.TrimSpace(in.RoleName)
	if in.EmployeeName == "" {
		return User{}, fmt.Errorf("%w: employee_name is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return User{}, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	if in.RoleName == "" {
		return User{}, fmt.Errorf("%w: role_name is required", ErrInvalidInput)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}

	u := User{
		EmployeeName:     in.EmployeeName,
		Email:            in.Email,
		PasswordHash:     hash,
		MobileNumber:     in.MobileNumber,
		Address:          in.Address,
		BusinessUnitName: in.BusinessUnitName,
		Status:           lifecycle.StatusPending,
	}
	return s.store.CreateWithRole(ctx, u, in.RoleName)
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, id int64) (User, error) {
	if id <= 0 {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.Get(ctx, id)
}

// List returns users whose business unit falls inside the caller's scope,
// optionally filtered to one status.
func (s *UserService) List(ctx context.Context, scope []string, status string) ([]User, error) {
	if len(scope) == 0 {
		return []User{}, nil
	}
	var filter *lifecycle.Status
	if status = strings.TrimSpace(status); status != "" {
		st := lifecycle.Status(status)
		filter = &st
	}
	return s.store.List(ctx, scope, filter)
}

// Awaiting returns in-scope users sitting in a review state (Pending,
// Awaiting-Approval, or Delete-Approval).
func (s *UserService) Awaiting(ctx context.Context, scope []string) ([]User, error) {
	if len(scope) == 0 {
		return []User{}, nil
	}
	return s.store.Awaiting(ctx, scope)
}

// Update applies an allow-listed change set and forces the user back through
// review as Awaiting-Approval.
func (s *UserService) Update(ctx context.Context, id int64, upd UserUpdate) (User, error) {
	if id <= 0 {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if upd.Empty() {
		return User{}, fmt.Errorf("%w: no updatable fields provided", ErrInvalidInput)
	}
	return s.store.Update(ctx, id, upd, lifecycle.ReviewStatus(false))
}

// RequestDelete flags users for deletion approval.
func (s *UserService) RequestDelete(ctx context.Context, ids []int64, actor, comment string) ([]User, error) {
	ids, err := s.known(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.store.SetStatus(ctx, ids, lifecycle.StatusDeleteApproval, actor, comment)
}

// Approve resolves pending changes with split semantics: users currently in
// Delete-Approval are removed, every other id becomes Approved.
func (s *UserService) Approve(ctx context.Context, ids []int64, approvedBy, comment string) (UserBulkOutcome, error) {
	ids, err := s.known(ctx, ids)
	if err != nil {
		return UserBulkOutcome{}, err
	}
	statuses, err := s.store.Statuses(ctx, ids)
	if err != nil {
		return UserBulkOutcome{}, err
	}

	toDelete, toConfirm := lifecycle.Split(ids, statuses)
	out := UserBulkOutcome{Deleted: []int64{}, Approved: []User{}}
	if len(toDelete) > 0 {
		deleted, err := s.store.HardDelete(ctx, toDelete)
		if err != nil {
			return UserBulkOutcome{}, err
		}
		out.Deleted = deleted
	}
	if len(toConfirm) > 0 {
		approved, err := s.store.SetStatus(ctx, toConfirm, lifecycle.StatusApproved, approvedBy, comment)
		if err != nil {
			return UserBulkOutcome{}, err
		}
		out.Approved = approved
	}
	return out, nil
}

// Reject marks users Rejected unconditionally.
func (s *UserService) Reject(ctx context.Context, ids []int64, rejectedBy, comment string) ([]User, error) {
	ids, err := s.known(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.store.SetStatus(ctx, ids, lifecycle.StatusRejected, rejectedBy, comment)
}

func (s *UserService) known(ctx context.Context, ids []int64) ([]int64, error) {
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no user ids provided", ErrInvalidInput)
	}
	statuses, err := s.store.Statuses(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := statuses[id]; !ok {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
		}
	}
	return ids, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
