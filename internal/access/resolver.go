package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"treasura.org/internal/lifecycle"
)

var (
	// ErrInvalidInput marks request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a role, user, or business unit cannot be
	// resolved. The wrapped message says which one.
	ErrNotFound = errors.New("not found")
)

// SidebarPages is the fixed set of navigable pages. The sidebar endpoint
// reports access for exactly these, in this order.
var SidebarPages = []string{
	"dashboard",
	"entity-management",
	"user-management",
	"role-management",
	"permissions",
	"exposure-upload",
	"exposure-bucketing",
	"hedging-proposals",
	"settings",
}

// RoleStatus summarizes the grant lifecycle of one role.
type RoleStatus struct {
	RoleName string           `json:"roleName"`
	Status   lifecycle.Status `json:"status"`
}

// PermissionStore is the persistence surface of the resolver.
type PermissionStore interface {
	RoleIDByName(ctx context.Context, name string) (int64, error)
	UpsertPermission(ctx context.Context, page string, tab *string, action string) (int64, error)
	UpsertRolePermission(ctx context.Context, roleID, permissionID int64, allowed bool, status lifecycle.Status) error
	ApprovedTuples(ctx context.Context, roleID int64) ([]Tuple, error)
	ApprovedTuplesForPage(ctx context.Context, roleID int64, page string) ([]Tuple, error)
	SetStatusByRole(ctx context.Context, roleID int64, status lifecycle.Status) (int64, error)
	RoleStatuses(ctx context.Context) ([]RoleStatus, error)
	UserPageAccess(ctx context.Context, userID int64) (map[string]bool, error)
}

// Resolver maps between the nested permission tree clients edit and the
// flattened rows the store keeps, one grant row per (role, permission).
type Resolver struct {
	store PermissionStore
}

func NewResolver(store PermissionStore) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is nil", ErrInvalidInput)
	}
	return &Resolver{store: store}, nil
}

// Assign flattens the tree and upserts every tuple for the named role.
// Permission definitions are created on first sight; grants re-enter review
// as Pending and stay invisible to RoleTree until approved.
func (r *Resolver) Assign(ctx context.Context, roleName string, pages map[string]PageGrant) (int, error) {
	roleID, err := r.roleID(ctx, roleName)
	if err != nil {
		return 0, err
	}
	if len(pages) == 0 {
		return 0, fmt.Errorf("%w: pages payload is empty", ErrInvalidInput)
	}
	tuples := Flatten(pages)
	for _, t := range tuples {
		permissionID, err := r.store.UpsertPermission(ctx, t.Page, t.Tab, t.Action)
		if err != nil {
			return 0, err
		}
		if err := r.store.UpsertRolePermission(ctx, roleID, permissionID, t.Allowed, lifecycle.StatusPending); err != nil {
			return 0, err
		}
	}
	return len(tuples), nil
}

// RoleTree returns the approved permission tree of a role. A role with no
// approved rows yields an empty map; an unknown role is NotFound.
func (r *Resolver) RoleTree(ctx context.Context, roleName string) (map[string]PageGrant, error) {
	roleID, err := r.roleID(ctx, roleName)
	if err != nil {
		return nil, err
	}
	tuples, err := r.store.ApprovedTuples(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return Unflatten(tuples), nil
}

// PageTree returns the approved subtree of a single page for a role.
func (r *Resolver) PageTree(ctx context.Context, roleName, page string) (PageGrant, error) {
	page = strings.TrimSpace(page)
	if page == "" {
		return PageGrant{}, fmt.Errorf("%w: page is required", ErrInvalidInput)
	}
	roleID, err := r.roleID(ctx, roleName)
	if err != nil {
		return PageGrant{}, err
	}
	tuples, err := r.store.ApprovedTuplesForPage(ctx, roleID, page)
	if err != nil {
		return PageGrant{}, err
	}
	tree := Unflatten(tuples)
	grant, ok := tree[page]
	if !ok {
		return PageGrant{PagePermissions: map[string]bool{}, Tabs: map[string]map[string]bool{}}, nil
	}
	return grant, nil
}

// Sidebar reports, for the fixed page list, whether the user holds an
// approved hasAccess grant. Pages never granted resolve to false.
func (r *Resolver) Sidebar(ctx context.Context, userID int64) (map[string]bool, error) {
	granted, err := r.store.UserPageAccess(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(SidebarPages))
	for _, page := range SidebarPages {
		out[page] = granted[page]
	}
	return out, nil
}

// SetStatusByRole moves every grant of a role to the given status and
// returns how many rows changed.
func (r *Resolver) SetStatusByRole(ctx context.Context, roleName string, status lifecycle.Status) (int64, error) {
	switch {
	case status.Is(lifecycle.StatusApproved), status.Is(lifecycle.StatusRejected), status.Is(lifecycle.StatusPending):
	default:
		return 0, fmt.Errorf("%w: unsupported grant status %q", ErrInvalidInput, status)
	}
	roleID, err := r.roleID(ctx, roleName)
	if err != nil {
		return 0, err
	}
	return r.store.SetStatusByRole(ctx, roleID, status)
}

// RoleStatuses lists the grant lifecycle state per role.
func (r *Resolver) RoleStatuses(ctx context.Context) ([]RoleStatus, error) {
	return r.store.RoleStatuses(ctx)
}

func (r *Resolver) roleID(ctx context.Context, roleName string) (int64, error) {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return 0, fmt.Errorf("%w: roleName is required", ErrInvalidInput)
	}
	roleID, err := r.store.RoleIDByName(ctx, roleName)
	if err != nil {
		return 0, err
	}
	return roleID, nil
}
