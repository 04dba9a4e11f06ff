package access

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasura.org/internal/lifecycle"
)

type stubPermissionStore struct {
	roleIDByName          func(ctx context.Context, name string) (int64, error)
	upsertPermission      func(ctx context.Context, page string, tab *string, action string) (int64, error)
	upsertRolePermission  func(ctx context.Context, roleID, permissionID int64, allowed bool, status lifecycle.Status) error
	approvedTuples        func(ctx context.Context, roleID int64) ([]Tuple, error)
	approvedTuplesForPage func(ctx context.Context, roleID int64, page string) ([]Tuple, error)
	setStatusByRole       func(ctx context.Context, roleID int64, status lifecycle.Status) (int64, error)
	roleStatuses          func(ctx context.Context) ([]RoleStatus, error)
	userPageAccess        func(ctx context.Context, userID int64) (map[string]bool, error)
}

func (s *stubPermissionStore) RoleIDByName(ctx context.Context, name string) (int64, error) {
	return s.roleIDByName(ctx, name)
}
func (s *stubPermissionStore) UpsertPermission(ctx context.Context, page string, tab *string, action string) (int64, error) {
	return s.upsertPermission(ctx, page, tab, action)
}
func (s *stubPermissionStore) UpsertRolePermission(ctx context.Context, roleID, permissionID int64, allowed bool, status lifecycle.Status) error {
	return s.upsertRolePermission(ctx, roleID, permissionID, allowed, status)
}
func (s *stubPermissionStore) ApprovedTuples(ctx context.Context, roleID int64) ([]Tuple, error) {
	return s.approvedTuples(ctx, roleID)
}
func (s *stubPermissionStore) ApprovedTuplesForPage(ctx context.Context, roleID int64, page string) ([]Tuple, error) {
	return s.approvedTuplesForPage(ctx, roleID, page)
}
func (s *stubPermissionStore) SetStatusByRole(ctx context.Context, roleID int64, status lifecycle.Status) (int64, error) {
	return s.setStatusByRole(ctx, roleID, status)
}
func (s *stubPermissionStore) RoleStatuses(ctx context.Context) ([]RoleStatus, error) {
	return s.roleStatuses(ctx)
}
func (s *stubPermissionStore) UserPageAccess(ctx context.Context, userID int64) (map[string]bool, error) {
	return s.userPageAccess(ctx, userID)
}

func TestAssignUpsertsEveryTupleAsPending(t *testing.T) {
	var upsertedDefs []string
	var grantStatuses []lifecycle.Status
	st := &stubPermissionStore{
		roleIDByName: func(_ context.Context, name string) (int64, error) {
			assert.Equal(t, "maker", name)
			return 7, nil
		},
		upsertPermission: func(_ context.Context, page string, tab *string, action string) (int64, error) {
			key := page + "/" + action
			if tab != nil {
				key = page + "/" + *tab + "/" + action
			}
			upsertedDefs = append(upsertedDefs, key)
			return int64(len(upsertedDefs)), nil
		},
		upsertRolePermission: func(_ context.Context, roleID, _ int64, _ bool, status lifecycle.Status) error {
			assert.EqualValues(t, 7, roleID)
			grantStatuses = append(grantStatuses, status)
			return nil
		},
	}
	r, err := NewResolver(st)
	require.NoError(t, err)

	n, err := r.Assign(context.Background(), "maker", map[string]PageGrant{
		"dashboard": {
			PagePermissions: map[string]bool{"hasAccess": true},
			Tabs:            map[string]map[string]bool{"summary": {"edit": false}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"dashboard/hasAccess", "dashboard/summary/edit"}, upsertedDefs)
	for _, st := range grantStatuses {
		assert.Equal(t, lifecycle.StatusPending, st)
	}
}

func TestAssignUnknownRole(t *testing.T) {
	st := &stubPermissionStore{
		roleIDByName: func(context.Context, string) (int64, error) {
			return 0, fmt.Errorf("%w: role ghost", ErrNotFound)
		},
	}
	r, _ := NewResolver(st)
	_, err := r.Assign(context.Background(), "ghost", map[string]PageGrant{"p": {}})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRoleTreeEmptyRowsIsEmptyMapNotError(t *testing.T) {
	st := &stubPermissionStore{
		roleIDByName:   func(context.Context, string) (int64, error) { return 3, nil },
		approvedTuples: func(context.Context, int64) ([]Tuple, error) { return nil, nil },
	}
	r, _ := NewResolver(st)
	tree, err := r.RoleTree(context.Background(), "checker")
	require.NoError(t, err)
	assert.Empty(t, tree)
}

func TestSidebarCoversFixedPages(t *testing.T) {
	st := &stubPermissionStore{
		userPageAccess: func(context.Context, int64) (map[string]bool, error) {
			return map[string]bool{"dashboard": true, "not-a-sidebar-page": true}, nil
		},
	}
	r, _ := NewResolver(st)
	got, err := r.Sidebar(context.Background(), 42)
	require.NoError(t, err)
	assert.Len(t, got, len(SidebarPages))
	assert.True(t, got["dashboard"])
	assert.False(t, got["settings"])
	_, leaked := got["not-a-sidebar-page"]
	assert.False(t, leaked)
}

func TestSetStatusByRoleRejectsForeignStatus(t *testing.T) {
	r, _ := NewResolver(&stubPermissionStore{})
	_, err := r.SetStatusByRole(context.Background(), "maker", lifecycle.StatusDeleteApproval)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
