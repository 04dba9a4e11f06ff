package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"treasura.org/internal/access"
	"treasura.org/internal/lifecycle"
)

// PermissionStore persists permission definitions and per-role grants.
type PermissionStore struct {
	db *sql.DB
}

var _ access.PermissionStore = (*PermissionStore)(nil)

func (s *PermissionStore) RoleIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		select id from roles where lower(role_name) = lower($1)
	`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: role %s", access.ErrNotFound, name)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpsertPermission creates the (page, tab, action) definition on first sight
// and returns its id either way. The unique index coalesces a null tab to
// the empty string.
func (s *PermissionStore) UpsertPermission(ctx context.Context, page string, tab *string, action string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		insert into permissions (page_name, tab_name, action)
		values ($1, $2, $3)
		on conflict (page_name, coalesce(tab_name, ''), action)
		do update set page_name = excluded.page_name
		returning id
	`, page, tab, action).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *PermissionStore) UpsertRolePermission(ctx context.Context, roleID, permissionID int64, allowed bool, status lifecycle.Status) error {
	_, err := s.db.ExecContext(ctx, `
		insert into role_permissions (role_id, permission_id, allowed, status)
		values ($1, $2, $3, $4)
		on conflict (role_id, permission_id)
		do update set allowed = excluded.allowed, status = excluded.status
	`, roleID, permissionID, allowed, string(status))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: role %d or permission %d", access.ErrNotFound, roleID, permissionID)
		}
		return err
	}
	return nil
}

func (s *PermissionStore) ApprovedTuples(ctx context.Context, roleID int64) ([]access.Tuple, error) {
	return s.queryTuples(ctx, `
		select p.page_name, p.tab_name, p.action, rp.allowed
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role_id = $1 and lower(rp.status) = 'approved'
		order by p.page_name, p.tab_name nulls first, p.action
	`, roleID)
}

func (s *PermissionStore) ApprovedTuplesForPage(ctx context.Context, roleID int64, page string) ([]access.Tuple, error) {
	return s.queryTuples(ctx, `
		select p.page_name, p.tab_name, p.action, rp.allowed
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role_id = $1 and lower(p.page_name) = lower($2)
		  and lower(rp.status) = 'approved'
		order by p.tab_name nulls first, p.action
	`, roleID, page)
}

func (s *PermissionStore) queryTuples(ctx context.Context, query string, args ...any) ([]access.Tuple, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tuples []access.Tuple
	for rows.Next() {
		var t access.Tuple
		if err := rows.Scan(&t.Page, &t.Tab, &t.Action, &t.Allowed); err != nil {
			return nil, err
		}
		tuples = append(tuples, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tuples, nil
}

func (s *PermissionStore) SetStatusByRole(ctx context.Context, roleID int64, status lifecycle.Status) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		update role_permissions set status = $1 where role_id = $2
	`, string(status), roleID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PermissionStore) RoleStatuses(ctx context.Context) ([]access.RoleStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.role_name, coalesce(max(rp.status), 'Pending')
		from roles r
		left join role_permissions rp on rp.role_id = r.id
		group by r.role_name
		order by r.role_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []access.RoleStatus
	for rows.Next() {
		var rs access.RoleStatus
		var status string
		if err := rows.Scan(&rs.RoleName, &status); err != nil {
			return nil, err
		}
		rs.Status = lifecycle.Status(status)
		out = append(out, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UserPageAccess reports, per page, whether the user holds an approved
// page-level hasAccess grant through any of their roles.
func (s *PermissionStore) UserPageAccess(ctx context.Context, userID int64) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.page_name, bool_or(rp.allowed)
		from user_roles ur
		join role_permissions rp on rp.role_id = ur.role_id
		join permissions p on p.id = rp.permission_id
		where ur.user_id = $1
		  and p.tab_name is null
		  and p.action = 'hasAccess'
		  and lower(rp.status) = 'approved'
		group by p.page_name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var page string
		var allowed bool
		if err := rows.Scan(&page, &allowed); err != nil {
			return nil, err
		}
		out[page] = allowed
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
