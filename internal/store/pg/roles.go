package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"treasura.org/internal/directory"
	"treasura.org/internal/lifecycle"
)

// RoleStore persists the role directory.
type RoleStore struct {
	db *sql.DB
}

var _ directory.RoleStore = (*RoleStore)(nil)

const roleColumns = `id, role_name, rolecode, description, office_start_time_ist, office_end_time_ist, status, created_by, approved_by, rejected_by, comments`

func scanRole(row rowScanner) (directory.Role, error) {
	var r directory.Role
	err := row.Scan(&r.ID, &r.RoleName, &r.RoleCode, &r.Description,
		&r.OfficeStartTimeIST, &r.OfficeEndTimeIST, &r.Status,
		&r.CreatedBy, &r.ApprovedBy, &r.RejectedBy, &r.Comments)
	return r, err
}

func (s *RoleStore) Insert(ctx context.Context, r directory.Role) (directory.Role, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into roles (role_name, rolecode, description, office_start_time_ist, office_end_time_ist, created_by, status)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning id
	`, r.RoleName, r.RoleCode, r.Description, r.OfficeStartTimeIST, r.OfficeEndTimeIST, r.CreatedBy, string(r.Status)).Scan(&r.ID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return directory.Role{}, fmt.Errorf("%w: role %s", directory.ErrConflict, r.RoleName)
		}
		return directory.Role{}, err
	}
	return r, nil
}

func (s *RoleStore) Get(ctx context.Context, id int64) (directory.Role, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+roleColumns+` from roles where id = $1
	`, id)
	r, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Role{}, fmt.Errorf("%w: role %d", directory.ErrNotFound, id)
	}
	if err != nil {
		return directory.Role{}, err
	}
	return r, nil
}

func (s *RoleStore) List(ctx context.Context, status *lifecycle.Status) ([]directory.Role, error) {
	query := `select ` + roleColumns + ` from roles`
	var args []any
	if status != nil {
		query += ` where lower(status) = lower($1)`
		args = append(args, string(*status))
	}
	query += ` order by role_name`
	return s.query(ctx, query, args...)
}

func (s *RoleStore) query(ctx context.Context, query string, args ...any) ([]directory.Role, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []directory.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *RoleStore) Update(ctx context.Context, id int64, upd directory.RoleUpdate, status lifecycle.Status) (directory.Role, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	add := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}
	if upd.RoleName != nil {
		add("role_name", *upd.RoleName)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.OfficeStartTimeIST != nil {
		add("office_start_time_ist", *upd.OfficeStartTimeIST)
	}
	if upd.OfficeEndTimeIST != nil {
		add("office_end_time_ist", *upd.OfficeEndTimeIST)
	}
	if upd.Comments != nil {
		add("comments", *upd.Comments)
	}
	add("status", string(status))

	query := fmt.Sprintf(`update roles set %s where id = $%d`, strings.Join(sets, ", "), idx)
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return directory.Role{}, fmt.Errorf("%w: role name taken", directory.ErrConflict)
		}
		return directory.Role{}, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return directory.Role{}, err
	}
	if aff == 0 {
		return directory.Role{}, fmt.Errorf("%w: role %d", directory.ErrNotFound, id)
	}
	return s.Get(ctx, id)
}

func (s *RoleStore) Statuses(ctx context.Context, ids []int64) (map[int64]lifecycle.Status, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, status from roles where id = any($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]lifecycle.Status, len(ids))
	for rows.Next() {
		var id int64
		var status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, err
		}
		out[id] = lifecycle.Status(status)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RoleStore) SetStatus(ctx context.Context, ids []int64, status lifecycle.Status, actor, comment string) ([]directory.Role, error) {
	actorCol := "approved_by"
	if status.Is(lifecycle.StatusRejected) {
		actorCol = "rejected_by"
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		update roles
		set status = $1, %s = coalesce(nullif($2,''), %s), comments = coalesce(nullif($3,''), comments)
		where id = any($4)
	`, actorCol, actorCol), string(status), actor, comment, ids); err != nil {
		return nil, err
	}
	return s.query(ctx, `
		select `+roleColumns+` from roles where id = any($1) order by role_name
	`, ids)
}

func (s *RoleStore) HardDelete(ctx context.Context, ids []int64) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from user_roles where role_id = any($1)`, ids); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = any($1)`, ids); err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, `
		delete from roles where id = any($1) returning id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deleted []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		deleted = append(deleted, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return deleted, nil
}
