package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"treasura.org/internal/access"
	"treasura.org/internal/auth"
	"treasura.org/internal/directory"
	"treasura.org/internal/hierarchy"
	"treasura.org/internal/lifecycle"
)

// UserStore persists the user directory.
type UserStore struct {
	db *sql.DB
}

var _ directory.UserStore = (*UserStore)(nil)
var _ auth.LoginStore = (*UserStore)(nil)

const userColumns = `u.id, u.employee_name, u.email, u.mobile_number, u.address,
	u.business_unit_name, coalesce(r.role_name, ''), coalesce(r.rolecode, ''),
	u.status, u.approved_by, u.rejected_by, u.comments`

const userJoins = `from users u
	left join user_roles ur on ur.user_id = u.id
	left join roles r on r.id = ur.role_id`

func scanUser(row rowScanner) (directory.User, error) {
	var u directory.User
	err := row.Scan(
		&u.ID, &u.EmployeeName, &u.Email, &u.MobileNumber, &u.Address,
		&u.BusinessUnitName, &u.RoleName, &u.RoleCode,
		&u.Status, &u.ApprovedBy, &u.RejectedBy, &u.Comments,
	)
	return u, err
}

// CreateWithRole inserts the user, resolves the role by name or rolecode, and
// links the two, all in one transaction. Any failure rolls the whole creation
// back.
func (s *UserStore) CreateWithRole(ctx context.Context, u directory.User, roleName string) (directory.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return directory.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		insert into users (employee_name, email, password_hash, mobile_number, address, business_unit_name, status)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning id
	`, u.EmployeeName, u.Email, u.PasswordHash, u.MobileNumber, u.Address,
		u.BusinessUnitName, string(u.Status)).Scan(&u.ID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return directory.User{}, fmt.Errorf("%w: email %s already registered", directory.ErrConflict, u.Email)
		}
		return directory.User{}, err
	}

	var roleID int64
	err = tx.QueryRowContext(ctx, `
		select id from roles
		where lower(role_name) = lower($1) or lower(rolecode) = lower($1)
	`, roleName).Scan(&roleID)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, fmt.Errorf("%w: role %s", directory.ErrNotFound, roleName)
	}
	if err != nil {
		return directory.User{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into user_roles (user_id, role_id)
		values ($1, $2)
	`, u.ID, roleID); err != nil {
		return directory.User{}, err
	}
	if err := tx.QueryRowContext(ctx, `
		select role_name, rolecode from roles where id = $1
	`, roleID).Scan(&u.RoleName, &u.RoleCode); err != nil {
		return directory.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return directory.User{}, err
	}
	return u, nil
}

func (s *UserStore) Get(ctx context.Context, id int64) (directory.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		`+userJoins+`
		where u.id = $1
	`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, fmt.Errorf("%w: user %d", directory.ErrNotFound, id)
	}
	if err != nil {
		return directory.User{}, err
	}
	return u, nil
}

func (s *UserStore) List(ctx context.Context, scope []string, status *lifecycle.Status) ([]directory.User, error) {
	query := `
		select ` + userColumns + `
		` + userJoins + `
		where u.business_unit_name = any($1)`
	args := []any{scope}
	if status != nil {
		query += ` and lower(u.status) = lower($2)`
		args = append(args, string(*status))
	}
	query += ` order by u.employee_name`
	return s.query(ctx, query, args...)
}

func (s *UserStore) Awaiting(ctx context.Context, scope []string) ([]directory.User, error) {
	return s.query(ctx, `
		select `+userColumns+`
		`+userJoins+`
		where u.business_unit_name = any($1)
		  and lower(u.status) in ('pending', 'awaiting-approval', 'delete-approval')
		order by u.employee_name
	`, scope)
}

func (s *UserStore) query(ctx context.Context, query string, args ...any) ([]directory.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []directory.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserStore) Update(ctx context.Context, id int64, upd directory.UserUpdate, status lifecycle.Status) (directory.User, error) {
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
	if upd.EmployeeName != nil {
		add("employee_name", *upd.EmployeeName)
	}
	if upd.MobileNumber != nil {
		add("mobile_number", *upd.MobileNumber)
	}
	if upd.Address != nil {
		add("address", *upd.Address)
	}
	if upd.BusinessUnitName != nil {
		add("business_unit_name", *upd.BusinessUnitName)
	}
	if upd.Comments != nil {
		add("comments", *upd.Comments)
	}
	add("status", string(status))

	query := fmt.Sprintf(`update users set %s where id = $%d`, strings.Join(sets, ", "), idx)
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return directory.User{}, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return directory.User{}, err
	}
	if aff == 0 {
		return directory.User{}, fmt.Errorf("%w: user %d", directory.ErrNotFound, id)
	}
	return s.Get(ctx, id)
}

func (s *UserStore) Statuses(ctx context.Context, ids []int64) (map[int64]lifecycle.Status, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, status from users where id = any($1)
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

// SetStatus moves the given users to status, recording the actor under
// approved_by or rejected_by depending on direction.
func (s *UserStore) SetStatus(ctx context.Context, ids []int64, status lifecycle.Status, actor, comment string) ([]directory.User, error) {
	actorCol := "approved_by"
	if status.Is(lifecycle.StatusRejected) {
		actorCol = "rejected_by"
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		update users
		set status = $1, %s = coalesce(nullif($2,''), %s), comments = coalesce(nullif($3,''), comments)
		where id = any($4)
	`, actorCol, actorCol), string(status), actor, comment, ids); err != nil {
		return nil, err
	}
	return s.query(ctx, `
		select `+userColumns+`
		`+userJoins+`
		where u.id = any($1)
		order by u.employee_name
	`, ids)
}

func (s *UserStore) HardDelete(ctx context.Context, ids []int64) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from user_roles where user_id = any($1)`, ids); err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, `
		delete from users where id = any($1) returning id
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

// BusinessUnit returns the user's business_unit_name, nil when unassigned.
func (s *UserStore) BusinessUnit(ctx context.Context, userID int64) (*string, error) {
	var bu *string
	err := s.db.QueryRowContext(ctx, `
		select business_unit_name from users where id = $1
	`, userID).Scan(&bu)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", directory.ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	return bu, nil
}

// FindByEmail implements auth.LoginStore.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (auth.LoginRecord, error) {
	var rec auth.LoginRecord
	err := s.db.QueryRowContext(ctx, `
		select u.id, u.employee_name, u.email, u.password_hash,
		       coalesce(r.role_name, ''), coalesce(r.rolecode, '')
		`+userJoins+`
		where lower(u.email) = lower($1)
	`, email).Scan(&rec.UserID, &rec.EmployeeName, &rec.Email, &rec.PasswordHash, &rec.RoleName, &rec.RoleCode)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.LoginRecord{}, fmt.Errorf("%w: email %s", directory.ErrNotFound, email)
	}
	if err != nil {
		return auth.LoginRecord{}, err
	}
	return rec, nil
}

var _ access.ScopeStore = (*ScopeStore)(nil)

// ScopeStore adapts the user and entity stores to access.ScopeStore.
type ScopeStore struct {
	users    *UserStore
	entities *EntityStore
}

func (s *ScopeStore) UserBusinessUnit(ctx context.Context, userID int64) (*string, error) {
	return s.users.BusinessUnit(ctx, userID)
}

func (s *ScopeStore) EntityByName(ctx context.Context, name string) (hierarchy.Entity, error) {
	return s.entities.ByName(ctx, name)
}
