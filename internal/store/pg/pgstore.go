package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store owns the connection pool. Domain-specific stores are views over the
// same pool, one per service interface.
type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests with sqlmock.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Entities() *EntityStore        { return &EntityStore{db: s.db} }
func (s *Store) Users() *UserStore             { return &UserStore{db: s.db} }
func (s *Store) Roles() *RoleStore             { return &RoleStore{db: s.db} }
func (s *Store) Permissions() *PermissionStore { return &PermissionStore{db: s.db} }
func (s *Store) Exposures() *ExposureStore     { return &ExposureStore{db: s.db} }
func (s *Store) Scope() *ScopeStore {
	return &ScopeStore{users: s.Users(), entities: s.Entities()}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// --- helpers ---

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
