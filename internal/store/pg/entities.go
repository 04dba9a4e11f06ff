package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"treasura.org/internal/hierarchy"
	"treasura.org/internal/lifecycle"
)

// EntityStore persists the master hierarchy and its relationship edges.
type EntityStore struct {
	db *sql.DB
}

var _ hierarchy.Store = (*EntityStore)(nil)

const entityColumns = `entity_id, entity_name, parentname, is_top_level_entity, level,
	approval_status, is_deleted, comments,
	address, contact_phone, contact_email, registration_number, pan_gst,
	legal_entity_identifier, tax_identification_number, default_currency,
	associated_business_units, reporting_currency, unique_identifier,
	legal_entity_type, fx_trading_authority, internal_fx_trading_limit,
	associated_treasury_contact`

func scanEntity(row rowScanner) (hierarchy.Entity, error) {
	var e hierarchy.Entity
	err := row.Scan(
		&e.EntityID, &e.EntityName, &e.ParentName, &e.IsTopLevel, &e.Level,
		&e.ApprovalStatus, &e.IsDeleted, &e.Comments,
		&e.Address, &e.ContactPhone, &e.ContactEmail, &e.RegistrationNumber, &e.PanGST,
		&e.LegalEntityIdentifier, &e.TaxIdentificationNumber, &e.DefaultCurrency,
		&e.AssociatedBusinessUnits, &e.ReportingCurrency, &e.UniqueIdentifier,
		&e.LegalEntityType, &e.FxTradingAuthority, &e.InternalFxTradingLimit,
		&e.AssociatedTreasuryContact,
	)
	return e, err
}

func (s *EntityStore) Insert(ctx context.Context, e hierarchy.Entity) error {
	_, err := s.db.ExecContext(ctx, `
		insert into master_entity (`+entityColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
	`, e.EntityID, e.EntityName, e.ParentName, e.IsTopLevel, e.Level,
		string(e.ApprovalStatus), e.IsDeleted, e.Comments,
		e.Address, e.ContactPhone, e.ContactEmail, e.RegistrationNumber, e.PanGST,
		e.LegalEntityIdentifier, e.TaxIdentificationNumber, e.DefaultCurrency,
		e.AssociatedBusinessUnits, e.ReportingCurrency, e.UniqueIdentifier,
		e.LegalEntityType, e.FxTradingAuthority, e.InternalFxTradingLimit,
		e.AssociatedTreasuryContact)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: entity %s", hierarchy.ErrConflict, e.EntityName)
		}
		return err
	}
	return nil
}

func (s *EntityStore) Get(ctx context.Context, id string) (hierarchy.Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+entityColumns+`
		from master_entity
		where entity_id = $1
	`, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return hierarchy.Entity{}, fmt.Errorf("%w: %s", hierarchy.ErrNotFound, id)
	}
	if err != nil {
		return hierarchy.Entity{}, err
	}
	return e, nil
}

func (s *EntityStore) ByName(ctx context.Context, name string) (hierarchy.Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+entityColumns+`
		from master_entity
		where lower(entity_name) = lower($1)
	`, name)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return hierarchy.Entity{}, fmt.Errorf("%w: %s", hierarchy.ErrNotFound, name)
	}
	if err != nil {
		return hierarchy.Entity{}, err
	}
	return e, nil
}

func (s *EntityStore) List(ctx context.Context) ([]hierarchy.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+entityColumns+`
		from master_entity
		order by entity_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []hierarchy.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *EntityStore) Names(ctx context.Context) ([]string, error) {
	return s.queryNames(ctx, `select entity_name from master_entity order by entity_name`)
}

func (s *EntityStore) NamesAtLevel(ctx context.Context, level string) ([]string, error) {
	return s.queryNames(ctx, `
		select entity_name from master_entity
		where level = $1
		order by entity_name
	`, level)
}

func (s *EntityStore) queryNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func (s *EntityStore) Update(ctx context.Context, id string, upd hierarchy.Update, status lifecycle.Status) (hierarchy.Entity, error) {
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
	if upd.ParentName != nil {
		add("parentname", *upd.ParentName)
	}
	if upd.IsTopLevel != nil {
		add("is_top_level_entity", *upd.IsTopLevel)
	}
	if upd.Level != nil {
		add("level", *upd.Level)
	}
	if upd.Comments != nil {
		add("comments", *upd.Comments)
	}
	if upd.Address != nil {
		add("address", *upd.Address)
	}
	if upd.ContactPhone != nil {
		add("contact_phone", *upd.ContactPhone)
	}
	if upd.ContactEmail != nil {
		add("contact_email", *upd.ContactEmail)
	}
	if upd.RegistrationNumber != nil {
		add("registration_number", *upd.RegistrationNumber)
	}
	if upd.PanGST != nil {
		add("pan_gst", *upd.PanGST)
	}
	if upd.LegalEntityIdentifier != nil {
		add("legal_entity_identifier", *upd.LegalEntityIdentifier)
	}
	if upd.TaxIdentificationNumber != nil {
		add("tax_identification_number", *upd.TaxIdentificationNumber)
	}
	if upd.DefaultCurrency != nil {
		add("default_currency", *upd.DefaultCurrency)
	}
	if upd.AssociatedBusinessUnits != nil {
		add("associated_business_units", *upd.AssociatedBusinessUnits)
	}
	if upd.ReportingCurrency != nil {
		add("reporting_currency", *upd.ReportingCurrency)
	}
	if upd.UniqueIdentifier != nil {
		add("unique_identifier", *upd.UniqueIdentifier)
	}
	if upd.LegalEntityType != nil {
		add("legal_entity_type", *upd.LegalEntityType)
	}
	if upd.FxTradingAuthority != nil {
		add("fx_trading_authority", *upd.FxTradingAuthority)
	}
	if upd.InternalFxTradingLimit != nil {
		add("internal_fx_trading_limit", *upd.InternalFxTradingLimit)
	}
	if upd.AssociatedTreasuryContact != nil {
		add("associated_treasury_contact", *upd.AssociatedTreasuryContact)
	}
	add("approval_status", string(status))

	query := fmt.Sprintf(`update master_entity set %s where entity_id = $%d`, strings.Join(sets, ", "), idx)
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return hierarchy.Entity{}, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return hierarchy.Entity{}, err
	}
	if aff == 0 {
		return hierarchy.Entity{}, fmt.Errorf("%w: %s", hierarchy.ErrNotFound, id)
	}
	return s.Get(ctx, id)
}

func (s *EntityStore) Statuses(ctx context.Context, entityIDs []string) (map[string]lifecycle.Status, error) {
	rows, err := s.db.QueryContext(ctx, `
		select entity_id, approval_status
		from master_entity
		where entity_id = any($1)
	`, entityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]lifecycle.Status, len(entityIDs))
	for rows.Next() {
		var id, status string
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

func (s *EntityStore) Relationships(ctx context.Context) ([]hierarchy.Relationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		select relationship_id, parent_entity_id, child_entity_id, status
		from entity_relationships
		order by relationship_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []hierarchy.Relationship
	for rows.Next() {
		var r hierarchy.Relationship
		if err := rows.Scan(&r.ID, &r.ParentEntityID, &r.ChildEntityID, &r.Status); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *EntityStore) InsertRelationship(ctx context.Context, parentID, childID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		insert into entity_relationships (parent_entity_id, child_entity_id, status)
		values ($1, $2, $3)
		on conflict (child_entity_id) do nothing
	`, parentID, childID, hierarchy.RelationshipActive)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return false, fmt.Errorf("%w: %s or %s", hierarchy.ErrNotFound, parentID, childID)
		}
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}

// Cascade moves roots and their descendants to the given status in one
// transaction and returns every touched row.
func (s *EntityStore) Cascade(ctx context.Context, roots, descendants []string, status lifecycle.Status, rootComment, descendantComment string) ([]hierarchy.Entity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		update master_entity
		set approval_status = $1, comments = coalesce(nullif($2,''), comments)
		where entity_id = any($3)
	`, string(status), rootComment, roots); err != nil {
		return nil, err
	}
	if len(descendants) > 0 {
		if _, err := tx.ExecContext(ctx, `
			update master_entity
			set approval_status = $1, comments = coalesce(nullif($2,''), comments)
			where entity_id = any($3)
		`, string(status), descendantComment, descendants); err != nil {
			return nil, err
		}
	}

	all := append(append([]string{}, roots...), descendants...)
	rows, err := tx.QueryContext(ctx, `
		select `+entityColumns+`
		from master_entity
		where entity_id = any($1)
		order by entity_name
	`, all)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []hierarchy.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// HardDelete removes entity rows and their edges in one transaction and
// returns the ids that actually existed.
func (s *EntityStore) HardDelete(ctx context.Context, entityIDs []string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		delete from entity_relationships
		where parent_entity_id = any($1) or child_entity_id = any($1)
	`, entityIDs); err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, `
		delete from master_entity
		where entity_id = any($1)
		returning entity_id
	`, entityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deleted []string
	for rows.Next() {
		var id string
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
