package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"treasura.org/internal/exposure"
	"treasura.org/internal/lifecycle"
)

// ExposureStore persists financial exposures and both of their lifecycle
// tracks.
type ExposureStore struct {
	db *sql.DB
}

var _ exposure.Store = (*ExposureStore)(nil)

const exposureColumns = `id, reference_no, type, business_unit, vendor_beneficiary,
	po_amount, po_currency, po_date, po_due_date, shipping_bill_date,
	supplier_name, inco, advance, maturity_expiry_date,
	status, status_bucketing, status_hedge,
	month_1, month_2, month_3, month_4, month_5, month_6plus,
	old_month_1, old_month_2, old_month_3, old_month_4, old_month_5, old_month_6plus,
	hedge_month_1, hedge_month_2, hedge_month_3, hedge_month_4, hedge_month_5, hedge_month_6plus,
	comments`

func scanExposure(row rowScanner) (exposure.Exposure, error) {
	var e exposure.Exposure
	err := row.Scan(
		&e.ID, &e.ReferenceNo, &e.Type, &e.BusinessUnit, &e.VendorBeneficiary,
		&e.PoAmount, &e.PoCurrency, &e.PoDate, &e.PoDueDate, &e.ShippingBillDate,
		&e.SupplierName, &e.Inco, &e.Advance, &e.MaturityExpiry,
		&e.Status, &e.StatusBucketing, &e.StatusHedge,
		&e.Month1, &e.Month2, &e.Month3, &e.Month4, &e.Month5, &e.Month6Plus,
		&e.OldMonth1, &e.OldMonth2, &e.OldMonth3, &e.OldMonth4, &e.OldMonth5, &e.OldMonth6Plus,
		&e.HedgeMonth1, &e.HedgeMonth2, &e.HedgeMonth3, &e.HedgeMonth4, &e.HedgeMonth5, &e.HedgeMonth6Plus,
		&e.Comments,
	)
	return e, err
}

func statusColumn(track exposure.Track) string {
	if track == exposure.TrackBucketing {
		return "status_bucketing"
	}
	return "status"
}

// InsertBatch writes the whole upload in one transaction.
func (s *ExposureStore) InsertBatch(ctx context.Context, rows []exposure.Exposure) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range rows {
		if _, err := tx.ExecContext(ctx, `
			insert into exposures (id, reference_no, type, business_unit, vendor_beneficiary,
				po_amount, po_currency, po_date, po_due_date, shipping_bill_date,
				supplier_name, inco, advance, maturity_expiry_date,
				status, status_bucketing, status_hedge,
				month_1, month_2, month_3, month_4, month_5, month_6plus,
				hedge_month_1, hedge_month_2, hedge_month_3, hedge_month_4, hedge_month_5, hedge_month_6plus)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29)
		`, e.ID, e.ReferenceNo, e.Type, e.BusinessUnit, e.VendorBeneficiary,
			e.PoAmount, e.PoCurrency, e.PoDate, e.PoDueDate, e.ShippingBillDate,
			e.SupplierName, e.Inco, e.Advance, e.MaturityExpiry,
			string(e.Status), string(e.StatusBucketing), string(e.StatusHedge),
			e.Month1, e.Month2, e.Month3, e.Month4, e.Month5, e.Month6Plus,
			e.HedgeMonth1, e.HedgeMonth2, e.HedgeMonth3, e.HedgeMonth4, e.HedgeMonth5, e.HedgeMonth6Plus); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return 0, fmt.Errorf("%w: duplicate reference_no %s", exposure.ErrInvalidInput, e.ReferenceNo)
			}
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *ExposureStore) Get(ctx context.Context, id string) (exposure.Exposure, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+exposureColumns+` from exposures where id = $1
	`, id)
	e, err := scanExposure(row)
	if errors.Is(err, sql.ErrNoRows) {
		return exposure.Exposure{}, fmt.Errorf("%w: %s", exposure.ErrNotFound, id)
	}
	if err != nil {
		return exposure.Exposure{}, err
	}
	return e, nil
}

func (s *ExposureStore) List(ctx context.Context, scope []string) ([]exposure.Exposure, error) {
	return s.query(ctx, `
		select `+exposureColumns+`
		from exposures
		where business_unit = any($1)
		order by reference_no
	`, scope)
}

func (s *ExposureStore) Awaiting(ctx context.Context, scope []string, track exposure.Track) ([]exposure.Exposure, error) {
	return s.query(ctx, fmt.Sprintf(`
		select `+exposureColumns+`
		from exposures
		where business_unit = any($1)
		  and lower(%s) in ('pending', 'awaiting-approval', 'delete-approval')
		order by reference_no
	`, statusColumn(track)), scope)
}

func (s *ExposureStore) query(ctx context.Context, query string, args ...any) ([]exposure.Exposure, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []exposure.Exposure
	for rows.Next() {
		e, err := scanExposure(rows)
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

func (s *ExposureStore) Statuses(ctx context.Context, ids []string, track exposure.Track) (map[string]lifecycle.Status, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select id, %s from exposures where id = any($1)
	`, statusColumn(track)), ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]lifecycle.Status, len(ids))
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

func (s *ExposureStore) SetStatus(ctx context.Context, ids []string, track exposure.Track, status lifecycle.Status, comment string) ([]exposure.Exposure, error) {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		update exposures
		set %s = $1, comments = coalesce(nullif($2,''), comments)
		where id = any($3)
	`, statusColumn(track)), string(status), comment, ids); err != nil {
		return nil, err
	}
	return s.query(ctx, `
		select `+exposureColumns+`
		from exposures
		where id = any($1)
		order by reference_no
	`, ids)
}

// UpdateBuckets snapshots the current allocation into the old_* columns, then
// writes the new one and resets the bucketing track.
func (s *ExposureStore) UpdateBuckets(ctx context.Context, id string, b exposure.Buckets, status lifecycle.Status) (exposure.Exposure, error) {
	res, err := s.db.ExecContext(ctx, `
		update exposures
		set old_month_1 = month_1, old_month_2 = month_2, old_month_3 = month_3,
		    old_month_4 = month_4, old_month_5 = month_5, old_month_6plus = month_6plus,
		    month_1 = $1, month_2 = $2, month_3 = $3,
		    month_4 = $4, month_5 = $5, month_6plus = $6,
		    status_bucketing = $7
		where id = $8
	`, b.Month1, b.Month2, b.Month3, b.Month4, b.Month5, b.Month6Plus,
		string(status), id)
	if err != nil {
		return exposure.Exposure{}, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return exposure.Exposure{}, err
	}
	if aff == 0 {
		return exposure.Exposure{}, fmt.Errorf("%w: %s", exposure.ErrNotFound, id)
	}
	return s.Get(ctx, id)
}

func (s *ExposureStore) HardDelete(ctx context.Context, ids []string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		delete from exposures where id = any($1) returning id
	`, ids)
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
	return deleted, nil
}

// HedgingProposals aggregates approved-bucketing exposures inside the scope
// by (business_unit, po_currency, type), summing the month allocations.
func (s *ExposureStore) HedgingProposals(ctx context.Context, scope []string) ([]exposure.HedgingProposal, error) {
	rows, err := s.db.QueryContext(ctx, `
		select business_unit, coalesce(po_currency, ''), coalesce(type, ''),
		       coalesce(sum(month_1), 0), coalesce(sum(month_2), 0), coalesce(sum(month_3), 0),
		       coalesce(sum(month_4), 0), coalesce(sum(month_5), 0), coalesce(sum(month_6plus), 0),
		       coalesce(sum(po_amount), 0), count(*)
		from exposures
		where business_unit = any($1)
		  and lower(status_bucketing) = 'approved'
		group by business_unit, po_currency, type
		order by business_unit, po_currency, type
	`, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []exposure.HedgingProposal
	for rows.Next() {
		var p exposure.HedgingProposal
		if err := rows.Scan(&p.BusinessUnit, &p.PoCurrency, &p.Type,
			&p.HedgeMonth1, &p.HedgeMonth2, &p.HedgeMonth3,
			&p.HedgeMonth4, &p.HedgeMonth5, &p.HedgeMonth6Plus,
			&p.TotalAmount, &p.ExposureCount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
