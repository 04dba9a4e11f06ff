package exposure

import (
	"errors"
	"fmt"
	"strings"

	"treasura.org/internal/lifecycle"
)

var (
	// ErrInvalidInput marks request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a referenced exposure does not exist.
	ErrNotFound = errors.New("exposure not found")
)

// Exposure is one financial-exposure row. Status tracks the upload/delete
// lifecycle; StatusBucketing is an independent review track over the month
// buckets. Old* columns are opaque snapshots kept for audit display, and the
// Hedge* columns plus StatusHedge ride along as opaque payload with no
// lifecycle logic attached.
type Exposure struct {
	ID                string           `json:"id"`
	ReferenceNo       string           `json:"reference_no"`
	Type              *string          `json:"type"`
	BusinessUnit      string           `json:"business_unit"`
	VendorBeneficiary *string          `json:"vendor_beneficiary"`
	PoAmount          *float64         `json:"po_amount"`
	PoCurrency        *string          `json:"po_currency"`
	PoDate            *string          `json:"po_date"`
	PoDueDate         *string          `json:"po_due_date"`
	ShippingBillDate  *string          `json:"shipping_bill_date"`
	SupplierName      *string          `json:"supplier_name,omitempty"`
	Inco              *string          `json:"inco,omitempty"`
	Advance           *float64         `json:"advance,omitempty"`
	MaturityExpiry    *string          `json:"maturity_expiry_date,omitempty"`
	Status            lifecycle.Status `json:"status"`
	StatusBucketing   lifecycle.Status `json:"status_bucketing"`
	StatusHedge       lifecycle.Status `json:"status_hedge"`

	Month1     *float64 `json:"month_1"`
	Month2     *float64 `json:"month_2"`
	Month3     *float64 `json:"month_3"`
	Month4     *float64 `json:"month_4"`
	Month5     *float64 `json:"month_5"`
	Month6Plus *float64 `json:"month_6plus"`

	OldMonth1     *float64 `json:"old_month_1,omitempty"`
	OldMonth2     *float64 `json:"old_month_2,omitempty"`
	OldMonth3     *float64 `json:"old_month_3,omitempty"`
	OldMonth4     *float64 `json:"old_month_4,omitempty"`
	OldMonth5     *float64 `json:"old_month_5,omitempty"`
	OldMonth6Plus *float64 `json:"old_month_6plus,omitempty"`

	HedgeMonth1     *float64 `json:"hedge_month_1,omitempty"`
	HedgeMonth2     *float64 `json:"hedge_month_2,omitempty"`
	HedgeMonth3     *float64 `json:"hedge_month_3,omitempty"`
	HedgeMonth4     *float64 `json:"hedge_month_4,omitempty"`
	HedgeMonth5     *float64 `json:"hedge_month_5,omitempty"`
	HedgeMonth6Plus *float64 `json:"hedge_month_6plus,omitempty"`

	Comments *string `json:"comments,omitempty"`
}

// Buckets is the month allocation written by a bucketing edit.
type Buckets struct {
	Month1     *float64 `json:"month_1"`
	Month2     *float64 `json:"month_2"`
	Month3     *float64 `json:"month_3"`
	Month4     *float64 `json:"month_4"`
	Month5     *float64 `json:"month_5"`
	Month6Plus *float64 `json:"month_6plus"`
}

// Empty reports whether no bucket is set.
func (b Buckets) Empty() bool {
	return b.Month1 == nil && b.Month2 == nil && b.Month3 == nil &&
		b.Month4 == nil && b.Month5 == nil && b.Month6Plus == nil
}

// HedgingProposal is one aggregation row: all approved-bucketing exposures of
// a (business_unit, currency, type) group with their buckets summed into
// hedge amounts.
type HedgingProposal struct {
	BusinessUnit    string  `json:"business_unit"`
	PoCurrency      string  `json:"po_currency"`
	Type            string  `json:"type"`
	HedgeMonth1     float64 `json:"hedge_month_1"`
	HedgeMonth2     float64 `json:"hedge_month_2"`
	HedgeMonth3     float64 `json:"hedge_month_3"`
	HedgeMonth4     float64 `json:"hedge_month_4"`
	HedgeMonth5     float64 `json:"hedge_month_5"`
	HedgeMonth6Plus float64 `json:"hedge_month_6plus"`
	TotalAmount     float64 `json:"total_amount"`
	ExposureCount   int     `json:"exposure_count"`
}

// OutOfScopeError rejects a whole upload batch: at least one row names a
// business unit outside the caller's scope.
type OutOfScopeError struct {
	References []string
}

func (e *OutOfScopeError) Error() string {
	return fmt.Sprintf("%d rows reference business units outside the caller's scope: %s",
		len(e.References), strings.Join(e.References, ", "))
}

func (e *OutOfScopeError) Unwrap() error { return ErrInvalidInput }
