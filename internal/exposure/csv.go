package exposure

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"treasura.org/internal/ids"
	"treasura.org/internal/lifecycle"
)

type columnKind int

const (
	colText columnKind = iota
	colNumber
	colDate
)

// importColumns is the header allow-list. Matching is case-insensitive;
// anything outside this set is dropped silently.
var importColumns = map[string]columnKind{
	"reference_no":         colText,
	"type":                 colText,
	"business_unit":        colText,
	"vendor_beneficiary":   colText,
	"po_amount":            colNumber,
	"po_currency":          colText,
	"po_date":              colDate,
	"po_due_date":          colDate,
	"shipping_bill_date":   colDate,
	"supplier_name":        colText,
	"inco":                 colText,
	"advance":              colNumber,
	"maturity_expiry_date": colDate,
	"month_1":              colNumber,
	"month_2":              colNumber,
	"month_3":              colNumber,
	"month_4":              colNumber,
	"month_5":              colNumber,
	"month_6plus":          colNumber,
	"hedge_month_1":        colNumber,
	"hedge_month_2":        colNumber,
	"hedge_month_3":        colNumber,
	"hedge_month_4":        colNumber,
	"hedge_month_5":        colNumber,
	"hedge_month_6plus":    colNumber,
}

var dateLayouts = []string{"2006-01-02", "02-01-2006", "02/01/2006", "2006/01/02"}

// ParseCSV reads an exposure upload. Recognized headers map onto exposure
// fields; numeric and date cells that fail to parse become null rather than
// failing the row; every parsed row is forced into Pending on both lifecycle
// tracks. Rows without a reference_no or business_unit are rejected.
func ParseCSV(r io.Reader) ([]Exposure, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fieldFor := make(map[int]string, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, ok := importColumns[key]; ok {
			fieldFor[i] = key
		}
	}
	if _, ok := indexOf(fieldFor, "reference_no"); !ok {
		return nil, fmt.Errorf("%w: reference_no column is missing", ErrInvalidInput)
	}
	if _, ok := indexOf(fieldFor, "business_unit"); !ok {
		return nil, fmt.Errorf("%w: business_unit column is missing", ErrInvalidInput)
	}

	var out []Exposure
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidInput, line, err)
		}
		e := Exposure{
			ID:              ids.NewExposureID(),
			Status:          lifecycle.StatusPending,
			StatusBucketing: lifecycle.StatusPending,
			StatusHedge:     lifecycle.StatusPending,
		}
		for i, cell := range record {
			field, ok := fieldFor[i]
			if !ok {
				continue
			}
			setField(&e, field, strings.TrimSpace(cell))
		}
		if e.ReferenceNo == "" {
			return nil, fmt.Errorf("%w: line %d: reference_no is empty", ErrInvalidInput, line)
		}
		if e.BusinessUnit == "" {
			return nil, fmt.Errorf("%w: line %d: business_unit is empty", ErrInvalidInput, line)
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrInvalidInput)
	}
	return out, nil
}

func setField(e *Exposure, field, cell string) {
	switch field {
	case "reference_no":
		e.ReferenceNo = cell
	case "business_unit":
		e.BusinessUnit = cell
	case "type":
		e.Type = textOrNil(cell)
	case "vendor_beneficiary":
		e.VendorBeneficiary = textOrNil(cell)
	case "po_currency":
		e.PoCurrency = textOrNil(cell)
	case "po_amount":
		e.PoAmount = numberOrNil(cell)
	case "po_date":
		e.PoDate = dateOrNil(cell)
	case "po_due_date":
		e.PoDueDate = dateOrNil(cell)
	case "shipping_bill_date":
		e.ShippingBillDate = dateOrNil(cell)
	case "supplier_name":
		e.SupplierName = textOrNil(cell)
	case "inco":
		e.Inco = textOrNil(cell)
	case "advance":
		e.Advance = numberOrNil(cell)
	case "maturity_expiry_date":
		e.MaturityExpiry = dateOrNil(cell)
	case "month_1":
		e.Month1 = numberOrNil(cell)
	case "month_2":
		e.Month2 = numberOrNil(cell)
	case "month_3":
		e.Month3 = numberOrNil(cell)
	case "month_4":
		e.Month4 = numberOrNil(cell)
	case "month_5":
		e.Month5 = numberOrNil(cell)
	case "month_6plus":
		e.Month6Plus = numberOrNil(cell)
	case "hedge_month_1":
		e.HedgeMonth1 = numberOrNil(cell)
	case "hedge_month_2":
		e.HedgeMonth2 = numberOrNil(cell)
	case "hedge_month_3":
		e.HedgeMonth3 = numberOrNil(cell)
	case "hedge_month_4":
		e.HedgeMonth4 = numberOrNil(cell)
	case "hedge_month_5":
		e.HedgeMonth5 = numberOrNil(cell)
	case "hedge_month_6plus":
		e.HedgeMonth6Plus = numberOrNil(cell)
	}
}

func textOrNil(cell string) *string {
	if cell == "" {
		return nil
	}
	return &cell
}

func numberOrNil(cell string) *float64 {
	cell = strings.ReplaceAll(cell, ",", "")
	n, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil
	}
	return &n
}

// dateOrNil normalizes a handful of common layouts to YYYY-MM-DD, nil when
// none matches.
func dateOrNil(cell string) *string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			s := t.Format("2006-01-02")
			return &s
		}
	}
	return nil
}

func indexOf(fieldFor map[int]string, field string) (int, bool) {
	for i, f := range fieldFor {
		if f == field {
			return i, true
		}
	}
	return 0, false
}
