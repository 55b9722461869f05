package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Type tags a ledger row as revenue or expenses.
type Type string

const (
	TypeRevenue  Type = "revenue"
	TypeExpenses Type = "expenses"
)

// Row is a single financial record. Profit is signed: revenue and expense
// rows both carry signed contributions that sum to net P&L, so callers must
// filter by Type explicitly instead of inferring it from the sign.
type Row struct {
	EntityName        string          `db:"entity_name"`
	PropertyName      string          `db:"property_name"`
	TenantName        string          `db:"tenant_name"` // empty means no tenant
	LedgerType        Type            `db:"ledger_type"`
	LedgerGroup       string          `db:"ledger_group"`
	LedgerCategory    string          `db:"ledger_category"`
	LedgerCode        string          `db:"ledger_code"`
	LedgerDescription string          `db:"ledger_description"`
	Month             string          `db:"month"`
	Quarter           string          `db:"quarter"`
	Year              string          `db:"year"`
	Profit            decimal.Decimal `db:"profit"`
}

// Period is an optional year/quarter constraint. A quarter value like
// "2024-Q1" already pins the year, so when Quarter is set the Year field is
// ignored rather than applied on top.
type Period struct {
	Year    string
	Quarter string
}

// IsZero reports whether the period places no constraint at all.
func (p Period) IsZero() bool {
	return p.Year == "" && p.Quarter == ""
}

// Matches reports whether the row falls inside the period.
func (p Period) Matches(r Row) bool {
	if p.Quarter != "" {
		return r.Quarter == p.Quarter
	}
	if p.Year != "" {
		return r.Year == p.Year
	}
	return true
}

// Label renders the period for logs and response payloads.
func (p Period) Label() string {
	switch {
	case p.Quarter != "":
		return p.Quarter
	case p.Year != "":
		return p.Year
	default:
		return "all periods"
	}
}

// Filter is a predicate set for Dataset.Select. Zero-valued fields match
// every row.
type Filter struct {
	Property string
	Tenant   string
	Type     Type
	Period   Period
}

func (f Filter) matches(r Row) bool {
	if f.Property != "" && r.PropertyName != f.Property {
		return false
	}
	if f.Tenant != "" && r.TenantName != f.Tenant {
		return false
	}
	if f.Type != "" && r.LedgerType != f.Type {
		return false
	}
	return f.Period.Matches(r)
}

// Dataset is the immutable, validated collection of rows plus derived
// distinct-value indices. It is constructed once per load and never mutated;
// concurrent readers share it freely.
type Dataset struct {
	rows       []Row
	properties []string
	tenants    []string
	years      []string
	quarters   []string
}

// NewDataset builds a dataset and its distinct-value indices from rows.
func NewDataset(rows []Row) *Dataset {
	d := &Dataset{rows: rows}
	props := map[string]struct{}{}
	tenants := map[string]struct{}{}
	years := map[string]struct{}{}
	quarters := map[string]struct{}{}
	for _, r := range rows {
		if r.PropertyName != "" {
			props[r.PropertyName] = struct{}{}
		}
		if r.TenantName != "" {
			tenants[r.TenantName] = struct{}{}
		}
		if r.Year != "" {
			years[r.Year] = struct{}{}
		}
		if r.Quarter != "" {
			quarters[r.Quarter] = struct{}{}
		}
	}
	d.properties = sortedKeys(props)
	d.tenants = sortedKeys(tenants)
	d.years = sortedKeys(years)
	d.quarters = sortedKeys(quarters)
	return d
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of rows in the dataset.
func (d *Dataset) Len() int { return len(d.rows) }

// Select returns the rows matching every predicate in the filter. The
// returned slice is a fresh view; the underlying rows are shared and must
// not be mutated.
func (d *Dataset) Select(f Filter) []Row {
	out := make([]Row, 0, len(d.rows))
	for _, r := range d.rows {
		if f.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Properties returns the sorted distinct property names.
func (d *Dataset) Properties() []string { return d.properties }

// Tenants returns the sorted distinct tenant names, nulls excluded.
func (d *Dataset) Tenants() []string { return d.tenants }

// Years returns the sorted distinct years.
func (d *Dataset) Years() []string { return d.years }

// Quarters returns the sorted distinct quarters.
func (d *Dataset) Quarters() []string { return d.quarters }
