// Package query computes P&L, property, and tenant aggregates over the
// immutable ledger dataset. All operations take already-resolved canonical
// names; entity resolution happens upstream in the dispatcher.
package query

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nkch1k/REAssistant/internal/ledger"
)

// ErrNoData means the entity resolved successfully but has zero matching
// rows for the requested combination. Distinct from a resolution failure,
// which happens upstream.
var ErrNoData = errors.New("no data for the specified criteria")

// Breakdown maps a ledger group to its summed signed amount.
type Breakdown map[string]decimal.Decimal

// PropertySummary is the all-time rollup for a single property.
type PropertySummary struct {
	Name          string          `json:"property_name"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	TenantCount   int             `json:"tenant_count"`
	TenantNames   []string        `json:"tenants"`
}

// PropertyPeriodPnL is a property rollup narrowed to a period, with
// per-group revenue and expense breakdowns.
type PropertyPeriodPnL struct {
	Name             string          `json:"property_name"`
	Period           string          `json:"period"`
	Revenue          decimal.Decimal `json:"revenue"`
	Expenses         decimal.Decimal `json:"expenses"`
	NetProfit        decimal.Decimal `json:"net_profit"`
	RevenueBreakdown Breakdown       `json:"revenue_breakdown"`
	ExpenseBreakdown Breakdown       `json:"expense_breakdown"`
}

// TenantRevenue is the revenue aggregate for one tenant in a period.
type TenantRevenue struct {
	Name    string          `json:"tenant_name"`
	Period  string          `json:"period"`
	Revenue decimal.Decimal `json:"revenue"`
}

// PropertyRow is one line of the per-property table backing rankings and
// the portfolio view.
type PropertyRow struct {
	Name          string          `json:"property_name"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	TenantCount   int             `json:"tenant_count"`
}

// PortfolioStats summarizes the whole unfiltered dataset.
type PortfolioStats struct {
	PropertyCount int             `json:"property_count"`
	TenantCount   int             `json:"tenant_count"`
	Properties    []string        `json:"properties"`
	Tenants       []string        `json:"tenants"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetPnL        decimal.Decimal `json:"net_pnl"`
	YearsCovered  []string        `json:"years_covered"`
}

// Engine runs aggregations over one dataset snapshot. Engines are cheap:
// construct one per query against the store's current dataset.
type Engine struct {
	ds *ledger.Dataset
}

// NewEngine returns an engine over the given dataset snapshot.
func NewEngine(ds *ledger.Dataset) *Engine {
	return &Engine{ds: ds}
}

// ExpenseMagnitude converts a signed expense amount to the positive
// magnitude shown at the response-generation boundary.
func ExpenseMagnitude(d decimal.Decimal) decimal.Decimal {
	return d.Abs()
}

func sumProfit(rows []ledger.Row) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Profit)
	}
	return total
}

func groupProfit(rows []ledger.Row) Breakdown {
	out := Breakdown{}
	for _, r := range rows {
		out[r.LedgerGroup] = out[r.LedgerGroup].Add(r.Profit)
	}
	return out
}

// TotalPnL sums signed profit over rows matching the period. A quarter
// filter overrides a year filter. No matching rows is zero, not an error.
func (e *Engine) TotalPnL(period ledger.Period) decimal.Decimal {
	total := sumProfit(e.ds.Select(ledger.Filter{Period: period}))
	log.Debug().Str("period", period.Label()).Str("total", total.String()).Msg("total P&L computed")
	return total
}

// PnLBreakdown groups profit by ledger group for the given year ("" for all
// years). An empty mapping when nothing matches.
func (e *Engine) PnLBreakdown(year string) Breakdown {
	return groupProfit(e.ds.Select(ledger.Filter{Period: ledger.Period{Year: year}}))
}

// PropertySummary computes the all-time rollup for a canonical property
// name. ErrNoData when the property has zero rows.
func (e *Engine) PropertySummary(name string) (PropertySummary, error) {
	rows := e.ds.Select(ledger.Filter{Property: name})
	if len(rows) == 0 {
		return PropertySummary{}, fmt.Errorf("%w: property %q", ErrNoData, name)
	}

	sub := ledger.NewDataset(rows)
	tenants := sub.Tenants()
	return PropertySummary{
		Name:          name,
		TotalPnL:      sumProfit(rows),
		TotalRevenue:  sumProfit(sub.Select(ledger.Filter{Type: ledger.TypeRevenue})),
		TotalExpenses: sumProfit(sub.Select(ledger.Filter{Type: ledger.TypeExpenses})),
		TenantCount:   len(tenants),
		TenantNames:   tenants,
	}, nil
}

// PropertyPeriodPnL is PropertySummary narrowed to a period, with per-group
// breakdowns. A property with data in other periods but none in the
// requested one reports ErrNoData, never silent zeros.
func (e *Engine) PropertyPeriodPnL(name string, period ledger.Period) (PropertyPeriodPnL, error) {
	rows := e.ds.Select(ledger.Filter{Property: name, Period: period})
	if len(rows) == 0 {
		return PropertyPeriodPnL{}, fmt.Errorf("%w: property %q in %s", ErrNoData, name, period.Label())
	}

	sub := ledger.NewDataset(rows)
	revenue := sub.Select(ledger.Filter{Type: ledger.TypeRevenue})
	expenses := sub.Select(ledger.Filter{Type: ledger.TypeExpenses})
	return PropertyPeriodPnL{
		Name:             name,
		Period:           period.Label(),
		Revenue:          sumProfit(revenue),
		Expenses:         sumProfit(expenses),
		NetProfit:        sumProfit(rows),
		RevenueBreakdown: groupProfit(revenue),
		ExpenseBreakdown: groupProfit(expenses),
	}, nil
}

// TenantRevenue sums revenue-row profit for a canonical tenant name within
// the period. The tenant's existence was established by resolution, so an
// empty row set is zero, not an error.
func (e *Engine) TenantRevenue(name string, period ledger.Period) decimal.Decimal {
	return sumProfit(e.ds.Select(ledger.Filter{
		Tenant: name,
		Type:   ledger.TypeRevenue,
		Period: period,
	}))
}

// PropertyTable returns one row per distinct property with its totals, in
// canonical (sorted) property order.
func (e *Engine) PropertyTable() []PropertyRow {
	out := make([]PropertyRow, 0, len(e.ds.Properties()))
	for _, name := range e.ds.Properties() {
		rows := e.ds.Select(ledger.Filter{Property: name})
		sub := ledger.NewDataset(rows)
		out = append(out, PropertyRow{
			Name:          name,
			TotalPnL:      sumProfit(rows),
			TotalRevenue:  sumProfit(sub.Select(ledger.Filter{Type: ledger.TypeRevenue})),
			TotalExpenses: sumProfit(sub.Select(ledger.Filter{Type: ledger.TypeExpenses})),
			TenantCount:   len(sub.Tenants()),
		})
	}
	return out
}

// PortfolioStats summarizes the unfiltered dataset.
func (e *Engine) PortfolioStats() PortfolioStats {
	return PortfolioStats{
		PropertyCount: len(e.ds.Properties()),
		TenantCount:   len(e.ds.Tenants()),
		Properties:    e.ds.Properties(),
		Tenants:       e.ds.Tenants(),
		TotalRevenue:  sumProfit(e.ds.Select(ledger.Filter{Type: ledger.TypeRevenue})),
		TotalExpenses: sumProfit(e.ds.Select(ledger.Filter{Type: ledger.TypeExpenses})),
		NetPnL:        sumProfit(e.ds.Select(ledger.Filter{})),
		YearsCovered:  e.ds.Years(),
	}
}
