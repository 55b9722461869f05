package query

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/nkch1k/REAssistant/internal/ledger"
)

// Direction orders a ranking: Best sorts the metric descending, Worst
// ascending. Rank 1 is always the extreme in the requested direction.
type Direction string

const (
	Best  Direction = "best"
	Worst Direction = "worst"
)

// RankedEntry is one position in a ranking.
type RankedEntry struct {
	Rank   int             `json:"rank"`
	Name   string          `json:"name"`
	Metric decimal.Decimal `json:"metric_value"`
}

// Delta is the field-wise difference of two property summaries, always
// "a minus b".
type Delta struct {
	PnL      decimal.Decimal `json:"pnl"`
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
}

// ComparisonResult pairs two property summaries with their delta. Order is
// caller-significant and never normalized.
type ComparisonResult struct {
	A     PropertySummary `json:"entity_a"`
	B     PropertySummary `json:"entity_b"`
	Delta Delta           `json:"delta"`
}

func rankEntries(metrics map[string]decimal.Decimal, direction Direction, n int) []RankedEntry {
	entries := make([]RankedEntry, 0, len(metrics))
	for name, m := range metrics {
		entries = append(entries, RankedEntry{Name: name, Metric: m})
	}
	sort.Slice(entries, func(i, j int) bool {
		cmp := entries[i].Metric.Cmp(entries[j].Metric)
		if cmp == 0 {
			return entries[i].Name < entries[j].Name
		}
		if direction == Worst {
			return cmp < 0
		}
		return cmp > 0
	})
	if n > 0 && n < len(entries) {
		entries = entries[:n]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// RankProperties orders properties by net P&L in the requested direction and
// returns the first n with 1-based ranks. n <= 0 means all.
func (e *Engine) RankProperties(direction Direction, n int) []RankedEntry {
	metrics := map[string]decimal.Decimal{}
	for _, r := range e.ds.Select(ledger.Filter{}) {
		if r.PropertyName == "" {
			continue
		}
		metrics[r.PropertyName] = metrics[r.PropertyName].Add(r.Profit)
	}
	return rankEntries(metrics, direction, n)
}

// RankTenants is RankProperties restricted to revenue rows, grouped by
// tenant.
func (e *Engine) RankTenants(direction Direction, n int) []RankedEntry {
	metrics := map[string]decimal.Decimal{}
	for _, r := range e.ds.Select(ledger.Filter{Type: ledger.TypeRevenue}) {
		if r.TenantName == "" {
			continue
		}
		metrics[r.TenantName] = metrics[r.TenantName].Add(r.Profit)
	}
	return rankEntries(metrics, direction, n)
}

// CompareProperties computes both summaries and their a-minus-b delta,
// propagating ErrNoData from either side.
func (e *Engine) CompareProperties(nameA, nameB string) (ComparisonResult, error) {
	a, err := e.PropertySummary(nameA)
	if err != nil {
		return ComparisonResult{}, fmt.Errorf("comparing %q: %w", nameA, err)
	}
	b, err := e.PropertySummary(nameB)
	if err != nil {
		return ComparisonResult{}, fmt.Errorf("comparing %q: %w", nameB, err)
	}
	return ComparisonResult{
		A: a,
		B: b,
		Delta: Delta{
			PnL:      a.TotalPnL.Sub(b.TotalPnL),
			Revenue:  a.TotalRevenue.Sub(b.TotalRevenue),
			Expenses: a.TotalExpenses.Sub(b.TotalExpenses),
		},
	}, nil
}
