package llm

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkch1k/REAssistant/internal/dispatch"
	"github.com/nkch1k/REAssistant/internal/ledger"
	"github.com/nkch1k/REAssistant/internal/query"
)

func deadClient(t *testing.T) *Client {
	t.Helper()
	ts := chatStub(t, "", http.StatusOK)
	ts.Close()
	return testClient(ts.URL)
}

func TestRespondFailureMessages(t *testing.T) {
	r := NewResponder(deadClient(t))

	cases := []struct {
		tag      dispatch.FailureTag
		fragment string
		want     string
	}{
		{dispatch.FailPropertyNotFound, "bldg 999", "not found"},
		{dispatch.FailTenantNotFound, "nobody", "not found"},
		{dispatch.FailNoData, "Building 17", "No data"},
		{dispatch.FailMalformedEntities, "", "more detail"},
		{dispatch.FailUnclassified, "", "P&L"},
	}
	for _, tc := range cases {
		out := dispatch.Outcome{State: dispatch.StateFailed, Failure: tc.tag, Fragment: tc.fragment}
		text := r.Respond(context.Background(), out, "whatever")
		assert.Contains(t, text, tc.want, "tag %s", tc.tag)
		if tc.fragment != "" {
			assert.Contains(t, text, tc.fragment)
		}
	}
}

func TestRespondFallsBackToPlainRendering(t *testing.T) {
	// With the endpoint down the deterministic rendering is the response.
	r := NewResponder(deadClient(t))

	out := dispatch.Outcome{
		State:  dispatch.StateCompleted,
		Intent: dispatch.IntentPnLSummary,
		Period: ledger.Period{Year: "2024"},
		Data:   decimal.NewFromInt(1234567),
	}
	text := r.Respond(context.Background(), out, "what's the pnl")
	assert.Contains(t, text, "$1,234,567.00")
	assert.Contains(t, text, "2024")
}

func TestRespondUsesGeneratedText(t *testing.T) {
	ts := chatStub(t, "Your total P&L for 2024 is $1,234,567.00.", http.StatusOK)
	defer ts.Close()

	r := NewResponder(testClient(ts.URL))
	out := dispatch.Outcome{
		State: dispatch.StateCompleted,
		Data:  decimal.NewFromInt(1234567),
	}
	text := r.Respond(context.Background(), out, "what's the pnl")
	assert.Equal(t, "Your total P&L for 2024 is $1,234,567.00.", text)
}

func TestRenderPropertySummaryNormalizesExpenseSign(t *testing.T) {
	out := dispatch.Outcome{
		State: dispatch.StateCompleted,
		Data: query.PropertySummary{
			Name:          "Building 120",
			TotalPnL:      decimal.NewFromInt(200000),
			TotalRevenue:  decimal.NewFromInt(230000),
			TotalExpenses: decimal.NewFromInt(-30000),
			TenantCount:   2,
			TenantNames:   []string{"Tenant 3", "Tenant 8"},
		},
	}
	text := renderContext(out)

	// Expenses cross the generation boundary as positive magnitudes.
	assert.Contains(t, text, "Total Expenses: $30,000.00")
	assert.NotContains(t, text, "-$30,000.00")
	assert.Contains(t, text, "Tenant 3, Tenant 8")
}

func TestRenderBreakdownSplitsRevenueAndExpenses(t *testing.T) {
	out := dispatch.Outcome{
		State:  dispatch.StateCompleted,
		Period: ledger.Period{Year: "2024"},
		Data: query.Breakdown{
			"rental_income": decimal.NewFromInt(230000),
			"maintenance":   decimal.NewFromInt(-30000),
		},
	}
	text := renderContext(out)

	assert.Contains(t, text, "Rental Income: $230,000.00")
	assert.Contains(t, text, "Maintenance: $30,000.00")
	assert.Contains(t, text, "Total Revenue: $230,000.00")
	assert.Contains(t, text, "Total Expenses: $30,000.00")
}

func TestRenderRankingAndComparison(t *testing.T) {
	ranked := dispatch.Outcome{
		State: dispatch.StateCompleted,
		Data: []query.RankedEntry{
			{Rank: 1, Name: "Building 120", Metric: decimal.NewFromInt(200000)},
			{Rank: 2, Name: "Building 17", Metric: decimal.NewFromInt(-50000)},
		},
	}
	text := renderContext(ranked)
	assert.Contains(t, text, "1. Building 120: $200,000.00")
	assert.Contains(t, text, "2. Building 17: -$50,000.00")

	comparison := dispatch.Outcome{
		State: dispatch.StateCompleted,
		Data: query.ComparisonResult{
			A:     query.PropertySummary{Name: "Building 120", TotalPnL: decimal.NewFromInt(200000)},
			B:     query.PropertySummary{Name: "Building 17", TotalPnL: decimal.NewFromInt(-50000)},
			Delta: query.Delta{PnL: decimal.NewFromInt(250000)},
		},
	}
	text = renderContext(comparison)
	assert.Contains(t, text, "Building 120 minus Building 17")
	assert.Contains(t, text, "$250,000.00")
}

func TestRespondNeverReturnsEmpty(t *testing.T) {
	r := NewResponder(deadClient(t))
	out := dispatch.Outcome{State: dispatch.StateCompleted, Data: nil}
	text := r.Respond(context.Background(), out, "anything")
	require.NotEmpty(t, text)
}

func TestMoneyFormatting(t *testing.T) {
	assert.Equal(t, "$0.00", money(decimal.Zero))
	assert.Equal(t, "$12.30", money(decimal.RequireFromString("12.3")))
	assert.Equal(t, "$1,234.56", money(decimal.RequireFromString("1234.56")))
	assert.Equal(t, "$1,234,567.89", money(decimal.RequireFromString("1234567.891")))
	assert.Equal(t, "-$50,000.00", money(decimal.NewFromInt(-50000)))
}

func TestGroupLabel(t *testing.T) {
	assert.Equal(t, "Rental Income", groupLabel("rental_income"))
	assert.Equal(t, "Maintenance", groupLabel("maintenance"))
}

func TestCacheDisabledIsMiss(t *testing.T) {
	var cache *ClassificationCache // nil means disabled
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, ok := cache.Get(ctx, "anything")
	assert.False(t, ok)
	cache.Put(ctx, "anything", dispatch.Fallback()) // must not panic
}
