package assistant

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkch1k/REAssistant/internal/dispatch"
	"github.com/nkch1k/REAssistant/internal/ledger"
	"github.com/nkch1k/REAssistant/internal/metrics"
	"github.com/nkch1k/REAssistant/internal/resolve"
)

// stubClassifier maps canned queries to classifications.
type stubClassifier struct {
	byQuery map[string]dispatch.Classification
}

func (s stubClassifier) Classify(_ context.Context, query string) dispatch.Classification {
	if c, ok := s.byQuery[query]; ok {
		return c
	}
	return dispatch.Fallback()
}

// stubResponder renders a trivial deterministic response.
type stubResponder struct{}

func (stubResponder) Respond(_ context.Context, out dispatch.Outcome, _ string) string {
	if out.State == dispatch.StateFailed {
		return "failed: " + string(out.Failure)
	}
	return fmt.Sprintf("ok: %v", out.Data)
}

type fixedSource struct {
	ds  *ledger.Dataset
	err error
}

func (s *fixedSource) Load(context.Context) (*ledger.Dataset, error) { return s.ds, s.err }

func testAssistant(t *testing.T, classifier IntentClassifier) (*Assistant, *fixedSource, *ledger.Store) {
	t.Helper()
	ds := ledger.NewDataset([]ledger.Row{
		{PropertyName: "Building 120", TenantName: "Tenant 8", LedgerType: ledger.TypeRevenue,
			LedgerGroup: "rental_income", Year: "2024", Quarter: "2024-Q1", Profit: decimal.NewFromInt(200000)},
		{PropertyName: "Building 17", LedgerType: ledger.TypeExpenses,
			LedgerGroup: "utilities", Year: "2024", Quarter: "2024-Q1", Profit: decimal.NewFromInt(-50000)},
	})
	source := &fixedSource{ds: ds}
	store := ledger.NewStore(source)
	require.NoError(t, store.Load(context.Background()))

	dispatcher := dispatch.New(store, resolve.New(0), dispatch.DefaultConfig())
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	return New(classifier, dispatcher, stubResponder{}, store, reg), source, store
}

func TestAnswerCompletedQuery(t *testing.T) {
	a, _, _ := testAssistant(t, stubClassifier{byQuery: map[string]dispatch.Classification{
		"total pnl": {Intent: dispatch.IntentPnLSummary},
	}})

	answer := a.Answer(context.Background(), "  total pnl  ")
	assert.Equal(t, dispatch.IntentPnLSummary, answer.Intent)
	assert.Empty(t, answer.Failure)
	assert.NotEmpty(t, answer.TraceID)
	assert.Contains(t, answer.ResponseText, "150000")

	total, ok := answer.Data.(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, total.Equal(decimal.NewFromInt(150000)))
}

func TestAnswerSameQueryIsDeterministic(t *testing.T) {
	a, _, _ := testAssistant(t, stubClassifier{byQuery: map[string]dispatch.Classification{
		"total pnl": {Intent: dispatch.IntentPnLSummary},
	}})

	first := a.Answer(context.Background(), "total pnl")
	second := a.Answer(context.Background(), "total pnl")
	assert.Equal(t, first.ResponseText, second.ResponseText)
	assert.Equal(t, first.Intent, second.Intent)
}

func TestAnswerFallbackProducesResponse(t *testing.T) {
	a, _, _ := testAssistant(t, stubClassifier{})

	answer := a.Answer(context.Background(), "what's the weather")
	assert.Equal(t, dispatch.IntentFallback, answer.Intent)
	assert.Equal(t, dispatch.FailUnclassified, answer.Failure)
	assert.NotEmpty(t, answer.ResponseText, "fallback is a designed outcome, not an error")
}

func TestReloadFailureKeepsServing(t *testing.T) {
	a, source, store := testAssistant(t, stubClassifier{byQuery: map[string]dispatch.Classification{
		"total pnl": {Intent: dispatch.IntentPnLSummary},
	}})

	source.err = errors.New("file locked")
	require.Error(t, a.Reload(context.Background()))

	// Queries continue against the previous dataset.
	ds, err := store.Current()
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	answer := a.Answer(context.Background(), "total pnl")
	assert.Empty(t, answer.Failure)
}
