// Package assistant wires classification, dispatch, and response generation
// into the single answer() entry point.
package assistant

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nkch1k/REAssistant/internal/dispatch"
	"github.com/nkch1k/REAssistant/internal/ledger"
	"github.com/nkch1k/REAssistant/internal/metrics"
)

// IntentClassifier is the consumed classification boundary.
type IntentClassifier interface {
	Classify(ctx context.Context, query string) dispatch.Classification
}

// ResponseGenerator is the produced response-generation boundary.
type ResponseGenerator interface {
	Respond(ctx context.Context, out dispatch.Outcome, query string) string
}

// Answer is the structured result of one query. Failure is empty on
// success; it is never a crash, only a designed terminal tag.
type Answer struct {
	TraceID      string              `json:"trace_id"`
	Intent       dispatch.Intent     `json:"intent"`
	Data         any                 `json:"data,omitempty"`
	ResponseText string              `json:"response_text"`
	Failure      dispatch.FailureTag `json:"error,omitempty"`
}

// Assistant runs the full pipeline: classify, dispatch, respond. One query
// is one sequential pass; the only blocking boundaries are the two LLM
// calls.
type Assistant struct {
	classifier IntentClassifier
	dispatcher *dispatch.Dispatcher
	responder  ResponseGenerator
	store      *ledger.Store
	metrics    *metrics.Registry
}

// New assembles an assistant. The metrics registry may be nil.
func New(classifier IntentClassifier, dispatcher *dispatch.Dispatcher, responder ResponseGenerator, store *ledger.Store, reg *metrics.Registry) *Assistant {
	return &Assistant{
		classifier: classifier,
		dispatcher: dispatcher,
		responder:  responder,
		store:      store,
		metrics:    reg,
	}
}

// Answer processes one natural-language query end to end. Per-query
// failures degrade to a response; only a missing dataset at startup is
// fatal, and that is enforced before serving.
func (a *Assistant) Answer(ctx context.Context, query string) Answer {
	query = strings.TrimSpace(query)

	start := time.Now()
	classification := a.classifier.Classify(ctx, query)
	a.observe("classify", time.Since(start))

	start = time.Now()
	out := a.dispatcher.Dispatch(ctx, classification)
	a.observe("dispatch", time.Since(start))

	start = time.Now()
	text := a.responder.Respond(ctx, out, query)
	a.observe("respond", time.Since(start))

	outcome := "completed"
	if !out.Completed() {
		outcome = string(out.Failure)
	}
	if a.metrics != nil {
		a.metrics.QueriesTotal.WithLabelValues(string(out.Intent), outcome).Inc()
	}
	log.Info().Str("trace_id", out.TraceID).Str("intent", string(out.Intent)).
		Str("outcome", outcome).Msg("query answered")

	return Answer{
		TraceID:      out.TraceID,
		Intent:       out.Intent,
		Data:         out.Data,
		ResponseText: text,
		Failure:      out.Failure,
	}
}

// Reload swaps in a fresh dataset; in-flight queries keep the old one.
func (a *Assistant) Reload(ctx context.Context) error {
	if err := a.store.Reload(ctx); err != nil {
		return err
	}
	if a.metrics != nil {
		a.metrics.DatasetSwaps.Inc()
		if ds, err := a.store.Current(); err == nil {
			a.metrics.DatasetRows.Set(float64(ds.Len()))
		}
	}
	return nil
}

func (a *Assistant) observe(stage string, d time.Duration) {
	if a.metrics != nil {
		a.metrics.QueryDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}
