package dispatch

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nkch1k/REAssistant/internal/ledger"
	"github.com/nkch1k/REAssistant/internal/metrics"
	"github.com/nkch1k/REAssistant/internal/query"
	"github.com/nkch1k/REAssistant/internal/resolve"
)

// State is a step of the single-pass query state machine.
type State string

const (
	StateReceived    State = "received"
	StateResolving   State = "resolving"
	StateAggregating State = "aggregating"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// FailureTag names a designed terminal failure. Every tag is a user-facing
// outcome that still produces a response, never a crash.
type FailureTag string

const (
	FailPropertyNotFound  FailureTag = "property_not_found"
	FailTenantNotFound    FailureTag = "tenant_not_found"
	FailNoData            FailureTag = "no_data"
	FailUnclassified      FailureTag = "unclassified_intent"
	FailMalformedEntities FailureTag = "malformed_entities"
)

// Outcome is the terminal result of one dispatch pass. Completed outcomes
// carry the aggregate payload and resolved names for the response generator;
// Failed outcomes carry the failure tag and the unresolved query fragment.
type Outcome struct {
	TraceID  string
	State    State
	Intent   Intent
	Data     any
	Resolved []string
	Failure  FailureTag
	Fragment string
	Period   ledger.Period
}

// Completed reports whether the pass reached the Completed state.
func (o Outcome) Completed() bool { return o.State == StateCompleted }

// Config tunes dispatcher defaults.
type Config struct {
	DefaultRankLimit int `yaml:"default_rank_limit"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{DefaultRankLimit: 5}
}

// Dispatcher routes one classified intent through resolution and aggregation.
type Dispatcher struct {
	store    *ledger.Store
	resolver *resolve.Resolver
	config   Config
	reg      *metrics.Registry
}

// New builds a dispatcher over the shared store and resolver.
func New(store *ledger.Store, resolver *resolve.Resolver, config Config) *Dispatcher {
	if config.DefaultRankLimit <= 0 {
		config.DefaultRankLimit = 5
	}
	return &Dispatcher{store: store, resolver: resolver, config: config}
}

// WithMetrics attaches the collector registry and returns the dispatcher.
func (d *Dispatcher) WithMetrics(reg *metrics.Registry) *Dispatcher {
	d.reg = reg
	return d
}

func (d *Dispatcher) resolveEntity(name string, candidates []string) (resolve.Match, error) {
	match, err := d.resolver.Resolve(name, candidates)
	if err == nil && d.reg != nil {
		d.reg.ResolverScore.Observe(match.Score)
	}
	return match, err
}

// Dispatch runs a single Received -> Resolving -> Aggregating -> Completed
// pass for the classification, terminating in Failed from any step on a
// recoverable error. It never returns a Go error for per-query failures.
func (d *Dispatcher) Dispatch(ctx context.Context, c Classification) Outcome {
	out := Outcome{
		TraceID: uuid.NewString(),
		State:   StateReceived,
		Intent:  c.Intent,
		Period: ledger.Period{
			Year:    c.Entities.Year,
			Quarter: c.Entities.Quarter,
		},
	}
	log.Debug().Str("trace_id", out.TraceID).Str("intent", string(c.Intent)).Msg("dispatch received")

	// One snapshot per pass: resolution candidates and aggregation must come
	// from the same dataset even while a reload swaps the store underneath.
	ds, err := d.store.Current()
	if err != nil {
		// No dataset means the process should never have accepted queries;
		// degrade to the generic terminal state anyway.
		return d.fail(out, FailUnclassified, "")
	}
	engine := query.NewEngine(ds)

	if !c.Intent.Known() || c.Intent == IntentFallback {
		return d.fail(out, FailUnclassified, "")
	}

	switch c.Intent {
	case IntentPnLSummary:
		out.State = StateAggregating
		out.Data = engine.TotalPnL(out.Period)

	case IntentPnLBreakdown:
		out.State = StateAggregating
		out.Data = engine.PnLBreakdown(c.Entities.Year)

	case IntentPropertyDetails:
		return d.propertyDetails(out, engine, ds, c.Entities)

	case IntentPropertyCompare:
		return d.propertyCompare(out, engine, ds, c.Entities)

	case IntentTenantDetails:
		return d.tenantDetails(out, engine, ds, c.Entities)

	case IntentTenantRanking:
		out.State = StateAggregating
		out.Data = engine.RankTenants(d.direction(c.Entities), d.limit(c.Entities))

	case IntentGeneralKnowledge:
		out.State = StateAggregating
		out.Data = engine.PortfolioStats()

	default:
		return d.fail(out, FailUnclassified, "")
	}

	return d.complete(out)
}

func (d *Dispatcher) propertyDetails(out Outcome, engine *query.Engine, ds *ledger.Dataset, e Entities) Outcome {
	if e.PropertyName == "" {
		// Ranking request, or a general property question: both are served
		// by the ranked property table. No limit means the full table.
		out.State = StateAggregating
		n := 0
		if e.Limit > 0 {
			n = e.Limit
		}
		out.Data = engine.RankProperties(d.direction(e), n)
		return d.complete(out)
	}

	out.State = StateResolving
	match, err := d.resolveEntity(e.PropertyName, ds.Properties())
	if err != nil {
		return d.fail(out, FailPropertyNotFound, e.PropertyName)
	}
	out.Resolved = append(out.Resolved, match.Name)

	out.State = StateAggregating
	if out.Period.IsZero() {
		summary, err := engine.PropertySummary(match.Name)
		if err != nil {
			return d.fail(out, FailNoData, match.Name)
		}
		out.Data = summary
	} else {
		period, err := engine.PropertyPeriodPnL(match.Name, out.Period)
		if err != nil {
			return d.fail(out, FailNoData, match.Name)
		}
		out.Data = period
	}
	return d.complete(out)
}

func (d *Dispatcher) propertyCompare(out Outcome, engine *query.Engine, ds *ledger.Dataset, e Entities) Outcome {
	nameA, nameB, ok := e.ComparisonPair()
	if !ok {
		return d.fail(out, FailMalformedEntities, e.PropertyName)
	}

	out.State = StateResolving
	matchA, err := d.resolveEntity(nameA, ds.Properties())
	if err != nil {
		return d.fail(out, FailPropertyNotFound, nameA)
	}
	matchB, err := d.resolveEntity(nameB, ds.Properties())
	if err != nil {
		return d.fail(out, FailPropertyNotFound, nameB)
	}
	out.Resolved = append(out.Resolved, matchA.Name, matchB.Name)

	out.State = StateAggregating
	result, err := engine.CompareProperties(matchA.Name, matchB.Name)
	if err != nil {
		side := matchA.Name
		if _, aErr := engine.PropertySummary(matchA.Name); aErr == nil {
			side = matchB.Name
		}
		return d.fail(out, FailNoData, side)
	}
	out.Data = result
	return d.complete(out)
}

func (d *Dispatcher) tenantDetails(out Outcome, engine *query.Engine, ds *ledger.Dataset, e Entities) Outcome {
	if e.TenantName == "" {
		return d.fail(out, FailMalformedEntities, "")
	}

	out.State = StateResolving
	match, err := d.resolveEntity(e.TenantName, ds.Tenants())
	if err != nil {
		return d.fail(out, FailTenantNotFound, e.TenantName)
	}
	out.Resolved = append(out.Resolved, match.Name)

	out.State = StateAggregating
	out.Data = query.TenantRevenue{
		Name:    match.Name,
		Period:  out.Period.Label(),
		Revenue: engine.TenantRevenue(match.Name, out.Period),
	}
	return d.complete(out)
}

func (d *Dispatcher) direction(e Entities) query.Direction {
	if e.RankingType == string(query.Worst) {
		return query.Worst
	}
	return query.Best
}

func (d *Dispatcher) limit(e Entities) int {
	if e.Limit > 0 {
		return e.Limit
	}
	return d.config.DefaultRankLimit
}

func (d *Dispatcher) complete(out Outcome) Outcome {
	out.State = StateCompleted
	log.Info().Str("trace_id", out.TraceID).Str("intent", string(out.Intent)).
		Strs("resolved", out.Resolved).Msg("dispatch completed")
	return out
}

func (d *Dispatcher) fail(out Outcome, tag FailureTag, fragment string) Outcome {
	out.State = StateFailed
	out.Failure = tag
	out.Fragment = fragment
	out.Data = nil
	log.Info().Str("trace_id", out.TraceID).Str("intent", string(out.Intent)).
		Str("failure", string(tag)).Str("fragment", fragment).Msg("dispatch failed")
	return out
}

// IsNotFound reports whether err is a resolution failure.
func IsNotFound(err error) bool { return errors.Is(err, resolve.ErrNotFound) }
