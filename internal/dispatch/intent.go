// Package dispatch routes classified intents to the query engine. It owns
// the single-pass state machine between the external classification boundary
// and the response-generation boundary.
package dispatch

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Intent is the classification tag produced by the external classifier.
type Intent string

const (
	IntentPnLSummary       Intent = "pnl_summary"
	IntentPnLBreakdown     Intent = "pnl_breakdown"
	IntentPropertyDetails  Intent = "property_details"
	IntentPropertyCompare  Intent = "property_compare"
	IntentTenantDetails    Intent = "tenant_details"
	IntentTenantRanking    Intent = "tenant_ranking"
	IntentGeneralKnowledge Intent = "general_knowledge"
	IntentFallback         Intent = "fallback"
)

var knownIntents = map[Intent]struct{}{
	IntentPnLSummary:       {},
	IntentPnLBreakdown:     {},
	IntentPropertyDetails:  {},
	IntentPropertyCompare:  {},
	IntentTenantDetails:    {},
	IntentTenantRanking:    {},
	IntentGeneralKnowledge: {},
	IntentFallback:         {},
}

// Known reports whether the tag is in the enumerated set. Anything outside
// it is treated identically to fallback.
func (i Intent) Known() bool {
	_, ok := knownIntents[i]
	return ok
}

// Entities is the extraction payload of the classification contract. All
// keys are optional; the dispatcher validates per intent.
type Entities struct {
	PropertyName         string   `json:"property_name,omitempty"`
	TenantName           string   `json:"tenant_name,omitempty"`
	Property1            string   `json:"property_1,omitempty"`
	Property2            string   `json:"property_2,omitempty"`
	ComparisonProperties []string `json:"comparison_properties,omitempty"`
	Year                 string   `json:"year,omitempty"`
	Quarter              string   `json:"quarter,omitempty"`
	RankingType          string   `json:"ranking_type,omitempty"` // "best" or "worst"
	EntityType           string   `json:"entity_type,omitempty"`  // "property" or "tenant"
	Limit                int      `json:"limit,omitempty"`
}

// UnmarshalJSON decodes entities leniently. The classifier sometimes emits
// numbers where strings are expected (a bare year, a numeric limit as a
// string); a single odd field must not discard an otherwise valid
// classification.
func (e *Entities) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.PropertyName = lenientString(raw["property_name"])
	e.TenantName = lenientString(raw["tenant_name"])
	e.Property1 = lenientString(raw["property_1"])
	e.Property2 = lenientString(raw["property_2"])
	e.ComparisonProperties = lenientStrings(raw["comparison_properties"])
	e.Year = lenientString(raw["year"])
	e.Quarter = lenientString(raw["quarter"])
	e.RankingType = lenientString(raw["ranking_type"])
	e.EntityType = lenientString(raw["entity_type"])
	e.Limit = lenientInt(raw["limit"])
	return nil
}

func lenientString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

func lenientStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := lenientString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func lenientInt(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if json.Unmarshal(raw, &n) == nil {
		return n
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return 0
}

// ComparisonPair returns the two names of a compare request, accepting
// either the ordered comparison_properties list or the property_1/property_2
// keys, and reports whether both sides are present.
func (e Entities) ComparisonPair() (string, string, bool) {
	if len(e.ComparisonProperties) >= 2 {
		return e.ComparisonProperties[0], e.ComparisonProperties[1], true
	}
	if e.Property1 != "" && e.Property2 != "" {
		return e.Property1, e.Property2, true
	}
	return "", "", false
}

// HasRanking reports whether the entities describe a ranking request rather
// than a single named entity.
func (e Entities) HasRanking() bool {
	return e.RankingType != "" || e.Limit > 0
}

// Classification is the structured output of the classification boundary.
type Classification struct {
	Intent   Intent   `json:"intent"`
	Entities Entities `json:"entities"`
}

// Fallback is the classification used when the boundary produced nothing
// usable.
func Fallback() Classification {
	return Classification{Intent: IntentFallback}
}

// ParseClassification decodes the boundary's JSON output. A malformed
// payload or an unknown tag degrades to fallback; this function never fails.
func ParseClassification(raw []byte) Classification {
	var c Classification
	if err := json.Unmarshal(raw, &c); err != nil {
		return Fallback()
	}
	if !c.Intent.Known() {
		return Fallback()
	}
	return c
}
