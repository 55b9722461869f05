// Package resolve maps free-text entity names to canonical dataset keys via
// similarity scoring against a threshold.
package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrNotFound means no candidate cleared the similarity threshold. It is a
// recoverable, user-facing outcome, never a crash.
var ErrNotFound = errors.New("no matching entity")

// DefaultThreshold is the minimum 0-100 similarity score a winning candidate
// must reach.
const DefaultThreshold = 80.0

// Match is a successful resolution. Score is 100 for exact matches.
type Match struct {
	Name  string
	Score float64
}

// Resolver scores a query against a candidate set. The same resolver is used
// for property names and tenant names, against their respective sets.
type Resolver struct {
	threshold float64
}

// New returns a resolver with the given score threshold. A non-positive
// threshold falls back to DefaultThreshold.
func New(threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Resolver{threshold: threshold}
}

// Resolve finds the canonical candidate for query.
//
// An exact (byte-identical) candidate wins immediately without scoring.
// Otherwise every candidate is scored with a length-normalized indel ratio
// over case-lowered strings and the maximum wins; below-threshold maxima
// yield ErrNotFound. Ties on the maximum score break to the
// lexicographically smallest candidate, deterministically.
func (r *Resolver) Resolve(query string, candidates []string) (Match, error) {
	for _, c := range candidates {
		if c == query {
			return Match{Name: c, Score: 100}, nil
		}
	}

	var best Match
	found := false
	for _, c := range candidates {
		score := Ratio(query, c)
		switch {
		case !found || score > best.Score:
			best = Match{Name: c, Score: score}
			found = true
		case score == best.Score && c < best.Name:
			best.Name = c
		}
	}

	if !found || best.Score < r.threshold {
		log.Warn().Str("query", query).Float64("best_score", best.Score).
			Msg("entity resolution below threshold")
		return Match{}, fmt.Errorf("%w: %q", ErrNotFound, query)
	}

	log.Debug().Str("query", query).Str("matched", best.Name).
		Float64("score", best.Score).Msg("entity resolved")
	return best, nil
}

// Ratio returns a 0-100 similarity between a and b: the indel-normalized
// ratio 100 * 2*LCS(a,b) / (len(a)+len(b)), computed case-insensitively.
// Identical strings score 100, disjoint strings 0.
func Ratio(a, b string) float64 {
	if a == b {
		return 100
	}
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	if len(ra) == 0 && len(rb) == 0 {
		return 100
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	// Single-row LCS table.
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(rb)]
	return 100 * float64(2*lcs) / float64(len(ra)+len(rb))
}
