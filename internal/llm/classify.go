package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/nkch1k/REAssistant/internal/dispatch"
	"github.com/nkch1k/REAssistant/internal/metrics"
)

// Classifier turns raw question text into the structured classification
// contract. Any boundary failure - transport, breaker, malformed JSON, an
// unknown tag - degrades to the fallback classification; Classify never
// returns an error to its caller.
type Classifier struct {
	client *Client
	cache  *ClassificationCache
	reg    *metrics.Registry
}

// NewClassifier wires the chat client and an optional cache (nil disables
// caching).
func NewClassifier(client *Client, cache *ClassificationCache) *Classifier {
	return &Classifier{client: client, cache: cache}
}

// WithMetrics attaches the collector registry and returns the classifier.
func (c *Classifier) WithMetrics(reg *metrics.Registry) *Classifier {
	c.reg = reg
	return c
}

func (c *Classifier) count(result string) {
	if c.reg != nil {
		c.reg.LLMRequests.WithLabelValues("classify", result).Inc()
	}
}

// Classify returns the intent and entities for the query.
func (c *Classifier) Classify(ctx context.Context, query string) dispatch.Classification {
	if cached, ok := c.cache.Get(ctx, query); ok {
		log.Debug().Str("intent", string(cached.Intent)).Msg("classification cache hit")
		return cached
	}

	text, err := c.client.Chat(ctx, classifierSystemPrompt, fmt.Sprintf(classifierUserTemplate, query))
	if err != nil {
		c.count("error")
		log.Warn().Err(err).Msg("classification call failed, using fallback intent")
		return dispatch.Fallback()
	}
	c.count("ok")

	parsed := dispatch.ParseClassification([]byte(stripFences(text)))
	if parsed.Intent != dispatch.IntentFallback {
		c.cache.Put(ctx, query, parsed)
	}
	log.Debug().Str("intent", string(parsed.Intent)).Msg("query classified")
	return parsed
}

// stripFences removes a markdown code fence the model may wrap around its
// JSON output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
