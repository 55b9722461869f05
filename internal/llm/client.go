// Package llm holds the external language-model boundary: the HTTP client,
// the intent classifier, and the response generator. The core treats every
// call here as a blocking request/response with no partial results; all
// failures degrade to fallbacks instead of propagating.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Config tunes the chat-completions client.
type Config struct {
	BaseURL               string  `yaml:"base_url"`
	APIKey                string  `yaml:"api_key"`
	Model                 string  `yaml:"model"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	MaxRetries            int     `yaml:"max_retries"`
	RPS                   float64 `yaml:"rps"`
	Burst                 int     `yaml:"burst"`
}

// DefaultConfig returns production defaults for an OpenAI-compatible
// endpoint.
func DefaultConfig() Config {
	return Config{
		BaseURL:               "https://api.openai.com",
		Model:                 "gpt-4o-mini",
		RequestTimeoutSeconds: 30,
		MaxRetries:            2,
		RPS:                   2,
		Burst:                 4,
	}
}

// RequestTimeout returns the per-request timeout.
func (c Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Client calls an OpenAI-compatible /v1/chat/completions endpoint with rate
// limiting, retry with backoff, and a circuit breaker. A tripped breaker
// fails fast so the caller can fall back without waiting out timeouts.
type Client struct {
	config  Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewClient builds a ready client from config.
func NewClient(config Config) *Client {
	if config.RPS <= 0 {
		config.RPS = 2
	}
	if config.Burst <= 0 {
		config.Burst = 4
	}
	settings := gobreaker.Settings{
		Name:    "llm",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).
				Str("to", to.String()).Msg("LLM circuit breaker state change")
		},
	}
	return &Client{
		config:  config,
		http:    &http.Client{Timeout: config.RequestTimeout()},
		limiter: rate.NewLimiter(rate.Limit(config.RPS), config.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Chat sends one system+user exchange and returns the model's text.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doChat(ctx, system, user)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *Client) doChat(ctx context.Context, system, user string) (string, error) {
	messages := []chatMessage{}
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	body, err := json.Marshal(chatRequest{
		Model:    c.config.Model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			backoff += time.Duration(rand.Intn(250)) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, retryable, err := c.attempt(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("LLM request retrying")
	}
	return "", lastErr
}

func (c *Client) attempt(ctx context.Context, body []byte) (string, bool, error) {
	url := c.config.BaseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", true, fmt.Errorf("HTTP %d from LLM endpoint", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("HTTP %d from LLM endpoint", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", false, fmt.Errorf("decoding LLM response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("LLM response carried no choices")
	}

	log.Debug().Dur("latency", time.Since(start)).Msg("LLM request completed")
	return parsed.Choices[0].Message.Content, false, nil
}
