package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkch1k/REAssistant/internal/dispatch"
)

// chatStub serves a canned chat-completions payload.
func chatStub(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func testClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:               baseURL,
		Model:                 "test-model",
		RequestTimeoutSeconds: 2,
		MaxRetries:            0,
		RPS:                   100,
		Burst:                 100,
	})
}

func TestClassifyParsesIntent(t *testing.T) {
	ts := chatStub(t, `{"intent":"property_details","entities":{"property_name":"Building 180","year":"2024"}}`, http.StatusOK)
	defer ts.Close()

	c := NewClassifier(testClient(ts.URL), nil)
	got := c.Classify(context.Background(), "Show Building 180 performance in 2024")

	assert.Equal(t, dispatch.IntentPropertyDetails, got.Intent)
	assert.Equal(t, "Building 180", got.Entities.PropertyName)
	assert.Equal(t, "2024", got.Entities.Year)
}

func TestClassifyStripsCodeFence(t *testing.T) {
	ts := chatStub(t, "```json\n{\"intent\":\"tenant_ranking\",\"entities\":{\"limit\":5,\"ranking_type\":\"best\"}}\n```", http.StatusOK)
	defer ts.Close()

	got := NewClassifier(testClient(ts.URL), nil).Classify(context.Background(), "Top 5 tenants")
	assert.Equal(t, dispatch.IntentTenantRanking, got.Intent)
	assert.Equal(t, 5, got.Entities.Limit)
}

func TestClassifyMalformedJSONFallsBack(t *testing.T) {
	ts := chatStub(t, "I think this is about profit, maybe?", http.StatusOK)
	defer ts.Close()

	got := NewClassifier(testClient(ts.URL), nil).Classify(context.Background(), "what's up")
	assert.Equal(t, dispatch.IntentFallback, got.Intent)
}

func TestClassifyUnknownIntentFallsBack(t *testing.T) {
	ts := chatStub(t, `{"intent":"order_pizza","entities":{}}`, http.StatusOK)
	defer ts.Close()

	got := NewClassifier(testClient(ts.URL), nil).Classify(context.Background(), "pizza please")
	assert.Equal(t, dispatch.IntentFallback, got.Intent)
}

func TestClassifyServerErrorFallsBack(t *testing.T) {
	ts := chatStub(t, "", http.StatusInternalServerError)
	defer ts.Close()

	got := NewClassifier(testClient(ts.URL), nil).Classify(context.Background(), "total pnl")
	assert.Equal(t, dispatch.IntentFallback, got.Intent, "boundary failures never raise")
}

func TestClassifyUnreachableEndpointFallsBack(t *testing.T) {
	ts := chatStub(t, "", http.StatusOK)
	ts.Close() // connection refused

	got := NewClassifier(testClient(ts.URL), nil).Classify(context.Background(), "total pnl")
	assert.Equal(t, dispatch.IntentFallback, got.Intent)
}

func TestChatSendsAuthAndModel(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "ok"}}},
		})
	}))
	defer ts.Close()

	client := NewClient(Config{
		BaseURL: ts.URL, APIKey: "sk-test", Model: "test-model",
		RequestTimeoutSeconds: 2, RPS: 100, Burst: 100,
	})
	text, err := client.Chat(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)

	assert.Equal(t, "ok", text)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "test-model", gotBody.Model)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.Equal(t, "user", gotBody.Messages[1].Role)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
}
