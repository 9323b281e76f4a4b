package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/ledgerlens/internal/common"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body["messages"])

		resp := map[string]any{
			"id":    "chatcmpl-test",
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]string{
						"role":    "assistant",
						"content": content,
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func testClient(t *testing.T, baseURL string) Client {
	t.Helper()
	client, err := NewClient(Config{
		Provider: "openai",
		APIKey:   "test-key",
		BaseURL:  baseURL,
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestPickLedgers(t *testing.T) {
	server := chatServer(t, `[{"index": 0, "ledger_id": "daily", "confidence": 0.9}]`)
	defer server.Close()

	picks, err := testClient(t, server.URL).PickLedgers(context.Background(), "prompt")
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "daily", picks[0].LedgerID)
}

func TestPickCategoriesFencedReply(t *testing.T) {
	server := chatServer(t, "```json\n[{\"index\": 0, \"flow_type\": \"expense\", \"primary_category\": \"餐饮\", \"secondary_category\": \"咖啡\", \"confidence\": 0.8}]\n```")
	defer server.Close()

	picks, err := testClient(t, server.URL).PickCategories(context.Background(), "prompt")
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "餐饮/咖啡", picks[0].Category)
}

func TestMalformedReplyIsBadResponse(t *testing.T) {
	server := chatServer(t, "I cannot classify these transactions.")
	defer server.Close()

	_, err := testClient(t, server.URL).PickLedgers(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrModelBadResponse))
}

func TestTimeoutIsUserFacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Provider: "openai",
		APIKey:   "test-key",
		BaseURL:  server.URL,
		Timeout:  20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = client.PickLedgers(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrModelTimeout))
	assert.Contains(t, common.UserMessage(err), "timed out")
}

func TestUnreachableEndpoint(t *testing.T) {
	// Reserve a port and close it so the connection is refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := testClient(t, url).PickLedgers(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrModelUnreachable))
}

func TestRateLimitStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := testClient(t, server.URL).PickLedgers(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrRateLimit))
}

func TestServerErrorIsRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": `[{"index": 0, "ledger_id": "daily", "confidence": 0.9}]`}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	picks, err := testClient(t, server.URL).PickLedgers(context.Background(), "prompt")
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, 2, calls)
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{Provider: "openai"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrModelUnconfigured))

	_, err = NewClient(Config{Provider: "mystery", APIKey: "k", BaseURL: "http://localhost"})
	require.Error(t, err)
}
