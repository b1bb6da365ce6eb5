package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"ragchat/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *genai.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(context.Background(), ClientConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	return client
}

func respond(w http.ResponseWriter, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func TestGenerateSendsSettings(t *testing.T) {
	var captured map[string]any
	var path, key string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		respond(w, map[string]any{
			"candidates": []any{map[string]any{
				"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": "Forty-two."}}},
				"finishReason": "STOP",
			}},
		})
	})
	g, err := NewGenerator(client, GeneratorConfig{Temperature: 0.4, Safety: DefaultSafety()}, nil)
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "What is the answer?")
	require.NoError(t, err)
	assert.Equal(t, "Forty-two.", out)
	assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", path)
	assert.Equal(t, "test-key", key)

	cfg := captured["generationConfig"].(map[string]any)
	assert.InDelta(t, 0.4, cfg["temperature"], 1e-6)
	safety := captured["safetySettings"].([]any)
	require.Len(t, safety, 4)
	first := safety[0].(map[string]any)
	assert.Equal(t, "HARM_CATEGORY_HARASSMENT", first["category"])
	assert.Equal(t, "BLOCK_MEDIUM_AND_ABOVE", first["threshold"])
}

func TestGenerateBlocked(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"prompt feedback", map[string]any{"promptFeedback": map[string]any{"blockReason": "SAFETY"}}},
		{"finish reason", map[string]any{"candidates": []any{map[string]any{"finishReason": "SAFETY"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { respond(w, tt.body) })
			g, err := NewGenerator(client, GeneratorConfig{}, nil)
			require.NoError(t, err)
			_, err = g.Generate(context.Background(), "q")
			assert.ErrorIs(t, err, domain.ErrContentBlocked)
		})
	}
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"bad key", http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`, "invalid API key"},
		{"quota", http.StatusTooManyRequests, `{"error":{"code":429,"message":"Resource exhausted","status":"RESOURCE_EXHAUSTED"}}`, "quota exceeded"},
		{"server", http.StatusInternalServerError, `{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`, "service error 500"},
		{"no candidates", http.StatusOK, `{}`, "no candidates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			g, err := NewGenerator(client, GeneratorConfig{}, nil)
			require.NoError(t, err)
			_, err = g.Generate(context.Background(), "q")
			require.ErrorIs(t, err, domain.ErrGeneration)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.False(t, strings.Contains(err.Error(), "test-key"))
		})
	}
}

func TestNewGeneratorRejectsUnknownSafety(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := NewGenerator(client, GeneratorConfig{Safety: []SafetySetting{{Category: "HARM_CATEGORY_BOREDOM", Threshold: "BLOCK_NONE"}}}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{APIKey: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestValidateSafety(t *testing.T) {
	assert.NoError(t, ValidateSafety(DefaultSafety()))
	assert.NoError(t, ValidateSafety([]SafetySetting{{Category: "harm_category_hate_speech", Threshold: "block_only_high"}}))
	assert.Error(t, ValidateSafety([]SafetySetting{{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "SOMETIMES"}}))
}
