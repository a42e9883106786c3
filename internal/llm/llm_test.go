package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mia/internal/assistant"
)

func chatCompletion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   DefaultOpenAIModel,
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message": map[string]any{
				"role":    "assistant",
				"content": content,
			},
		}},
	}
}

func TestOpenAIClassify(t *testing.T) {
	var gotPrompt string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, DefaultOpenAIModel, body.Model)
		require.Len(t, body.Messages, 1)
		gotPrompt = body.Messages[0].Content

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion(`{"type":"response","content":"4"}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), Options{
		Backend: BackendOpenAI,
		APIKey:  "test-key",
		BaseURL: srv.URL + "/",
	})
	require.NoError(t, err)
	defer c.Close()

	out, err := c.Classify(context.Background(), "user asked: mia bhai what is 2+2")
	require.NoError(t, err)
	assert.Equal(t, `{"type":"response","content":"4"}`, out)
	assert.Equal(t, "user asked: mia bhai what is 2+2", gotPrompt)
}

func TestOpenAIUnauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	c := NewOpenAI(Options{APIKey: "bad", BaseURL: srv.URL + "/"})

	_, err := c.Classify(context.Background(), "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, assistant.ErrUnauthenticated)
}

func TestOpenAIEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion("  "))
	}))
	defer srv.Close()

	c := NewOpenAI(Options{APIKey: "k", BaseURL: srv.URL + "/"})

	_, err := c.Classify(context.Background(), "hi")
	assert.ErrorIs(t, err, errEmptyReply)
}

func TestGeminiClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, DefaultGeminiModel+":generateContent")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"type\":\"response\",\"content\":\"hi\"}"}]}}]}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), Options{
		Backend: BackendGemini,
		APIKey:  "test-key",
		BaseURL: srv.URL + "/",
	})
	require.NoError(t, err)

	out, err := c.Classify(context.Background(), "mia bhai hi")
	require.NoError(t, err)
	assert.Equal(t, `{"type":"response","content":"hi"}`, out)
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(context.Background(), Options{Backend: BackendOpenAI})
	assert.ErrorIs(t, err, assistant.ErrUnauthenticated)

	_, err = New(context.Background(), Options{Backend: "llama", APIKey: "k"})
	assert.Error(t, err)
}
