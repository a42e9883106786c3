// Package llm holds the classifier backends: long-lived clients that send a
// single prompt string to a hosted model and return its raw reply.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mia/internal/assistant"
)

type Backend string

const (
	BackendGemini Backend = "gemini"
	BackendOpenAI Backend = "openai"
)

const (
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultOpenAIModel = "gpt-5-nano"
)

var errEmptyReply = errors.New("empty reply from model")

type Options struct {
	Backend    Backend
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Client is a Classifier with an explicit lifecycle.
type Client interface {
	assistant.Classifier
	Close() error
}

// New builds the backend named by opt.Backend.
func New(ctx context.Context, opt Options) (Client, error) {
	if strings.TrimSpace(opt.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", opt.Backend, assistant.ErrUnauthenticated)
	}

	switch opt.Backend {
	case BackendGemini, "":
		return NewGemini(ctx, opt)
	case BackendOpenAI:
		return NewOpenAI(opt), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", opt.Backend)
	}
}

// authStatus reports whether an HTTP status means the credential was rejected.
func authStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
