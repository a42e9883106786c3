package llm

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"

	"google.golang.org/genai"

	"mia/internal/assistant"
)

type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini API client. It is built once at startup and
// reused for every turn.
func NewGemini(ctx context.Context, opt Options) (*Gemini, error) {
	model := opt.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     opt.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opt.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: opt.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	log.Debug("Gemini client ready", "model", model)
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Classify(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", mapGeminiError(err))
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: %w", errEmptyReply)
	}

	log.Debug("Gemini replied", "data", text)
	return text, nil
}

func (g *Gemini) Close() error { return nil }

func mapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && authStatus(apiErr.Code) {
		return fmt.Errorf("%w: %v", assistant.ErrUnauthenticated, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && authStatus(apiErrPtr.Code) {
		return fmt.Errorf("%w: %v", assistant.ErrUnauthenticated, err)
	}
	return err
}
