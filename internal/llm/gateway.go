package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/rs/zerolog/log"
)

// ChatParams are per-call overrides. Zero values fall back to the gateway
// defaults (except Temperature, which is used as given).
type ChatParams struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Gateway issues chat completions against an OpenAI-compatible endpoint and
// returns either raw text or a repaired, parsed JSON object. One instance is
// shared across planner and verifier.
type Gateway struct {
	Client       Client
	BaseURL      string
	APIKey       string
	DefaultModel string
	MaxTokens    int

	// RetryCooldown is the pause between JSON-retry attempts.
	RetryCooldown time.Duration
}

const defaultRetryCooldown = 500 * time.Millisecond

// ChatRaw sends one chat completion and returns the raw text content.
func (g *Gateway) ChatRaw(ctx context.Context, system, user string, p ChatParams) (string, error) {
	if g.Client == nil {
		return "", fmt.Errorf("%w: no client configured", ErrUnavailable)
	}
	model := p.Model
	if model == "" {
		model = g.DefaultModel
	}
	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.MaxTokens
	}

	resp, err := g.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: p.Temperature,
		MaxTokens:   maxTokens,
		N:           1,
	})
	if err != nil {
		mapped := mapAPIError(err)
		log.Error().
			Str("model", model).
			Str("base_url", g.BaseURL).
			Str("api_key", maskKey(g.APIKey)).
			Err(err).
			Msg(diagnose(mapped))
		return "", mapped
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmpty
	}
	content := resp.Choices[0].Message.Content
	log.Debug().
		Str("model", model).
		Str("base_url", g.BaseURL).
		Str("api_key", maskKey(g.APIKey)).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Int("response_len", len(content)).
		Msg("chat completion")
	return content, nil
}

// ChatJSON sends a chat completion and parses the response as a JSON object,
// running the repair ladder on malformed output. When even repair fails, the
// whole call is retried up to maxRetries times with temperature forced to 0
// and a cooldown between attempts.
func (g *Gateway) ChatJSON(ctx context.Context, system, user string, p ChatParams, maxRetries int) (map[string]any, error) {
	raw, err := g.ChatRaw(ctx, system, user, p)
	if err != nil {
		return nil, err
	}
	obj, perr := ParseJSONWithRepair(raw)
	if perr == nil {
		return obj, nil
	}

	cooldown := g.RetryCooldown
	if cooldown == 0 {
		cooldown = defaultRetryCooldown
	}
	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Warn().
			Int("attempt", attempt).
			Int("max_retries", maxRetries).
			Err(perr).
			Msg("unparseable JSON from model, retrying at temperature 0")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cooldown):
		}
		retry := p
		retry.Temperature = 0
		raw, err = g.ChatRaw(ctx, system, user, retry)
		if err != nil {
			return nil, err
		}
		if obj, perr = ParseJSONWithRepair(raw); perr == nil {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrBadJSON, perr)
}

// VerifyConnection sends a minimal one-token probe to confirm the endpoint
// and model are reachable. It never returns an error; failures are logged
// with a diagnosis and reported as false.
func (g *Gateway) VerifyConnection(ctx context.Context, model string) bool {
	_, err := g.ChatRaw(ctx, "", "ping", ChatParams{Model: model, MaxTokens: 1})
	if err != nil && !errors.Is(err, ErrEmpty) {
		log.Warn().Str("model", model).Err(err).Msg("connection probe failed")
		return false
	}
	return true
}

// mapAPIError converts upstream failures into the typed error taxonomy,
// keyed on HTTP status when available.
func mapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401:
			return fmt.Errorf("%w: %s", ErrAuth, apiErr.Message)
		case 403:
			return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
		case 404:
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
		case 429:
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		default:
			return fmt.Errorf("%w: %s", ErrUnavailable, apiErr.Message)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.HTTPStatusCode {
		case 401:
			return fmt.Errorf("%w: %v", ErrAuth, err)
		case 403:
			return fmt.Errorf("%w: %v", ErrForbidden, err)
		case 404:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case 429:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func diagnose(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return "authentication rejected; verify ai.api_key"
	case errors.Is(err, ErrForbidden):
		return "access forbidden; request model access, rotate the key, or switch provider"
	case errors.Is(err, ErrNotFound):
		return "model or route not found; verify ai.base_url and model name"
	case errors.Is(err, ErrRateLimited):
		return "rate limited by upstream; reduce concurrency or wait"
	default:
		return "chat completion failed"
	}
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "…" + key[len(key)-4:]
}
