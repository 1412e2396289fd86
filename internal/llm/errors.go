package llm

import "errors"

// Typed gateway errors, mapped from the HTTP status of the upstream
// OpenAI-compatible endpoint. Callers branch with errors.Is.
var (
	// ErrAuth means the endpoint rejected the API key (HTTP 401).
	ErrAuth = errors.New("llm: authentication failed (check ai.api_key)")
	// ErrForbidden means the key is valid but lacks access to the model
	// (HTTP 403). Request access, rotate the key, or switch provider.
	ErrForbidden = errors.New("llm: access forbidden for this model")
	// ErrNotFound means the model or route does not exist (HTTP 404).
	ErrNotFound = errors.New("llm: model or endpoint not found")
	// ErrRateLimited means the endpoint throttled the request (HTTP 429).
	ErrRateLimited = errors.New("llm: rate limited")
	// ErrUnavailable covers transport failures and other upstream errors.
	ErrUnavailable = errors.New("llm: endpoint unavailable")
	// ErrEmpty means the model returned no choices or empty content.
	ErrEmpty = errors.New("llm: empty completion")
	// ErrBadJSON means the response could not be parsed as JSON even after
	// repair and reduced-temperature retries.
	ErrBadJSON = errors.New("llm: invalid JSON response")
)
