package adapter

import "errors"

// Typed adapter errors. Adapters wrap these so the engine and registry can
// branch with errors.Is.
var (
	// ErrConfig means the adapter configuration is invalid or incomplete.
	ErrConfig = errors.New("adapter: invalid configuration")
	// ErrConnect means the backend could not be reached.
	ErrConnect = errors.New("adapter: connection failed")
	// ErrQuery means the backend rejected or failed the search query.
	ErrQuery = errors.New("adapter: query failed")
	// ErrNotFound means a requested document does not exist.
	ErrNotFound = errors.New("adapter: document not found")
	// ErrUnknownAdapter means no adapter is registered under the name.
	ErrUnknownAdapter = errors.New("adapter: not registered")
)
