package client

import "github.com/pkg/errors"

var (
	// ErrConfiguration marks a connection attempt that cannot start at all.
	ErrConfiguration = errors.New("chat client not configured")
	ErrNoEndpoint    = errors.Wrap(ErrConfiguration, "no websocket endpoint")
	ErrNoSession     = errors.Wrap(ErrConfiguration, "no session id")

	ErrNotOpen        = errors.New("connection is not open")
	ErrStreaming      = errors.New("a streamed response is still open")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrSuperseded     = errors.New("connection attempt superseded by a newer one")
	ErrUnknownMessage = errors.New("message not found in log")
	ErrNotEligible    = errors.New("message does not accept feedback")
)
