package adapter

import "errors"

// Domain errors for the adapter lifecycle engine.
var (
	// ErrNoHost is returned when the adapter is constructed without a
	// gateway address.
	ErrNoHost = errors.New("adapter: no gateway host configured")

	// ErrNoCredential indicates an operation requires an access key
	// but none has been granted yet.
	ErrNoCredential = errors.New("adapter: no access key available")

	// ErrMissingCollaborator is returned when a required collaborator
	// is absent from the adapter options.
	ErrMissingCollaborator = errors.New("adapter: missing required collaborator")

	// ErrKeyResponse is returned when an access key grant response
	// cannot be parsed.
	ErrKeyResponse = errors.New("adapter: malformed access key response")
)
