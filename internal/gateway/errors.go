package gateway

import "errors"

// Domain errors for the gateway transport and device layer.
var (
	// ErrNoCredential indicates a REST call that needs an access key
	// was attempted before one was granted.
	ErrNoCredential = errors.New("gateway: no access key available")

	// ErrRequestFailed indicates the gateway answered with an
	// unexpected status code.
	ErrRequestFailed = errors.New("gateway: request failed")

	// ErrUnknownChannel is returned for a channel id that does not
	// map to a known device resource.
	ErrUnknownChannel = errors.New("gateway: unknown channel")
)
