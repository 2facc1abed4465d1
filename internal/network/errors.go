package network

import "errors"

var (
	// ErrTimedOut is returned when the link is not up after the allowed number of polls.
	ErrTimedOut = errors.New("network: timed out waiting for link")

	// ErrAssociationFailed is returned when the association command fails.
	ErrAssociationFailed = errors.New("network: association failed")

	// ErrInvalidAttempts is returned when maxAttempts is less than one.
	ErrInvalidAttempts = errors.New("network: max attempts must be at least 1")
)
