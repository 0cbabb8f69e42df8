package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for the lifecycle manager and the send surface. Each
// sentinel doubles as the machine-checkable kind of a failure; adapters
// translate transport errors into one of these before they cross the
// adapter boundary.
var (
	// ErrConnect: the underlying transport could not be initialized.
	// Recoverable; routed through the reconnection policy.
	ErrConnect = errors.New("transport could not be initialized")

	// ErrNotConnected: operation attempted on a session that is not in
	// the CONNECTED state. Reported to the caller, never retried here.
	ErrNotConnected = errors.New("session not connected")

	// ErrUnregisteredRecipient: the destination address is not present on
	// the chat network.
	ErrUnregisteredRecipient = errors.New("recipient not registered on the network")

	// ErrInvalidNumber: malformed destination input.
	ErrInvalidNumber = errors.New("invalid phone number")

	// ErrSessionNotFound: no session record exists for the id.
	ErrSessionNotFound = errors.New("session not found")
)

func NewConnectError(sessionID string, cause error) error {
	return fmt.Errorf("%w: session %s: %v", ErrConnect, sessionID, cause)
}

func NewNotConnectedError(sessionID string, state ConnState) error {
	return fmt.Errorf("%w: session %s is %s", ErrNotConnected, sessionID, state)
}

func NewUnregisteredRecipientError(address string) error {
	return fmt.Errorf("%w: %s", ErrUnregisteredRecipient, address)
}
