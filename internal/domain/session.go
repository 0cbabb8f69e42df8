package domain

import (
	"errors"
	"fmt"
	"time"
)

type ConnState int

const (
	StateInit ConnState = iota
	StateConnecting
	StateQRPending
	StateAuthenticating
	StateConnected
	StateDisconnected
	StateReconnecting
	StateTerminated
)

func (s ConnState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateConnecting:
		return "CONNECTING"
	case StateQRPending:
		return "QR_PENDING"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

var ErrInvalidTransition = errors.New("invalid state transition")

func NewInvalidTransitionError(from, to ConnState) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

var validTransitions = map[ConnState][]ConnState{
	StateInit:           {StateConnecting},
	StateConnecting:     {StateQRPending, StateAuthenticating, StateConnected, StateDisconnected},
	StateQRPending:      {StateQRPending, StateAuthenticating, StateDisconnected},
	StateAuthenticating: {StateQRPending, StateConnected, StateDisconnected},
	StateConnected:      {StateDisconnected},
	StateDisconnected:   {StateReconnecting, StateTerminated},
	StateReconnecting:   {StateConnecting, StateTerminated},
	StateTerminated:     {},
}

func CanTransition(from, to ConnState) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Session is one tenant's logical connection to the chat network. The
// transport-specific handle is owned exclusively by the adapter and never
// appears here; the registry owns the record itself and hands out copies.
type Session struct {
	ID              string
	ProviderType    string
	State           ConnState
	ReceiveMessages bool

	// QRCode holds the opaque pairing payload while State is QR_PENDING
	// and is empty in every other state.
	QRCode     string
	QRIssuedAt time.Time

	// ConnectedAt is set once per successful authentication and cleared
	// on disconnect.
	ConnectedAt *time.Time

	// PhoneNumber is the tenant's own network identity, known once connected.
	PhoneNumber string

	// Retries counts consecutive non-terminal disconnects since the last
	// successful connection.
	Retries int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewSession(id, providerType string, receiveMessages bool) *Session {
	now := time.Now()
	return &Session{
		ID:              id,
		ProviderType:    providerType,
		State:           StateInit,
		ReceiveMessages: receiveMessages,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Status is the provider-agnostic answer to "is this tenant connected".
type Status struct {
	Connected   bool       `json:"connected"`
	State       string     `json:"state"`
	QRAvailable bool       `json:"qrAvailable"`
	ConnectedAt *time.Time `json:"connectedAt,omitempty"`
	Retries     int        `json:"retries,omitempty"`
}

func (s *Session) Status() Status {
	return Status{
		Connected:   s.State == StateConnected,
		State:       s.State.String(),
		QRAvailable: s.QRCode != "",
		ConnectedAt: s.ConnectedAt,
		Retries:     s.Retries,
	}
}
