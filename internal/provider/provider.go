// Package provider defines the capability contract every transport adapter
// must satisfy, and the factory the lifecycle manager uses to build them.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/chasqui-io/chasqui/internal/domain"
)

// DefaultConnectTimeout is the hard ceiling on a transport handshake.
// A connect attempt still pending past it is torn down as if disconnected.
const DefaultConnectTimeout = 120 * time.Second

// EmitFunc delivers adapter events to the lifecycle manager. Adapters must
// register their event plumbing before Connect returns and must stop
// calling it for a session after Disconnect completes.
type EmitFunc func(domain.Event)

// SendReceipt is the transport's acknowledgement of an outbound send.
type SendReceipt struct {
	MessageID string
	Timestamp time.Time
	Ack       int
}

// Media is an outbound media payload, either inline base64 content or a
// fetchable link, depending on the send path.
type Media struct {
	Base64   string
	MimeType string
	Filename string
	Caption  string
}

// TypedPayload drives SendByType: one outbound message of an arbitrary
// supported kind, addressed to an already-resolved chat id.
type TypedPayload struct {
	Type      string
	Link      string
	Text      string
	Latitude  float64
	Longitude float64
	Filename  string
}

// Adapter bridges the lifecycle manager to one concrete transport. One
// adapter instance manages many sessions; the underlying per-session
// connection handle is owned by the adapter alone.
//
// Connect is idempotent for a CONNECTED session and tears down a
// non-connected one before dialing fresh. Disconnect is best-effort and
// must silence the session's event emission before releasing the handle,
// so a late transport callback can never resurrect a torn-down session.
// IsConnected never fails and returns false for unknown ids.
type Adapter interface {
	Connect(ctx context.Context, sessionID string, receiveMessages bool) error
	Disconnect(sessionID string)
	IsConnected(sessionID string) bool
	State(sessionID string) domain.ConnState
	QRCode(sessionID string) string
	PhoneNumber(sessionID string) string
	HasSession(sessionID string) bool

	// NumberID resolves a destination address against the network.
	// registered=false means the address is not on the network, which is
	// distinct from err != nil meaning the session is unusable.
	NumberID(ctx context.Context, sessionID, address string) (resolved string, registered bool, err error)

	SendText(ctx context.Context, sessionID, to, body string) (*SendReceipt, error)
	SendMedia(ctx context.Context, sessionID, to string, media Media) (*SendReceipt, error)
	SendByType(ctx context.Context, sessionID, to string, payload TypedPayload) (*SendReceipt, error)
}

// BuildFunc constructs an adapter that reports events through emit.
type BuildFunc func(emit EmitFunc) (Adapter, error)

type Factory struct {
	builders map[string]BuildFunc
}

func NewFactory() *Factory {
	return &Factory{builders: make(map[string]BuildFunc)}
}

func (f *Factory) Register(providerType string, build BuildFunc) {
	f.builders[providerType] = build
}

func (f *Factory) Create(providerType string, emit EmitFunc) (Adapter, error) {
	build, ok := f.builders[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
	return build(emit)
}

func (f *Factory) SupportedTypes() []string {
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	return types
}
