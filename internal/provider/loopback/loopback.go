// Package loopback is an in-process transport adapter. It speaks no
// network protocol: pairing, disconnects, and inbound traffic are driven
// programmatically, which makes it the reference implementation of the
// adapter contract and the transport used by the dev profile and the
// lifecycle tests.
package loopback

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chasqui-io/chasqui/internal/domain"
	"github.com/chasqui-io/chasqui/internal/provider"
)

const ProviderType = "loopback"

type conn struct {
	state           domain.ConnState
	qr              string
	phone           string
	receiveMessages bool
	// silenced stops event emission for this conn; set before teardown so
	// a late injected event cannot reach the manager.
	silenced bool
}

// Options tune the simulated transport.
type Options struct {
	// AutoPairAfter, when positive, completes pairing automatically that
	// long after a QR is issued. Zero means pairing waits for Pair().
	AutoPairAfter time.Duration

	// PhoneNumber reported for connected sessions; a per-session suffix
	// is appended.
	PhoneNumber string

	// FailConnect makes every Connect fail, for error-path tests.
	FailConnect bool
}

type Adapter struct {
	mu    sync.Mutex
	conns map[string]*conn
	peers map[string]struct{}
	emit  provider.EmitFunc
	opts  Options
}

func New(emit provider.EmitFunc, opts Options) *Adapter {
	if opts.PhoneNumber == "" {
		opts.PhoneNumber = "5939900000"
	}
	return &Adapter{
		conns: make(map[string]*conn),
		peers: make(map[string]struct{}),
		emit:  emit,
		opts:  opts,
	}
}

// Builder adapts New to the factory signature.
func Builder(opts Options) provider.BuildFunc {
	return func(emit provider.EmitFunc) (provider.Adapter, error) {
		return New(emit, opts), nil
	}
}

func (a *Adapter) Connect(ctx context.Context, sessionID string, receiveMessages bool) error {
	if a.opts.FailConnect {
		return domain.NewConnectError(sessionID, context.DeadlineExceeded)
	}

	a.mu.Lock()
	if existing, ok := a.conns[sessionID]; ok {
		if existing.state == domain.StateConnected {
			a.mu.Unlock()
			return nil
		}
		existing.silenced = true
		delete(a.conns, sessionID)
	}
	c := &conn{state: domain.StateConnecting, receiveMessages: receiveMessages}
	a.conns[sessionID] = c
	a.mu.Unlock()

	select {
	case <-ctx.Done():
		a.Disconnect(sessionID)
		return domain.NewConnectError(sessionID, ctx.Err())
	default:
	}

	a.issueQR(sessionID)
	return nil
}

func (a *Adapter) issueQR(sessionID string) {
	qr := "loopback-qr-" + uuid.NewString()

	a.mu.Lock()
	c, ok := a.conns[sessionID]
	if !ok || c.silenced {
		a.mu.Unlock()
		return
	}
	c.state = domain.StateQRPending
	c.qr = qr
	a.mu.Unlock()

	a.emit(domain.NewQRIssuedEvent(sessionID, qr))

	if a.opts.AutoPairAfter > 0 {
		time.AfterFunc(a.opts.AutoPairAfter, func() { a.Pair(sessionID) })
	}
}

// Pair completes the pairing handshake, as if the issued QR was scanned.
func (a *Adapter) Pair(sessionID string) {
	a.mu.Lock()
	c, ok := a.conns[sessionID]
	if !ok || c.silenced || c.state != domain.StateQRPending {
		a.mu.Unlock()
		return
	}
	c.state = domain.StateAuthenticating
	a.mu.Unlock()

	a.emit(domain.NewAuthenticatedEvent(sessionID))

	a.mu.Lock()
	c, ok = a.conns[sessionID]
	if !ok || c.silenced {
		a.mu.Unlock()
		return
	}
	c.state = domain.StateConnected
	c.qr = ""
	c.phone = a.opts.PhoneNumber + sessionID
	phone := c.phone
	a.mu.Unlock()

	a.emit(domain.NewConnectedEvent(sessionID, phone))
}

// RotateQR reissues the pairing code, simulating code rotation before a
// successful scan.
func (a *Adapter) RotateQR(sessionID string) {
	a.mu.Lock()
	c, ok := a.conns[sessionID]
	if !ok || c.silenced || c.state != domain.StateQRPending {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	a.issueQR(sessionID)
}

// Drop simulates the transport losing the connection for the given reason.
func (a *Adapter) Drop(sessionID string, reason domain.DisconnectReason) {
	a.mu.Lock()
	c, ok := a.conns[sessionID]
	if !ok || c.silenced {
		a.mu.Unlock()
		return
	}
	c.silenced = true
	delete(a.conns, sessionID)
	a.mu.Unlock()

	a.emit(domain.NewDisconnectedEvent(sessionID, reason))
}

// Inject delivers an inbound message for the session, if it is connected
// and receiving. Returns true when the event was emitted.
func (a *Adapter) Inject(sessionID string, msg *domain.InboundMessage) bool {
	a.mu.Lock()
	c, ok := a.conns[sessionID]
	if !ok || c.silenced || c.state != domain.StateConnected || !c.receiveMessages {
		a.mu.Unlock()
		return false
	}
	a.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	a.emit(domain.NewMessageEvent(sessionID, msg))
	return true
}

// RegisterPeer marks a bare number as present on the simulated network.
func (a *Adapter) RegisterPeer(number string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.peers[number] = struct{}{}
}

func (a *Adapter) Disconnect(sessionID string) {
	a.mu.Lock()
	c, ok := a.conns[sessionID]
	if ok {
		c.silenced = true
		delete(a.conns, sessionID)
	}
	a.mu.Unlock()
}

func (a *Adapter) IsConnected(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.conns[sessionID]
	return ok && c.state == domain.StateConnected
}

func (a *Adapter) State(sessionID string) domain.ConnState {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.conns[sessionID]
	if !ok {
		return domain.StateDisconnected
	}
	return c.state
}

func (a *Adapter) QRCode(sessionID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.conns[sessionID]
	if !ok {
		return ""
	}
	return c.qr
}

func (a *Adapter) PhoneNumber(sessionID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.conns[sessionID]
	if !ok {
		return ""
	}
	return c.phone
}

func (a *Adapter) HasSession(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.conns[sessionID]
	return ok
}

func (a *Adapter) NumberID(ctx context.Context, sessionID, address string) (string, bool, error) {
	a.mu.Lock()
	c, ok := a.conns[sessionID]
	if !ok || c.state != domain.StateConnected {
		a.mu.Unlock()
		return "", false, domain.NewNotConnectedError(sessionID, domain.StateDisconnected)
	}
	_, registered := a.peers[provider.LocalPart(address)]
	a.mu.Unlock()

	if !registered {
		return "", false, nil
	}
	return provider.FormatChatID(address), true, nil
}

func (a *Adapter) SendText(ctx context.Context, sessionID, to, body string) (*provider.SendReceipt, error) {
	if err := a.requireConnected(sessionID); err != nil {
		return nil, err
	}
	return &provider.SendReceipt{MessageID: uuid.NewString(), Timestamp: time.Now(), Ack: 1}, nil
}

func (a *Adapter) SendMedia(ctx context.Context, sessionID, to string, media provider.Media) (*provider.SendReceipt, error) {
	if err := a.requireConnected(sessionID); err != nil {
		return nil, err
	}
	return &provider.SendReceipt{MessageID: uuid.NewString(), Timestamp: time.Now(), Ack: 1}, nil
}

func (a *Adapter) SendByType(ctx context.Context, sessionID, to string, payload provider.TypedPayload) (*provider.SendReceipt, error) {
	if err := a.requireConnected(sessionID); err != nil {
		return nil, err
	}
	return &provider.SendReceipt{MessageID: uuid.NewString(), Timestamp: time.Now(), Ack: 1}, nil
}

func (a *Adapter) requireConnected(sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.conns[sessionID]
	if !ok {
		return domain.NewNotConnectedError(sessionID, domain.StateDisconnected)
	}
	if c.state != domain.StateConnected {
		return domain.NewNotConnectedError(sessionID, c.state)
	}
	return nil
}
