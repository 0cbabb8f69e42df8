// Package bridge is the transport adapter that talks to an external
// transport-gateway process over a per-session WebSocket. The gateway owns
// the chat-network protocol, authentication, and encryption; this side only
// consumes lifecycle frames and issues send/resolve commands.
package bridge

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/chasqui-io/chasqui/internal/domain"
	"github.com/chasqui-io/chasqui/internal/provider"
)

const ProviderType = "bridge"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configure the gateway endpoint.
type Options struct {
	// GatewayURL is the base ws:// or wss:// URL of the transport gateway.
	GatewayURL string

	// ConnectTimeout bounds the dial handshake. Zero means
	// provider.DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// CommandTimeout bounds a single send/resolve round trip.
	CommandTimeout time.Duration
}

type wsConn struct {
	sock    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	state    domain.ConnState
	qr       string
	phone    string
	silenced bool
	pending  map[string]chan envelope
}

func (c *wsConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.sock.WriteMessage(websocket.TextMessage, data)
}

type Adapter struct {
	opts Options
	emit provider.EmitFunc

	mu    sync.Mutex
	conns map[string]*wsConn
}

func New(emit provider.EmitFunc, opts Options) (*Adapter, error) {
	if opts.GatewayURL == "" {
		return nil, fmt.Errorf("bridge: gateway URL is required")
	}
	if _, err := url.Parse(opts.GatewayURL); err != nil {
		return nil, fmt.Errorf("bridge: invalid gateway URL: %w", err)
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = provider.DefaultConnectTimeout
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 30 * time.Second
	}
	return &Adapter{opts: opts, emit: emit, conns: make(map[string]*wsConn)}, nil
}

// Builder adapts New to the factory signature.
func Builder(opts Options) provider.BuildFunc {
	return func(emit provider.EmitFunc) (provider.Adapter, error) {
		return New(emit, opts)
	}
}

func (a *Adapter) Connect(ctx context.Context, sessionID string, receiveMessages bool) error {
	a.mu.Lock()
	if existing, ok := a.conns[sessionID]; ok {
		existing.mu.Lock()
		connected := existing.state == domain.StateConnected
		existing.mu.Unlock()
		if connected {
			a.mu.Unlock()
			return nil
		}
		a.mu.Unlock()
		a.Disconnect(sessionID)
		a.mu.Lock()
	}
	a.mu.Unlock()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.ConnectTimeout)
		defer cancel()
	}

	endpoint := fmt.Sprintf("%s/sessions/%s?receive=%t", a.opts.GatewayURL, url.PathEscape(sessionID), receiveMessages)
	dialer := websocket.Dialer{HandshakeTimeout: a.opts.ConnectTimeout}
	sock, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return domain.NewConnectError(sessionID, err)
	}

	c := &wsConn{
		sock:    sock,
		state:   domain.StateConnecting,
		pending: make(map[string]chan envelope),
	}

	a.mu.Lock()
	a.conns[sessionID] = c
	a.mu.Unlock()

	go a.readLoop(sessionID, c)
	return nil
}

// readLoop is the single consumer of gateway frames for one session. It
// mirrors connection state locally and forwards lifecycle frames to the
// manager in arrival order.
func (a *Adapter) readLoop(sessionID string, c *wsConn) {
	for {
		_, raw, err := c.sock.ReadMessage()
		if err != nil {
			a.dropConn(sessionID, c, domain.ReasonConnectionLost)
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}

		switch env.Type {
		case frameQR:
			c.mu.Lock()
			silenced := c.silenced
			if !silenced {
				c.state = domain.StateQRPending
				c.qr = env.QR
			}
			c.mu.Unlock()
			if !silenced {
				a.emit(domain.NewQRIssuedEvent(sessionID, env.QR))
			}

		case frameAuthenticated:
			c.mu.Lock()
			silenced := c.silenced
			if !silenced {
				c.state = domain.StateAuthenticating
				c.qr = ""
			}
			c.mu.Unlock()
			if !silenced {
				a.emit(domain.NewAuthenticatedEvent(sessionID))
			}

		case frameConnected:
			c.mu.Lock()
			silenced := c.silenced
			if !silenced {
				c.state = domain.StateConnected
				c.qr = ""
				c.phone = env.Phone
			}
			c.mu.Unlock()
			if !silenced {
				a.emit(domain.NewConnectedEvent(sessionID, env.Phone))
			}

		case frameDisconnected:
			a.dropConn(sessionID, c, mapReason(env.Reason))
			return

		case frameMessage:
			if env.Message == nil {
				continue
			}
			c.mu.Lock()
			silenced := c.silenced
			c.mu.Unlock()
			if !silenced {
				a.emit(domain.NewMessageEvent(sessionID, toInbound(env.Message)))
			}

		case frameResult:
			c.mu.Lock()
			ch, ok := c.pending[env.ID]
			if ok {
				delete(c.pending, env.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- env
			}
		}
	}
}

func toInbound(m *wireMessage) *domain.InboundMessage {
	in := &domain.InboundMessage{
		ID:          m.ID,
		From:        m.From,
		Participant: m.Participant,
		AltAddress:  m.AltAddress,
		PushName:    m.PushName,
		RawType:     m.RawType,
		Body:        m.Body,
		Caption:     m.Caption,
		FromMe:      m.FromMe,
		Group:       m.Group,
		Latitude:    m.Latitude,
		Longitude:   m.Longitude,
		Place:       m.Place,
		Timestamp:   time.Unix(m.Timestamp, 0),
	}
	if m.MediaBase64 != "" {
		in.Media = &domain.MediaBlob{
			Base64:   m.MediaBase64,
			MimeType: m.MediaMime,
			Filename: m.MediaName,
		}
	}
	return in
}

// dropConn silences and removes the connection, emitting a single
// disconnect event. Safe to call from both readLoop and Disconnect; only
// the first caller wins.
func (a *Adapter) dropConn(sessionID string, c *wsConn, reason domain.DisconnectReason) {
	c.mu.Lock()
	if c.silenced {
		c.mu.Unlock()
		return
	}
	c.silenced = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	_ = c.sock.Close()

	a.mu.Lock()
	if cur, ok := a.conns[sessionID]; ok && cur == c {
		delete(a.conns, sessionID)
	}
	a.mu.Unlock()

	a.emit(domain.NewDisconnectedEvent(sessionID, reason))
}

func (a *Adapter) Disconnect(sessionID string) {
	a.mu.Lock()
	c, ok := a.conns[sessionID]
	if ok {
		delete(a.conns, sessionID)
	}
	a.mu.Unlock()
	if !ok {
		return
	}

	// Silence first so frames racing the close cannot be emitted, then
	// release the socket. No disconnect event: this teardown was asked
	// for, not observed.
	c.mu.Lock()
	c.silenced = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	_ = c.sock.Close()
}

func (a *Adapter) conn(sessionID string) *wsConn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conns[sessionID]
}

func (a *Adapter) IsConnected(sessionID string) bool {
	c := a.conn(sessionID)
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == domain.StateConnected
}

func (a *Adapter) State(sessionID string) domain.ConnState {
	c := a.conn(sessionID)
	if c == nil {
		return domain.StateDisconnected
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (a *Adapter) QRCode(sessionID string) string {
	c := a.conn(sessionID)
	if c == nil {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.qr
}

func (a *Adapter) PhoneNumber(sessionID string) string {
	c := a.conn(sessionID)
	if c == nil {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phone
}

func (a *Adapter) HasSession(sessionID string) bool {
	return a.conn(sessionID) != nil
}

// command issues one correlated request frame and waits for its result.
func (a *Adapter) command(ctx context.Context, sessionID string, env envelope) (envelope, error) {
	c := a.conn(sessionID)
	if c == nil {
		return envelope{}, domain.NewNotConnectedError(sessionID, domain.StateDisconnected)
	}

	c.mu.Lock()
	if c.silenced {
		c.mu.Unlock()
		return envelope{}, domain.NewNotConnectedError(sessionID, domain.StateDisconnected)
	}
	if c.state != domain.StateConnected {
		state := c.state
		c.mu.Unlock()
		return envelope{}, domain.NewNotConnectedError(sessionID, state)
	}
	env.ID = uuid.NewString()
	ch := make(chan envelope, 1)
	c.pending[env.ID] = ch
	c.mu.Unlock()

	if err := c.writeJSON(env); err != nil {
		c.mu.Lock()
		delete(c.pending, env.ID)
		c.mu.Unlock()
		return envelope{}, fmt.Errorf("bridge: write to gateway: %w", err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.CommandTimeout)
		defer cancel()
	}

	select {
	case res, ok := <-ch:
		if !ok {
			return envelope{}, domain.NewNotConnectedError(sessionID, domain.StateDisconnected)
		}
		if res.Error != "" {
			return envelope{}, fmt.Errorf("bridge: gateway error: %s", res.Error)
		}
		return res, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, env.ID)
		c.mu.Unlock()
		return envelope{}, ctx.Err()
	}
}

func (a *Adapter) NumberID(ctx context.Context, sessionID, address string) (string, bool, error) {
	res, err := a.command(ctx, sessionID, envelope{Type: frameResolve, Address: address})
	if err != nil {
		return "", false, err
	}
	if !res.Registered {
		return "", false, nil
	}
	return res.Resolved, true, nil
}

func (a *Adapter) SendText(ctx context.Context, sessionID, to, body string) (*provider.SendReceipt, error) {
	res, err := a.command(ctx, sessionID, envelope{Type: frameSendText, To: to, Body: body})
	if err != nil {
		return nil, err
	}
	return receipt(res), nil
}

func (a *Adapter) SendMedia(ctx context.Context, sessionID, to string, media provider.Media) (*provider.SendReceipt, error) {
	res, err := a.command(ctx, sessionID, envelope{Type: frameSendMedia, To: to, Media: &Media{
		Base64:   media.Base64,
		MimeType: media.MimeType,
		Filename: media.Filename,
		Caption:  media.Caption,
	}})
	if err != nil {
		return nil, err
	}
	return receipt(res), nil
}

func (a *Adapter) SendByType(ctx context.Context, sessionID, to string, payload provider.TypedPayload) (*provider.SendReceipt, error) {
	res, err := a.command(ctx, sessionID, envelope{Type: frameSendTyped, To: to, Payload: &Sendv{
		Type:      payload.Type,
		Link:      payload.Link,
		Text:      payload.Text,
		Latitude:  payload.Latitude,
		Longitude: payload.Longitude,
		Filename:  payload.Filename,
	}})
	if err != nil {
		return nil, err
	}
	return receipt(res), nil
}

func receipt(res envelope) *provider.SendReceipt {
	ts := res.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	return &provider.SendReceipt{
		MessageID: res.MessageID,
		Timestamp: time.Unix(ts, 0),
		Ack:       res.Ack,
	}
}
