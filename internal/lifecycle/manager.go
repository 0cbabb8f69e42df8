// Package lifecycle owns the per-session connection state machine: it
// routes adapter events through one ordered loop per session, applies the
// reconnection policy, batches bulk bring-up, and exposes the connect /
// disconnect / status / send operations used by the HTTP surface.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/chasqui-io/chasqui/internal/domain"
	"github.com/chasqui-io/chasqui/internal/provider"
	"github.com/chasqui-io/chasqui/internal/registry"
)

const eventBufferSize = 64

var ErrManagerClosed = errors.New("lifecycle manager is shut down")

// Notifier fans lifecycle events out to the realtime push channel.
type Notifier interface {
	QRIssued(sessionID, qrPayload string)
	Authenticated(sessionID string)
	Connected(sessionID string, profile domain.Status)
	Disconnected(sessionID string, reason domain.DisconnectReason)
	Reconnecting(sessionID string, reason domain.DisconnectReason)
}

// StatusSink lets collaborators react to durable state changes: tenant
// connection status updates and credential cleanup after a terminal
// disconnect. Implementations must tolerate unknown session ids.
type StatusSink interface {
	SessionConnected(ctx context.Context, sessionID string)
	SessionDisconnected(ctx context.Context, sessionID string)
	SessionTerminated(ctx context.Context, sessionID string)
}

// MessageSink consumes raw inbound messages for normalization/forwarding.
type MessageSink interface {
	HandleInbound(ctx context.Context, sessionID string, msg *domain.InboundMessage)
}

// sessionLoop is the single consumer of one session's lifecycle events.
// All state transitions for the session happen on its goroutine, in the
// order the adapter emitted them.
type sessionLoop struct {
	events chan domain.Event
	done   chan struct{}
	exited chan struct{}
}

type Config struct {
	ProviderType   string
	ConnectTimeout time.Duration
	RetryDelay     time.Duration
	BatchSize      int
	BatchDelay     time.Duration
	CountryCode    string
	Logger         *slog.Logger
}

type Manager struct {
	registry *registry.Registry
	adapter  provider.Adapter
	notifier Notifier
	status   StatusSink
	messages MessageSink
	sender   *sendLayer
	log      *slog.Logger

	providerType   string
	connectTimeout time.Duration
	retryDelay     time.Duration
	countryCode    string

	mu     sync.Mutex
	loops  map[string]*sessionLoop
	closed bool

	retries *retrySet
	batcher *Batcher
	wg      sync.WaitGroup
}

// New builds the manager and its adapter. The factory must have a builder
// registered for cfg.ProviderType; the adapter is constructed with the
// manager's dispatch as its emit function, so its events are routed before
// any Connect can be issued.
func New(factory *provider.Factory, reg *registry.Registry, cfg Config, notifier Notifier, status StatusSink, messages MessageSink) (*Manager, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = provider.DefaultConnectTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	m := &Manager{
		registry:       reg,
		notifier:       notifier,
		status:         status,
		messages:       messages,
		log:            cfg.Logger,
		providerType:   cfg.ProviderType,
		connectTimeout: cfg.ConnectTimeout,
		retryDelay:     cfg.RetryDelay,
		countryCode:    cfg.CountryCode,
		loops:          make(map[string]*sessionLoop),
		retries:        newRetrySet(),
	}

	adapter, err := factory.Create(cfg.ProviderType, m.dispatch)
	if err != nil {
		return nil, err
	}
	m.adapter = adapter
	m.sender = newSendLayer(m)
	m.batcher = NewBatcher(m.connectNow, cfg.BatchSize, cfg.BatchDelay)
	return m, nil
}

// Adapter exposes the underlying adapter to the loopback dev profile and
// the tests. Lifecycle state must still only change through events.
func (m *Manager) Adapter() provider.Adapter { return m.adapter }

// Connect queues a bring-up request for the session. The returned channel
// settles with the connect error once the batcher has processed it.
func (m *Manager) Connect(sessionID string, receiveMessages bool) <-chan error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		ch := make(chan error, 1)
		ch <- ErrManagerClosed
		return ch
	}
	m.mu.Unlock()
	return m.batcher.Enqueue(sessionID, receiveMessages)
}

// CancelPending discards a queued bring-up request that has not been
// drained yet.
func (m *Manager) CancelPending(sessionID string) bool {
	return m.batcher.Remove(sessionID)
}

// connectNow performs one connect attempt: it makes sure the session
// record and its event loop exist, then invokes the adapter under the
// configured ceiling. A synchronous connect failure is converted into a
// disconnect event so the reconnection policy sees it like any other drop.
func (m *Manager) connectNow(ctx context.Context, sessionID string, receiveMessages bool) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if _, ok := m.loops[sessionID]; !ok {
		loop := &sessionLoop{
			events: make(chan domain.Event, eventBufferSize),
			done:   make(chan struct{}),
			exited: make(chan struct{}),
		}
		m.loops[sessionID] = loop
		m.wg.Add(1)
		go m.run(sessionID, loop)
	}
	m.mu.Unlock()

	if _, ok := m.registry.Get(sessionID); !ok {
		m.registry.Create(domain.NewSession(sessionID, m.providerType, receiveMessages))
	}
	m.registry.Upsert(sessionID, func(s *domain.Session) {
		s.ProviderType = m.providerType
		s.ReceiveMessages = receiveMessages
		if s.State == domain.StateInit || s.State == domain.StateReconnecting ||
			s.State == domain.StateDisconnected || s.State == domain.StateTerminated {
			s.State = domain.StateConnecting
		}
	})

	ctx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()

	m.log.Info("connecting session", "session", sessionID, "receive", receiveMessages)
	err := m.adapter.Connect(ctx, sessionID, receiveMessages)
	if err == nil {
		return nil
	}

	m.log.Error("connect failed", "session", sessionID, "error", err)
	reason := domain.ReasonUnknown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		// The ceiling fired: tear the half-open handle down like a
		// disconnect would.
		m.adapter.Disconnect(sessionID)
		reason = domain.ReasonTimeout
	}
	m.dispatch(domain.NewDisconnectedEvent(sessionID, reason))
	return domain.NewConnectError(sessionID, err)
}

// dispatch routes an adapter event to the owning session loop. Events for
// sessions without a loop are late arrivals from a torn-down connection
// and are dropped.
func (m *Manager) dispatch(ev domain.Event) {
	m.mu.Lock()
	loop, ok := m.loops[ev.SessionID]
	m.mu.Unlock()
	if !ok {
		m.log.Debug("dropping event for torn-down session", "session", ev.SessionID, "event", ev.Type.String())
		return
	}
	select {
	case loop.events <- ev:
	case <-loop.done:
	}
}

func (m *Manager) run(sessionID string, loop *sessionLoop) {
	defer m.wg.Done()
	defer close(loop.exited)
	for {
		select {
		case <-loop.done:
			return
		default:
		}
		select {
		case ev := <-loop.events:
			// Teardown may have closed done while this event was
			// already buffered; it must not be applied.
			select {
			case <-loop.done:
				return
			default:
			}
			m.apply(sessionID, ev)
		case <-loop.done:
			return
		}
	}
}

// apply performs one state-machine step. Runs only on the session's loop
// goroutine.
func (m *Manager) apply(sessionID string, ev domain.Event) {
	switch ev.Type {
	case domain.EventTypeQRIssued:
		m.registry.Upsert(sessionID, func(s *domain.Session) {
			if domain.CanTransition(s.State, domain.StateQRPending) || s.State == domain.StateQRPending {
				s.State = domain.StateQRPending
			}
			s.QRCode = ev.QRCode
			s.QRIssuedAt = ev.Timestamp
		})
		m.log.Info("qr issued", "session", sessionID)
		m.notifier.QRIssued(sessionID, ev.QRCode)

	case domain.EventTypeAuthenticated:
		m.registry.Upsert(sessionID, func(s *domain.Session) {
			if domain.CanTransition(s.State, domain.StateAuthenticating) {
				s.State = domain.StateAuthenticating
			}
			s.QRCode = ""
		})
		m.log.Info("session authenticated", "session", sessionID)
		m.notifier.Authenticated(sessionID)

	case domain.EventTypeConnected:
		snap := m.registry.Upsert(sessionID, func(s *domain.Session) {
			s.State = domain.StateConnected
			s.QRCode = ""
			s.PhoneNumber = ev.PhoneNumber
			s.Retries = 0
			if s.ConnectedAt == nil {
				ts := ev.Timestamp
				s.ConnectedAt = &ts
			}
		})
		m.log.Info("session connected", "session", sessionID, "phone", ev.PhoneNumber)
		m.status.SessionConnected(context.Background(), sessionID)
		m.notifier.Connected(sessionID, snap.Status())

	case domain.EventTypeDisconnected:
		m.applyDisconnect(sessionID, ev.Reason)

	case domain.EventTypeMessage:
		snap, ok := m.registry.Get(sessionID)
		if !ok || !snap.ReceiveMessages || ev.Message == nil {
			return
		}
		if m.messages != nil {
			m.messages.HandleInbound(context.Background(), sessionID, ev.Message)
		}
	}
}

func (m *Manager) applyDisconnect(sessionID string, reason domain.DisconnectReason) {
	m.log.Warn("session disconnected", "session", sessionID, "reason", reason.String())

	snap := m.registry.Upsert(sessionID, func(s *domain.Session) {
		s.State = domain.StateDisconnected
		s.QRCode = ""
		s.ConnectedAt = nil
	})
	m.status.SessionDisconnected(context.Background(), sessionID)

	if Decide(reason) == DecisionTerminate {
		m.registry.Upsert(sessionID, func(s *domain.Session) {
			s.State = domain.StateTerminated
		})
		m.log.Warn("terminal disconnect, session will not reconnect", "session", sessionID, "reason", reason.String())
		m.notifier.Disconnected(sessionID, reason)
		m.status.SessionTerminated(context.Background(), sessionID)
		m.teardownFromLoop(sessionID)
		return
	}

	receive := snap.ReceiveMessages
	m.registry.Upsert(sessionID, func(s *domain.Session) {
		s.State = domain.StateReconnecting
		s.Retries++
	})
	m.notifier.Reconnecting(sessionID, reason)
	m.log.Info("scheduling reconnect", "session", sessionID, "delay", m.retryDelay)

	m.retries.Schedule(sessionID, m.retryDelay, func() {
		if err := m.connectNow(context.Background(), sessionID, receive); err != nil {
			m.log.Error("reconnect attempt failed", "session", sessionID, "error", err)
		}
	})
}

// silence cancels the session's pending retry and deregisters its loop,
// so no further event can be routed to it. Returns the loop, if any.
func (m *Manager) silence(sessionID string) *sessionLoop {
	m.retries.Cancel(sessionID)

	m.mu.Lock()
	loop, ok := m.loops[sessionID]
	if ok {
		delete(m.loops, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	close(loop.done)
	return loop
}

// teardown silences the session's loop, waits for the loop goroutine to
// exit, then releases the adapter handle and removes the registry entry.
// Waiting before Remove means an apply already in flight cannot write the
// record back afterwards. Must not be called from the session's own loop.
func (m *Manager) teardown(sessionID string) {
	if loop := m.silence(sessionID); loop != nil {
		<-loop.exited
	}
	m.adapter.Disconnect(sessionID)
	m.registry.Remove(sessionID)
}

// teardownFromLoop is teardown for the terminal-disconnect path, which
// runs on the session's own loop goroutine and so cannot wait for it.
// The loop applies nothing further: done is closed before its next
// receive, and run rechecks done before every apply.
func (m *Manager) teardownFromLoop(sessionID string) {
	m.silence(sessionID)
	m.adapter.Disconnect(sessionID)
	m.registry.Remove(sessionID)
}

// Disconnect tears the session down on request: pending bring-up and retry
// are cancelled, event routing is silenced, the adapter releases the
// handle, and the registry entry is removed. Teardown never fails.
func (m *Manager) Disconnect(sessionID string) {
	m.batcher.Remove(sessionID)
	m.teardown(sessionID)
	m.notifier.Disconnected(sessionID, domain.ReasonLoggedOut)
	m.log.Info("session torn down", "session", sessionID)
}

// GetStatus answers "is this tenant connected" from the registry, which
// reflects the last event applied by the session's loop.
func (m *Manager) GetStatus(sessionID string) (domain.Status, error) {
	snap, ok := m.registry.Get(sessionID)
	if !ok {
		return domain.Status{Connected: false, State: domain.StateDisconnected.String()}, domain.ErrSessionNotFound
	}
	return snap.Status(), nil
}

// QRCode returns the live pairing payload for the session, if any.
func (m *Manager) QRCode(sessionID string) string {
	snap, ok := m.registry.Get(sessionID)
	if !ok {
		return ""
	}
	return snap.QRCode
}

// ListSessions snapshots every live session record.
func (m *Manager) ListSessions() []domain.Session {
	return m.registry.ListAll()
}

// IsConnected never fails; unknown sessions are simply not connected.
func (m *Manager) IsConnected(sessionID string) bool {
	return m.adapter.IsConnected(sessionID)
}

// SendText, SendMedia and SendMediaUniversal delegate to the send layer.
func (m *Manager) SendText(ctx context.Context, sessionID string, req TextRequest) (*SendResult, error) {
	return m.sender.SendText(ctx, sessionID, req)
}

func (m *Manager) SendMedia(ctx context.Context, sessionID string, req MediaRequest) (*SendResult, error) {
	return m.sender.SendMedia(ctx, sessionID, req)
}

func (m *Manager) SendMediaUniversal(ctx context.Context, sessionID string, req UniversalMediaRequest) (*SendResult, error) {
	return m.sender.SendMediaUniversal(ctx, sessionID, req)
}

// Shutdown stops the batcher, cancels pending retries, and tears down
// every live session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.loops))
	for id := range m.loops {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	m.batcher.Close()
	m.retries.CancelAll()
	for _, id := range ids {
		m.teardown(id)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
