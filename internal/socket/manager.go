package socket

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/jewelchat/internal/bus"
	"github.com/matheus3301/jewelchat/internal/chat"
	"github.com/matheus3301/jewelchat/internal/status"
)

// Event is the payload of socket.* bus events. Generation identifies the
// session that produced it; consumers drop events whose generation is no
// longer current.
type Event struct {
	Generation uint64
	SessionID  string
	UserID     string
	Message    chat.Message
}

// Manager keeps at most one live Session, bound to the current credentials,
// and republishes its events on the bus.
type Manager struct {
	dial Dialer
	bus  *bus.Bus
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	creds   Credentials
	current *Session
	gen     uint64
}

// NewManager creates a manager with no session.
func NewManager(dial Dialer, b *bus.Bus, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		dial:   dial,
		bus:    b,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetCredentials binds the manager to creds. Unchanged credentials are a
// no-op. Otherwise the previous session is torn down and, when creds are
// valid, a new one is started.
func (m *Manager) SetCredentials(creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if creds == m.creds && (m.current != nil || !creds.Valid()) {
		return nil
	}
	if m.ctx.Err() != nil {
		return ErrDisposed
	}

	m.teardownLocked()
	m.creds = creds
	if !creds.Valid() {
		m.log.Info("credentials cleared")
		return nil
	}

	m.gen++
	gen := m.gen
	s := NewSession(creds, m.dial(creds), m.bus, m.log)
	s.OnStateChange(func(st status.State) { m.publishState(gen, s, st) })
	s.OnIncoming(func(msg chat.Message) { m.publish(bus.KindSocketMessage, gen, s, msg) })
	s.OnChatCreated(func(msg chat.Message) { m.publish(bus.KindSocketChatCreated, gen, s, msg) })

	m.current = s
	m.log.Info("starting session", zap.String("user_id", creds.UserID), zap.Uint64("generation", gen))
	if err := s.Start(m.ctx); err != nil {
		m.log.Warn("session start failed", zap.Error(err))
		return err
	}
	return nil
}

// SendMessage sends through the current session.
func (m *Manager) SendMessage(msg OutgoingMessage) error {
	s := m.Current()
	if s == nil {
		return ErrNotConnected
	}
	return s.SendMessage(msg)
}

// Current returns the live session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Credentials returns the credentials the manager is bound to.
func (m *Manager) Credentials() Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds
}

// Generation returns the generation of the current session. It increases
// every time a session is created.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// State returns the current session's state, UNINITIALIZED without one.
func (m *Manager) State() status.State {
	if s := m.Current(); s != nil {
		return s.State()
	}
	return status.Uninitialized
}

// Close tears down the current session. The manager cannot be reused.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
	m.creds = Credentials{}
	m.cancel()
}

func (m *Manager) teardownLocked() {
	if m.current == nil {
		return
	}
	m.current.Dispose()
	m.current = nil
}

func (m *Manager) publishState(gen uint64, s *Session, st status.State) {
	switch st {
	case status.Connected:
		m.publish(bus.KindSocketConnected, gen, s, chat.Message{})
	case status.Disconnected:
		m.publish(bus.KindSocketDisconnected, gen, s, chat.Message{})
	}
}

func (m *Manager) publish(kind string, gen uint64, s *Session, msg chat.Message) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(bus.Event{
		Kind: kind,
		Payload: Event{
			Generation: gen,
			SessionID:  s.ID(),
			UserID:     s.Credentials().UserID,
			Message:    msg,
		},
	})
}
