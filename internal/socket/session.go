package socket

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/jewelchat/internal/bus"
	"github.com/matheus3301/jewelchat/internal/chat"
	"github.com/matheus3301/jewelchat/internal/status"
)

// SourcePrefix prefixes ids synthesized for socket messages that carry none.
const SourcePrefix = "sock"

// Session owns one transport for one credential pair. It is created by the
// Manager and lives until Dispose.
type Session struct {
	id        string
	creds     Credentials
	transport Transport
	machine   *status.Machine
	norm      chat.Normalizer
	log       *zap.Logger

	mu         sync.Mutex
	disposed   bool
	started    bool
	registered string
	offs       []func()
	next       int
	incoming   map[int]func(chat.Message)
	created    map[int]func(chat.Message)
	states     map[int]func(status.State)

	// dispatchMu is held while handlers run so Dispose can wait for an
	// in-flight callback. Handlers must not call Dispose.
	dispatchMu sync.Mutex
	once       sync.Once
}

// NewSession creates a session in the UNINITIALIZED state. b may be nil.
func NewSession(creds Credentials, t Transport, b *bus.Bus, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		id:        id,
		creds:     creds,
		transport: t,
		machine:   status.NewMachine(b),
		log:       log.With(zap.String("session", id), zap.String("user_id", creds.UserID)),
		incoming:  make(map[int]func(chat.Message)),
		created:   make(map[int]func(chat.Message)),
		states:    make(map[int]func(status.State)),
	}
}

// ID returns the unique id of this session instance.
func (s *Session) ID() string { return s.id }

// Credentials returns the credential pair the session is bound to.
func (s *Session) Credentials() Credentials { return s.creds }

// State returns the current lifecycle state.
func (s *Session) State() status.State { return s.machine.Current() }

// Connected reports whether the transport is currently up.
func (s *Session) Connected() bool { return s.machine.Current() == status.Connected }

// RegisteredUserID returns the identity announced after the last connect,
// or "" while not connected.
func (s *Session) RegisteredUserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registered
}

// Start attaches to the transport and begins connecting.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.offs = append(s.offs,
		s.transport.On(EventConnect, func(any) { s.handleConnect() }),
		s.transport.On(EventDisconnect, func(any) { s.handleDisconnect() }),
		s.transport.On(EventReceiveMessage, func(p any) { s.handleMessage(p, s.incoming) }),
		s.transport.On(EventChatCreated, func(p any) { s.handleMessage(p, s.created) }),
	)
	s.mu.Unlock()

	if err := s.machine.Transition(status.Connecting); err != nil {
		return err
	}
	s.notifyState(status.Connecting)
	if err := s.transport.Connect(ctx); err != nil {
		s.setState(status.Disconnected)
		return fmt.Errorf("connect transport: %w", err)
	}
	return nil
}

// SendMessage emits msg. It fails fast with ErrNotConnected when the
// transport is down; nothing is queued.
func (s *Session) SendMessage(msg OutgoingMessage) error {
	s.mu.Lock()
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		return ErrDisposed
	}
	if !s.Connected() {
		return ErrNotConnected
	}
	if err := s.transport.Emit(EventSendMessage, msg.payload()); err != nil {
		return fmt.Errorf("emit %s: %w", EventSendMessage, err)
	}
	return nil
}

// OnIncoming registers h for server-pushed messages.
func (s *Session) OnIncoming(h func(chat.Message)) (off func()) {
	return s.addHandler(s.incoming, h)
}

// OnChatCreated registers h for chat_created events.
func (s *Session) OnChatCreated(h func(chat.Message)) (off func()) {
	return s.addHandler(s.created, h)
}

// OnStateChange registers h for lifecycle transitions.
func (s *Session) OnStateChange(h func(status.State)) (off func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return func() {}
	}
	id := s.next
	s.next++
	s.states[id] = h
	return func() {
		s.mu.Lock()
		delete(s.states, id)
		s.mu.Unlock()
	}
}

// Dispose detaches every handler, closes the transport and returns the
// session to UNINITIALIZED. It is safe to call more than once.
func (s *Session) Dispose() {
	s.once.Do(func() {
		s.dispatchMu.Lock()
		s.mu.Lock()
		s.disposed = true
		offs := s.offs
		s.offs = nil
		s.registered = ""
		clear(s.incoming)
		clear(s.created)
		clear(s.states)
		s.mu.Unlock()
		s.dispatchMu.Unlock()

		for _, off := range offs {
			off()
		}
		if err := s.transport.Close(); err != nil {
			s.log.Warn("close transport", zap.Error(err))
		}
		s.machine.Reset()
		s.log.Info("session disposed")
	})
}

func (s *Session) addHandler(set map[int]func(chat.Message), h func(chat.Message)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return func() {}
	}
	id := s.next
	s.next++
	set[id] = h
	return func() {
		s.mu.Lock()
		delete(set, id)
		s.mu.Unlock()
	}
}

func (s *Session) handleConnect() {
	if s.isDisposed() {
		return
	}
	s.setState(status.Connected)

	if err := s.transport.Emit(EventRegister, map[string]any{"userId": s.creds.UserID}); err != nil {
		// No ack is defined for register; the session stays connected
		// but the backend may not route messages to it.
		s.log.Warn("register failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.registered = s.creds.UserID
	s.mu.Unlock()
	s.log.Info("registered")
}

func (s *Session) handleDisconnect() {
	if s.isDisposed() {
		return
	}
	s.mu.Lock()
	s.registered = ""
	s.mu.Unlock()
	s.setState(status.Disconnected)
}

func (s *Session) handleMessage(payload any, set map[int]func(chat.Message)) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	handlers := make([]func(chat.Message), 0, len(set))
	for _, h := range set {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	if _, ok := payload.(map[string]any); !ok {
		s.log.Debug("malformed payload", zap.Any("payload", payload))
	}
	msg := s.norm.Normalize(payload, SourcePrefix)
	for _, h := range handlers {
		h(msg)
	}
}

// setState moves the machine to to when the transition is legal and tells
// the state listeners.
func (s *Session) setState(to status.State) {
	if s.machine.Current() == to {
		return
	}
	if err := s.machine.Transition(to); err != nil {
		s.log.Debug("ignored state change", zap.Error(err))
		return
	}
	s.log.Info("state changed", zap.String("state", string(to)))
	s.notifyState(to)
}

func (s *Session) notifyState(st status.State) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	handlers := make([]func(status.State), 0, len(s.states))
	for _, h := range s.states {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(st)
	}
}

func (s *Session) isDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}
