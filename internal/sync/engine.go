package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/jewelchat/internal/bus"
	"github.com/matheus3301/jewelchat/internal/chat"
	"github.com/matheus3301/jewelchat/internal/conversation"
	"github.com/matheus3301/jewelchat/internal/socket"
	"github.com/matheus3301/jewelchat/internal/store"
)

// Update reasons carried by conversation.updated events.
const (
	ReasonIncoming    = "incoming"
	ReasonHistory     = "history"
	ReasonLocal       = "local"
	ReasonChatCreated = "chat_created"
)

// Update is the payload of conversation.updated events.
type Update struct {
	Peer   string
	Reason string
}

// Identity exposes the credentials and session generation the engine
// reconciles against. *socket.Manager satisfies it.
type Identity interface {
	Credentials() socket.Credentials
	Generation() uint64
}

// HistoryFetcher loads the past messages of a conversation.
type HistoryFetcher interface {
	Fetch(ctx context.Context, token, peer string) ([]chat.Message, error)
}

// Engine applies socket traffic and history loads to the conversation
// registry and mirrors every change to the store. It subscribes to
// "socket.*" events on the bus and handles them on a single goroutine.
type Engine struct {
	db       *store.DB
	bus      *bus.Bus
	reg      *conversation.Registry
	identity Identity
	history  HistoryFetcher
	rec      *Reconciler
	logger   *zap.Logger
	now      func() time.Time

	cancel context.CancelFunc
	wg     gosync.WaitGroup

	mu       gosync.Mutex
	open     map[string]bool
	chatIDs  map[string]string
	lastUser string

	persistMu gosync.Mutex
}

// NewEngine creates a new sync engine.
func NewEngine(db *store.DB, b *bus.Bus, reg *conversation.Registry, identity Identity, history HistoryFetcher, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:       db,
		bus:      b,
		reg:      reg,
		identity: identity,
		history:  history,
		rec:      NewReconciler(db, logger),
		logger:   logger,
		now:      time.Now,
		open:     make(map[string]bool),
		chatIDs:  make(map[string]string),
	}
}

// Start subscribes to socket events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("socket.", 256)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer unsub()
		for {
			select {
			case evt, ok := <-ch:
				if !ok {
					return
				}
				e.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for in-flight work.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) handleEvent(ctx context.Context, evt bus.Event) {
	se, ok := evt.Payload.(socket.Event)
	if !ok {
		return
	}
	if se.Generation != e.identity.Generation() {
		e.logger.Debug("dropping stale socket event", zap.String("kind", evt.Kind), zap.Uint64("generation", se.Generation))
		return
	}

	switch evt.Kind {
	case bus.KindSocketConnected:
		e.switchIdentity(se.UserID)
		for _, peer := range e.OpenPeers() {
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				if err := e.LoadConversation(ctx, peer); err != nil && ctx.Err() == nil {
					e.logger.Warn("reload after connect failed", zap.String("peer", peer), zap.Error(err))
				}
			}()
		}
	case bus.KindSocketDisconnected:
		e.logger.Info("socket disconnected; waiting for transport to reconnect")
	case bus.KindSocketMessage:
		if err := e.ApplyIncoming(se.Message); err != nil {
			e.logger.Error("failed to apply message", zap.Error(err), zap.String("msg_id", se.Message.ID))
		}
	case bus.KindSocketChatCreated:
		if err := e.ApplyChatCreated(se.Message); err != nil {
			e.logger.Error("failed to apply chat_created", zap.Error(err), zap.String("chat_id", se.Message.ChatID))
		}
	}
}

// switchIdentity drops every in-memory conversation when the local user
// changes, since they belong to the previous identity.
func (e *Engine) switchIdentity(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastUser != "" && e.lastUser != userID {
		e.logger.Info("identity changed, resetting conversations", zap.String("user_id", userID))
		e.reg.Reset()
		e.open = make(map[string]bool)
		e.chatIDs = make(map[string]string)
	}
	e.lastUser = userID
}

// ApplyIncoming merges one server-pushed message into its conversation.
func (e *Engine) ApplyIncoming(msg chat.Message) error {
	local := e.identity.Credentials().UserID
	peer := conversation.PeerOf(msg, local)
	if peer == "" && msg.ChatID != "" {
		peer = e.peerOfChat(msg.ChatID)
	}
	if peer == "" || peer == local {
		e.logger.Debug("message without usable peer", zap.String("msg_id", msg.ID))
		return nil
	}
	if msg.ChatID != "" {
		e.rememberChatID(peer, msg.ChatID)
	}

	merged := e.reg.Get(peer).ApplyIncoming(msg)
	e.logger.Debug("message applied", zap.String("peer", peer), zap.String("msg_id", msg.ID), zap.Bool("merged", merged))
	return e.commit(peer, ReasonIncoming)
}

// ApplyChatCreated records the chat id the backend assigned to a new
// conversation. The peer is taken from the payload, or found through the
// echoed temp id when the payload names no participant.
func (e *Engine) ApplyChatCreated(msg chat.Message) error {
	if msg.ChatID == "" {
		return errors.New("chat_created without chat id")
	}
	local := e.identity.Credentials().UserID
	peer := conversation.PeerOf(msg, local)
	if peer == "" && msg.ClientTempID != "" {
		peer = e.peerOfTemp(msg.ClientTempID)
	}
	if peer == "" {
		return fmt.Errorf("chat_created %s: no peer", msg.ChatID)
	}

	e.rememberChatID(peer, msg.ChatID)
	if err := e.db.SetChatID(peer, msg.ChatID); err != nil {
		return err
	}
	e.publish(peer, ReasonChatCreated)
	return nil
}

// LoadConversation fetches the history of peer and replaces the in-memory
// list with it, keeping optimistic entries created after the request
// started. The result is discarded when ctx is cancelled first. On fetch
// failure the conversation is left unchanged, seeded from the local mirror
// if it was empty.
func (e *Engine) LoadConversation(ctx context.Context, peer string) error {
	if peer == "" {
		return errors.New("load conversation: empty peer")
	}
	e.markOpen(peer)

	snapshot := e.now()
	creds := e.identity.Credentials()
	msgs, err := e.history.Fetch(ctx, creds.Token, peer)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		e.publishNotice(bus.KindNotifyHistoryFailed, peer, "could not load history", err)
		e.seedFromMirror(peer)
		return fmt.Errorf("load history %s: %w", peer, err)
	}

	e.reg.Get(peer).ReplaceHistory(snapshot, msgs)
	if err := e.rec.MarkHistoryLoaded(peer, snapshot); err != nil {
		e.logger.Warn("failed to record checkpoint", zap.String("peer", peer), zap.Error(err))
	}
	e.logger.Info("history loaded", zap.String("peer", peer), zap.Int("messages", len(msgs)))
	return e.commit(peer, ReasonHistory)
}

// Touch mirrors the current state of peer and announces it. Local writers
// such as the outbox call it after mutating a store.
func (e *Engine) Touch(peer string) {
	if err := e.commit(peer, ReasonLocal); err != nil {
		e.logger.Error("failed to mirror conversation", zap.String("peer", peer), zap.Error(err))
	}
}

// ChatID returns the backend chat id known for peer, if any.
func (e *Engine) ChatID(peer string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chatIDs[peer]
}

// OpenPeers returns the conversations that have been opened and are
// reloaded on every (re)connect.
func (e *Engine) OpenPeers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	peers := make([]string, 0, len(e.open))
	for p := range e.open {
		peers = append(peers, p)
	}
	return peers
}

// LastHistoryLoad returns when peer's history was last loaded.
func (e *Engine) LastHistoryLoad(peer string) (time.Time, bool) {
	return e.rec.LastHistoryLoad(peer)
}

func (e *Engine) commit(peer, reason string) error {
	e.persistMu.Lock()
	err := e.db.SaveConversation(peer, e.reg.Get(peer).Messages())
	e.persistMu.Unlock()
	if err != nil {
		return fmt.Errorf("mirror %s: %w", peer, err)
	}
	e.publish(peer, reason)
	return nil
}

func (e *Engine) seedFromMirror(peer string) {
	s := e.reg.Get(peer)
	if s.Len() > 0 {
		return
	}
	msgs, err := e.db.ListMessages(peer, 0, 500)
	if err != nil {
		e.logger.Warn("failed to read mirror", zap.String("peer", peer), zap.Error(err))
		return
	}
	for _, m := range msgs {
		if m.Confirmed {
			s.ApplyIncoming(m)
		}
	}
	if len(msgs) > 0 {
		e.publish(peer, ReasonHistory)
	}
}

func (e *Engine) peerOfTemp(tempID string) string {
	for _, peer := range e.reg.Peers() {
		if s, ok := e.reg.Lookup(peer); ok {
			if _, found := s.Find(tempID); found {
				return peer
			}
		}
	}
	return ""
}

func (e *Engine) peerOfChat(chatID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	for peer, id := range e.chatIDs {
		if id == chatID {
			return peer
		}
	}
	return ""
}

func (e *Engine) markOpen(peer string) {
	e.mu.Lock()
	e.open[peer] = true
	e.mu.Unlock()
}

func (e *Engine) rememberChatID(peer, chatID string) {
	e.mu.Lock()
	e.chatIDs[peer] = chatID
	e.mu.Unlock()
}

func (e *Engine) publish(peer, reason string) {
	e.bus.Publish(bus.Event{
		Kind:    bus.KindConversationUpdated,
		Payload: Update{Peer: peer, Reason: reason},
	})
}

func (e *Engine) publishNotice(kind, peer, text string, err error) {
	n := bus.Notice{Peer: peer, Text: text}
	if err != nil {
		n.Err = err.Error()
	}
	e.bus.Publish(bus.Event{Kind: kind, Payload: n})
}
