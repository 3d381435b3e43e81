package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/jewelchat/internal/bus"
	"github.com/matheus3301/jewelchat/internal/chat"
	"github.com/matheus3301/jewelchat/internal/conversation"
	"github.com/matheus3301/jewelchat/internal/socket"
)

var (
	// ErrNoIdentity is returned when no credentials are configured.
	ErrNoIdentity = errors.New("outbox: no identity configured")
	// ErrNotPending is returned by Resend for an unknown or confirmed entry.
	ErrNotPending = errors.New("outbox: message is not pending")
	// ErrInvalidMessage is returned for a blank peer or text.
	ErrInvalidMessage = errors.New("outbox: invalid message")
)

// Transport sends one message over the live socket session.
// *socket.Manager satisfies it.
type Transport interface {
	SendMessage(socket.OutgoingMessage) error
	Credentials() socket.Credentials
}

// Mirror persists and announces a conversation after a local change, and
// knows the backend chat id of a conversation. *sync.Engine satisfies it.
type Mirror interface {
	Touch(peer string)
	ChatID(peer string) string
}

// Sender is the send path. Every message is shown optimistically first and
// then emitted once; nothing is queued or retried. A rejected send leaves
// the entry unconfirmed and marked failed until Resend.
type Sender struct {
	reg       *conversation.Registry
	transport Transport
	mirror    Mirror
	bus       *bus.Bus
	logger    *zap.Logger
}

// NewSender creates a new sender.
func NewSender(reg *conversation.Registry, transport Transport, mirror Mirror, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		reg:       reg,
		transport: transport,
		mirror:    mirror,
		bus:       b,
		logger:    logger,
	}
}

// Send appends an optimistic entry for text to the conversation with peer
// and emits it. The entry is returned in both outcomes; on failure it is
// marked failed and err wraps the cause (socket.ErrNotConnected while the
// session is down).
func (s *Sender) Send(ctx context.Context, peer, text string) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	peer = strings.TrimSpace(peer)
	if peer == "" {
		return chat.Message{}, fmt.Errorf("%w: empty peer", ErrInvalidMessage)
	}
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, fmt.Errorf("%w: empty text", ErrInvalidMessage)
	}
	creds := s.transport.Credentials()
	if !creds.Valid() {
		return chat.Message{}, ErrNoIdentity
	}

	store := s.reg.Get(peer)
	msg := store.AddOptimistic(creds.UserID, peer, text)
	s.touch(peer)

	return s.emit(store, msg)
}

// Resend emits a pending entry again under its original temp id.
func (s *Sender) Resend(ctx context.Context, peer, tempID string) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	store, ok := s.reg.Lookup(peer)
	if !ok {
		return chat.Message{}, ErrNotPending
	}
	msg, ok := store.Find(tempID)
	if !ok || msg.Confirmed {
		return chat.Message{}, ErrNotPending
	}

	store.ClearFailed(tempID)
	msg.Failed = false
	s.touch(peer)
	return s.emit(store, msg)
}

func (s *Sender) emit(store *conversation.Store, msg chat.Message) (chat.Message, error) {
	peer := store.Peer()
	out := socket.OutgoingMessage{
		FromUserID:   msg.FromUserID,
		ToUserID:     peer,
		Text:         msg.Text,
		ClientTempID: msg.ID,
	}
	if s.mirror != nil {
		out.ChatID = s.mirror.ChatID(peer)
	}

	if err := s.transport.SendMessage(out); err != nil {
		s.logger.Warn("send failed", zap.String("peer", peer), zap.String("client_temp_id", msg.ID), zap.Error(err))
		store.MarkFailed(msg.ID)
		msg.Failed = true
		s.touch(peer)
		s.notifyFailed(peer, msg, err)
		return msg, fmt.Errorf("send to %s: %w", peer, err)
	}

	s.logger.Info("message sent", zap.String("peer", peer), zap.String("client_temp_id", msg.ID))
	return msg, nil
}

func (s *Sender) touch(peer string) {
	if s.mirror != nil {
		s.mirror.Touch(peer)
	}
}

func (s *Sender) notifyFailed(peer string, msg chat.Message, err error) {
	if s.bus == nil {
		return
	}
	text := "message not sent"
	if errors.Is(err, socket.ErrNotConnected) {
		text = "message not sent: offline"
	}
	s.bus.Publish(bus.Event{
		Kind: bus.KindNotifySendFailed,
		Payload: bus.Notice{
			Peer: peer,
			Text: text + " (" + msg.ID + ")",
			Err:  err.Error(),
		},
	})
}
