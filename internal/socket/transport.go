package socket

import (
	"context"
	"errors"
)

// Event names exchanged with the chat backend.
const (
	EventConnect        = "connect"
	EventDisconnect     = "disconnect"
	EventRegister       = "register"
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
	EventChatCreated    = "chat_created"
)

var (
	// ErrNotConnected is returned when sending while the transport is down.
	ErrNotConnected = errors.New("socket: not connected")
	// ErrDisposed is returned by a session that has been torn down.
	ErrDisposed = errors.New("socket: session disposed")
)

// Handler receives the decoded payload of one transport event. Payloads of
// lifecycle events (connect, disconnect) are nil.
type Handler func(payload any)

// Transport is an event-oriented connection to the chat backend.
//
// Connect starts connecting in the background and returns without waiting
// for the handshake; the transport reports progress through the connect and
// disconnect events and keeps reconnecting on its own until Close is called
// or ctx is done. Handlers are invoked one at a time, never concurrently.
type Transport interface {
	Connect(ctx context.Context) error
	Emit(event string, payload any) error
	On(event string, h Handler) (off func())
	Close() error
}

// Dialer builds a transport bound to one set of credentials.
type Dialer func(Credentials) Transport

// Credentials identify the local user to the backend.
type Credentials struct {
	Token  string
	UserID string
}

// Valid reports whether both the token and the user id are present.
func (c Credentials) Valid() bool {
	return c.Token != "" && c.UserID != ""
}

// OutgoingMessage is the payload of a send_message event. Either ToUserID or
// ChatID addresses the conversation.
type OutgoingMessage struct {
	FromUserID   string
	ToUserID     string
	ChatID       string
	Text         string
	ClientTempID string
}

func (m OutgoingMessage) payload() map[string]any {
	p := map[string]any{
		"fromUserId":   m.FromUserID,
		"text":         m.Text,
		"clientTempId": m.ClientTempID,
	}
	if m.ToUserID != "" {
		p["toUserId"] = m.ToUserID
	}
	if m.ChatID != "" {
		p["chatId"] = m.ChatID
	}
	return p
}
