package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds. Subscribers filter by namespace prefix, e.g. "socket." or "notify.".
const (
	KindStatusChanged = "session.status_changed"

	KindSocketConnected    = "socket.connected"
	KindSocketDisconnected = "socket.disconnected"
	KindSocketMessage      = "socket.message"
	KindSocketChatCreated  = "socket.chat_created"

	KindConversationUpdated = "conversation.updated"

	KindNotifySendFailed    = "notify.send_failed"
	KindNotifyHistoryFailed = "notify.history_failed"
)

// Notice is the payload of notify.* events: a short, user-facing message
// meant to be shown transiently.
type Notice struct {
	Peer string
	Text string
	Err  string
}
