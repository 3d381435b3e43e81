package store

import "github.com/matheus3301/jewelchat/internal/chat"

// Conversation is the mirrored summary of one conversation.
type Conversation struct {
	PeerID             string
	ChatID             string
	DisplayName        string
	PeerRole           string
	LastMessageAt      int64
	LastMessagePreview string
	PendingCount       int
	MessageCount       int
}

// SearchResult is a message matching a search, with a short excerpt
// around the first hit.
type SearchResult struct {
	PeerID  string
	Message chat.Message
	Snippet string
}
