package api

import (
	"github.com/matheus3301/jewelchat/internal/chat"
	"github.com/matheus3301/jewelchat/internal/status"
	"github.com/matheus3301/jewelchat/internal/store"
	"google.golang.org/protobuf/types/known/structpb"
)

// Status describes the daemon and its socket session.
type Status struct {
	Profile          string
	State            status.State
	UserID           string
	RegisteredUserID string
	Connected        bool
	Generation       uint64
	UptimeMs         int64
	Conversations    int
	Messages         int
	OpenPeers        []string
}

// ConversationPage is one page of conversation summaries, newest first.
type ConversationPage struct {
	Conversations []store.Conversation
	HasMore       bool
}

// Thread is the in-memory message list of one conversation, oldest first.
type Thread struct {
	Peer     string
	ChatID   string
	Messages []chat.Message
	// HistoryError is set when the history load failed; Messages then holds
	// whatever was already known locally.
	HistoryError  string
	HistoryLoadMs int64
}

// Event is one bus event as delivered by WatchEvents. Only the fields that
// apply to Kind are set.
type Event struct {
	ID           string
	Profile      string
	Kind         string
	OccurredAtMs int64
	Peer         string
	Reason       string
	Text         string
	Err          string
	From         string
	To           string
	UserID       string
	Generation   uint64
}

func (s Status) toStruct() (*structpb.Struct, error) {
	peers := make([]any, 0, len(s.OpenPeers))
	for _, p := range s.OpenPeers {
		peers = append(peers, p)
	}
	return structpb.NewStruct(map[string]any{
		"profile":          s.Profile,
		"state":            string(s.State),
		"userId":           s.UserID,
		"registeredUserId": s.RegisteredUserID,
		"connected":        s.Connected,
		"generation":       int64(s.Generation),
		"uptimeMs":         s.UptimeMs,
		"conversations":    s.Conversations,
		"messages":         s.Messages,
		"openPeers":        peers,
	})
}

func statusFromStruct(st *structpb.Struct) Status {
	s := Status{
		Profile:          str(st, "profile"),
		State:            status.State(str(st, "state")),
		UserID:           str(st, "userId"),
		RegisteredUserID: str(st, "registeredUserId"),
		Connected:        boolean(st, "connected"),
		Generation:       uint64(num(st, "generation")),
		UptimeMs:         num(st, "uptimeMs"),
		Conversations:    int(num(st, "conversations")),
		Messages:         int(num(st, "messages")),
	}
	for _, v := range list(st, "openPeers") {
		s.OpenPeers = append(s.OpenPeers, v.GetStringValue())
	}
	return s
}

func conversationToMap(c store.Conversation) map[string]any {
	return map[string]any{
		"peerId":             c.PeerID,
		"chatId":             c.ChatID,
		"displayName":        c.DisplayName,
		"peerRole":           c.PeerRole,
		"lastMessageAt":      c.LastMessageAt,
		"lastMessagePreview": c.LastMessagePreview,
		"pendingCount":       c.PendingCount,
		"messageCount":       c.MessageCount,
	}
}

func conversationFromStruct(st *structpb.Struct) store.Conversation {
	return store.Conversation{
		PeerID:             str(st, "peerId"),
		ChatID:             str(st, "chatId"),
		DisplayName:        str(st, "displayName"),
		PeerRole:           str(st, "peerRole"),
		LastMessageAt:      num(st, "lastMessageAt"),
		LastMessagePreview: str(st, "lastMessagePreview"),
		PendingCount:       int(num(st, "pendingCount")),
		MessageCount:       int(num(st, "messageCount")),
	}
}

func (p ConversationPage) toStruct() (*structpb.Struct, error) {
	convs := make([]any, 0, len(p.Conversations))
	for _, c := range p.Conversations {
		convs = append(convs, conversationToMap(c))
	}
	return structpb.NewStruct(map[string]any{
		"conversations": convs,
		"hasMore":       p.HasMore,
	})
}

func conversationPageFromStruct(st *structpb.Struct) ConversationPage {
	var p ConversationPage
	for _, v := range list(st, "conversations") {
		p.Conversations = append(p.Conversations, conversationFromStruct(v.GetStructValue()))
	}
	p.HasMore = boolean(st, "hasMore")
	return p
}

func messagesToList(msgs []chat.Message) []any {
	out := make([]any, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ToMap())
	}
	return out
}

func messageFromValue(v *structpb.Value) chat.Message {
	return chat.FromMap(v.GetStructValue().AsMap())
}

func messageStruct(m chat.Message) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"message": m.ToMap()})
}

func messageFromStruct(st *structpb.Struct) chat.Message {
	return messageFromValue(st.GetFields()["message"])
}

func (t Thread) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"peer":          t.Peer,
		"chatId":        t.ChatID,
		"messages":      messagesToList(t.Messages),
		"historyError":  t.HistoryError,
		"historyLoadMs": t.HistoryLoadMs,
	})
}

func threadFromStruct(st *structpb.Struct) Thread {
	t := Thread{
		Peer:          str(st, "peer"),
		ChatID:        str(st, "chatId"),
		HistoryError:  str(st, "historyError"),
		HistoryLoadMs: num(st, "historyLoadMs"),
	}
	for _, v := range list(st, "messages") {
		t.Messages = append(t.Messages, messageFromValue(v))
	}
	return t
}

func searchResultsToStruct(results []store.SearchResult) (*structpb.Struct, error) {
	out := make([]any, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]any{
			"peerId":  r.PeerID,
			"message": r.Message.ToMap(),
			"snippet": r.Snippet,
		})
	}
	return structpb.NewStruct(map[string]any{"results": out})
}

func searchResultsFromStruct(st *structpb.Struct) []store.SearchResult {
	var out []store.SearchResult
	for _, v := range list(st, "results") {
		r := v.GetStructValue()
		out = append(out, store.SearchResult{
			PeerID:  str(r, "peerId"),
			Message: messageFromValue(r.GetFields()["message"]),
			Snippet: str(r, "snippet"),
		})
	}
	return out
}

func (e Event) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"eventId":      e.ID,
		"profile":      e.Profile,
		"kind":         e.Kind,
		"occurredAtMs": e.OccurredAtMs,
		"peer":         e.Peer,
		"reason":       e.Reason,
		"text":         e.Text,
		"err":          e.Err,
		"from":         e.From,
		"to":           e.To,
		"userId":       e.UserID,
		"generation":   int64(e.Generation),
	})
}

func eventFromStruct(st *structpb.Struct) Event {
	return Event{
		ID:           str(st, "eventId"),
		Profile:      str(st, "profile"),
		Kind:         str(st, "kind"),
		OccurredAtMs: num(st, "occurredAtMs"),
		Peer:         str(st, "peer"),
		Reason:       str(st, "reason"),
		Text:         str(st, "text"),
		Err:          str(st, "err"),
		From:         str(st, "from"),
		To:           str(st, "to"),
		UserID:       str(st, "userId"),
		Generation:   uint64(num(st, "generation")),
	}
}

func str(st *structpb.Struct, key string) string {
	return st.GetFields()[key].GetStringValue()
}

func num(st *structpb.Struct, key string) int64 {
	return int64(st.GetFields()[key].GetNumberValue())
}

func boolean(st *structpb.Struct, key string) bool {
	return st.GetFields()[key].GetBoolValue()
}

func list(st *structpb.Struct, key string) []*structpb.Value {
	return st.GetFields()[key].GetListValue().GetValues()
}
