package chat

import "strings"

// TempIDPrefix marks a client-generated id that the server has not confirmed yet.
const TempIDPrefix = "me-"

// Message is the canonical chat message, independent of the payload shape
// the backend used to deliver it.
type Message struct {
	ID           string `json:"id"`
	FromUserID   string `json:"fromUserId"`
	ToUserID     string `json:"toUserId"`
	Text         string `json:"text"`
	Timestamp    int64  `json:"timestamp"`
	SenderRole   string `json:"senderRole"`
	SenderName   string `json:"senderName"`
	ChatID       string `json:"chatId"`
	ClientTempID string `json:"clientTempId"`
	Confirmed    bool   `json:"confirmed"`
	Failed       bool   `json:"failed"`
}

// IsTemp reports whether id was generated locally for an optimistic entry.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Peer returns the other participant of m from the point of view of
// localUserID. A message with no sender, such as a chat_created payload
// naming only the recipient, resolves to the recipient.
func (m Message) Peer(localUserID string) string {
	if m.FromUserID == localUserID || m.FromUserID == "" {
		return m.ToUserID
	}
	return m.FromUserID
}

// ToMap renders m as a plain map, the shape used on the daemon API.
func (m Message) ToMap() map[string]any {
	return map[string]any{
		"id":           m.ID,
		"fromUserId":   m.FromUserID,
		"toUserId":     m.ToUserID,
		"text":         m.Text,
		"timestamp":    m.Timestamp,
		"senderRole":   m.SenderRole,
		"senderName":   m.SenderName,
		"chatId":       m.ChatID,
		"clientTempId": m.ClientTempID,
		"confirmed":    m.Confirmed,
		"failed":       m.Failed,
	}
}
