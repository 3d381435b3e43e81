package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/jewelchat/internal/chat"
)

const previewLen = 80

// SaveConversation replaces the mirrored messages of peer with msgs, in the
// given order, and refreshes the conversation summary. It runs in one
// transaction so readers never see a half-written conversation.
func (db *DB) SaveConversation(peer string, msgs []chat.Message) (err error) {
	if peer == "" {
		return errors.New("save conversation: empty peer")
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UnixMilli()
	sum := summarize(peer, msgs)
	if _, err = tx.Exec(`
		INSERT INTO conversations (peer_id, chat_id, display_name, peer_role, last_message_at, last_message_preview, pending_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(peer_id) DO UPDATE SET
			chat_id = CASE WHEN excluded.chat_id != '' THEN excluded.chat_id ELSE conversations.chat_id END,
			display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE conversations.display_name END,
			peer_role = CASE WHEN excluded.peer_role != '' THEN excluded.peer_role ELSE conversations.peer_role END,
			last_message_at = excluded.last_message_at,
			last_message_preview = excluded.last_message_preview,
			pending_count = excluded.pending_count,
			updated_at = excluded.updated_at`,
		peer, sum.ChatID, sum.DisplayName, sum.PeerRole, sum.LastMessageAt, sum.LastMessagePreview, sum.PendingCount, now); err != nil {
		return fmt.Errorf("upsert conversation %s: %w", peer, err)
	}

	if _, err = tx.Exec(`DELETE FROM messages WHERE peer_id = ?`, peer); err != nil {
		return fmt.Errorf("clear messages %s: %w", peer, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages (peer_id, msg_id, from_user_id, to_user_id, text, sender_role, sender_name, chat_id, client_temp_id, timestamp, confirmed, failed, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(peer_id, msg_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, m := range msgs {
		if _, err = stmt.Exec(peer, m.ID, m.FromUserID, m.ToUserID, m.Text, m.SenderRole, m.SenderName,
			m.ChatID, m.ClientTempID, m.Timestamp, m.Confirmed, m.Failed, i); err != nil {
			return fmt.Errorf("insert message %s: %w", m.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SetChatID records the backend chat id for peer, creating the
// conversation row if needed.
func (db *DB) SetChatID(peer, chatID string) error {
	_, err := db.Exec(`
		INSERT INTO conversations (peer_id, chat_id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(peer_id) DO UPDATE SET chat_id = excluded.chat_id, updated_at = excluded.updated_at`,
		peer, chatID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set chat id %s: %w", peer, err)
	}
	return nil
}

// ListConversations returns conversations, most recent activity first.
func (db *DB) ListConversations(limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT c.peer_id, c.chat_id,
			COALESCE(NULLIF(c.display_name, ''), c.peer_id),
			c.peer_role, c.last_message_at, c.last_message_preview, c.pending_count,
			(SELECT COUNT(*) FROM messages m WHERE m.peer_id = c.peer_id)
		FROM conversations c
		ORDER BY c.last_message_at DESC, c.peer_id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.PeerID, &c.ChatID, &c.DisplayName, &c.PeerRole,
			&c.LastMessageAt, &c.LastMessagePreview, &c.PendingCount, &c.MessageCount); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns the summary for peer, or nil if unknown.
func (db *DB) GetConversation(peer string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT c.peer_id, c.chat_id,
			COALESCE(NULLIF(c.display_name, ''), c.peer_id),
			c.peer_role, c.last_message_at, c.last_message_preview, c.pending_count,
			(SELECT COUNT(*) FROM messages m WHERE m.peer_id = c.peer_id)
		FROM conversations c
		WHERE c.peer_id = ?`, peer).
		Scan(&c.PeerID, &c.ChatID, &c.DisplayName, &c.PeerRole,
			&c.LastMessageAt, &c.LastMessagePreview, &c.PendingCount, &c.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", peer, err)
	}
	return &c, nil
}

// summarize derives the conversation row from its ordered messages. The
// display name and role come from the latest message the peer sent.
func summarize(peer string, msgs []chat.Message) Conversation {
	c := Conversation{PeerID: peer}
	for _, m := range msgs {
		if !m.Confirmed {
			c.PendingCount++
		}
		if m.ChatID != "" {
			c.ChatID = m.ChatID
		}
		if m.FromUserID == peer {
			if m.SenderName != "" {
				c.DisplayName = m.SenderName
			}
			if m.SenderRole != "" {
				c.PeerRole = m.SenderRole
			}
		}
	}
	if n := len(msgs); n > 0 {
		last := msgs[n-1]
		c.LastMessageAt = last.Timestamp
		c.LastMessagePreview = preview(last.Text)
	}
	return c
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewLen {
		return text
	}
	return string(r[:previewLen-1]) + "…"
}
