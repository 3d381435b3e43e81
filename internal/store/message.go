package store

import (
	"fmt"
	"math"
	"slices"

	"github.com/matheus3301/jewelchat/internal/chat"
)

const messageColumns = `msg_id, from_user_id, to_user_id, text, sender_role, sender_name, chat_id, client_temp_id, timestamp, confirmed, failed`

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner, extra ...any) (chat.Message, error) {
	var m chat.Message
	dest := []any{&m.ID, &m.FromUserID, &m.ToUserID, &m.Text, &m.SenderRole, &m.SenderName,
		&m.ChatID, &m.ClientTempID, &m.Timestamp, &m.Confirmed, &m.Failed}
	err := s.Scan(append(dest, extra...)...)
	return m, err
}

// ListMessages returns up to limit messages of peer older than beforeTs,
// oldest first. beforeTs <= 0 means no upper bound.
func (db *DB) ListMessages(peer string, beforeTs int64, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = math.MaxInt64
	}
	rows, err := db.Query(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE peer_id = ? AND timestamp < ?
		ORDER BY timestamp DESC, seq DESC
		LIMIT ?`, peer, beforeTs, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages %s: %w", peer, err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []chat.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}
