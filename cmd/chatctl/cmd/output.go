package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matheus3301/jewelchat/internal/chat"
)

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

func formatTime(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}

// deliveryState describes where an own message is in the send pipeline.
func deliveryState(m chat.Message) string {
	switch {
	case m.Failed:
		return "failed"
	case !m.Confirmed && chat.IsTemp(m.ID):
		return "pending"
	default:
		return "sent"
	}
}

func printMessage(w io.Writer, m chat.Message, localUserID string) {
	sender := m.SenderName
	if sender == "" {
		sender = m.FromUserID
	}
	if m.FromUserID == localUserID && localUserID != "" {
		sender = "you"
		if st := deliveryState(m); st != "sent" {
			sender += " (" + st + ", " + m.ID + ")"
		}
	}
	text := strings.ReplaceAll(m.Text, "\n", "\n    ")
	_, _ = fmt.Fprintf(w, "[%s] %s:\n    %s\n", formatTime(m.Timestamp), sender, text)
}
