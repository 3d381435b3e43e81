package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/jewelchat/internal/api"
	"github.com/matheus3301/jewelchat/internal/store"
	"github.com/matheus3301/jewelchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationInfo displays detailed information about a conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// FocusTarget implements Component.
func (ci *ConversationInfo) FocusTarget() tview.Primitive { return ci.TextView }

// Hints implements Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders the stored summary of a conversation together with the
// live thread state.
func (ci *ConversationInfo) Update(conv store.Conversation, thread api.Thread) {
	ci.Clear()

	fg := ui.ColorName(ci.theme.FgColor)
	ct := ui.ColorName(ci.theme.CounterColor)

	chatID := thread.ChatID
	if chatID == "" {
		chatID = conv.ChatID
	}
	lastLoad := "-"
	if thread.HistoryLoadMs > 0 {
		lastLoad = time.UnixMilli(thread.HistoryLoadMs).Format("2006-01-02 15:04:05")
	}
	historyErr := thread.HistoryError
	if historyErr == "" {
		historyErr = "-"
	}

	rows := []struct {
		label string
		value string
	}{
		{"Name:", orDash(displayName(conv))},
		{"Peer:", orDash(thread.Peer)},
		{"Role:", orDash(conv.PeerRole)},
		{"Chat ID:", orDash(chatID)},
		{"Messages:", fmt.Sprint(len(thread.Messages))},
		{"Stored:", fmt.Sprint(conv.MessageCount)},
		{"Pending:", fmt.Sprint(conv.PendingCount)},
		{"Last Active:", orDash(formatTimestamp(conv.LastMessageAt))},
		{"History Load:", lastLoad},
		{"History Error:", historyErr},
	}

	_, _ = fmt.Fprint(ci, "\n")
	for _, r := range rows {
		_, _ = fmt.Fprintf(ci, " [%s::b]%-14s[-:-:-] [%s]%s[-]\n", fg, r.label, ct, tview.Escape(singleLine(r.value)))
	}
	ci.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(singleLine(orDash(displayName(conv))))))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
