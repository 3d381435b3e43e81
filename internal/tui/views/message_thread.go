package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/jewelchat/internal/chat"
	"github.com/matheus3301/jewelchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// Delivery markers shown after own messages.
const (
	markerPending = "…"
	markerFailed  = "✗ not sent"
)

// MessageThread displays the messages of one conversation and a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	title    string
	peer     string
	localID  string
	onSend   func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		text := strings.TrimSpace(composer.GetText())
		if text == "" {
			return
		}
		mt.onSend(text)
		composer.SetText("")
	})

	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if mt.title != "" {
		return mt.title
	}
	return "Messages"
}

// FocusTarget implements Component.
func (mt *MessageThread) FocusTarget() tview.Primitive { return mt.messages }

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "r", Description: "Resend"},
		{Key: "d", Description: "Details"},
		{Key: "x", Description: "Share"},
		{Key: "Esc", Description: "Back"},
		{Key: "?", Description: "Help"},
	}
}

// SetConversation switches the thread to peer. localUserID decides which
// messages are rendered as own.
func (mt *MessageThread) SetConversation(peer, title, localUserID string) {
	mt.peer = peer
	mt.localID = localUserID
	if title == "" {
		title = peer
	}
	mt.title = title
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(singleLine(title))))
	mt.messages.Clear()
	mt.composer.SetText("")
}

// Peer returns the peer of the current conversation.
func (mt *MessageThread) Peer() string {
	return mt.peer
}

// SetOnSend sets the callback when the composer submits text.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Update renders msgs, which must already be in display order.
func (mt *MessageThread) Update(msgs []chat.Message) {
	mt.messages.Clear()
	_, _ = fmt.Fprint(mt.messages, mt.renderMessages(msgs))
	mt.messages.ScrollToEnd()
}

func (mt *MessageThread) renderMessages(msgs []chat.Message) string {
	if len(msgs) == 0 {
		return "[::d]No messages yet.[-:-:-]"
	}
	var sb strings.Builder
	for _, m := range msgs {
		own := m.FromUserID == mt.localID
		sender := m.SenderName
		if sender == "" {
			sender = m.FromUserID
		}
		color := mt.theme.PeerMessageColor
		if own {
			sender = "You"
			color = mt.theme.OwnMessageColor
		}

		fmt.Fprintf(&sb, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]",
			ui.ColorName(color), tview.Escape(singleLine(sender)), formatTimestamp(m.Timestamp))
		switch {
		case m.Failed:
			fmt.Fprintf(&sb, " [%s]%s[-]", ui.ColorName(mt.theme.FailedColor), markerFailed)
		case !m.Confirmed && chat.IsTemp(m.ID):
			fmt.Fprintf(&sb, " [%s]%s[-]", ui.ColorName(mt.theme.PendingColor), markerPending)
		}
		fmt.Fprintf(&sb, "\n%s\n\n", tview.Escape(sanitizeForTerminal(m.Text)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
