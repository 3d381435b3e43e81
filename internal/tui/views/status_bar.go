package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/jewelchat/internal/status"
	"github.com/matheus3301/jewelchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar displays the profile, the connection state and the current
// flash notification.
type StatusBar struct {
	*tview.TextView
	theme   *ui.Theme
	profile string
	state   status.State
	flash   *ui.FlashMessage
	now     func() time.Time
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &StatusBar{TextView: tv, theme: theme, now: time.Now}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetState updates the connection state display.
func (sb *StatusBar) SetState(st status.State) {
	sb.state = st
	sb.render()
}

// SetFlash shows msg until the next update. A nil msg clears it.
func (sb *StatusBar) SetFlash(msg *ui.FlashMessage) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, sb.line())
}

func (sb *StatusBar) line() string {
	state := string(sb.state)
	if state == "" {
		state = "-"
	}
	line := fmt.Sprintf(" [::b]%s[-:-:-] | [%s]%s[-] | %s",
		tview.Escape(sb.profile), ui.ColorName(sb.stateColor()), state, sb.now().Format("15:04"))
	if sb.flash != nil && sb.flash.Text != "" {
		line += fmt.Sprintf(" | [%s]%s[-]", ui.ColorName(sb.flashColor()), tview.Escape(singleLine(sb.flash.Text)))
	}
	return line
}

func (sb *StatusBar) stateColor() tcell.Color {
	switch sb.state {
	case status.Connected:
		return sb.theme.OwnMessageColor
	case status.Disconnected:
		return sb.theme.FailedColor
	default:
		return sb.theme.PendingColor
	}
}

func (sb *StatusBar) flashColor() tcell.Color {
	switch sb.flash.Level {
	case ui.FlashWarn:
		return sb.theme.FlashWarnColor
	case ui.FlashErr:
		return sb.theme.FlashErrColor
	default:
		return sb.theme.FlashInfoColor
	}
}
