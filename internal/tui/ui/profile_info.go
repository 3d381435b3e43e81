package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// ProfileData holds the daemon state shown in the header.
type ProfileData struct {
	Profile       string
	UserID        string
	State         string
	Conversations int
	Messages      int
	Uptime        time.Duration
}

// ProfileInfo displays profile metadata in the header.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

// NewProfileInfo creates a new profile info panel.
func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &ProfileInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the profile info.
func (pi *ProfileInfo) Update(data *ProfileData) {
	pi.Clear()
	if data == nil {
		return
	}

	fg := ColorName(pi.theme.FgColor)
	ct := ColorName(pi.theme.CounterColor)

	user := data.UserID
	if user == "" {
		user = "-"
	}

	rows := []struct {
		label string
		value string
	}{
		{"Profile:", data.Profile},
		{"User:", user},
		{"State:", data.State},
		{"Chats:", fmt.Sprint(data.Conversations)},
		{"Msgs:", fmt.Sprint(data.Messages)},
		{"Uptime:", FormatDuration(data.Uptime)},
	}
	for i, r := range rows {
		if i > 0 {
			_, _ = fmt.Fprint(pi, "\n")
		}
		_, _ = fmt.Fprintf(pi, "[%s::b]%-8s[-:-:-] [%s]%s[-]", fg, r.label, ct, tview.Escape(r.value))
	}
}

// FormatDuration renders d as "1h2m" or "3m".
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
