package views

import (
	"fmt"

	"github.com/matheus3301/jewelchat/internal/share"
	"github.com/matheus3301/jewelchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// ShareView renders the deep link of a conversation as a scannable QR code.
type ShareView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewShareView creates a new share view.
func NewShareView(theme *ui.Theme) *ShareView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Share Conversation ")
	tv.SetTitleColor(theme.TitleColor)

	return &ShareView{TextView: tv, theme: theme}
}

// Name implements Component.
func (sv *ShareView) Name() string { return "Share" }

// FocusTarget implements Component.
func (sv *ShareView) FocusTarget() tview.Primitive { return sv.TextView }

// Hints implements Component.
func (sv *ShareView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// Show renders the deep link for peer on top of baseURL.
func (sv *ShareView) Show(baseURL, peer string) error {
	sv.Clear()
	link, err := share.Link(baseURL, peer)
	if err != nil {
		_, _ = fmt.Fprintf(sv, "\n\n[%s]%s[-]", ui.ColorName(sv.theme.FlashErrColor), tview.Escape(err.Error()))
		return err
	}
	qr, err := share.RenderText(link)
	if err != nil {
		_, _ = fmt.Fprintf(sv, "\n\n[%s]%s[-]", ui.ColorName(sv.theme.FlashErrColor), tview.Escape(err.Error()))
		return err
	}
	_, _ = fmt.Fprintf(sv, "\n  Scan to open the conversation with [::b]%s[-:-:-]:\n\n[white:black]%s[-:-]\n  [::u]%s[-:-:-]",
		tview.Escape(singleLine(peer)), qr, tview.Escape(link))
	sv.ScrollToBeginning()
	return nil
}
