package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/jewelchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// LoginView asks for the token and user id the daemon connects with.
type LoginView struct {
	*tview.Flex
	theme    *ui.Theme
	form     *tview.Form
	notice   *tview.TextView
	onSubmit func(token, userID string, persist bool)
	onCancel func()
}

// NewLoginView creates a new login view.
func NewLoginView(theme *ui.Theme) *LoginView {
	notice := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	notice.SetBackgroundColor(theme.BgColor)

	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetTitle(" Login ")
	form.SetTitleColor(theme.TitleColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.TableCursorBg)
	form.SetButtonTextColor(theme.TableCursorFg)

	lv := &LoginView{
		theme:  theme,
		form:   form,
		notice: notice,
	}

	form.AddInputField("User ID", "", 40, nil, nil).
		AddPasswordField("Token", "", 40, '*', nil).
		AddCheckbox("Remember", true, nil).
		AddButton("Connect", lv.submit).
		AddButton("Cancel", func() {
			if lv.onCancel != nil {
				lv.onCancel()
			}
		})

	lv.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(notice, 2, 0, false).
		AddItem(form, 11, 0, true).
		AddItem(nil, 0, 1, false)
	lv.Flex.SetBackgroundColor(theme.BgColor)
	return lv
}

// Name implements Component.
func (lv *LoginView) Name() string { return "Login" }

// FocusTarget implements Component.
func (lv *LoginView) FocusTarget() tview.Primitive { return lv.form }

// Hints implements Component.
func (lv *LoginView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Connect"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetOnSubmit sets the callback invoked with the entered credentials.
func (lv *LoginView) SetOnSubmit(fn func(token, userID string, persist bool)) {
	lv.onSubmit = fn
}

// SetOnCancel sets the callback invoked when the user backs out.
func (lv *LoginView) SetOnCancel(fn func()) {
	lv.onCancel = fn
}

// ShowMessage displays a line above the form.
func (lv *LoginView) ShowMessage(msg string) {
	lv.notice.Clear()
	_, _ = fmt.Fprintf(lv.notice, "\n%s", tview.Escape(msg))
}

// Reset clears the entered values and prefills userID.
func (lv *LoginView) Reset(userID string) {
	lv.form.GetFormItemByLabel("User ID").(*tview.InputField).SetText(userID)
	lv.form.GetFormItemByLabel("Token").(*tview.InputField).SetText("")
	lv.form.SetFocus(0)
	if userID != "" {
		lv.form.SetFocus(1)
	}
}

func (lv *LoginView) submit() {
	userID := strings.TrimSpace(lv.form.GetFormItemByLabel("User ID").(*tview.InputField).GetText())
	token := strings.TrimSpace(lv.form.GetFormItemByLabel("Token").(*tview.InputField).GetText())
	persist := lv.form.GetFormItemByLabel("Remember").(*tview.Checkbox).IsChecked()
	if userID == "" || token == "" {
		lv.ShowMessage("user id and token are required")
		return
	}
	if lv.onSubmit != nil {
		lv.onSubmit(token, userID, persist)
	}
}
