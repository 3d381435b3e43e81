package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// Crumbs is a breadcrumb bar showing the current navigation path.
type Crumbs struct {
	*tview.TextView
	theme  *Theme
	titles map[string]string
}

// NewCrumbs creates a new breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &Crumbs{
		TextView: tv,
		theme:    theme,
		titles:   make(map[string]string),
	}
}

// SetTitle overrides the label shown for page, e.g. the peer of a thread.
func (c *Crumbs) SetTitle(page, title string) {
	c.titles[page] = title
}

// Update renders the breadcrumb trail from the page stack.
func (c *Crumbs) Update(stack []string) {
	c.Clear()
	if len(stack) == 0 {
		return
	}

	parts := make([]string, 0, len(stack))
	for i, page := range stack {
		label := page
		if t, ok := c.titles[page]; ok && t != "" {
			label = t
		}
		label = tview.Escape(label)
		if i == len(stack)-1 {
			parts = append(parts, fmt.Sprintf("[%s:%s:b] %s [-:-:-]",
				ColorName(c.theme.CrumbActiveFg), ColorName(c.theme.CrumbActiveBg), label))
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:] %s [-:-:-]",
			ColorName(c.theme.CrumbInactiveFg), ColorName(c.theme.CrumbInactiveBg), label))
	}
	_, _ = fmt.Fprint(c, strings.Join(parts, " > "))
}
