package ui

import (
	"slices"

	"github.com/rivo/tview"
)

// Pages keeps a navigation stack on top of tview.Pages. Only the top of
// the stack is visible.
type Pages struct {
	*tview.Pages
	stack    []string
	onChange func(stack []string)
}

func NewPages() *Pages {
	return &Pages{Pages: tview.NewPages()}
}

// SetOnChange registers fn to receive a copy of the stack after every
// navigation.
func (p *Pages) SetOnChange(fn func(stack []string)) {
	p.onChange = fn
}

// Push shows name on top of the current page. Pushing the current page
// again does nothing.
func (p *Pages) Push(name string) {
	if p.Current() == name {
		return
	}
	p.hideTop()
	p.stack = append(p.stack, name)
	p.raise()
}

// Pop drops the top page and returns its name, or "" on an empty stack.
func (p *Pages) Pop() string {
	top := p.Current()
	if top == "" {
		return ""
	}
	p.hideTop()
	p.stack = p.stack[:len(p.stack)-1]
	p.raise()
	return top
}

// PopTo unwinds the stack until name is on top. Unknown names are ignored.
func (p *Pages) PopTo(name string) {
	i := slices.Index(p.stack, name)
	if i < 0 || i == len(p.stack)-1 {
		return
	}
	p.hideTop()
	p.stack = p.stack[:i+1]
	p.raise()
}

// Show brings name to the top, unwinding to it when it is already on the
// stack and pushing it otherwise.
func (p *Pages) Show(name string) {
	if p.Contains(name) {
		p.PopTo(name)
		return
	}
	p.Push(name)
}

// Reset makes name the only page on the stack.
func (p *Pages) Reset(name string) {
	for _, n := range p.stack {
		p.HidePage(n)
	}
	p.stack = append(p.stack[:0], name)
	p.raise()
}

func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

func (p *Pages) Contains(name string) bool {
	return slices.Contains(p.stack, name)
}

func (p *Pages) Depth() int {
	return len(p.stack)
}

// Stack returns a copy of the navigation stack, bottom first.
func (p *Pages) Stack() []string {
	return slices.Clone(p.stack)
}

func (p *Pages) hideTop() {
	if top := p.Current(); top != "" {
		p.HidePage(top)
	}
}

// raise shows the new top page and reports the change.
func (p *Pages) raise() {
	if top := p.Current(); top != "" {
		p.ShowPage(top)
		p.SendToFront(top)
	}
	if p.onChange != nil {
		p.onChange(p.Stack())
	}
}
