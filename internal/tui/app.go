package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/jewelchat/internal/api"
	"github.com/matheus3301/jewelchat/internal/tui/keys"
	"github.com/matheus3301/jewelchat/internal/tui/model"
	"github.com/matheus3301/jewelchat/internal/tui/ui"
	"github.com/matheus3301/jewelchat/internal/tui/views"
	"github.com/rivo/tview"
)

// Page names.
const (
	pageConversations = "conversations"
	pageThread        = "thread"
	pageDetails       = "details"
	pageSearch        = "search"
	pageLogin         = "login"
	pageShare         = "share"
	pageHelp          = "help"
)

const (
	rpcTimeout      = 10 * time.Second
	watchRetryDelay = 2 * time.Second
	tickInterval    = time.Second
	statusInterval  = 15 * time.Second
)

// Backend is the daemon API the TUI needs. *client.Client satisfies it.
type Backend interface {
	model.Backend
	WatchEvents(ctx context.Context, prefixes []string, fn func(api.Event) error) error
}

// Options configure the TUI.
type Options struct {
	Profile string
	// BaseURL is the marketplace web root deep links are built on.
	BaseURL string
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	backend  Backend
	vm       *model.ViewModel
	opts     Options
	theme    *ui.Theme
	registry *keys.Registry

	root       *tview.Flex
	pages      *ui.Pages
	components map[string]ui.Component
	crumbs     *ui.Crumbs
	menu       *ui.Menu
	info       *ui.ProfileInfo
	prompt     *ui.Prompt
	statusBar  *views.StatusBar

	convList *views.ConversationList
	thread   *views.MessageThread
	details  *views.ConversationInfo
	search   *views.SearchView
	login    *views.LoginView
	share    *views.ShareView
	help     *views.HelpView

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(b Backend, opts Options) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:        tview.NewApplication(),
		backend:    b,
		vm:         model.NewViewModel(b),
		opts:       opts,
		theme:      theme,
		registry:   keys.NewRegistry(),
		pages:      ui.NewPages(),
		components: make(map[string]ui.Component),
		crumbs:     ui.NewCrumbs(theme),
		menu:       ui.NewMenu(theme),
		info:       ui.NewProfileInfo(theme),
		prompt:     ui.NewPrompt(theme),
		statusBar:  views.NewStatusBar(theme),
		convList:   views.NewConversationList(theme),
		thread:     views.NewMessageThread(theme),
		details:    views.NewConversationInfo(theme),
		search:     views.NewSearchView(theme),
		login:      views.NewLoginView(theme),
		share:      views.NewShareView(theme),
		help:       views.NewHelpView(theme),
		ctx:        ctx,
		cancel:     cancel,
	}

	a.statusBar.SetProfile(opts.Profile)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Description: "Quit",
		Handler: a.Stop,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: '?', Description: "Help",
		Handler: func() { a.showPage(pageHelp) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: ':', Description: "Command",
		Handler: func() { a.activatePrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'S', Description: "Search",
		Handler: func() { a.showSearch("") },
	})

	a.registry.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: '/', Description: "Filter",
		Handler: func() { a.activatePrompt(ui.PromptFilter) },
	})
	a.registry.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: '0', Description: "Clear filter",
		Handler: func() { a.convList.ClearFilter() },
	})
	a.registry.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: 'x', Description: "Share",
		Handler: func() { a.showShare(a.convList.SelectedPeer()) },
	})
	for n := 1; n <= 9; n++ {
		a.registry.AddView(pageConversations, &keys.Action{
			Key: tcell.KeyRune, Rune: rune('0' + n), Description: fmt.Sprintf("Open #%d", n),
			Handler: func() {
				if peer := a.convList.PeerByIndex(n); peer != "" {
					a.openConversation(peer)
				}
			},
		})
	}

	a.registry.AddView(pageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Description: "Compose",
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddView(pageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "Resend",
		Handler: a.resendLast,
	})
	a.registry.AddView(pageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'd', Description: "Details",
		Handler: a.showDetails,
	})
	a.registry.AddView(pageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'x', Description: "Share",
		Handler: func() { a.showShare(a.thread.Peer()) },
	})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, _ int) {
		if peer := a.convList.PeerByIndex(row); peer != "" {
			a.openConversation(peer)
		}
	})

	a.thread.SetOnSend(func(text string) {
		go func() {
			ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
			defer cancel()
			err := a.vm.Send(ctx, text)
			a.app.QueueUpdateDraw(func() {
				if err != nil {
					a.vm.Flash.Err(fmt.Errorf("send failed: %w", err))
				}
				a.thread.Update(a.vm.Messages())
				a.refreshFlash()
			})
		}()
	})

	a.search.SetOnQuery(a.runSearch)
	a.search.SetOnOpen(a.openConversation)

	a.login.SetOnSubmit(func(token, userID string, persist bool) {
		a.login.ShowMessage("connecting...")
		go func() {
			ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
			defer cancel()
			err := a.vm.Login(ctx, token, userID, persist)
			if err == nil {
				err = a.vm.LoadConversations(ctx)
			}
			a.app.QueueUpdateDraw(func() {
				if err != nil {
					a.login.ShowMessage("login failed: " + err.Error())
					return
				}
				a.vm.Flash.Info("credentials updated")
				a.renderStatus()
				a.convList.Update(a.vm.Conversations())
				a.pages.Reset(pageConversations)
			})
		}()
	})
	a.login.SetOnCancel(a.back)

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.deactivatePrompt()
		switch mode {
		case ui.PromptFilter:
			a.convList.SetFilter(text)
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(a.deactivatePrompt)
}

func (a *App) setupLayout() {
	for name, c := range map[string]ui.Component{
		pageConversations: a.convList,
		pageThread:        a.thread,
		pageDetails:       a.details,
		pageSearch:        a.search,
		pageLogin:         a.login,
		pageShare:         a.share,
		pageHelp:          a.help,
	} {
		a.components[name] = c
		a.pages.AddPage(name, c, true, false)
	}

	a.pages.SetOnChange(func(stack []string) {
		if len(stack) == 0 {
			return
		}
		top := stack[len(stack)-1]
		a.crumbs.Update(stack)
		if c, ok := a.components[top]; ok {
			a.menu.Update(c.Hints())
			a.app.SetFocus(c.FocusTarget())
		}
	})

	header := tview.NewFlex().
		AddItem(a.info, 32, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(ui.NewLogo(a.theme), 16, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)
	a.root.SetBackgroundColor(a.theme.BgColor)

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.handleKey)
	a.pages.Reset(pageConversations)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if a.app.GetFocus() == a.prompt.InputField {
		return event
	}

	current := a.pages.Current()
	if event.Key() == tcell.KeyEscape {
		if current == pageThread && a.app.GetFocus() == a.thread.Composer() {
			a.app.SetFocus(a.thread.Messages())
			return nil
		}
		if current == pageSearch && a.app.GetFocus() == a.search.Results() {
			a.app.SetFocus(a.search.Input())
			return nil
		}
		a.back()
		return nil
	}

	if current == pageSearch && event.Key() == tcell.KeyTab {
		if a.app.GetFocus() == a.search.Input() {
			a.app.SetFocus(a.search.Results())
		} else {
			a.app.SetFocus(a.search.Input())
		}
		return nil
	}

	// Text widgets and the login form get every other key.
	if current == pageLogin {
		return event
	}
	if _, ok := a.app.GetFocus().(*tview.InputField); ok {
		return event
	}

	if a.registry.HandleEvent(current, event) {
		return nil
	}
	return event
}

func (a *App) back() {
	if a.pages.Depth() > 1 {
		top := a.pages.Pop()
		if top == pageThread {
			a.vm.Close()
		}
	}
}

func (a *App) showPage(name string) {
	a.pages.Show(name)
}

func (a *App) activatePrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt.InputField)
}

func (a *App) deactivatePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	if c, ok := a.components[a.pages.Current()]; ok {
		a.app.SetFocus(c.FocusTarget())
	}
}

func (a *App) runCommand(cmd Command) {
	if err := cmd.Validate(); err != nil {
		a.vm.Flash.Err(err)
		a.refreshFlash()
		return
	}
	switch cmd.Name {
	case "quit":
		a.Stop()
	case "help":
		a.showPage(pageHelp)
	case "open":
		a.openConversation(cmd.Args)
	case "search":
		a.showSearch(cmd.Args)
	case "share":
		peer := cmd.Args
		if peer == "" {
			peer = a.currentPeer()
		}
		a.showShare(peer)
	case "resend":
		a.resendLast()
	case "login":
		a.showLogin("")
	case "logout":
		a.logout()
	}
}

func (a *App) currentPeer() string {
	if peer := a.vm.ActivePeer(); peer != "" {
		return peer
	}
	return a.convList.SelectedPeer()
}

func (a *App) openConversation(peer string) {
	if peer == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		err := a.vm.Open(ctx, peer)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.vm.Flash.Err(fmt.Errorf("open %s: %w", peer, err))
				a.refreshFlash()
				return
			}
			title := peer
			if c, ok := a.vm.Conversation(peer); ok && c.DisplayName != "" {
				title = c.DisplayName
			}
			a.thread.SetConversation(peer, title, a.vm.Status().UserID)
			a.thread.Update(a.vm.Messages())
			a.crumbs.SetTitle(pageThread, title)
			a.pages.PopTo(pageConversations)
			a.pages.Push(pageThread)
			a.refreshFlash()
		})
	}()
}

func (a *App) resendLast() {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		found, err := a.vm.ResendLast(ctx)
		a.app.QueueUpdateDraw(func() {
			switch {
			case err != nil:
				a.vm.Flash.Err(fmt.Errorf("resend failed: %w", err))
			case !found:
				a.vm.Flash.Info("nothing to resend")
			}
			a.thread.Update(a.vm.Messages())
			a.refreshFlash()
		})
	}()
}

func (a *App) showDetails() {
	peer := a.vm.ActivePeer()
	if peer == "" {
		return
	}
	conv, _ := a.vm.Conversation(peer)
	if conv.PeerID == "" {
		conv.PeerID = peer
	}
	a.details.Update(conv, a.vm.Thread())
	a.showPage(pageDetails)
}

func (a *App) showShare(peer string) {
	if peer == "" {
		a.vm.Flash.Info("no conversation selected")
		a.refreshFlash()
		return
	}
	if err := a.share.Show(a.opts.BaseURL, peer); err != nil {
		a.vm.Flash.Err(err)
		a.refreshFlash()
	}
	a.showPage(pageShare)
}

func (a *App) showSearch(query string) {
	a.showPage(pageSearch)
	if query != "" {
		a.search.Input().SetText(query)
		a.runSearch(query)
	}
}

func (a *App) runSearch(query string) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		results, err := a.vm.Search(ctx, query)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.vm.Flash.Err(fmt.Errorf("search failed: %w", err))
				a.refreshFlash()
				return
			}
			a.search.Update(results)
			if len(results) > 0 {
				a.app.SetFocus(a.search.Results())
			}
		})
	}()
}

func (a *App) showLogin(msg string) {
	a.login.Reset(a.vm.Status().UserID)
	a.login.ShowMessage(msg)
	a.showPage(pageLogin)
}

func (a *App) logout() {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		err := a.vm.Logout(ctx)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.vm.Flash.Err(fmt.Errorf("logout failed: %w", err))
				a.refreshFlash()
				return
			}
			a.renderStatus()
			a.pages.Reset(pageConversations)
			a.showLogin("logged out")
		})
	}()
}

// Run starts the TUI application.
func (a *App) Run() error {
	go a.bootstrap()
	go a.watch()
	go a.tick()
	return a.app.Run()
}

func (a *App) bootstrap() {
	ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
	defer cancel()
	statusErr := a.vm.LoadStatus(ctx)
	convErr := a.vm.LoadConversations(ctx)

	a.app.QueueUpdateDraw(func() {
		if err := errors.Join(statusErr, convErr); err != nil {
			a.vm.Flash.Err(err)
		}
		a.renderStatus()
		a.convList.Update(a.vm.Conversations())
		a.refreshFlash()
		if statusErr == nil && a.vm.Status().UserID == "" && a.pages.Current() != pageLogin {
			a.showLogin("no credentials configured")
		}
	})
}

// watch follows the daemon's event stream and reconnects until the app
// stops.
func (a *App) watch() {
	for {
		err := a.backend.WatchEvents(a.ctx, nil, func(e api.Event) error {
			ch := a.vm.HandleEvent(a.ctx, e)
			if ch.Any() {
				a.app.QueueUpdateDraw(func() { a.apply(ch) })
			}
			return nil
		})
		if a.ctx.Err() != nil {
			return
		}
		if err != nil {
			a.vm.Flash.Warn("event stream lost: " + err.Error())
			a.app.QueueUpdateDraw(a.refreshFlash)
		}
		select {
		case <-time.After(watchRetryDelay):
		case <-a.ctx.Done():
			return
		}
		// Catch up on whatever happened while the stream was down.
		a.bootstrap()
	}
}

func (a *App) tick() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	lastStatus := time.Now()
	for {
		select {
		case <-ticker.C:
			if time.Since(lastStatus) >= statusInterval {
				lastStatus = time.Now()
				ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
				_ = a.vm.LoadStatus(ctx)
				cancel()
			}
			a.app.QueueUpdateDraw(func() {
				a.renderStatus()
				a.refreshFlash()
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) apply(ch model.Change) {
	if ch.Status {
		a.renderStatus()
	}
	if ch.Conversations {
		a.convList.Update(a.vm.Conversations())
	}
	if ch.Thread {
		a.thread.Update(a.vm.Messages())
		if a.pages.Current() == pageDetails {
			conv, _ := a.vm.Conversation(a.vm.ActivePeer())
			a.details.Update(conv, a.vm.Thread())
		}
	}
	a.refreshFlash()
}

func (a *App) renderStatus() {
	st := a.vm.Status()
	a.statusBar.SetState(st.State)
	a.info.Update(&ui.ProfileData{
		Profile:       a.opts.Profile,
		UserID:        st.UserID,
		State:         string(st.State),
		Conversations: st.Conversations,
		Messages:      st.Messages,
		Uptime:        time.Duration(st.UptimeMs) * time.Millisecond,
	})
}

func (a *App) refreshFlash() {
	if msg, ok := a.vm.Flash.Current(); ok {
		a.statusBar.SetFlash(&msg)
		return
	}
	a.statusBar.SetFlash(nil)
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
