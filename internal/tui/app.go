package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/relay/internal/api"
	"github.com/matheus3301/relay/internal/bus"
	"github.com/matheus3301/relay/internal/tui/client"
	"github.com/matheus3301/relay/internal/tui/keys"
	"github.com/matheus3301/relay/internal/tui/model"
	"github.com/matheus3301/relay/internal/tui/views"
	"github.com/rivo/tview"
)

const (
	pageInbox = "conversations"
	pageChat  = "chat"
)

// App is the operator console.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	vm        *model.ViewModel
	grpc      *client.Client
	registry  *keys.Registry
	statusBar *views.StatusBar
	inbox     *views.ConversationList
	msgView   *views.MessageView
	composer  *views.Composer
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the console for one daemon instance.
func NewApp(c *client.Client, instanceName string) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        model.NewViewModel(c),
		grpc:      c,
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(),
		inbox:     views.NewConversationList(),
		msgView:   views.NewMessageView(""),
		composer:  views.NewComposer(),
		ctx:       ctx,
		cancel:    cancel,
	}
	a.statusBar.SetInstance(instanceName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: a.Stop,
	})
	a.registry.AddGlobal(&keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:refresh", Visible: true,
		Handler: func() { go a.refresh() },
	})
	a.registry.AddView(pageChat, &keys.Action{
		Rune: 'i', Key: tcell.KeyRune,
		Description: "i:reply", Visible: true,
		Handler: func() { a.app.SetFocus(a.composer.InputField) },
	})
	a.registry.AddView(pageChat, &keys.Action{
		Key:         tcell.KeyEscape,
		Description: "esc:back",
		Visible:     true,
		Handler:     a.closeChat,
	})
}

func (a *App) setupCallbacks() {
	a.inbox.SetSelectedFunc(func(row, col int) {
		if peer := a.inbox.SelectedPeer(); peer != "" {
			a.openChat(peer)
		}
	})

	a.composer.SetOnSend(func(text string) {
		go func() {
			if err := a.vm.Reply(a.ctx, text); err != nil {
				a.vm.Flash.Set("Send failed: "+err.Error(), 5*time.Second)
			}
			// The message.saved event refreshes the thread.
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetFlash(a.vm.Flash.Get())
			})
		}()
	})
	a.composer.SetOnCancel(func() {
		a.app.SetFocus(a.msgView)
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage(pageInbox, a.inbox, true, true)
	a.pages.AddPage(pageChat, chatFlex, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)
	a.statusBar.SetHints(a.registry.Hints(pageInbox))

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// Let text input widgets handle all keys normally.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			return event
		}
		page, _ := a.pages.GetFrontPage()
		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

func (a *App) openChat(peer string) {
	go func() {
		if err := a.vm.Open(a.ctx, peer); err != nil {
			a.vm.Flash.Set("Load failed: "+err.Error(), 5*time.Second)
			a.app.QueueUpdateDraw(func() { a.statusBar.SetFlash(a.vm.Flash.Get()) })
			return
		}
		name := a.vm.PeerName(peer)
		a.app.QueueUpdateDraw(func() {
			a.msgView.SetPeerName(name)
			a.msgView.Update(a.vm.Messages())
			a.pages.SwitchToPage(pageChat)
			a.statusBar.SetHints(a.registry.Hints(pageChat))
			a.app.SetFocus(a.msgView)
		})
	}()
}

func (a *App) closeChat() {
	a.vm.Close()
	a.pages.SwitchToPage(pageInbox)
	a.statusBar.SetHints(a.registry.Hints(pageInbox))
	a.app.SetFocus(a.inbox)
	go a.refresh()
}

// refresh reloads status and inbox. Must not run on the UI goroutine.
func (a *App) refresh() {
	if err := a.vm.LoadStatus(a.ctx); err != nil {
		a.vm.Flash.Set("Daemon unreachable: "+err.Error(), 5*time.Second)
	}
	if err := a.vm.LoadConversations(a.ctx); err != nil {
		a.vm.Flash.Set("Load failed: "+err.Error(), 5*time.Second)
	}
	a.app.QueueUpdateDraw(func() {
		a.inbox.Update(a.vm.Conversations())
		a.statusBar.SetStatus(a.vm.Status())
		a.statusBar.SetFlash(a.vm.Flash.Get())
	})
}

// Run starts the console. It blocks until the user quits.
func (a *App) Run() error {
	go func() {
		_ = a.vm.LoadStatus(a.ctx)
		operator := a.vm.Operator()
		a.app.QueueUpdateDraw(func() {
			a.msgView.SetOperator(operator)
		})
		a.refresh()
		a.startStatusLoop()
		a.watch()
	}()
	return a.app.Run()
}

func (a *App) startStatusLoop() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = a.vm.LoadStatus(a.ctx)
				a.app.QueueUpdateDraw(func() {
					a.statusBar.SetStatus(a.vm.Status())
					a.statusBar.SetFlash(a.vm.Flash.Get())
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// watch follows the daemon's message events, reconnecting when the stream
// drops, until the console stops.
func (a *App) watch() {
	for a.ctx.Err() == nil {
		events, err := a.grpc.Watch(a.ctx)
		if err == nil {
			for evt := range events {
				a.onEvent(evt)
			}
		}
		select {
		case <-time.After(2 * time.Second):
		case <-a.ctx.Done():
		}
	}
}

func (a *App) onEvent(evt *api.MessageEvent) {
	if evt.Kind == bus.KindMessageDelivered {
		return
	}
	if a.vm.Concerns(evt) {
		// Incoming messages in the open thread are read on arrival.
		incoming := evt.Kind == bus.KindMessageSaved && evt.Message != nil && evt.Message.SenderID == a.vm.ActivePeer()
		_ = a.vm.Refresh(a.ctx, incoming)
		a.app.QueueUpdateDraw(func() {
			a.msgView.Update(a.vm.Messages())
		})
	}
	a.refresh()
}

// Stop gracefully shuts down the console.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
