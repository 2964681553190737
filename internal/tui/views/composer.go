package views

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Composer is the text input for replying to the open conversation.
type Composer struct {
	*tview.InputField
	onSend   func(text string)
	onCancel func()
}

// NewComposer creates a new message composer.
func NewComposer() *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0).
		SetPlaceholder("i to reply, enter to send")

	c := &Composer{InputField: input}

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape && c.onCancel != nil {
			c.onCancel()
			return
		}
		if key != tcell.KeyEnter || c.onSend == nil {
			return
		}
		if text := strings.TrimSpace(c.GetText()); text != "" {
			c.onSend(text)
			c.SetText("")
		}
	})

	return c
}

// SetOnSend sets the callback when a message is submitted.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

// SetOnCancel sets the callback for Escape.
func (c *Composer) SetOnCancel(fn func()) {
	c.onCancel = fn
}
