package views

import (
	"fmt"

	"github.com/matheus3301/relay/internal/store"
	"github.com/rivo/tview"
)

// MessageView displays the history of a single conversation.
type MessageView struct {
	*tview.TextView
	operator string
}

// NewMessageView creates a message view. Messages sent by operator are
// labelled "You".
func NewMessageView(operator string) *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &MessageView{TextView: tv, operator: operator}
}

// SetPeerName updates the title.
func (mv *MessageView) SetPeerName(name string) {
	mv.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(name))))
}

// Update renders msgs, oldest first.
func (mv *MessageView) Update(msgs []store.Message) {
	mv.Clear()

	for _, m := range msgs {
		sender := m.SenderID
		if sender == mv.operator {
			sender = "You"
		}
		body := sanitizeForTerminal(m.Content)
		if m.MimeType != "" && m.MimeType != store.DefaultMimeType {
			body = fmt.Sprintf("[%s] %s", m.MimeType, m.Content)
		}
		receipt := ""
		if m.Read && m.SenderID == mv.operator {
			receipt = " [green]read[-]"
		}
		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
			tview.Escape(sender), formatTimestamp(m.Timestamp), receipt, tview.Escape(body))
		_, _ = fmt.Fprint(mv, line)
	}

	mv.ScrollToEnd()
}

// SetOperator sets the identity rendered as "You".
func (mv *MessageView) SetOperator(id string) {
	mv.operator = id
}
