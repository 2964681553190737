package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/relay/internal/tui/model"
	"github.com/rivo/tview"
)

// ConversationList is the operator's inbox: one row per peer, most recent
// first.
type ConversationList struct {
	*tview.Table
	rows []model.Conversation
}

// NewConversationList creates the inbox table.
func NewConversationList() *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true).SetTitle(" Conversations ")
	return &ConversationList{Table: table}
}

// Update refreshes the table, keeping the selected peer selected.
func (cl *ConversationList) Update(rows []model.Conversation) {
	selected := cl.SelectedPeer()
	cl.rows = rows
	cl.Clear()

	header := []string{" Peer", " Phone", " Last Message", " Time"}
	for col, h := range header {
		cl.SetCell(0, col, tview.NewTableCell(h).SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	}

	for i, c := range rows {
		row := i + 1
		name := sanitizeForTerminal(c.Summary.Peer.Fullname)
		if name == "" {
			name = c.Summary.Peer.ID
		}
		if c.Unread > 0 {
			name = fmt.Sprintf("* %s (%d)", name, c.Unread)
		}
		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(name)).SetMaxWidth(30).SetExpansion(1))
		cl.SetCell(row, 1, tview.NewTableCell(" "+c.Summary.Peer.Phone).SetMaxWidth(16))
		cl.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(preview(c.Summary.LastMessage.Content, c.Summary.LastMessage.MimeType))).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(row, 3, tview.NewTableCell(" "+formatTimestamp(c.Summary.LastMessage.Timestamp)).SetMaxWidth(12))
		if c.Summary.Peer.ID == selected {
			cl.Select(row, 0)
		}
	}
}

// SelectedPeer returns the id of the selected peer, or "".
func (cl *ConversationList) SelectedPeer() string {
	row, _ := cl.GetSelection()
	idx := row - 1 // header
	if idx >= 0 && idx < len(cl.rows) {
		return cl.rows[idx].Summary.Peer.ID
	}
	return ""
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

func preview(content, mimeType string) string {
	if mimeType != "" && mimeType != "text/plain" {
		return "[" + mimeType + "]"
	}
	content = sanitizeForTerminal(content)
	if r := []rune(content); len(r) > 60 {
		return string(r[:60]) + "..."
	}
	return content
}
