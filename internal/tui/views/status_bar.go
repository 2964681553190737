package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/relay/internal/api"
	"github.com/rivo/tview"
)

// StatusBar displays the daemon status, live connection counts and
// transient flash messages.
type StatusBar struct {
	*tview.TextView
	instance string
	status   *api.GetStatusResponse
	hints    []string
	flash    string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetInstance updates the instance name display.
func (sb *StatusBar) SetInstance(name string) {
	sb.instance = name
	sb.render()
}

// SetStatus updates the daemon status display.
func (sb *StatusBar) SetStatus(st *api.GetStatusResponse) {
	sb.status = st
	sb.render()
}

// SetHints shows the key bindings available in the current view.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, statusLine(sb.instance, sb.status, sb.hints, sb.flash, time.Now()))
}

func statusLine(instance string, st *api.GetStatusResponse, hints []string, flash string, now time.Time) string {
	state := "[red]DISCONNECTED[-]"
	counts := ""
	if st != nil {
		state = stateColor(st.State) + st.State + "[-]"
		if st.StoreFallback {
			state += " [yellow](memory store)[-]"
		}
		counts = fmt.Sprintf(" | %d online / %d conns | %d unread", st.Identities, st.Connections, st.Unread)
	}

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s%s | %s", instance, state, counts, now.Format("15:04"))
	if len(hints) > 0 {
		line += " | " + strings.Join(hints, " ")
	}
	if flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", tview.Escape(flash))
	}
	return line
}

func stateColor(state string) string {
	switch state {
	case "READY":
		return "[green]"
	case "DEGRADED", "BOOTING":
		return "[yellow]"
	default:
		return "[red]"
	}
}
