package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestHandleEventPrefersView(t *testing.T) {
	r := NewRegistry()
	var got string
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'r', Handler: func() { got = "global" }})
	r.AddView("chat", &Action{Key: tcell.KeyRune, Rune: 'r', Handler: func() { got = "view" }})

	ev := tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone)
	if !r.HandleEvent("chat", ev) || got != "view" {
		t.Errorf("chat view: handled by %q, want view", got)
	}
	if !r.HandleEvent("conversations", ev) || got != "global" {
		t.Errorf("inbox: handled by %q, want global", got)
	}
	if r.HandleEvent("chat", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) {
		t.Error("unbound key reported as handled")
	}
}

func TestHandleEventSpecialKey(t *testing.T) {
	r := NewRegistry()
	called := false
	r.AddView("chat", &Action{Key: tcell.KeyEscape, Handler: func() { called = true }})

	if !r.HandleEvent("chat", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) || !called {
		t.Error("escape binding not run")
	}
}

func TestHintsOrder(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Description: "q:quit", Visible: true})
	r.AddGlobal(&Action{Description: "hidden"})
	r.AddView("chat", &Action{Description: "i:reply", Visible: true})
	r.AddView("chat", &Action{Description: "esc:back", Visible: true})

	got := r.Hints("chat")
	want := []string{"i:reply", "esc:back", "q:quit"}
	if len(got) != len(want) {
		t.Fatalf("Hints = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Hints = %v, want %v", got, want)
		}
	}
}
