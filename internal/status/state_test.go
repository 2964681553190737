package status

import (
	"testing"

	"github.com/matheus3301/relay/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, Ready},
		{Booting, Degraded},
		{Booting, Error},
		{Ready, Degraded},
		{Ready, Stopping},
		{Degraded, Ready},
		{Degraded, Stopping},
		{Error, Booting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Stopping); err == nil {
		t.Error("Transition(BOOTING -> STOPPING) should fail")
	}
	if m.Current() != Booting {
		t.Errorf("state = %s, want BOOTING (should not have changed)", m.Current())
	}
}

// TestStoppingIsTerminal verifies a stopping daemon cannot report ready again.
func TestStoppingIsTerminal(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Stopping)

	for _, s := range []State{Ready, Degraded, Booting} {
		if err := m.Transition(s); err == nil {
			t.Errorf("Transition(STOPPING -> %s) should fail", s)
		}
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("daemon.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.TransitionReason(Degraded, "store fell back to memory"); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindStatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != Degraded {
		t.Errorf("change = %v -> %v, want BOOTING -> DEGRADED", change.From, change.To)
	}
	if change.Reason == "" || m.Reason() != change.Reason {
		t.Errorf("reason = %q / %q, want recorded reason", change.Reason, m.Reason())
	}
}

func TestTransitionClearsReason(t *testing.T) {
	m := NewMachine(nil)
	_ = m.TransitionReason(Degraded, "push unavailable")
	if err := m.Transition(Ready); err != nil {
		t.Fatal(err)
	}
	if m.Reason() != "" {
		t.Errorf("Reason() = %q, want empty after recovery", m.Reason())
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:  {},
		Ready:    {Ready},
		Degraded: {Degraded},
		Stopping: {Ready, Stopping},
		Error:    {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
