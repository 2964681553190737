package identity

import "testing"

func TestCanonicalCollapsesAliases(t *testing.T) {
	n := Default()

	for _, id := range []string{"admin", "-1", " -1 ", "admin\n"} {
		if got := n.Canonical(id); got != DefaultOperatorID {
			t.Errorf("Canonical(%q) = %q, want %q", id, got, DefaultOperatorID)
		}
	}
}

func TestCanonicalPassesThroughPeers(t *testing.T) {
	n := Default()

	for _, id := range []string{"u1", "7", "-2", "Admin", "administrator"} {
		if got := n.Canonical(id); got != id {
			t.Errorf("Canonical(%q) = %q, want unchanged", id, got)
		}
	}
}

func TestCustomOperator(t *testing.T) {
	n := New("support", "0", "root", "")

	if got := n.Operator(); got != "support" {
		t.Fatalf("Operator() = %q, want support", got)
	}
	for _, id := range []string{"support", "0", "root"} {
		if !n.IsOperator(id) {
			t.Errorf("IsOperator(%q) = false, want true", id)
		}
	}
	if n.IsOperator("") {
		t.Error("empty alias must not be registered")
	}
	if n.IsOperator("admin") {
		t.Error("default alias leaked into custom normalizer")
	}
}

func TestAliases(t *testing.T) {
	got := Default().Aliases()
	want := []string{"-1", "admin"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Aliases() = %v, want %v", got, want)
	}
}

func TestNewEmptyOperatorFallsBack(t *testing.T) {
	n := New("  ")
	if n.Operator() != DefaultOperatorID {
		t.Errorf("Operator() = %q, want %q", n.Operator(), DefaultOperatorID)
	}
}

func TestResolveRoles(t *testing.T) {
	n := Default()

	op := n.Resolve("-1")
	if op.ID != DefaultOperatorID || op.Role != RoleOperator {
		t.Errorf("Resolve(-1) = %+v, want operator", op)
	}
	peer := n.Resolve("u1")
	if peer.ID != "u1" || peer.Role != RolePeer {
		t.Errorf("Resolve(u1) = %+v, want peer", peer)
	}
}

func TestCounterpart(t *testing.T) {
	n := Default()

	tests := []struct {
		sender, receiver string
		want             string
		ok               bool
	}{
		{"u1", "admin", "u1", true},
		{"-1", "u1", "u1", true},
		{"admin", "-1", "", false},
		{"u1", "u2", "", false},
	}
	for _, tt := range tests {
		got, ok := n.Counterpart(tt.sender, tt.receiver)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Counterpart(%q, %q) = (%q, %v), want (%q, %v)", tt.sender, tt.receiver, got, ok, tt.want, tt.ok)
		}
	}
}
