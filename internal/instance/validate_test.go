package instance

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	ok := []string{"main", "work123", "my-relay", "my_relay", "a", "7", strings.Repeat("a", 64)}
	for _, name := range ok {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}

	bad := []string{"", "Main", "my relay", "my.relay", strings.Repeat("a", 65), "my@relay", "my/relay", "-json", "_tmp", "../x"}
	for _, name := range bad {
		err := ValidateName(name)
		if err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", name)
			continue
		}
		if !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", name, err)
		}
	}
}
