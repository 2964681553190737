package instance

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidName is wrapped by every ValidateName failure.
var ErrInvalidName = errors.New("invalid instance name")

var nameRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidateName reports whether name can be used as an instance directory.
// Names start with a letter or digit so they never read as a CLI flag.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("%w %q: want 1-64 of [a-z0-9_-], not starting with - or _", ErrInvalidName, name)
	}
	return nil
}
