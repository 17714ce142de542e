package instance

import (
	"fmt"
	"regexp"
)

// DefaultName is used when no instance is configured.
const DefaultName = "default"

// MaxNameLength is the maximum length for an instance name.
const MaxNameLength = 63

// NamePattern matches valid instance names: lowercase alphanumeric with
// hyphens, never at the start or end. Names become a segment of every store
// key and channel, so separators and glob characters are excluded.
var NamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ValidateName checks that name can namespace a board in the store.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("instance name cannot be empty")
	}

	if len(name) > MaxNameLength {
		return fmt.Errorf("instance name too long: %d characters (max: %d)", len(name), MaxNameLength)
	}

	if !NamePattern.MatchString(name) {
		return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}

	return nil
}
