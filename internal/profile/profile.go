// Package profile resolves which local database a gatelog process uses.
// Each profile (one station, one account) keeps its own database under the
// profile root.
package profile

import (
	"errors"
	"regexp"
	"strings"
)

// Default is the profile used when none is named.
const Default = "default"

// ErrInvalidID indicates the profile ID format is invalid.
var ErrInvalidID = errors.New("invalid profile ID: must be lowercase alphanumeric with hyphens, at most 64 characters")

// idRegex allows lowercase alphanumeric segments joined by single hyphens,
// with no leading or trailing hyphen.
var idRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?$`)

// ValidateID validates a profile ID.
func ValidateID(id string) error {
	if id == "" || len(id) > 64 {
		return ErrInvalidID
	}
	if strings.Contains(id, "--") {
		return ErrInvalidID
	}
	if !idRegex.MatchString(id) {
		return ErrInvalidID
	}
	return nil
}
