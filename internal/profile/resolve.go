package profile

import (
	"fmt"
	"os"
)

// Resolve determines the profile to use.
// Priority: explicit > GATELOG_PROFILE env > "default"
func Resolve(explicit string) (string, error) {
	if explicit != "" {
		if err := ValidateID(explicit); err != nil {
			return "", fmt.Errorf("invalid profile %q: %w", explicit, err)
		}
		return explicit, nil
	}

	if env := os.Getenv("GATELOG_PROFILE"); env != "" {
		if err := ValidateID(env); err != nil {
			return "", fmt.Errorf("invalid GATELOG_PROFILE %q: %w", env, err)
		}
		return env, nil
	}

	return Default, nil
}
