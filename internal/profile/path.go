package profile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DBFile is the database file name inside a profile directory.
const DBFile = "gatelog.db"

// Root returns the directory holding every profile. GATELOG_HOME overrides
// the default of ~/.gatelog; without a home directory it falls back to
// ./.gatelog.
func Root() string {
	if home := os.Getenv("GATELOG_HOME"); home != "" {
		return filepath.Join(home, "profiles")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".gatelog", "profiles")
	}
	return filepath.Join(home, ".gatelog", "profiles")
}

// DBPath returns the database path of a profile.
// Example: DBPath("gate-2") -> ~/.gatelog/profiles/gate-2/gatelog.db
func DBPath(id string) string {
	return filepath.Join(Root(), id, DBFile)
}

// List returns the profiles that have a database, sorted by ID. A missing
// root yields no profiles.
func List() ([]string, error) {
	entries, err := os.ReadDir(Root())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if !e.IsDir() || ValidateID(e.Name()) != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(Root(), e.Name(), DBFile)); err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
