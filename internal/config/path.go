// Package config resolves user-supplied paths from the dhanwatch config
// file: the detection store, the app ledger, and the bridge feed files.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves ~ and $VAR references in a configured path. Feed and
// database locations in config.yaml are usually written relative to the home
// directory, so both ~/ and $HOME forms are accepted.
func ExpandPath(path string) string {
	switch {
	case path == "":
		return path
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
