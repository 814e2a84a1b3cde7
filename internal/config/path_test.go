package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("Failed to get home dir: %v", err)
	}
	t.Setenv("DHANWATCH_TEST_DIR", "/tmp/dhanwatch")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty path", input: "", want: ""},
		{name: "absolute path untouched", input: "/var/lib/db.sqlite", want: "/var/lib/db.sqlite"},
		{name: "tilde prefix", input: "~/data/db.sqlite", want: filepath.Join(home, "data/db.sqlite")},
		{name: "bare tilde", input: "~", want: home},
		{name: "env variable", input: "$DHANWATCH_TEST_DIR/db.sqlite", want: "/tmp/dhanwatch/db.sqlite"},
		{name: "home variable", input: "$HOME/db.sqlite", want: filepath.Join(home, "db.sqlite")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandPath(tt.input); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
