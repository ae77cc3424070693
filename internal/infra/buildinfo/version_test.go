package buildinfo

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	// Unset ldflags leave the documented placeholders, never blanks.
	fields := map[string]string{
		"Version":   info.Version,
		"Commit":    info.Commit,
		"BuildTime": info.BuildTime,
		"GoVersion": info.GoVersion,
	}
	for name, value := range fields {
		if value == "" {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestString(t *testing.T) {
	s := String()

	want := Version + " (" + Commit + ") built at " + BuildTime
	if s != want {
		t.Errorf("String() = %q, want %q", s, want)
	}
	if !strings.Contains(s, Version) {
		t.Errorf("String() = %q, missing version", s)
	}
}

func TestInfoJSON(t *testing.T) {
	// The CLI renders Info through the JSON formatter; the wire names
	// are part of the output contract.
	data, err := json.Marshal(Get())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, key := range []string{`"version"`, `"commit"`, `"build_time"`, `"go_version"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("marshaled Info missing %s: %s", key, data)
		}
	}
}
