package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	s := Default()

	if s.Version != CurrentVersion {
		t.Fatalf("Version = %q, want %q", s.Version, CurrentVersion)
	}
	if s.GameTime.Day != 1 || s.GameTime.Season != "spring" || s.GameTime.Year != 1 {
		t.Fatalf("unexpected default game time: %+v", s.GameTime)
	}
	if s.Player.Energy != 100 || s.Player.Health != 100 {
		t.Fatalf("unexpected default player: %+v", s.Player)
	}
	if s.WorldSubsystems == nil {
		t.Fatal("WorldSubsystems should be initialized")
	}
	if s.Inventory.Items == nil {
		t.Fatal("Inventory.Items should be initialized")
	}
}

func TestSnapshotValidate(t *testing.T) {
	now := time.Now().UnixMilli()

	tests := []struct {
		name    string
		mutate  func(*Snapshot)
		wantErr bool
	}{
		{"valid", func(s *Snapshot) { s.Timestamp = now }, false},
		{"missing version", func(s *Snapshot) { s.Version = ""; s.Timestamp = now }, true},
		{"bad version", func(s *Snapshot) { s.Version = "one.zero"; s.Timestamp = now }, true},
		{"short version", func(s *Snapshot) { s.Version = "1.0"; s.Timestamp = now }, true},
		{"missing timestamp", func(s *Snapshot) { s.Timestamp = 0 }, true},
		{"negative timestamp", func(s *Snapshot) { s.Timestamp = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	var nilSnap *Snapshot
	if err := nilSnap.Validate(); err == nil {
		t.Fatal("nil snapshot should be invalid")
	}
}

func TestSnapshotClone(t *testing.T) {
	s := Default()
	s.Timestamp = 42
	s.Inventory.Items = []Item{{ID: "parsnip", Name: "Parsnip", Quantity: 5}}
	s.WorldSubsystems["farming"] = json.RawMessage(`{"crops":3}`)

	c := s.Clone()

	c.Inventory.Items[0].Quantity = 99
	c.WorldSubsystems["farming"] = json.RawMessage(`{}`)
	c.Player.Name = "Other"

	if s.Inventory.Items[0].Quantity != 5 {
		t.Fatal("clone shares inventory items with original")
	}
	if string(s.WorldSubsystems["farming"]) != `{"crops":3}` {
		t.Fatal("clone shares world subsystem map with original")
	}
	if s.Player.Name == "Other" {
		t.Fatal("clone shares player with original")
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		major   int
		minor   int
		patch   int
		wantErr bool
	}{
		{"1.0.0", 1, 0, 0, false},
		{"0.9.3", 0, 9, 3, false},
		{"12.34.56", 12, 34, 56, false},
		{"1.0", 0, 0, 0, true},
		{"", 0, 0, 0, true},
		{"a.b.c", 0, 0, 0, true},
		{"1.-1.0", 0, 0, 0, true},
	}

	for _, tt := range tests {
		major, minor, patch, err := ParseVersion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseVersion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err != nil {
			continue
		}
		if major != tt.major || minor != tt.minor || patch != tt.patch {
			t.Fatalf("ParseVersion(%q) = %d.%d.%d, want %d.%d.%d",
				tt.in, major, minor, patch, tt.major, tt.minor, tt.patch)
		}
	}
}

func TestNewExportID(t *testing.T) {
	a := NewExportID()
	b := NewExportID()
	if a == b {
		t.Fatal("export IDs should be unique")
	}
	if len(a) != 26 {
		t.Fatalf("export ID length = %d, want 26", len(a))
	}
}
