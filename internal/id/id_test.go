package id

import (
	"strings"
	"testing"
)

func TestNewLocalpart_FormatAndUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		lp := NewLocalpart()
		if len(lp) != 32 {
			t.Fatalf("expected 32-char localpart, got %q (%d)", lp, len(lp))
		}
		if strings.ContainsAny(lp, "-:!@#$") {
			t.Fatalf("localpart contains forbidden characters: %q", lp)
		}
		if seen[lp] {
			t.Fatalf("duplicate localpart generated: %q", lp)
		}
		seen[lp] = true
	}
}

func TestNewRoomID_Shape(t *testing.T) {
	roomID := NewRoomID("example.org")
	if !strings.HasPrefix(roomID, "!") {
		t.Fatalf("room id must start with '!', got %q", roomID)
	}
	if !strings.HasSuffix(roomID, ":example.org") {
		t.Fatalf("room id must end with server name, got %q", roomID)
	}
}

func TestNewEventID_Shape(t *testing.T) {
	eventID := NewEventID("example.org")
	if !strings.HasPrefix(eventID, "$") || !strings.HasSuffix(eventID, ":example.org") {
		t.Fatalf("malformed event id: %q", eventID)
	}
}

func TestNormalizeAlias(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"lounge", "#lounge:example.org"},
		{"#lounge", "#lounge:example.org"},
		{"#lounge:other.org", "#lounge:other.org"},
	}
	for _, tc := range cases {
		if got := NormalizeAlias(tc.in, "example.org"); got != tc.want {
			t.Fatalf("NormalizeAlias(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeUser(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"alice", "@alice:example.org"},
		{"@alice", "@alice:example.org"},
		{"Alice", "@alice:example.org"},
		{"@alice:other.org", "@alice:other.org"},
	}
	for _, tc := range cases {
		if got := NormalizeUser(tc.in, "example.org"); got != tc.want {
			t.Fatalf("NormalizeUser(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLocalpart(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"@alice:example.org", "alice"},
		{"!abc:example.org", "abc"},
		{"#lounge:example.org", "lounge"},
		{"bare", "bare"},
	}
	for _, tc := range cases {
		if got := Localpart(tc.in); got != tc.want {
			t.Fatalf("Localpart(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
