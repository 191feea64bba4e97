package chat

import (
	"errors"
	"testing"
	"time"

	"github.com/adamavenir/frayfeed/internal/feed"
)

func TestSplitCommand(t *testing.T) {
	name, args := splitCommand("/RM  #abc extra")
	if name != "/rm" || len(args) != 2 || args[0] != "#abc" {
		t.Fatalf("split: %q %v", name, args)
	}
	if name, args := splitCommand("   "); name != "" || args != nil {
		t.Fatalf("empty: %q %v", name, args)
	}
}

func TestParseChannelArg(t *testing.T) {
	ch, err := parseChannelArg([]string{"#random"})
	if err != nil || ch != "random" {
		t.Fatalf("channel: %q %v", ch, err)
	}
	if _, err := parseChannelArg(nil); err == nil {
		t.Fatalf("expected error for missing channel")
	}
	if _, err := parseChannelArg([]string{"#"}); err == nil {
		t.Fatalf("expected error for bare #")
	}
}

func TestParseIDArg(t *testing.T) {
	id, err := parseIDArg([]string{"#msg-123"})
	if err != nil || id != "msg-123" {
		t.Fatalf("id: %q %v", id, err)
	}
	if _, err := parseIDArg([]string{"a", "b"}); err == nil {
		t.Fatalf("expected error for two ids")
	}
}

func TestResolveID(t *testing.T) {
	main := feed.NewTimeline()
	for _, id := range []string{"abc1", "abd2", "zz"} {
		main.Append(paneItem(id, time.Now()))
	}
	thread := feed.NewTimeline()
	thread.Append(paneItem("reply9", time.Now()))

	tests := []struct {
		prefix  string
		want    string
		wantErr error
	}{
		{"zz", "zz", nil},
		{"abc", "abc1", nil},
		{"ab", "", errAmbiguousID},
		{"rep", "reply9", nil},
		{"nope", "", errUnknownID},
	}
	for _, tt := range tests {
		got, err := resolveID(tt.prefix, main, thread, nil)
		if !errors.Is(err, tt.wantErr) || got != tt.want {
			t.Fatalf("resolveID(%q) = %q, %v", tt.prefix, got, err)
		}
	}
}

func TestFormatElsewhere(t *testing.T) {
	got := formatElsewhere(map[string]int{"b": 2, "a": 2, "c": 5})
	if got != "#c 5 #a 2 #b 2" {
		t.Fatalf("elsewhere: %q", got)
	}
	if formatElsewhere(nil) != "" {
		t.Fatalf("expected empty string")
	}
}
