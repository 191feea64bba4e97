package core

import (
	"reflect"
	"testing"
)

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		body string
		want []string
	}{
		{"hey @Alice and @bob.1", []string{"alice", "bob.1"}},
		{"mail test@test.com or @carol-x", []string{"carol-x"}},
		{"@all @ALL again", []string{"all"}},
		{"(@dan) trailing.", []string{"dan"}},
		{"no mentions", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			if got := ExtractMentions(tt.body); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ExtractMentions(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestMentions(t *testing.T) {
	tests := []struct {
		body string
		name string
		want bool
	}{
		{"@ann check this", "ann", true},
		{"hey @Ann", "ann", true},
		{"@annie hi", "ann", false},
		{"heads up @here", "ann", true},
		{"ann@example.com", "ann", false},
		{"@ann hi", "", false},
	}
	for _, tt := range tests {
		if got := Mentions(tt.body, tt.name); got != tt.want {
			t.Fatalf("Mentions(%q, %q) = %v, want %v", tt.body, tt.name, got, tt.want)
		}
	}
}
