package id

import (
	"strings"
	"testing"
)

func TestNewToolCallID(t *testing.T) {
	a, b := NewToolCallID(), NewToolCallID()
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
	for _, v := range []string{a, b} {
		if !strings.HasPrefix(v, "call_") || len(v) != len("call_")+24 {
			t.Errorf("unexpected tool call id %q", v)
		}
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "generated", id: New(), want: true},
		{name: "empty", id: "", want: false},
		{name: "tool call id", id: NewToolCallID(), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.id); got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}
