// Package eventid provides unit tests for event ID generation and validation.
package eventid

import (
	"strings"
	"testing"
)

// TestNew tests that New() generates well-formed, unique event IDs.
func TestNew(t *testing.T) {
	id := New("meridian.test")

	if id == "" {
		t.Fatal("Expected non-empty event ID")
	}
	if !strings.HasPrefix(id, "$") {
		t.Errorf("Event ID should start with $: %q", id)
	}
	if !strings.HasSuffix(id, ":meridian.test") {
		t.Errorf("Event ID should end with the domain: %q", id)
	}
	if !IsValid(id) {
		t.Errorf("Generated event ID should validate: %q", id)
	}
}

// TestNewUniqueness tests that generated IDs never collide.
func TestNewUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New("meridian.test")
		if seen[id] {
			t.Fatalf("Duplicate event ID generated: %q", id)
		}
		seen[id] = true
	}
}

func TestDomain(t *testing.T) {
	id := New("chat.example.org")
	domain, err := Domain(id)
	if err != nil {
		t.Fatalf("Domain() failed: %v", err)
	}
	if domain != "chat.example.org" {
		t.Errorf("Expected chat.example.org, got %q", domain)
	}

	if _, err := Domain("not-an-event-id"); err == nil {
		t.Error("Domain() should reject malformed IDs")
	}
}

func TestValidate(t *testing.T) {
	invalid := []string{
		"",
		"$:meridian.test",
		"abcdef:meridian.test",
		"$4f5c1140-9d6d-4875-a6e5-95a3e6a9d6a1",
		"$not-a-uuid:meridian.test",
	}
	for _, id := range invalid {
		if err := Validate(id); err == nil {
			t.Errorf("Validate(%q) should fail", id)
		}
	}

	if err := Validate("$4f5c1140-9d6d-4875-a6e5-95a3e6a9d6a1:meridian.test"); err != nil {
		t.Errorf("Validate rejected a well-formed ID: %v", err)
	}
	if err := Validate("$4f5c1140-9d6d-4875-a6e5-95a3e6a9d6a1:localhost:8448"); err != nil {
		t.Errorf("Validate rejected a domain with port: %v", err)
	}
}
