// Package models provides data model definitions for the presence engine.
package models

import (
	"encoding/json"
	"fmt"
)

// PresenceState is a user's explicitly set liveness state.
type PresenceState string

const (
	PresenceOnline      PresenceState = "online"
	PresenceOffline     PresenceState = "offline"
	PresenceUnavailable PresenceState = "unavailable"
)

// ParsePresenceState decodes a stored or user-supplied presence string.
// Anything outside the three known states is an error; callers decide
// whether that means bad input or a corrupted row.
func ParsePresenceState(s string) (PresenceState, error) {
	switch PresenceState(s) {
	case PresenceOnline, PresenceOffline, PresenceUnavailable:
		return PresenceState(s), nil
	}
	return "", fmt.Errorf("unknown presence state: %q", s)
}

// String returns the wire representation of the state.
func (p PresenceState) String() string {
	return string(p)
}

// UnmarshalJSON validates the state while decoding request bodies.
func (p *PresenceState) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	state, err := ParsePresenceState(s)
	if err != nil {
		return err
	}
	*p = state
	return nil
}
