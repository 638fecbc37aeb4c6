// Package eventid provides generation and validation of presence event
// identifiers. An event ID has the form $<uuid>:<domain>, where the domain
// is the homeserver the event originated on.
package eventid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Event ID format: $xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx:domain
var eventIDRegex = regexp.MustCompile(`^\$[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}:[0-9A-Za-z.\-]+(:[0-9]+)?$`)

// New generates a new event ID scoped to the given homeserver domain.
func New(domain string) string {
	return fmt.Sprintf("$%s:%s", uuid.New(), domain)
}

// Domain extracts the homeserver domain from an event ID.
func Domain(id string) (string, error) {
	if err := Validate(id); err != nil {
		return "", err
	}
	idx := strings.Index(id, ":")
	return id[idx+1:], nil
}

// IsValid checks whether a string is a well-formed event ID.
func IsValid(id string) bool {
	return eventIDRegex.MatchString(id)
}

// Validate returns an error if the string is not a well-formed event ID.
func Validate(id string) error {
	if !IsValid(id) {
		return fmt.Errorf("invalid event ID format: %q", id)
	}
	return nil
}
