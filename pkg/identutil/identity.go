// Package identutil validates and normalizes the identities recorded in
// sessions, the marker file, and the audit trail.
package identutil

import (
	"os"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/propsync/propsync/pkg/errclass"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// NormalizeUsername NFC-normalizes and validates a username. Usernames end
// up in file contents and audit rows, so separators and control characters
// are rejected outright.
func NormalizeUsername(name string) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))

	if name == "" {
		return "", errclass.ErrIdentityInvalid.WithMessage("username must not be empty")
	}
	if strings.ContainsAny(name, "/\\@") {
		return "", errclass.ErrIdentityInvalid.WithMessagef("username must not contain separators: %s", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", errclass.ErrIdentityInvalid.WithMessagef("username must not contain control characters: %q", name)
		}
	}
	if !usernameRegex.MatchString(name) {
		return "", errclass.ErrIdentityInvalid.WithMessagef("username must match [a-zA-Z0-9._-]+: %s", name)
	}
	return name, nil
}

// MachineID returns the local hostname, normalized the same way usernames
// are. Falls back to "unknown" when the hostname is unavailable, so a
// diagnostic field never blocks acquisition.
func MachineID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown"
	}
	host = norm.NFC.String(strings.TrimSpace(host))
	if !usernameRegex.MatchString(host) {
		return "unknown"
	}
	return host
}
