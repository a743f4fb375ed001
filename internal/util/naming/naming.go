package naming

import (
	"fmt"
	"strings"
)

// Prefix starts every resource name.
const Prefix = "gpurace"

// maxHostname is the DNS label limit Hetzner enforces on server names.
const maxHostname = 63

// Server returns the server name for a candidate of a session.
func Server(session, candidateID string) string {
	name := fmt.Sprintf("%s-%s-%s", Prefix, Sanitize(session), Sanitize(candidateID))
	if len(name) > maxHostname {
		name = strings.TrimRight(name[:maxHostname], "-")
	}
	return name
}

// SSHKey returns the name of a session's ephemeral SSH key.
func SSHKey(session string) string {
	return fmt.Sprintf("%s-%s-key", Prefix, Sanitize(session))
}

// SessionPrefix returns the prefix shared by all resources of a session.
func SessionPrefix(session string) string {
	return fmt.Sprintf("%s-%s-", Prefix, Sanitize(session))
}

// Sanitize lowercases s and replaces every character that is not a letter,
// digit or hyphen with a hyphen. Runs of hyphens collapse to one.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
