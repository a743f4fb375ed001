// Package naming derives Hetzner Cloud resource names for race sessions.
//
// Every name starts with "gpurace-{session}" so that a session's leftovers
// can be found by prefix as well as by label. Candidate IDs are folded into
// valid hostnames.
package naming
