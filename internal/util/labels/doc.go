// Package labels builds the Hetzner Cloud labels that tie resources to a
// race session and candidate.
//
// Keys use the gpurace.io prefix. Cleanup selects on [KeySession].
package labels
