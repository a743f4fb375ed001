// Package provisioning turns a user intent into a race outcome.
//
// Work runs as a sequence of phases sharing a [Context]:
//
//   - validation — queries the offer catalog and checks the intent, collecting
//     every violation instead of stopping at the first
//   - selection — resolves the target offer and builds the candidate set
//   - race — runs the candidates through a race.Coordinator
//
// [State] accumulates each phase's results for the next one and for the
// caller. The race engine itself lives in the race subpackage.
package provisioning
