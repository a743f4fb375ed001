// Package hcloud races real machines on Hetzner Cloud.
//
// [Provider] is both an offer catalog and a race provisioner. Every
// server type and location pair becomes one offer with ID
// "{type}@{location}". Provisioning a candidate:
//
//  1. uploads the session's ephemeral SSH key (once per session),
//  2. creates the server with session and candidate labels,
//  3. follows the create action's progress,
//  4. waits for port 22 and runs an SSH probe.
//
// Progress is reported as 5, 15-60 (create action), 70 (server running),
// 85 (port open) and 100 (probe passed).
//
// Losers are deleted by name. [Provider.CleanupSession] removes anything
// still labelled with a session, e.g. after the CLI was killed mid race.
package hcloud
