// Package race runs a provisioning race: several offers are provisioned
// concurrently, the first to connect wins, and the rest are cancelled and
// torn down.
//
// State lives in a [Session], which changes only through its reducer
// methods. A [Coordinator] owns one event loop per race that is the single
// writer of the session; provisioning goroutines talk to it by sending
// updates over a channel. Rounds are additive: escalation launches the next
// batch while earlier candidates keep connecting.
//
// Cancellation is advisory. A cancelled candidate's provisioning call has
// its context cancelled and is then torn down through the [Provisioner], but
// the provider may already have incurred cost.
package race
