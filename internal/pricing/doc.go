// Package pricing reports what a race may cost before it starts.
//
// [Client] reads hourly server prices from the Hetzner Cloud pricing API.
// [Calculator] turns a candidate list into an [Exposure]: the hourly spend
// after each additive round and the worst case if every round runs to its
// timeout. [Formatter] renders it for the terminal.
package pricing
