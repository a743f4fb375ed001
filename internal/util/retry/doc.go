// Package retry retries transient cloud API failures with exponential
// backoff.
//
// [Do] stops early on errors wrapped with [Fatal] and on context
// cancellation, so a cancelled race candidate never keeps hammering the
// provider.
package retry
