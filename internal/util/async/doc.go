// Package async runs named tasks concurrently and reports every failure.
//
// The race engine uses it to tear down losing candidates in parallel, and
// the cleanup path uses the bounded variant to delete leftover servers
// without flooding the provider API.
package async
