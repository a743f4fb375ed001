// Package keygen generates the throwaway SSH key pair a race session uses
// to reach its candidates.
package keygen
