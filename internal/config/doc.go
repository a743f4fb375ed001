// Package config holds the user intent for a race and the environment-driven
// engine settings.
//
// An [Intent] is read from a gpurace.yaml file and is never mutated once a
// race begins. [Settings] are loaded from GPURACE_* environment variables,
// falling back to defaults when a variable is unset or malformed.
package config
