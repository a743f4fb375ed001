// Package sim provides a simulated GPU provider for dry runs and demos.
//
// Each candidate succeeds with a probability derived from its offer's
// reliability, verified offers getting a bonus, after a randomized boot
// time. Progress is reported on a fixed tick. A fixed seed makes the draws
// reproducible.
package sim
