package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Settings holds the tunable engine parameters.
// These values can be customized via environment variables.
type Settings struct {
	MinRaceSize       int             // Lower bound on candidates per race
	MaxRaceSize       int             // Upper bound on candidates per race
	BatchSize         int             // Candidates launched per round
	MaxRounds         int             // Escalation ceiling
	RoundTimeout      time.Duration   // Time a round gets before escalation
	TeardownTimeout   time.Duration   // Budget for tearing down one loser
	LaunchRate        float64         // Provision calls per second, 0 for unlimited
	LaunchBurst       int             // Launch burst when LaunchRate is set
	MinBalance        decimal.Decimal // Minimum account balance to start a race
	ServerCreate      time.Duration   // Timeout for server creation actions
	PortWait          time.Duration   // Timeout for waiting on the probe port
	RetryMaxAttempts  int             // Maximum number of retry attempts
	RetryInitialDelay time.Duration   // Initial delay between retries
}

// DefaultMinBalance is the balance floor in dollars.
var DefaultMinBalance = decimal.RequireFromString("0.10")

// LoadSettings loads settings from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - GPURACE_MIN_RACE_SIZE (default: 5)
//   - GPURACE_MAX_RACE_SIZE (default: 15)
//   - GPURACE_BATCH_SIZE (default: 5)
//   - GPURACE_MAX_ROUNDS (default: 3)
//   - GPURACE_ROUND_TIMEOUT (default: 90s)
//   - GPURACE_TEARDOWN_TIMEOUT (default: 2m)
//   - GPURACE_LAUNCH_RATE (default: 0)
//   - GPURACE_LAUNCH_BURST (default: 5)
//   - GPURACE_MIN_BALANCE (default: 0.10)
//   - GPURACE_SERVER_CREATE_TIMEOUT (default: 10m)
//   - GPURACE_PORT_WAIT_TIMEOUT (default: 5m)
//   - GPURACE_RETRY_MAX_ATTEMPTS (default: 5)
//   - GPURACE_RETRY_INITIAL_DELAY (default: 1s)
func LoadSettings() *Settings {
	return &Settings{
		MinRaceSize:       parseInt("GPURACE_MIN_RACE_SIZE", 5),
		MaxRaceSize:       parseInt("GPURACE_MAX_RACE_SIZE", 15),
		BatchSize:         parseInt("GPURACE_BATCH_SIZE", 5),
		MaxRounds:         parseInt("GPURACE_MAX_ROUNDS", 3),
		RoundTimeout:      parseDuration("GPURACE_ROUND_TIMEOUT", 90*time.Second),
		TeardownTimeout:   parseDuration("GPURACE_TEARDOWN_TIMEOUT", 2*time.Minute),
		LaunchRate:        parseFloat("GPURACE_LAUNCH_RATE", 0),
		LaunchBurst:       parseInt("GPURACE_LAUNCH_BURST", 5),
		MinBalance:        parseDecimal("GPURACE_MIN_BALANCE", DefaultMinBalance),
		ServerCreate:      parseDuration("GPURACE_SERVER_CREATE_TIMEOUT", 10*time.Minute),
		PortWait:          parseDuration("GPURACE_PORT_WAIT_TIMEOUT", 5*time.Minute),
		RetryMaxAttempts:  parseInt("GPURACE_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("GPURACE_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}

func parseFloat(envVar string, defaultVal float64) float64 {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f < 0 {
		return defaultVal
	}

	return f
}

func parseDecimal(envVar string, defaultVal decimal.Decimal) decimal.Decimal {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := decimal.NewFromString(val)
	if err != nil {
		return defaultVal
	}

	return d
}
