package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultIntentFilename is the default intent filename.
const DefaultIntentFilename = "gpurace.yaml"

// LoadIntent loads an intent from a file and applies defaults.
// It does not validate; validation needs the catalog and runs as a
// provisioning phase.
func LoadIntent(path string) (*Intent, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read intent file: %w", err)
	}

	return LoadIntentFromBytes(data)
}

// LoadIntentFromBytes parses an intent from YAML and applies defaults.
func LoadIntentFromBytes(data []byte) (*Intent, error) {
	var intent Intent
	if err := yaml.Unmarshal(data, &intent); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	intent.ApplyDefaults()
	return &intent, nil
}

// FindIntentFile searches for an intent file in common locations.
// It checks: current directory, then walks up to find gpurace.yaml.
func FindIntentFile() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return findIntentFileFrom(cwd)
}

func findIntentFileFrom(start string) (string, error) {
	dir := start
	for {
		path := filepath.Join(dir, DefaultIntentFilename)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("intent file %s not found", DefaultIntentFilename)
}

// SaveIntent writes an intent to a file.
func SaveIntent(intent *Intent, path string) error {
	data, err := yaml.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write intent file: %w", err)
	}

	return nil
}
