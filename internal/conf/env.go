package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. AUDIOBRIDGE_DRIVER.
const EnvPrefix = "AUDIOBRIDGE"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the environment variables validated before use.
// Every other key is still reachable through AutomaticEnv.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"driver", EnvPrefix + "_DRIVER", validateEnvDriver},
		{"debug", EnvPrefix + "_DEBUG", validateEnvBool},
		{"input.device", EnvPrefix + "_INPUT_DEVICE", validateEnvInt},
		{"input.samplerate", EnvPrefix + "_INPUT_SAMPLERATE", validateEnvPositiveInt},
		{"output.device", EnvPrefix + "_OUTPUT_DEVICE", validateEnvInt},
		{"output.samplerate", EnvPrefix + "_OUTPUT_SAMPLERATE", validateEnvPositiveInt},
		{"engine.driftthreshold", EnvPrefix + "_ENGINE_DRIFTTHRESHOLD", validateEnvFloat},
		{"telemetry.enabled", EnvPrefix + "_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.listen", EnvPrefix + "_TELEMETRY_LISTEN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("must be a boolean")
	}
	return nil
}

func validateEnvInt(value string) error {
	if _, err := strconv.Atoi(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("must be an integer")
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validateEnvFloat(value string) error {
	if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
		return fmt.Errorf("must be a number")
	}
	return nil
}

func validateEnvDriver(value string) error {
	switch strings.TrimSpace(value) {
	case DriverPortAudio, DriverMalgo:
		return nil
	default:
		return fmt.Errorf("must be %q or %q", DriverPortAudio, DriverMalgo)
	}
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return bindEnvVars(v)
}
