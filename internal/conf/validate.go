package conf

import (
	"fmt"
	"net"
	"strings"

	"github.com/tphakala/audiobridge/internal/audiocore"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	switch settings.Driver {
	case DriverPortAudio, DriverMalgo:
	default:
		ve.Errors = append(ve.Errors, fmt.Sprintf("unknown driver %q, expected %q or %q", settings.Driver, DriverPortAudio, DriverMalgo))
	}

	if err := validateDirectionSettings("input", &settings.Input); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateDirectionSettings("output", &settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if settings.Input.Enabled && settings.Output.Enabled &&
		settings.Input.SampleRate != settings.Output.SampleRate {
		ve.Errors = append(ve.Errors, fmt.Sprintf("input and output sample rates differ: %d != %d",
			settings.Input.SampleRate, settings.Output.SampleRate))
	}

	if err := validateEngineSettings(&settings.Engine); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateTelemetrySettings(&settings.Telemetry); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateDirectionSettings checks the stream layout of an enabled direction.
// Disabled directions are not checked so a CLI flag can enable them later.
func validateDirectionSettings(name string, s *DirectionSettings) error {
	if !s.Enabled {
		return nil
	}
	format, err := audiocore.ParseSampleFormat(s.Format)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	p := audiocore.StreamParams{SampleRate: s.SampleRate, Channels: s.Channels, Format: format}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if s.FramesPerBuffer < 0 {
		return fmt.Errorf("%s: frames per buffer must not be negative", name)
	}
	if s.MaxQueue < 0 {
		return fmt.Errorf("%s: max queue must not be negative", name)
	}
	return nil
}

func validateEngineSettings(s *EngineSettings) error {
	if s.DriftThreshold < 0 {
		return fmt.Errorf("engine: drift threshold must not be negative")
	}
	if s.CallbackWait < 0 || s.StopSettle < 0 || s.ChunkDuration < 0 {
		return fmt.Errorf("engine: durations must not be negative")
	}
	return nil
}

func validateTelemetrySettings(s *TelemetrySettings) error {
	if !s.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		return fmt.Errorf("telemetry: invalid listen address %q: %w", s.Listen, err)
	}
	return nil
}
