// Package conf provides configuration management for audiobridge.
package conf

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
)

const componentConfig = "config"

// Supported driver names.
const (
	DriverPortAudio = "portaudio"
	DriverMalgo     = "malgo"
)

// DirectionSettings configures one direction of a stream.
type DirectionSettings struct {
	Enabled         bool `yaml:"enabled" mapstructure:"enabled"`
	Device          int  `yaml:"device" mapstructure:"device"`                   // device index, -1 for the default device
	Channels        int  `yaml:"channels" mapstructure:"channels"`
	Format          int  `yaml:"format" mapstructure:"format"`                   // 1 = float32, or bit depth 8, 16, 24, 32
	SampleRate      int  `yaml:"samplerate" mapstructure:"samplerate"`
	FramesPerBuffer int  `yaml:"framesperbuffer" mapstructure:"framesperbuffer"` // 0 lets the driver choose
	MaxQueue        int  `yaml:"maxqueue" mapstructure:"maxqueue"`               // queued chunks, 0 is unbounded
	CloseOnError    bool `yaml:"closeonerror" mapstructure:"closeonerror"`
}

// EngineSettings tunes the real-time callback.
type EngineSettings struct {
	DriftThreshold float64       `yaml:"driftthreshold" mapstructure:"driftthreshold"` // callback periods
	CallbackWait   time.Duration `yaml:"callbackwait" mapstructure:"callbackwait"`     // 0 polls
	StopSettle     time.Duration `yaml:"stopsettle" mapstructure:"stopsettle"`         // 0 derives it from the callback period
	ChunkDuration  time.Duration `yaml:"chunkduration" mapstructure:"chunkduration"`   // playback chunk length, 0 derives it
}

// TelemetrySettings contains settings for the metrics endpoint.
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Listen  string `yaml:"listen" mapstructure:"listen"`
}

// Settings contains all configuration options for audiobridge.
type Settings struct {
	Debug     bool                 `yaml:"debug" mapstructure:"debug"`
	Driver    string               `yaml:"driver" mapstructure:"driver"`
	Input     DirectionSettings    `yaml:"input" mapstructure:"input"`
	Output    DirectionSettings    `yaml:"output" mapstructure:"output"`
	Engine    EngineSettings       `yaml:"engine" mapstructure:"engine"`
	Logging   logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Telemetry TelemetrySettings    `yaml:"telemetry" mapstructure:"telemetry"`
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads defaults, the configuration file and environment variables
// from the global viper instance, which also carries bound CLI flags.
// An empty configFile searches the default config paths; a missing file
// there is not an error.
func Load(configFile string) (*Settings, error) {
	settings, err := LoadWith(viper.GetViper(), configFile)
	if err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

// LoadWith is Load on a caller-owned viper instance.
func LoadWith(v *viper.Viper, configFile string) (*Settings, error) {
	if err := initViper(v, configFile); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component(componentConfig).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Component(componentConfig).
			Category(errors.CategoryValidation).
			Build()
	}

	return settings, nil
}

// initViper sets defaults, environment bindings and reads the config file.
func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	if err := configureEnvironmentVariables(v); err != nil {
		GetLogger().Warn("environment configuration", logger.Error(err))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, path := range GetDefaultConfigPaths() {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return errors.New(err).
			Component(componentConfig).
			Category(errors.CategoryConfiguration).
			Context("operation", "read_config").
			Context("file", configFile).
			Build()
	}

	GetLogger().Debug("config file loaded", logger.String("path", v.ConfigFileUsed()))
	return nil
}

// GetSettings returns the settings from the last successful Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// YAML renders the settings as a config file.
func (s *Settings) YAML() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, errors.New(err).
			Component(componentConfig).
			Category(errors.CategoryConfiguration).
			Context("operation", "marshal_yaml").
			Build()
	}
	return data, nil
}

// SaveYAMLConfig writes settings to configPath. The file is replaced
// atomically; comments in an existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	data, err := settings.YAML()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return errors.New(err).
			Component(componentConfig).
			Category(errors.CategoryFileIO).
			Context("operation", "create_config_dir").
			Build()
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return errors.New(err).
			Component(componentConfig).
			Category(errors.CategoryFileIO).
			Context("operation", "create_temp_file").
			Build()
	}
	tempPath := tempFile.Name()
	defer func() { _ = os.Remove(tempPath) }()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return errors.New(err).
			Component(componentConfig).
			Category(errors.CategoryFileIO).
			Context("operation", "write_temp_file").
			Build()
	}
	if err := tempFile.Close(); err != nil {
		return errors.New(err).
			Component(componentConfig).
			Category(errors.CategoryFileIO).
			Context("operation", "close_temp_file").
			Build()
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		return errors.New(err).
			Component(componentConfig).
			Category(errors.CategoryFileIO).
			Context("operation", "rename_config").
			Build()
	}
	return nil
}

// GetLogger returns the config package logger scoped to the config module.
// The logger is fetched from the global logger each time so it follows a
// central logger installed after package init.
func GetLogger() logger.Logger {
	return logger.Global().Module(componentConfig)
}
