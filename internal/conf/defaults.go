package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/audiobridge/internal/logger"
)

// Default stream layout: 48 kHz stereo int16 on the default device.
const (
	DefaultDevice         = -1
	DefaultChannels       = 2
	DefaultFormat         = 16
	DefaultSampleRate     = 48000
	DefaultDriftThreshold = 3.0
	DefaultTelemetryAddr  = "127.0.0.1:8090"
)

// setDefaultConfig sets default values for every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("driver", DriverPortAudio)

	for _, dir := range []string{"input", "output"} {
		v.SetDefault(dir+".enabled", false)
		v.SetDefault(dir+".device", DefaultDevice)
		v.SetDefault(dir+".channels", DefaultChannels)
		v.SetDefault(dir+".format", DefaultFormat)
		v.SetDefault(dir+".samplerate", DefaultSampleRate)
		v.SetDefault(dir+".framesperbuffer", 0)
		v.SetDefault(dir+".maxqueue", 0)
		v.SetDefault(dir+".closeonerror", false)
	}

	v.SetDefault("engine.driftthreshold", DefaultDriftThreshold)
	v.SetDefault("engine.callbackwait", time.Duration(0))
	v.SetDefault("engine.stopsettle", time.Duration(0))
	v.SetDefault("engine.chunkduration", time.Duration(0))

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.max_size", logger.DefaultMaxSize)
	v.SetDefault("logging.file_output.max_age", logger.DefaultMaxAge)
	v.SetDefault("logging.file_output.max_rotated_files", logger.DefaultMaxRotatedFiles)
	v.SetDefault("logging.file_output.compress", logger.DefaultCompressLogs)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.listen", DefaultTelemetryAddr)
}
