package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/audiobridge/cmd/config"
	"github.com/tphakala/audiobridge/cmd/devices"
	"github.com/tphakala/audiobridge/cmd/loopback"
	"github.com/tphakala/audiobridge/cmd/play"
	"github.com/tphakala/audiobridge/cmd/record"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/logger"
)

// RootCommand creates and returns the root command. Settings are loaded
// before any subcommand runs and shared with it through settings.
func RootCommand() *cobra.Command {
	settings := &conf.Settings{}
	var configFile string
	var centralLogger *logger.CentralLogger

	rootCmd := &cobra.Command{
		Use:           "audiobridge",
		Short:         "Stream audio between files and sound devices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		devices.Command(settings),
		play.Command(settings),
		record.Command(settings),
		loopback.Command(settings),
		config.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		*settings = *loaded

		cl, err := initLogging(settings)
		if err != nil {
			return err
		}
		centralLogger = cl
		return nil
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return centralLogger.Close()
	}

	return rootCmd
}

// initLogging installs the central logger. --debug raises the console to
// debug level.
func initLogging(settings *conf.Settings) (*logger.CentralLogger, error) {
	cfg := settings.Logging
	if settings.Debug {
		cfg.DefaultLevel = "debug"
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = "debug"
			cfg.Console = &console
		}
	}

	cl, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return nil, err
	}
	logger.SetGlobal(cl)
	return cl, nil
}

// setupFlags defines flags that are global to the command line interface
// and binds them to their configuration keys.
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to the config file (default: search ./config.yaml, ~/.config/audiobridge, /etc/audiobridge)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("driver", conf.DriverPortAudio, "Audio driver: portaudio or malgo")
	flags.Bool("telemetry", false, "Serve Prometheus metrics and stream status while streaming")
	flags.String("listen", conf.DefaultTelemetryAddr, "Listen address of the telemetry endpoint")

	bindings := map[string]string{
		"debug":             "debug",
		"driver":            "driver",
		"telemetry.enabled": "telemetry",
		"telemetry.listen":  "listen",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
