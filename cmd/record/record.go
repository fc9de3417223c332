package record

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiobridge/internal/bridge"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/logger"
	"github.com/tphakala/audiobridge/internal/media"
)

// Command creates the command that records to a WAV file.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		device   int
		channels int
		format   int
		rate     int
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "record [file.wav]",
		Short: "Record from an input device to a WAV file",
		Long:  "Record from an input device until interrupted or until --duration has elapsed. Float32 input cannot be stored; use an integer --format.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("device") {
				settings.Input.Device = device
			}
			if flags.Changed("channels") {
				settings.Input.Channels = channels
			}
			if flags.Changed("format") {
				settings.Input.Format = format
			}
			if flags.Changed("rate") {
				settings.Input.SampleRate = rate
			}

			b, err := bridge.New(settings)
			if err != nil {
				return err
			}
			a, err := b.Open(settings.Input.Options(), nil)
			if err != nil {
				return err
			}

			sink, err := media.CreateWAV(args[0], *a.InputParams())
			if err != nil {
				return err
			}

			logger.Global().Module("record").Info("recording",
				logger.String("path", args[0]),
				logger.Duration("duration", duration))

			runErr := b.Run(cmd.Context(), a, bridge.Record(sink, duration))
			if err := sink.Close(); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}

	cmd.Flags().IntVar(&device, "device", -1, "Input device index (-1 for the default device)")
	cmd.Flags().IntVar(&channels, "channels", conf.DefaultChannels, "Channel count")
	cmd.Flags().IntVar(&format, "format", conf.DefaultFormat, "Sample format: 8, 16, 24 or 32 bit")
	cmd.Flags().IntVar(&rate, "rate", conf.DefaultSampleRate, "Sample rate in Hz")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 records until interrupted)")

	return cmd
}
