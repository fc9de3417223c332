package loopback

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiobridge/internal/bridge"
	"github.com/tphakala/audiobridge/internal/conf"
)

// Command creates the command that forwards input to output.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		inDevice  int
		outDevice int
		duration  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "loopback",
		Short: "Forward captured input to an output device",
		Long:  "Open a duplex stream and play captured input back on the output device. Input and output must share channel count and sample format.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("in-device") {
				settings.Input.Device = inDevice
			}
			if cmd.Flags().Changed("out-device") {
				settings.Output.Device = outDevice
			}

			b, err := bridge.New(settings)
			if err != nil {
				return err
			}
			a, err := b.Open(settings.Input.Options(), settings.Output.Options())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			return b.Run(ctx, a, bridge.Loopback())
		},
	}

	cmd.Flags().IntVar(&inDevice, "in-device", -1, "Input device index (-1 for the default device)")
	cmd.Flags().IntVar(&outDevice, "out-device", -1, "Output device index (-1 for the default device)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")

	return cmd
}
