package play

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiobridge/internal/bridge"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/logger"
	"github.com/tphakala/audiobridge/internal/media"
)

// Command creates the command that plays an audio file.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		device int
		frames int
		chunk  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "play [file]",
		Short: "Play a WAV, MP3 or Ogg Vorbis file",
		Long:  "Play an audio file on an output device. The stream is opened at the file's sample rate, channel count and sample format.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("device") {
				settings.Output.Device = device
			}
			if cmd.Flags().Changed("frames") {
				settings.Output.FramesPerBuffer = frames
			}
			if !cmd.Flags().Changed("chunk") {
				chunk = settings.Engine.ChunkDuration
			}

			src, err := media.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			b, err := bridge.New(settings)
			if err != nil {
				return err
			}
			a, err := b.Open(nil, bridge.PlaybackOptions(settings.Output.Options(), src))
			if err != nil {
				return err
			}

			p := src.Params()
			logger.Global().Module("play").Info("playing file",
				logger.String("path", args[0]),
				logger.Int("sample_rate", p.SampleRate),
				logger.Int("channels", p.Channels),
				logger.String("format", p.Format.String()))

			return b.Run(cmd.Context(), a, bridge.Play(src, chunk))
		},
	}

	cmd.Flags().IntVar(&device, "device", -1, "Output device index (-1 for the default device)")
	cmd.Flags().IntVar(&frames, "frames", 0, "Frames per buffer (0 lets the driver choose)")
	cmd.Flags().DurationVar(&chunk, "chunk", 0, "Length of queued playback chunks (0 uses one callback period)")

	return cmd
}
