package devices

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiobridge/internal/audioio"
	"github.com/tphakala/audiobridge/internal/bridge"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/logger"
)

// Command creates the command that lists audio devices.
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio devices",
		Long:  "List the input and output devices of the selected driver. Device indexes are the values accepted by --device.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			drv, err := bridge.NewDriver(settings.Driver, logger.Global().Module("devices"))
			if err != nil {
				return err
			}
			list, err := drv.Devices()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			return writeTable(cmd.OutOrStdout(), list)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print devices as JSON")
	return cmd
}

func writeJSON(w io.Writer, list []audioio.DeviceInfo) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

func writeTable(w io.Writer, list []audioio.DeviceInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tHOST API\tIN\tOUT\tRATE\tDEFAULT")
	for _, d := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%.0f\t%s\n",
			d.Index, d.Name, d.HostAPI, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, defaults(d))
	}
	return tw.Flush()
}

func defaults(d audioio.DeviceInfo) string {
	switch {
	case d.DefaultInput && d.DefaultOutput:
		return "in,out"
	case d.DefaultInput:
		return "in"
	case d.DefaultOutput:
		return "out"
	}
	return ""
}
