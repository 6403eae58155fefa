package devices

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gen2brain/malgo"
	"github.com/spf13/cobra"

	malgodev "github.com/leadme/daf/internal/audiodev/malgo"
	"github.com/leadme/daf/internal/headset"
)

type lister func(kind malgo.DeviceType) ([]malgodev.DeviceInfo, error)

// Command creates the devices command, which lists sound card capture and
// playback devices so they can be named in audio.capturedevice and
// audio.playbackdevice.
func Command() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio capture and playback devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printDevices(cmd.OutOrStdout(), malgodev.ListDevices, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the device list as JSON")

	return cmd
}

type deviceList struct {
	Capture  []malgodev.DeviceInfo `json:"capture"`
	Playback []malgodev.DeviceInfo `json:"playback"`
	Headset  headset.State         `json:"headset"`
}

func printDevices(w io.Writer, list lister, asJSON bool) error {
	capture, err := list(malgo.Capture)
	if err != nil {
		return fmt.Errorf("error listing capture devices: %w", err)
	}
	playback, err := list(malgo.Playback)
	if err != nil {
		return fmt.Errorf("error listing playback devices: %w", err)
	}

	names := make([]string, 0, len(playback))
	for _, d := range playback {
		names = append(names, d.Name)
	}
	devices := deviceList{Capture: capture, Playback: playback, Headset: headset.Classify(names)}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tINDEX\tDEFAULT\tNAME\tID")
	writeRows(tw, "capture", capture)
	writeRows(tw, "playback", playback)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nwired headphones: %t, bluetooth headset: %t\n", devices.Headset.Wired, devices.Headset.Bluetooth)
	return nil
}

func writeRows(w io.Writer, kind string, devices []malgodev.DeviceInfo) {
	for _, d := range devices {
		def := ""
		if d.IsDefault {
			def = "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", kind, d.Index, def, d.Name, d.ID)
	}
}
