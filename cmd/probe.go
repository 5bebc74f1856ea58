package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/fbmirror/internal/device"
	"github.com/smazurov/fbmirror/internal/logging"
)

// ProbeResult is what the probe command reports.
type ProbeResult struct {
	Serial     string                 `json:"serial,omitempty"`
	Width      int                    `json:"width"`
	Height     int                    `json:"height"`
	Format     string                 `json:"format"`
	Variant    string                 `json:"variant"`
	Compressed bool                   `json:"compressed"`
	Brightness int                    `json:"brightness"`
	PowerKeys  []device.DeviceKeyInfo `json:"power_keys"`
}

// CreateProbeCmd creates the probe command.
func CreateProbeCmd(settings func() Settings) *cobra.Command {
	var timeout time.Duration
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Inspect the attached device",
		Long: `Waits for the device, then reports capture geometry and pixel format, ` +
			`the input protocol variant, backlight level and power key candidates.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			st, err := NewStack(settings())
			if err != nil {
				return err
			}
			res, err := probe(st, settings().Serial, timeout)
			if err != nil {
				return err
			}
			return printProbe(c.OutOrStdout(), res, asJSON)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the device")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func probe(st *Stack, serial string, timeout time.Duration) (*ProbeResult, error) {
	logger := logging.GetLogger("probe")
	if err := waitForDevice(st.Bridge, timeout, logger); err != nil {
		return nil, err
	}

	variant, err := device.DetectVariant(st.Bridge)
	if err != nil {
		return nil, err
	}
	header, _, err := captureFrame(st)
	if err != nil {
		return nil, err
	}
	if err := st.Power.Discover(); err != nil {
		return nil, err
	}
	brightness, err := st.Power.Brightness()
	if err != nil {
		return nil, err
	}

	return &ProbeResult{
		Serial:     serial,
		Width:      header.Width,
		Height:     header.Height,
		Format:     header.Format.String(),
		Variant:    variant.String(),
		Compressed: st.Decoder.Compressed(),
		Brightness: brightness,
		PowerKeys:  st.Power.Candidates(),
	}, nil
}

func printProbe(w io.Writer, res *ProbeResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(w, "Screen:      %dx%d %s\n", res.Width, res.Height, res.Format)
	fmt.Fprintf(w, "Input:       %s\n", res.Variant)
	fmt.Fprintf(w, "Compressed:  %t\n", res.Compressed)
	fmt.Fprintf(w, "Backlight:   %d\n", res.Brightness)
	if len(res.PowerKeys) == 0 {
		fmt.Fprintln(w, "Power keys:  none")
		return nil
	}
	fmt.Fprintln(w, "Power keys:")
	for _, k := range res.PowerKeys {
		fmt.Fprintf(w, "  event%d  %-24s code %d\n", k.InputDeviceIndex, k.KeyLayoutName, k.PowerKeyCode)
	}
	return nil
}
