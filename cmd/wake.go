package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/fbmirror/internal/logging"
)

// CreateWakeCmd creates the wake command.
func CreateWakeCmd(settings func() Settings) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "wake",
		Short: "Turn the device screen on",
		Long: `Discovers power key candidates from the input device names and key layouts, ` +
			`then presses each until the backlight lights. Does nothing when the screen is already on.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			logger := logging.GetLogger("wake")
			st, err := NewStack(settings())
			if err != nil {
				return err
			}
			if err := waitForDevice(st.Bridge, timeout, logger); err != nil {
				return err
			}

			level, err := st.Power.Brightness()
			if err != nil {
				return err
			}
			if level > 0 {
				fmt.Fprintf(c.OutOrStdout(), "Screen already on (backlight %d)\n", level)
				return nil
			}

			if err := st.Power.Discover(); err != nil {
				return err
			}
			level, err = st.Power.Wake()
			if err != nil {
				return err
			}
			for _, k := range st.Power.Candidates() {
				if k.WakeSucceeded {
					fmt.Fprintf(c.OutOrStdout(), "Screen on via %s (event%d, code %d), backlight %d\n",
						k.KeyLayoutName, k.InputDeviceIndex, k.PowerKeyCode, level)
					return nil
				}
			}
			fmt.Fprintf(c.OutOrStdout(), "Screen on, backlight %d\n", level)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the device")
	return cmd
}
