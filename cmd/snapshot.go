package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/fbmirror/internal/logging"
	"github.com/smazurov/fbmirror/internal/snapshot"
)

// CreateSnapshotCmd creates the snapshot command.
func CreateSnapshotCmd(settings func() Settings) *cobra.Command {
	var timeout time.Duration
	var width int

	cmd := &cobra.Command{
		Use:   "snapshot [file]",
		Short: "Save one screen capture to an image file",
		Long:  `Captures a single frame and writes it as PNG, or JPEG when the file name ends in .jpg or .jpeg.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			path := "screen.png"
			if len(args) == 1 {
				path = args[0]
			}

			st, err := NewStack(settings())
			if err != nil {
				return err
			}
			if err := waitForDevice(st.Bridge, timeout, logging.GetLogger("snapshot")); err != nil {
				return err
			}
			header, frame, err := captureFrame(st)
			if err != nil {
				return err
			}
			if err := snapshot.Save(path, frame, width); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			fmt.Fprintf(c.OutOrStdout(), "Wrote %s (%dx%d %s)\n", path, header.Width, header.Height, header.Format)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the device")
	cmd.Flags().IntVar(&width, "width", 0, "Maximum output width, 0 keeps the native size")
	return cmd
}
