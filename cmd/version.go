package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/fbmirror/internal/version"
)

// CreateVersionCmd creates the version command.
func CreateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			fmt.Fprintln(c.OutOrStdout(), version.Get().String())
		},
	}
}
