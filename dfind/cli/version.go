package cli

import (
	"fmt"
	"runtime"

	internal "github.com/ZanzyTHEbar/dupe-finder/dfind"

	"github.com/spf13/cobra"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dfind version",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s/%s)\n", internal.DefaultAppName, Version, runtime.GOOS, runtime.GOARCH)
		},
	}
}
