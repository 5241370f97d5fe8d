package cli

import (
	"github.com/spf13/cobra"

	"github.com/sievekit/sieve/pkg/recorder"
	"github.com/sievekit/sieve/pkg/scanners"
)

func newScannersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scanners",
		Short: "List available scanners",
		Run: func(cmd *cobra.Command, args []string) {
			for _, sc := range scanners.Builtin(recorder.CarveNone) {
				info := sc.Info()
				state := "enabled"
				if info.Flags.DefaultDisabled {
					state = "disabled"
				}
				cmd.Printf("%-12s %-8s v%-6s %s\n", info.Name, state, info.Version, info.Description)
			}
		},
	}
}
