// Package cli implements the sieve command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/sievekit/sieve/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "sieve",
	Short: "Sieve - recursive feature extraction for disk images",
	Long: `Sieve scans raw evidence (disk images, memory dumps, packet
captures) for forensic features: it cuts the input into overlapping
pages, runs every enabled scanner over each page, and recursively
re-scans whatever the decoder scanners manage to inflate. Features are
written as tab-separated files or a DuckDB report, with histograms and
optional carving of decoded streams.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newScannersCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("Sieve version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
