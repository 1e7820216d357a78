package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Build-time variables for version info
var (
	// Release is the current release version
	Release = "dev"
	// GitCommit is the git commit hash
	GitCommit = "none"
	// GOOS is the operating system
	GOOS = runtime.GOOS
	// GOARCH is the architecture
	GOARCH = runtime.GOARCH
)

//nolint:gochecknoglobals // Cobra flags
var versionShort bool

//nolint:gochecknoglobals // Cobra commands are typically global
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print querycat build information",
	Long:  `Print the release, commit, Go toolchain and platform querycat was built with. --short prints the release only.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		writeVersion(cmd.OutOrStdout(), versionShort)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print the release only")
	rootCmd.AddCommand(versionCmd)
}

func writeVersion(w io.Writer, short bool) {
	if short {
		_, _ = fmt.Fprintln(w, Release)
		return
	}

	_, _ = fmt.Fprintf(w, "querycat %s\ncommit:  %s\ngo:      %s\nplatform: %s/%s\n",
		Release, GitCommit, runtime.Version(), GOOS, GOARCH)
}
