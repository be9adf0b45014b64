package cmd

import (
	"fmt"
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

//nolint:gochecknoglobals // Cobra flags are typically global
var versionOutput string

type versionInfo struct {
	Release   string `json:"release"`
	GitCommit string `json:"gitCommit"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// fullVersion is the one-line version used in logs
func fullVersion() string {
	return fmt.Sprintf("%s-%s (%s/%s)", Release, GitCommit, GOOS, GOARCH)
}

//nolint:gochecknoglobals // Cobra commands are typically global
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the version of deltastage.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := checkOutput(versionOutput); err != nil {
			return err
		}

		if versionOutput == outputJSON {
			return writeJSON(cmd.OutOrStdout(), versionInfo{
				Release:   Release,
				GitCommit: GitCommit,
				OS:        GOOS,
				Arch:      GOARCH,
			})
		}

		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\nCommit: %s\nOS/Arch: %s/%s\n",
			Release, GitCommit, GOOS, GOARCH)

		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().StringVarP(&versionOutput, "output", "o", outputText, "output format (text, json)")
}
