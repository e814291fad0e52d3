package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geoffjay/taskfabricd/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of taskctl",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version.VERSION)
	},
}
