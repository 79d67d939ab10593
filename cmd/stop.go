package cmd

import (
	"fmt"

	"kcdev/internal/process"

	"github.com/spf13/cobra"
)

// staleProcessPattern matches Keycloak dev-mode launchers regardless of the
// platform script that started them.
const staleProcessPattern = `kc\.(sh|bat).*start-dev`

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Terminate stray Keycloak development servers",
	Long: `Finds Keycloak dev-mode processes left behind by interrupted runs and
terminates them. Servers managed by a live 'kcdev up' shut down with that
command instead.`,
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	count := process.CleanupStale(staleProcessPattern)
	if count == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No stray Keycloak processes found")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Terminated %d stray Keycloak process(es)\n", count)
	return nil
}
