package cmd

import (
	"fmt"
	"time"

	"kcdev/internal/install"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

var installFlags configFlags

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download and cache a Keycloak distribution",
	Long: `Downloads the configured Keycloak version into the shared install cache
and extracts it, so a later 'kcdev up' can start immediately. Already
installed versions are left untouched.`,
	RunE: runInstall,
}

func init() {
	installFlags.register(installCmd)
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, err := installFlags.resolve()
	if err != nil {
		return err
	}

	installer := install.New(cfg.InstallDir)
	if installer.IsInstalled(cfg.Version) {
		fmt.Fprintf(cmd.OutOrStdout(), "Keycloak %s is already installed at %s\n",
			cfg.Version, installer.DistributionDir(cfg.Version))
		return nil
	}

	var s *spinner.Spinner
	if !flagQuiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" Installing Keycloak %s...", cfg.Version)
		s.Start()
	}

	err = installer.EnsureInstalled(cmd.Context(), cfg.Version)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Keycloak %s installed at %s\n",
		cfg.Version, installer.DistributionDir(cfg.Version))
	return nil
}
