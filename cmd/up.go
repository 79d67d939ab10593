package cmd

import (
	"kcdev/internal/app"

	"github.com/spf13/cobra"
)

var (
	upFlags         configFlags
	upRealmFile     string
	upWatch         bool
	upAdminUser     string
	upAdminPassword string
	upTimeout       int
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Install, start and supervise a Keycloak development server",
	Long: `Installs the configured Keycloak version if needed, starts it on a free
port pair (or the pinned one), optionally imports a realm definition, waits
until the server answers its readiness probes, prints the connection details
and then blocks until Ctrl+C. On shutdown the server is terminated and the
distribution directory is rolled back to its pre-run state.`,
	RunE: runUp,
}

func init() {
	upFlags.register(upCmd)
	upCmd.Flags().StringVar(&upRealmFile, "realm", "", "Realm definition file (YAML or JSON) imported on startup")
	upCmd.Flags().BoolVar(&upWatch, "watch", false, "Re-import the realm file whenever it changes")
	upCmd.Flags().StringVar(&upAdminUser, "admin-user", "", "Bootstrap admin username")
	upCmd.Flags().StringVar(&upAdminPassword, "admin-password", "", "Bootstrap admin password")
	upCmd.Flags().IntVar(&upTimeout, "timeout", 0, "Readiness wait budget in seconds")

	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	cfg, err := upFlags.resolve()
	if err != nil {
		return err
	}
	if upRealmFile != "" {
		cfg.RealmFile = upRealmFile
	}
	if upAdminUser != "" {
		cfg.AdminUser = upAdminUser
	}
	if upAdminPassword != "" {
		cfg.AdminPassword = upAdminPassword
	}
	if upTimeout > 0 {
		cfg.StartTimeoutSeconds = upTimeout
	}

	return app.New(cfg, flagQuiet, upWatch).Run(cmd.Context())
}
