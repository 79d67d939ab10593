package cmd

import (
	"context"
	"fmt"

	"kcdev/internal/admin"
	"kcdev/internal/console"
	"kcdev/internal/keycloak"

	"github.com/spf13/cobra"
)

var (
	consoleFlags configFlags
	consoleRealm string
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open an interactive console against a running Keycloak server",
	Long: `Connects to the Keycloak server on the configured ports and opens a
line-based console for common admin operations: creating and deleting users,
looking up user IDs, obtaining tokens, and importing or deleting realms.`,
	RunE: runConsole,
}

func init() {
	consoleFlags.register(consoleCmd)
	consoleCmd.Flags().StringVar(&consoleRealm, "realm", "master", "Realm the admin operations target")

	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := consoleFlags.resolve()
	if err != nil {
		return err
	}

	baseURL := fmt.Sprintf("http://localhost:%d", cfg.HTTPPort)
	adminClient := admin.New(baseURL, consoleRealm, cfg.AdminUser, cfg.AdminPassword)

	status := func(ctx context.Context) string {
		if keycloak.CheckHealth(ctx, cfg.ManagementPort) {
			return fmt.Sprintf("Keycloak is ready at %s (realm %q)", baseURL, consoleRealm)
		}
		return fmt.Sprintf("No ready Keycloak on port %d, is 'kcdev up' running?", cfg.ManagementPort)
	}

	return console.New(adminClient, status).Run(cmd.Context())
}
