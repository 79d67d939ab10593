package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kcdev/internal/keycloak"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statusFlags configFlags

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show installed distributions and probe the configured ports",
	RunE:  runStatus,
}

func init() {
	statusFlags.register(statusCmd)
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := statusFlags.resolve()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	distributions := table.NewWriter()
	distributions.SetOutputMirror(out)
	distributions.SetStyle(table.StyleRounded)
	distributions.AppendHeader(table.Row{"VERSION", "PATH", "MODIFIED"})

	entries, err := os.ReadDir(cfg.InstallDir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not read install dir %s: %w", cfg.InstallDir, err)
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "keycloak-") {
			continue
		}
		modified := ""
		if info, err := entry.Info(); err == nil {
			modified = info.ModTime().Format("2006-01-02 15:04")
		}
		distributions.AppendRow(table.Row{
			strings.TrimPrefix(entry.Name(), "keycloak-"),
			filepath.Join(cfg.InstallDir, entry.Name()),
			modified,
		})
		count++
	}

	fmt.Fprintf(out, "Installed distributions in %s:\n", cfg.InstallDir)
	if count == 0 {
		fmt.Fprintln(out, "  none")
	} else {
		distributions.Render()
	}

	liveness := table.NewWriter()
	liveness.SetOutputMirror(out)
	liveness.SetStyle(table.StyleRounded)
	liveness.AppendHeader(table.Row{"HTTP PORT", "MANAGEMENT PORT", "READY"})

	ready := "no"
	if keycloak.CheckHealth(cmd.Context(), cfg.ManagementPort) {
		ready = "yes"
	}
	liveness.AppendRow(table.Row{cfg.HTTPPort, cfg.ManagementPort, ready})

	fmt.Fprintln(out, "\nConfigured instance:")
	liveness.Render()
	return nil
}
