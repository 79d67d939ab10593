package cmd

import (
	"os"

	"kcdev/internal/install"
	"kcdev/internal/keycloak"
	"kcdev/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands. Scripts can tell the failure stages of
// `kcdev up` apart without parsing error text.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodePrerequisite indicates a missing prerequisite such as a Java runtime.
	ExitCodePrerequisite = 4
	// ExitCodeInstall indicates the distribution download or extraction failed.
	ExitCodeInstall = 5
	// ExitCodeStart indicates the server process could not be started.
	ExitCodeStart = 6
	// ExitCodeReadyTimeout indicates the server started but never became ready.
	ExitCodeReadyTimeout = 7
)

var (
	flagDebug bool
	flagQuiet bool
)

// rootCmd represents the base command for the kcdev application.
var rootCmd = &cobra.Command{
	Use:   "kcdev",
	Short: "Run disposable Keycloak servers for local development",
	Long: `kcdev installs, starts and supervises ephemeral Keycloak development
servers: it caches distributions per version, allocates free port pairs,
imports realm definitions, waits for readiness, and rolls the distribution
back to its pre-run state on shutdown.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.LevelInfo
		if flagQuiet {
			level = logging.LevelWarn
		}
		if flagDebug {
			level = logging.LevelDebug
		}
		logging.InitForCLI(level, os.Stderr)
	},
}

// SetVersion sets the version for the root command. Called from the main
// package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application, called by
// main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "kcdev version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps error kinds onto semantic exit codes for scripting and
// automation.
func getExitCode(err error) int {
	switch {
	case install.IsPrerequisite(err):
		return ExitCodePrerequisite
	case install.IsInstall(err):
		return ExitCodeInstall
	case keycloak.IsReadyTimeout(err):
		return ExitCodeReadyTimeout
	case keycloak.IsStart(err):
		return ExitCodeStart
	}
	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "Suppress progress output and informational logs")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
