package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	systemPath string
)

// rootCmd is the base command. Without a subcommand it prints help.
var rootCmd = &cobra.Command{
	Use:   "friday",
	Short: "Desktop automation capabilities for conversational agents",
	Long: `friday exposes a catalog of desktop capabilities (system control, files,
screen reading, web lookups, AI questions and messaging) to an external
agent runtime over MCP or a websocket, and can run them directly.`,
	SilenceUsage: true,
}

// SetVersion sets the version shown by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "Path to the application config (credentials, contacts, channels)")
	rootCmd.PersistentFlags().StringVar(&systemPath, "system", "system.json", "Path to the system config (timeouts, OCR, logging)")
}
