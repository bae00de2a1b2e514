package commands

import (
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/config"
)

var logLevelOverride string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warden",
		Short: "Warden - capability-gated task runtime",
		Long:  `Warden runs recursive task branches behind a capability policy, a filesystem sandbox, and a command whitelist.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return configureLogger(cfg, logLevelOverride)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewRunCmd(),
		NewPolicyCmd(),
		NewStatusCmd(),
		NewVersionCmd(),
	)

	return cmd
}
