package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/state"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the summary of the most recent run",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st, err := state.NewManager(cfg.StateDir).LoadRunState()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if st.RunID == "" {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	fmt.Fprintf(out, "Run %s finished %s\n", st.RunID, st.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Actions: %d total, %d failed\n", st.ActionCalls, st.ActionErrors)
	names := make([]string, 0, len(st.PerAction))
	for name := range st.PerAction {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s: %d\n", name, st.PerAction[name])
	}
	if st.PromptTokens+st.CompletionTokens > 0 {
		fmt.Fprintf(out, "Tokens: %d prompt, %d completion\n", st.PromptTokens, st.CompletionTokens)
	}
	return nil
}
