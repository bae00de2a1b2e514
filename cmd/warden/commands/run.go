package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/approval"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/state"
)

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [script]",
		Short: "Run a script of gated actions",
		Long: `Run executes a JSON array of action calls through the full gate chain.
Each step is {"action": "...", "args": {...}}; steps run in order and every
one passes capability resolution, policy evaluation, and approval.

Example:
  warden run '[{"action":"shell_exec","args":{"command":"git status"}}]'`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScript,
	}

	cmd.Flags().String("file", "", "Read the script from a file instead of the argument")
	cmd.Flags().Bool("continue-on-error", false, "Keep running later steps when one fails")
	cmd.Flags().Bool("permission-results", false, "Report denials as step results instead of failing the run")
	cmd.Flags().Bool("show-usage", false, "Print an action usage summary after the run")

	return cmd
}

func runScript(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	script, err := readScript(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	continueOnError, _ := cmd.Flags().GetBool("continue-on-error")
	permissionResults, _ := cmd.Flags().GetBool("permission-results")
	showUsage, _ := cmd.Flags().GetBool("show-usage")

	var decide approval.DecideFunc
	if cfg.Approval.Mode == string(approval.ModeInteractive) {
		decide = terminalDecider(cmd)
	}

	rt, err := buildRuntime(cfg, &scriptExecutor{continueOnError: continueOnError}, decide, permissionResults)
	if err != nil {
		return err
	}

	result, err := rt.orchestrator.Run(ctx, script)
	saveRunState(rt)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), result)

	if showUsage {
		printUsage(cmd, rt)
	}
	return nil
}

// saveRunState persists the run summary for `warden status`. Best effort.
func saveRunState(rt *runtime) {
	snap := rt.usage.Snapshot()
	err := state.NewManager(rt.cfg.StateDir).SaveRunState(state.RunState{
		RunID:            rt.orchestrator.RunID(),
		FinishedAt:       time.Now().UTC(),
		ActionCalls:      snap.ActionCalls,
		ActionErrors:     snap.ActionErrors,
		PromptTokens:     snap.PromptTokens,
		CompletionTokens: snap.CompletionTokens,
		PerAction:        snap.PerAction,
	})
	if err != nil {
		slog.Warn("save run state failed", "error", err)
	}
}

func readScript(cmd *cobra.Command, args []string) (string, error) {
	file, _ := cmd.Flags().GetString("file")
	if strings.TrimSpace(file) != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read script file: %w", err)
		}
		return string(data), nil
	}
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	return "", fmt.Errorf("a script argument or --file is required")
}

// terminalDecider prompts on the terminal for each approval request and
// reads a y/n answer from stdin.
func terminalDecider(cmd *cobra.Command) approval.DecideFunc {
	reader := bufio.NewReader(cmd.InOrStdin())
	return func(ctx context.Context, req approval.Request, description string) (approval.Decision, error) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\nApproval required: %s\n", req.Action)
		if description != "" {
			fmt.Fprintf(out, "  %s\n", description)
		}
		if len(req.Args) > 0 {
			if encoded, err := json.Marshal(req.Args); err == nil {
				fmt.Fprintf(out, "  args: %s\n", encoded)
			}
		}
		fmt.Fprint(out, "Approve? [y]es / [n]o / [a]lways this session: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return approval.Decision{}, fmt.Errorf("read approval answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return approval.Decision{Approved: true, Remember: approval.RememberNone}, nil
		case "a", "always":
			return approval.Decision{Approved: true, Remember: approval.RememberSession}, nil
		default:
			return approval.Decision{Approved: false, Note: "rejected at terminal"}, nil
		}
	}
}

func printUsage(cmd *cobra.Command, rt *runtime) {
	snap := rt.usage.Snapshot()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nActions: %d total, %d failed\n", snap.ActionCalls, snap.ActionErrors)
	for name, count := range snap.PerAction {
		fmt.Fprintf(out, "  %s: %d\n", name, count)
	}
	if snap.TotalTokens() > 0 {
		fmt.Fprintf(out, "Tokens: %d prompt, %d completion\n", snap.PromptTokens, snap.CompletionTokens)
	}
}
