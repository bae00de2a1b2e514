package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/capability"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/policy"
)

func NewPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the effective action policy",
	}

	cmd.AddCommand(
		newPolicyShowCmd(),
		newPolicyCheckCmd(),
	)

	return cmd
}

func newPolicyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective policy: action entries, capability rules, defaults",
		RunE:  runPolicyShow,
	}
}

func newPolicyCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <action>",
		Short: "Evaluate what the policy would decide for an action",
		Args:  cobra.ExactArgs(1),
		RunE:  runPolicyCheck,
	}
	cmd.Flags().StringSlice("cap", nil, "Capability label to include (repeatable)")
	return cmd
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Capability rules:")
	for _, label := range sortedKeys(cfg.Policy.Rules) {
		fmt.Fprintf(out, "  %-28s %s\n", label, cfg.Policy.Rules[label])
	}
	fmt.Fprintf(out, "  %-28s %s (default)\n", "*", cfg.Policy.DefaultRule)

	if len(cfg.Policy.Actions) > 0 {
		fmt.Fprintln(out, "\nAction entries:")
		for _, name := range sortedKeys(cfg.Policy.Actions) {
			entry := cfg.Policy.Actions[name]
			var details []string
			if entry.Blocked {
				reason := entry.BlockReason
				if reason == "" {
					reason = "no reason given"
				}
				details = append(details, "blocked ("+reason+")")
			}
			if entry.PreApproved {
				details = append(details, "pre-approved")
			}
			if len(entry.Capabilities) > 0 {
				details = append(details, "caps: "+strings.Join(entry.Capabilities, ", "))
			}
			if entry.Default != "" {
				details = append(details, "default: "+entry.Default)
			}
			if len(details) == 0 {
				details = append(details, "no overrides")
			}
			fmt.Fprintf(out, "  %-20s %s\n", name, strings.Join(details, "; "))
		}
	}

	fmt.Fprintf(out, "\nApproval mode: %s\n", cfg.Approval.Mode)
	fmt.Fprintf(out, "Max delegation depth: %d\n", cfg.Orchestrator.MaxDepth)
	return nil
}

func runPolicyCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	labels, _ := cmd.Flags().GetStringSlice("cap")

	evaluator := policy.NewEvaluator(cfg.PolicyEngineConfig())
	decision := evaluator.Evaluate(policy.Request{
		Action:       args[0],
		Capabilities: capability.NewSet(labels...),
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s -> %s\n", args[0], decision.Verdict)
	if decision.Reason != "" {
		fmt.Fprintf(out, "  reason: %s\n", decision.Reason)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
