package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/wardenhq/warden/internal/capability"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/sandbox"
	"github.com/wardenhq/warden/internal/shellexec"
)

// Config root configuration
type Config struct {
	Policy       PolicyConfig       `mapstructure:"policy"`
	Sandbox      SandboxConfig      `mapstructure:"sandbox"`
	Shell        ShellConfig        `mapstructure:"shell"`
	Approval     ApprovalConfig     `mapstructure:"approval"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Tasks        []TaskConfig       `mapstructure:"tasks"`
	Log          LogConfig          `mapstructure:"log"`
	StateDir     string             `mapstructure:"state_dir"`
}

// TaskConfig one named delegation target
type TaskConfig struct {
	Name         string   `mapstructure:"name"`
	Instructions string   `mapstructure:"instructions"`
	Delegates    []string `mapstructure:"delegates"`
}

// PolicyConfig capability rules and per-action entries
type PolicyConfig struct {
	Actions     map[string]ActionConfig `mapstructure:"actions"`
	Rules       map[string]string       `mapstructure:"rules"`
	DefaultRule string                  `mapstructure:"default_rule"`
}

// ActionConfig per-action policy entry
type ActionConfig struct {
	Blocked      bool     `mapstructure:"blocked"`
	BlockReason  string   `mapstructure:"block_reason"`
	PreApproved  bool     `mapstructure:"pre_approved"`
	Capabilities []string `mapstructure:"capabilities"`
	Default      string   `mapstructure:"default"`
}

// SandboxConfig named filesystem roots
type SandboxConfig struct {
	Roots []RootConfig `mapstructure:"roots"`
}

// RootConfig one named sandbox root
type RootConfig struct {
	Name            string   `mapstructure:"name"`
	Path            string   `mapstructure:"path"`
	Writable        bool     `mapstructure:"writable"`
	AllowedSuffixes []string `mapstructure:"allowed_suffixes"`
	MaxBytes        int64    `mapstructure:"max_bytes"`
	ReadApproval    bool     `mapstructure:"read_approval"`
	WriteApproval   bool     `mapstructure:"write_approval"`
}

// ShellConfig command whitelist
type ShellConfig struct {
	Rules   []ShellRuleConfig  `mapstructure:"rules"`
	Default ShellDefaultConfig `mapstructure:"default"`
	Timeout int                `mapstructure:"timeout"`
}

// ShellRuleConfig one ordered whitelist entry
type ShellRuleConfig struct {
	Pattern         string   `mapstructure:"pattern"`
	RequiredRoots   []string `mapstructure:"required_roots"`
	RequireApproval bool     `mapstructure:"require_approval"`
}

// ShellDefaultConfig fallback for commands no rule matches
type ShellDefaultConfig struct {
	Allowed         bool `mapstructure:"allowed"`
	RequireApproval bool `mapstructure:"require_approval"`
}

// ApprovalConfig gateway settings
type ApprovalConfig struct {
	Mode            string `mapstructure:"mode"`
	DecisionTimeout int    `mapstructure:"decision_timeout"`
}

// OrchestratorConfig branch tree limits
type OrchestratorConfig struct {
	MaxDepth      int `mapstructure:"max_depth"`
	MaxIterations int `mapstructure:"max_iterations"`
}

// LogConfig logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DefaultConfig returns the secure defaults: nothing is whitelisted for the
// shell, writes and execs need approval, and unknown capability labels fall
// through to needs_approval.
func DefaultConfig() *Config {
	return &Config{
		Policy: PolicyConfig{
			Actions: map[string]ActionConfig{},
			Rules: map[string]string{
				capability.FilesystemRead:      string(policy.RulePreApproved),
				capability.FilesystemWrite:     string(policy.RuleNeedsApproval),
				capability.ProcessExec:         string(policy.RuleNeedsApproval),
				capability.ProcessExecUnlisted: string(policy.RuleBlocked),
				capability.TaskDelegate:        string(policy.RulePreApproved),
				capability.ApprovalRequired:    string(policy.RuleNeedsApproval),
			},
			DefaultRule: string(policy.RuleNeedsApproval),
		},
		Sandbox: SandboxConfig{
			Roots: []RootConfig{},
		},
		Shell: ShellConfig{
			Rules:   []ShellRuleConfig{},
			Default: ShellDefaultConfig{Allowed: false},
			Timeout: 30,
		},
		Approval: ApprovalConfig{
			Mode:            "reject_all",
			DecisionTimeout: 0,
		},
		Orchestrator: OrchestratorConfig{
			MaxDepth:      5,
			MaxIterations: 20,
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// ConfigDir returns the warden config directory
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".warden")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from file or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom loads config from an explicit path, writing defaults on first run.
func LoadFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveTo(configPath, cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("WARDEN")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to the default path
func Save(cfg *Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo saves config to an explicit path
func SaveTo(configPath string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

var validRules = map[string]bool{
	string(policy.RuleBlocked):       true,
	string(policy.RuleNeedsApproval): true,
	string(policy.RulePreApproved):   true,
}

var validVerdicts = map[string]bool{
	string(policy.VerdictBlocked):       true,
	string(policy.VerdictNeedsApproval): true,
	string(policy.VerdictPreApproved):   true,
}

// Validate checks the configuration and normalizes in place.
func (c *Config) Validate() error {
	for label, rule := range c.Policy.Rules {
		normalized := strings.ToLower(strings.TrimSpace(rule))
		if !validRules[normalized] {
			return fmt.Errorf("policy.rules[%s] must be one of blocked, needs_approval, pre_approved; got %q", label, rule)
		}
		c.Policy.Rules[label] = normalized
	}
	if c.Policy.DefaultRule != "" {
		normalized := strings.ToLower(strings.TrimSpace(c.Policy.DefaultRule))
		if !validRules[normalized] {
			return fmt.Errorf("policy.default_rule must be one of blocked, needs_approval, pre_approved; got %q", c.Policy.DefaultRule)
		}
		c.Policy.DefaultRule = normalized
	}
	for name, entry := range c.Policy.Actions {
		if entry.Default != "" && !validVerdicts[strings.ToLower(strings.TrimSpace(entry.Default))] {
			return fmt.Errorf("policy.actions[%s].default must be one of blocked, needs_approval, pre_approved; got %q", name, entry.Default)
		}
	}

	seen := map[string]bool{}
	for i, root := range c.Sandbox.Roots {
		name := strings.TrimSpace(root.Name)
		if name == "" {
			return fmt.Errorf("sandbox.roots[%d] has an empty name", i)
		}
		if seen[name] {
			return fmt.Errorf("sandbox.roots[%d] duplicates root %q", i, name)
		}
		seen[name] = true
		if strings.TrimSpace(root.Path) == "" {
			return fmt.Errorf("sandbox.roots[%s] has an empty path", name)
		}
		if root.MaxBytes < 0 {
			return fmt.Errorf("sandbox.roots[%s].max_bytes must not be negative, got %d", name, root.MaxBytes)
		}
	}

	for i, rule := range c.Shell.Rules {
		if strings.TrimSpace(rule.Pattern) == "" {
			return fmt.Errorf("shell.rules[%d] has an empty pattern", i)
		}
	}
	if c.Shell.Timeout < 0 {
		return fmt.Errorf("shell.timeout must not be negative, got %d", c.Shell.Timeout)
	}

	mode := strings.ToLower(strings.TrimSpace(c.Approval.Mode))
	if mode == "" {
		mode = "reject_all"
	}
	validModes := map[string]bool{"approve_all": true, "reject_all": true, "interactive": true}
	if !validModes[mode] {
		return fmt.Errorf("approval.mode must be one of approve_all, reject_all, interactive; got %q", c.Approval.Mode)
	}
	c.Approval.Mode = mode
	if c.Approval.DecisionTimeout < 0 {
		return fmt.Errorf("approval.decision_timeout must not be negative, got %d", c.Approval.DecisionTimeout)
	}

	if c.Orchestrator.MaxDepth < 0 {
		return fmt.Errorf("orchestrator.max_depth must not be negative, got %d", c.Orchestrator.MaxDepth)
	}
	if c.Orchestrator.MaxDepth == 0 {
		c.Orchestrator.MaxDepth = 5
	}
	if c.Orchestrator.MaxIterations < 0 {
		return fmt.Errorf("orchestrator.max_iterations must not be negative, got %d", c.Orchestrator.MaxIterations)
	}
	if c.Orchestrator.MaxIterations == 0 {
		c.Orchestrator.MaxIterations = 20
	}

	taskNames := map[string]bool{}
	for i, task := range c.Tasks {
		name := strings.ToLower(strings.TrimSpace(task.Name))
		if name == "" {
			return fmt.Errorf("tasks[%d] has an empty name", i)
		}
		if taskNames[name] {
			return fmt.Errorf("tasks[%d] duplicates task %q", i, name)
		}
		taskNames[name] = true
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	if strings.TrimSpace(c.StateDir) == "" {
		c.StateDir = filepath.Join(ConfigDir(), "state")
	}

	return nil
}

// PolicyEngineConfig translates the policy section into evaluator input.
func (c *Config) PolicyEngineConfig() policy.Config {
	actions := make(map[string]policy.ActionPolicy, len(c.Policy.Actions))
	for name, entry := range c.Policy.Actions {
		actions[name] = policy.ActionPolicy{
			Blocked:      entry.Blocked,
			BlockReason:  entry.BlockReason,
			PreApproved:  entry.PreApproved,
			Capabilities: entry.Capabilities,
			Default:      policy.Verdict(strings.ToLower(strings.TrimSpace(entry.Default))),
		}
	}
	rules := make(map[string]policy.Rule, len(c.Policy.Rules))
	for label, rule := range c.Policy.Rules {
		rules[label] = policy.Rule(rule)
	}
	return policy.Config{
		Actions:     actions,
		Rules:       rules,
		DefaultRule: policy.Rule(c.Policy.DefaultRule),
	}
}

// DeclaredCapabilities extracts the per-action capability declarations.
func (c *Config) DeclaredCapabilities() map[string][]string {
	declared := make(map[string][]string, len(c.Policy.Actions))
	for name, entry := range c.Policy.Actions {
		if len(entry.Capabilities) > 0 {
			declared[name] = entry.Capabilities
		}
	}
	return declared
}

// SandboxRoots translates the sandbox section into boundary roots.
func (c *Config) SandboxRoots() []sandbox.Root {
	roots := make([]sandbox.Root, 0, len(c.Sandbox.Roots))
	for _, root := range c.Sandbox.Roots {
		roots = append(roots, sandbox.Root{
			Name:            root.Name,
			Path:            root.Path,
			Writable:        root.Writable,
			AllowedSuffixes: root.AllowedSuffixes,
			MaxBytes:        root.MaxBytes,
			ReadApproval:    root.ReadApproval,
			WriteApproval:   root.WriteApproval,
		})
	}
	return roots
}

// ShellRules translates the shell section into executor rules.
func (c *Config) ShellRules() []shellexec.Rule {
	rules := make([]shellexec.Rule, 0, len(c.Shell.Rules))
	for _, rule := range c.Shell.Rules {
		rules = append(rules, shellexec.Rule{
			Pattern:         rule.Pattern,
			RequiredRoots:   rule.RequiredRoots,
			RequireApproval: rule.RequireApproval,
		})
	}
	return rules
}

// ShellDefault translates the shell default, nil when nothing unlisted runs.
func (c *Config) ShellDefault() *shellexec.Default {
	if !c.Shell.Default.Allowed {
		return nil
	}
	return &shellexec.Default{
		Allowed:         true,
		RequireApproval: c.Shell.Default.RequireApproval,
	}
}
