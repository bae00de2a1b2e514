package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wardenhq/warden/internal/capability"
	"github.com/wardenhq/warden/internal/policy"
)

func TestDefaultConfigIsSecure(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Shell.Default.Allowed {
		t.Error("unlisted shell commands must not run by default")
	}
	if len(cfg.Shell.Rules) != 0 {
		t.Errorf("default whitelist should be empty, got %d rules", len(cfg.Shell.Rules))
	}
	if cfg.Approval.Mode != "reject_all" {
		t.Errorf("expected approval mode reject_all, got %s", cfg.Approval.Mode)
	}
	if cfg.Policy.Rules[capability.ProcessExecUnlisted] != string(policy.RuleBlocked) {
		t.Error("unlisted exec capability should default to blocked")
	}
	if cfg.Policy.DefaultRule != string(policy.RuleNeedsApproval) {
		t.Errorf("unknown labels should default to needs_approval, got %s", cfg.Policy.DefaultRule)
	}
	if cfg.Orchestrator.MaxDepth != 5 {
		t.Errorf("expected MaxDepth=5, got %d", cfg.Orchestrator.MaxDepth)
	}
}

func TestValidateNormalizes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Approval.Mode = " Interactive "
	cfg.Policy.DefaultRule = "NEEDS_APPROVAL"
	cfg.Log.Level = ""
	cfg.Orchestrator.MaxDepth = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Approval.Mode != "interactive" {
		t.Errorf("mode = %s", cfg.Approval.Mode)
	}
	if cfg.Policy.DefaultRule != "needs_approval" {
		t.Errorf("default rule = %s", cfg.Policy.DefaultRule)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("level = %s", cfg.Log.Level)
	}
	if cfg.Orchestrator.MaxDepth != 5 {
		t.Errorf("max depth = %d", cfg.Orchestrator.MaxDepth)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad rule", func(c *Config) { c.Policy.Rules["x"] = "maybe" }},
		{"bad mode", func(c *Config) { c.Approval.Mode = "ask_nicely" }},
		{"duplicate root", func(c *Config) {
			c.Sandbox.Roots = []RootConfig{
				{Name: "work", Path: "/tmp/a"},
				{Name: "work", Path: "/tmp/b"},
			}
		}},
		{"empty rule pattern", func(c *Config) {
			c.Shell.Rules = []ShellRuleConfig{{Pattern: "  "}}
		}},
		{"negative depth", func(c *Config) { c.Orchestrator.MaxDepth = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	// First load writes the defaults.
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config was not written: %v", err)
	}

	cfg.Shell.Rules = []ShellRuleConfig{{Pattern: "git status"}}
	cfg.Sandbox.Roots = []RootConfig{{Name: "work", Path: dir, Writable: true}}
	if err := SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(loaded.Shell.Rules) != 1 || loaded.Shell.Rules[0].Pattern != "git status" {
		t.Errorf("shell rules did not survive the round trip: %+v", loaded.Shell.Rules)
	}
	if len(loaded.SandboxRoots()) != 1 || !loaded.SandboxRoots()[0].Writable {
		t.Errorf("sandbox roots did not survive the round trip")
	}
}

func TestShellDefaultTranslation(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ShellDefault() != nil {
		t.Error("disallowed default should translate to nil")
	}
	cfg.Shell.Default = ShellDefaultConfig{Allowed: true, RequireApproval: true}
	def := cfg.ShellDefault()
	if def == nil || !def.RequireApproval {
		t.Errorf("default = %+v", def)
	}
}
