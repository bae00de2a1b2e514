package action

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/wardenhq/warden/internal/capability"
	"github.com/wardenhq/warden/internal/sandbox"
	"github.com/wardenhq/warden/internal/shellexec"
)

func testBoundary(t *testing.T) *sandbox.Boundary {
	t.Helper()
	b, err := sandbox.NewBoundary([]sandbox.Root{
		{Name: "work", Path: t.TempDir(), Writable: true},
		{Name: "vault", Path: t.TempDir(), Writable: true, ReadApproval: true, WriteApproval: true},
	})
	if err != nil {
		t.Fatalf("NewBoundary: %v", err)
	}
	return b
}

func TestFilesystemProviderCapabilities(t *testing.T) {
	p := NewFilesystemProvider(testBoundary(t))

	cases := []struct {
		action string
		path   string
		want   []string
	}{
		{"fs_read", "work/a.txt", []string{capability.FilesystemRead}},
		{"fs_read", "vault/a.txt", []string{capability.FilesystemRead, capability.ApprovalRequired}},
		{"fs_list", "vault", []string{capability.FilesystemRead, capability.ApprovalRequired}},
		{"fs_write", "work/a.txt", []string{capability.FilesystemWrite}},
		{"fs_write", "vault/a.txt", []string{capability.FilesystemWrite, capability.ApprovalRequired}},
		{"other", "work/a.txt", nil},
	}
	for _, tc := range cases {
		got := p.Capabilities(tc.action, map[string]any{"path": tc.path})
		if !slices.Equal(got, tc.want) {
			t.Errorf("%s %s: got %v, want %v", tc.action, tc.path, got, tc.want)
		}
	}
}

func TestFilesystemActionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewFilesystemProvider(testBoundary(t))
	actions, err := p.Actions(ctx)
	if err != nil {
		t.Fatalf("Actions: %v", err)
	}
	byName := map[string]int{}
	for i, act := range actions {
		info, err := act.Info(ctx)
		if err != nil {
			t.Fatalf("Info: %v", err)
		}
		byName[info.Name] = i
	}

	writeArgs, _ := json.Marshal(map[string]any{"path": "work/out/f.txt", "content": "payload"})
	if _, err := actions[byName["fs_write"]].InvokableRun(ctx, string(writeArgs)); err != nil {
		t.Fatalf("fs_write: %v", err)
	}

	readArgs, _ := json.Marshal(map[string]any{"path": "work/out/f.txt"})
	out, err := actions[byName["fs_read"]].InvokableRun(ctx, string(readArgs))
	if err != nil {
		t.Fatalf("fs_read: %v", err)
	}
	if !strings.Contains(out, "payload") {
		t.Errorf("read output = %q", out)
	}

	listArgs, _ := json.Marshal(map[string]any{"path": "work", "pattern": "**/*.txt"})
	out, err = actions[byName["fs_list"]].InvokableRun(ctx, string(listArgs))
	if err != nil {
		t.Fatalf("fs_list: %v", err)
	}
	if !strings.Contains(out, "out/f.txt") {
		t.Errorf("list output = %q", out)
	}
}

func TestShellProviderCapabilities(t *testing.T) {
	boundary := testBoundary(t)
	exec := shellexec.NewExecutor([]shellexec.Rule{
		{Pattern: "git status"},
		{Pattern: "git push", RequireApproval: true},
	}, &shellexec.Default{Allowed: true, RequireApproval: true}, boundary)
	p := NewShellProvider(exec)

	cases := []struct {
		command string
		want    []string
	}{
		{"git status", []string{capability.ProcessExec}},
		{"git push origin main", []string{capability.ProcessExec, capability.ApprovalRequired}},
		{"uname -a", []string{capability.ProcessExecUnlisted, capability.ApprovalRequired}},
		{"cat f.txt | grep x", []string{capability.ProcessExecUnlisted}},
		{"", []string{capability.ProcessExecUnlisted}},
	}
	for _, tc := range cases {
		got := p.Capabilities("shell_exec", map[string]any{"command": tc.command})
		if !slices.Equal(got, tc.want) {
			t.Errorf("%q: got %v, want %v", tc.command, got, tc.want)
		}
	}
	if p.Capabilities("fs_read", nil) != nil {
		t.Error("other actions should report nothing")
	}
}

type recordingDelegate struct {
	target string
	prompt string
}

func (d *recordingDelegate) Delegate(ctx context.Context, target, prompt string) (string, error) {
	d.target = target
	d.prompt = prompt
	return "child result", nil
}

func TestDelegateProvider(t *testing.T) {
	ctx := context.Background()
	rec := &recordingDelegate{}
	p := NewDelegateProvider(rec, []string{"research", "summarize"})

	if got := p.Capabilities("delegate", nil); !slices.Equal(got, []string{capability.TaskDelegate}) {
		t.Errorf("capabilities = %v", got)
	}

	actions, err := p.Actions(ctx)
	if err != nil {
		t.Fatalf("Actions: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}

	args, _ := json.Marshal(map[string]any{"target": "Research", "prompt": "dig in"})
	out, err := actions[0].InvokableRun(ctx, string(args))
	if err != nil {
		t.Fatalf("delegate: %v", err)
	}
	if !strings.Contains(out, "child result") {
		t.Errorf("out = %q", out)
	}
	if rec.target != "Research" || rec.prompt != "dig in" {
		t.Errorf("recorded = %+v", rec)
	}

	badArgs, _ := json.Marshal(map[string]any{"target": "unknown", "prompt": "x"})
	if _, err := actions[0].InvokableRun(ctx, string(badArgs)); err == nil {
		t.Error("unknown target should be rejected")
	}
}
