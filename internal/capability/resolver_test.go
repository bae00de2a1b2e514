package capability

import (
	"reflect"
	"testing"
)

func TestSetAddNormalizes(t *testing.T) {
	s := NewSet("  Filesystem.Write ", "", "process.exec")
	if !s.Has("filesystem.write") {
		t.Fatal("expected normalized label to be present")
	}
	if !s.Has("PROCESS.EXEC") {
		t.Fatal("expected lookup to normalize too")
	}
	if len(s) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(s))
	}
}

func TestSetUnionLeavesInputsUntouched(t *testing.T) {
	a := NewSet("filesystem.read")
	b := NewSet("filesystem.write")

	merged := a.Union(b)
	if len(merged) != 2 {
		t.Fatalf("expected merged set of 2, got %d", len(merged))
	}
	if len(a) != 1 || len(b) != 1 {
		t.Fatal("union must not mutate its inputs")
	}
}

func TestSetLabelsSorted(t *testing.T) {
	s := NewSet("task.delegate", "filesystem.read", "process.exec")
	want := []string{"filesystem.read", "process.exec", "task.delegate"}
	if got := s.Labels(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestResolverMergesAllSources(t *testing.T) {
	static := map[string][]string{"write_tool": {FilesystemWrite}}
	declared := map[string][]string{"write_tool": {"filesystem.read"}}
	selfReport := func(action string, args map[string]any) []string {
		if action == "write_tool" {
			return []string{ProcessExec}
		}
		return nil
	}

	r := NewResolver(static, declared, selfReport)
	set := r.Resolve(Request{Action: "Write_Tool"})

	for _, label := range []string{FilesystemWrite, FilesystemRead, ProcessExec} {
		if !set.Has(label) {
			t.Fatalf("expected %s in resolved set %v", label, set.Labels())
		}
	}
}

func TestResolverAbsentDeclarationsYieldEmptySet(t *testing.T) {
	r := NewResolver(nil, nil, nil)
	set := r.Resolve(Request{Action: "unknown_tool"})
	if len(set) != 0 {
		t.Fatalf("expected empty set, got %v", set.Labels())
	}
}

func TestResolverSelfReportReceivesArgs(t *testing.T) {
	var gotAction string
	var gotArgs map[string]any
	r := NewResolver(nil, nil, func(action string, args map[string]any) []string {
		gotAction = action
		gotArgs = args
		return nil
	})

	args := map[string]any{"path": "work/a.txt"}
	r.Resolve(Request{Action: "FS_Read", Args: args})

	if gotAction != "fs_read" {
		t.Fatalf("expected normalized action name, got %q", gotAction)
	}
	if !reflect.DeepEqual(gotArgs, args) {
		t.Fatalf("expected args passed through, got %v", gotArgs)
	}
}
