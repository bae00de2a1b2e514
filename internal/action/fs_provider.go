package action

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"

	"github.com/wardenhq/warden/internal/capability"
	"github.com/wardenhq/warden/internal/sandbox"
)

// FSReadInput parameters for the fs_read action.
type FSReadInput struct {
	Path     string `json:"path" jsonschema:"required,description=Sandbox path in root/relative form"`
	MaxChars int    `json:"max_chars" jsonschema:"description=Maximum characters to return (0 for all)"`
	Offset   int    `json:"offset" jsonschema:"description=Character offset to start reading from"`
}

// FSReadOutput result of the fs_read action.
type FSReadOutput struct {
	Content    string `json:"content"`
	Truncated  bool   `json:"truncated"`
	TotalChars int    `json:"total_chars"`
	Offset     int    `json:"offset"`
	CharsRead  int    `json:"chars_read"`
}

// FSWriteInput parameters for the fs_write action.
type FSWriteInput struct {
	Path    string `json:"path" jsonschema:"required,description=Sandbox path in root/relative form"`
	Content string `json:"content" jsonschema:"required,description=Content to write"`
}

// FSListInput parameters for the fs_list action.
type FSListInput struct {
	Path    string `json:"path" jsonschema:"required,description=Sandbox root or subdirectory to list"`
	Pattern string `json:"pattern" jsonschema:"description=Optional glob pattern, e.g. **/*.go"`
}

// FilesystemProvider exposes sandboxed file actions over a boundary.
type FilesystemProvider struct {
	boundary *sandbox.Boundary
}

// NewFilesystemProvider builds the filesystem action provider.
func NewFilesystemProvider(boundary *sandbox.Boundary) *FilesystemProvider {
	return &FilesystemProvider{boundary: boundary}
}

func (p *FilesystemProvider) Name() string { return "filesystem" }

func (p *FilesystemProvider) Actions(ctx context.Context) ([]tool.InvokableTool, error) {
	readTool, err := utils.InferTool("fs_read", "Read a file inside the sandbox", p.read)
	if err != nil {
		return nil, err
	}
	writeTool, err := utils.InferTool("fs_write", "Write a file inside the sandbox", p.write)
	if err != nil {
		return nil, err
	}
	listTool, err := utils.InferTool("fs_list", "List sandbox files matching a glob", p.list)
	if err != nil {
		return nil, err
	}
	return []tool.InvokableTool{readTool, writeTool, listTool}, nil
}

// Capabilities reports filesystem.read/filesystem.write for the provider's
// actions, escalating to approval.required when the addressed root toggles
// approval for that direction.
func (p *FilesystemProvider) Capabilities(action string, args map[string]any) []string {
	root, hasRoot := p.rootFor(args)
	switch action {
	case "fs_read", "fs_list":
		labels := []string{capability.FilesystemRead}
		if hasRoot && root.ReadApproval {
			labels = append(labels, capability.ApprovalRequired)
		}
		return labels
	case "fs_write":
		labels := []string{capability.FilesystemWrite}
		if hasRoot && root.WriteApproval {
			labels = append(labels, capability.ApprovalRequired)
		}
		return labels
	}
	return nil
}

func (p *FilesystemProvider) read(ctx context.Context, input *FSReadInput) (*FSReadOutput, error) {
	result, err := p.boundary.Read(input.Path, input.MaxChars, input.Offset)
	if err != nil {
		return nil, err
	}
	return &FSReadOutput{
		Content:    result.Content,
		Truncated:  result.Truncated,
		TotalChars: result.TotalChars,
		Offset:     result.Offset,
		CharsRead:  result.CharsRead,
	}, nil
}

func (p *FilesystemProvider) write(ctx context.Context, input *FSWriteInput) (string, error) {
	if err := p.boundary.Write(input.Path, input.Content); err != nil {
		return "", err
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(input.Content), input.Path), nil
}

func (p *FilesystemProvider) list(ctx context.Context, input *FSListInput) ([]string, error) {
	return p.boundary.List(input.Path, input.Pattern)
}

func (p *FilesystemProvider) rootFor(args map[string]any) (sandbox.Root, bool) {
	raw, _ := args["path"].(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return sandbox.Root{}, false
	}
	name, _, found := strings.Cut(filepath.ToSlash(raw), "/")
	if !found {
		name = raw
	}
	root, ok := p.boundary.Roots()[name]
	return root, ok
}
