package sandbox

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/wardenhq/warden/internal/runerr"
)

// Boundary restricts file access to a set of named roots. Path specs take
// the form "root/relative/path"; absolute and home-relative paths are
// rejected, and any traversal escaping a root fails closed.
type Boundary struct {
	roots map[string]Root
}

// ReadResult is one windowed view of a file. Content is addressed in bytes
// of the raw UTF-8 file; reading adjacent windows and concatenating equals
// one larger read.
type ReadResult struct {
	Content    string
	Truncated  bool
	TotalChars int
	Offset     int
	CharsRead  int
}

// NewBoundary builds a boundary over roots. Root paths must be absolute.
func NewBoundary(roots []Root) (*Boundary, error) {
	byName := make(map[string]Root, len(roots))
	for _, root := range roots {
		name := strings.TrimSpace(root.Name)
		if name == "" || strings.ContainsAny(name, `/\`) {
			return nil, runerr.Configuration("sandbox", "invalid root name %q", root.Name)
		}
		if !filepath.IsAbs(root.Path) {
			return nil, runerr.Configuration("sandbox",
				"root %q path must be absolute, got %q", name, root.Path)
		}
		if _, exists := byName[name]; exists {
			return nil, runerr.Configuration("sandbox", "duplicate root name %q", name)
		}
		root.Name = name
		root.Path = filepath.Clean(root.Path)
		byName[name] = root
	}
	return &Boundary{roots: byName}, nil
}

// Roots returns the configured roots keyed by name.
func (b *Boundary) Roots() map[string]Root {
	out := make(map[string]Root, len(b.roots))
	for name, root := range b.roots {
		out[name] = root
	}
	return out
}

// Describe returns remediation context naming the configured roots.
func (b *Boundary) Describe() string {
	return describeRoots(b.roots)
}

// Resolve maps "root/relative/path" to an absolute path strictly inside the
// named root.
func (b *Boundary) Resolve(spec string) (string, error) {
	root, rel, err := b.split(spec)
	if err != nil {
		return "", err
	}
	return b.resolveIn(root, rel)
}

// Read returns a windowed view of the file at spec starting at offset, up to
// maxChars bytes. Suffix and size policy are enforced before any content is
// returned.
func (b *Boundary) Read(spec string, maxChars, offset int) (ReadResult, error) {
	root, rel, err := b.split(spec)
	if err != nil {
		return ReadResult{}, err
	}
	path, err := b.resolveIn(root, rel)
	if err != nil {
		return ReadResult{}, err
	}

	if !root.suffixAllowed(path) {
		return ReadResult{}, runerr.SandboxViolation("read",
			"suffix of %q is not allowed in root %q", spec, root.Name).
			WithRemediation("%s", b.Describe())
	}

	info, err := os.Stat(path)
	if err != nil {
		return ReadResult{}, err
	}
	if root.MaxBytes > 0 && info.Size() > root.MaxBytes {
		return ReadResult{}, runerr.SandboxViolation("read",
			"file %q is %d bytes, root %q caps reads at %d bytes",
			spec, info.Size(), root.Name, root.MaxBytes).
			WithRemediation("%s", b.Describe())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ReadResult{}, err
	}

	total := len(data)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if maxChars > 0 && offset+maxChars < end {
		end = offset + maxChars
	}

	window := data[offset:end]
	return ReadResult{
		Content:    string(window),
		Truncated:  end < total,
		TotalChars: total,
		Offset:     offset,
		CharsRead:  len(window),
	}, nil
}

// Write stores content at spec, creating missing parent directories. It
// rejects read-only roots, disallowed suffixes, and oversized content.
func (b *Boundary) Write(spec, content string) error {
	root, rel, err := b.split(spec)
	if err != nil {
		return err
	}
	path, err := b.resolveIn(root, rel)
	if err != nil {
		return err
	}

	if !root.Writable {
		return runerr.SandboxViolation("write",
			"root %q is read-only", root.Name).
			WithRemediation("%s", b.Describe())
	}
	if !root.suffixAllowed(path) {
		return runerr.SandboxViolation("write",
			"suffix of %q is not allowed in root %q", spec, root.Name).
			WithRemediation("%s", b.Describe())
	}
	if root.MaxBytes > 0 && int64(len(content)) > root.MaxBytes {
		return runerr.SandboxViolation("write",
			"content is %d bytes, root %q caps writes at %d bytes",
			len(content), root.Name, root.MaxBytes).
			WithRemediation("%s", b.Describe())
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// List returns sorted root-relative file paths under spec matching pattern.
// An empty pattern matches everything.
func (b *Boundary) List(spec, pattern string) ([]string, error) {
	root, rel, err := b.split(spec)
	if err != nil {
		return nil, err
	}
	base, err := b.resolveIn(root, rel)
	if err != nil {
		return nil, err
	}
	if pattern != "" {
		if !doublestar.ValidatePattern(pattern) {
			return nil, runerr.SandboxViolation("list", "invalid glob pattern %q", pattern)
		}
	}

	var matches []string
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		relToRoot, err := filepath.Rel(root.Path, path)
		if err != nil {
			return err
		}
		relToRoot = filepath.ToSlash(relToRoot)
		if pattern != "" {
			ok, err := doublestar.Match(pattern, relToRoot)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}
		matches = append(matches, relToRoot)
		return nil
	})
	if err != nil {
		return nil, err
	}
	// WalkDir visits lexically, so matches are already sorted.
	return matches, nil
}

func (b *Boundary) split(spec string) (Root, string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Root{}, "", runerr.SandboxViolation("resolve", "empty path").
			WithRemediation("%s", b.Describe())
	}
	if strings.HasPrefix(spec, "~") {
		return Root{}, "", runerr.SandboxViolation("resolve",
			"home-relative path %q is not in the sandbox", spec).
			WithRemediation("%s", b.Describe())
	}
	if filepath.IsAbs(spec) || strings.HasPrefix(spec, "/") || strings.HasPrefix(spec, `\`) {
		return Root{}, "", runerr.SandboxViolation("resolve",
			"absolute path %q is not in the sandbox", spec).
			WithRemediation("%s", b.Describe())
	}

	spec = filepath.ToSlash(spec)
	name, rel, found := strings.Cut(spec, "/")
	if !found {
		rel = "."
	}
	root, ok := b.roots[name]
	if !ok {
		return Root{}, "", runerr.SandboxViolation("resolve",
			"unknown sandbox root %q in %q", name, spec).
			WithRemediation("%s", b.Describe())
	}
	return root, rel, nil
}

// resolveIn joins rel into root and verifies the normalized result never
// escapes it.
func (b *Boundary) resolveIn(root Root, rel string) (string, error) {
	rel = filepath.Clean(filepath.FromSlash(rel))
	if rel != "." && !filepath.IsLocal(rel) {
		return "", runerr.SandboxViolation("resolve",
			"path %q escapes root %q", rel, root.Name).
			WithRemediation("%s", b.Describe())
	}

	abs := filepath.Clean(filepath.Join(root.Path, rel))
	if abs != root.Path && !strings.HasPrefix(abs, root.Path+string(filepath.Separator)) {
		return "", runerr.SandboxViolation("resolve",
			"path %q escapes root %q", rel, root.Name).
			WithRemediation("%s", b.Describe())
	}
	return abs, nil
}
