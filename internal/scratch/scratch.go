// Package scratch manages the transient working directory for one batch run.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir is a uniquely named scratch directory owned by a single run. Documents
// get their own subdirectories so per-document cleanup never touches files
// another document still needs; the whole tree is removed when the run ends.
type Dir struct {
	root string
}

// New acquires a fresh scratch directory under parent (the system temp
// directory when parent is empty).
func New(parent string) (*Dir, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return nil, fmt.Errorf("create scratch parent: %w", err)
	}
	root, err := os.MkdirTemp(parent, "labelworker-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the scratch root path.
func (d *Dir) Root() string {
	return d.root
}

// DocumentDir creates and returns a subdirectory owned by one document's
// processing.
func (d *Dir) DocumentDir(recallID string, docIndex int) (string, error) {
	p := filepath.Join(d.root, fmt.Sprintf("%s-doc-%d", sanitize(recallID), docIndex))
	if err := os.MkdirAll(p, 0o750); err != nil {
		return "", fmt.Errorf("create document dir: %w", err)
	}
	return p, nil
}

// Remove deletes the whole scratch tree. Safe to call on a nil receiver.
func (d *Dir) Remove() error {
	if d == nil || d.root == "" {
		return nil
	}
	if err := os.RemoveAll(d.root); err != nil {
		return fmt.Errorf("remove scratch dir: %w", err)
	}
	return nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
