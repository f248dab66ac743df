// Package workspace manages the on-disk layout for scan artifacts: one
// directory per scan invocation holding the per-unit output files and the
// temporary host-list chunk files handed to the external tool.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anstrom/netsweep/internal/errors"
)

const (
	dirPerm  = 0750
	filePerm = 0600
)

// Workspace provides writable paths under a root directory. The engine only
// asks for paths and cleanup; the layout itself stays here.
type Workspace struct {
	root string
}

// New creates a workspace rooted at dir. An empty dir falls back to the
// system temporary directory.
func New(dir string) (*Workspace, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "netsweep")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, errors.WrapConfigError(errors.CodeDirectoryCreate,
			"failed to create workspace root", err)
	}
	return &Workspace{root: dir}, nil
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string {
	return w.root
}

// ScanDir holds the artifacts of one scan invocation.
type ScanDir struct {
	path string
}

// ScanDir creates (if needed) the directory for a single scan invocation.
func (w *Workspace) ScanDir(scanID string) (*ScanDir, error) {
	path := filepath.Join(w.root, "scan-"+scanID)
	if err := os.MkdirAll(path, dirPerm); err != nil {
		return nil, errors.WrapConfigError(errors.CodeDirectoryCreate,
			"failed to create scan directory", err)
	}
	return &ScanDir{path: path}, nil
}

// Path returns the scan directory path.
func (d *ScanDir) Path() string {
	return d.path
}

// UnitOutputPath returns the output artifact path for a work unit.
func (d *ScanDir) UnitOutputPath(unitID string) string {
	return filepath.Join(d.path, fmt.Sprintf("unit-%s.xml", unitID))
}

// WriteHostList materializes a host chunk as a newline-separated file for
// tools that take file-based target input. The caller removes it with
// Remove once the unit completes.
func (d *ScanDir) WriteHostList(unitID string, hosts []string) (string, error) {
	path := filepath.Join(d.path, fmt.Sprintf("targets-%s.txt", unitID))
	content := strings.Join(hosts, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), filePerm); err != nil {
		return "", fmt.Errorf("failed to write host list: %w", err)
	}
	return path, nil
}

// Remove deletes a single artifact. Missing files are not an error.
func (d *ScanDir) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Cleanup removes the scan directory and everything in it.
func (d *ScanDir) Cleanup() error {
	return os.RemoveAll(d.path)
}
