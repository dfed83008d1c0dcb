// Package paths provides the on-disk layout for persisted state.
//
// Everything lives under <config_dir>/warp: workflow definitions (plus
// sub-directories for collections) and the rolling command history. The root
// can be overridden for tests via WARP_CONFIG_DIR.
package paths

import (
	"os"
	"path/filepath"
)

const (
	// AppDir is the directory name under the user config dir.
	AppDir = "warp"

	// WorkflowsDir holds workflow definition files and collections.
	WorkflowsDir = "workflows"

	// HistoryFile is the rolling command history, one command per line.
	HistoryFile = "history.txt"
)

// ConfigRoot returns the application config root, creating nothing.
// WARP_CONFIG_DIR takes precedence; otherwise the OS user config dir is used.
func ConfigRoot() (string, error) {
	if dir := os.Getenv("WARP_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppDir), nil
}

// Workflows returns the workflow catalogue directory.
func Workflows(root string) string {
	return filepath.Join(root, WorkflowsDir)
}

// History returns the history file path.
func History(root string) string {
	return filepath.Join(root, HistoryFile)
}

// EnsureLayout creates the standard directories under root.
func EnsureLayout(root string) error {
	return os.MkdirAll(Workflows(root), 0o755)
}
