package terminal

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// markerStatement prints the sentinel line. The same printf works in every
// POSIX shell we inject into; only the hook mechanism differs per shell.
const markerStatement = `printf '\x1eWARP\x1e%d\x1eWARP\x1e\n' $?`

// shellLauncher holds everything needed to exec a configured shell and to
// clean up its temporary rc files afterwards.
type shellLauncher struct {
	kind    ShellKind
	path    string
	args    []string
	env     []string
	cleanup func()
}

// newLauncher builds the launcher for a shell kind, writing the rc snippet
// that makes the shell emit the sentinel line after each prompt.
func newLauncher(kind ShellKind) (*shellLauncher, error) {
	path, err := lookupShell(kind)
	if err != nil {
		return nil, err
	}

	switch kind {
	case Bash:
		return bashLauncher(path)
	case Zsh:
		return zshLauncher(path)
	case Fish:
		return fishLauncher(path)
	case PowerShell:
		return nil, fmt.Errorf("powershell is not supported on %s", runtime.GOOS)
	default:
		return nil, fmt.Errorf("unknown shell kind %q", kind)
	}
}

// DetectShell maps a shell path or name to a kind. An empty argument falls
// back to $SHELL, then bash.
func DetectShell(shell string) ShellKind {
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	switch filepath.Base(shell) {
	case "zsh":
		return Zsh
	case "fish":
		return Fish
	case "pwsh", "powershell":
		return PowerShell
	default:
		return Bash
	}
}

func lookupShell(kind ShellKind) (string, error) {
	name := string(kind)
	if kind == PowerShell {
		name = "pwsh"
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("shell %s not found: %w", kind, err)
	}
	return path, nil
}

func bashLauncher(path string) (*shellLauncher, error) {
	rc, cleanup, err := writeTempRC("warp-bashrc-*.sh", strings.Join([]string{
		`[ -f ~/.bashrc ] && source ~/.bashrc`,
		`PROMPT_COMMAND=` + shellQuote(markerStatement),
	}, "\n")+"\n")
	if err != nil {
		return nil, err
	}
	return &shellLauncher{
		kind:    Bash,
		path:    path,
		args:    []string{"--rcfile", rc, "-i"},
		cleanup: cleanup,
	}, nil
}

func zshLauncher(path string) (*shellLauncher, error) {
	dir, err := os.MkdirTemp("", "warp-zdotdir-*")
	if err != nil {
		return nil, err
	}
	rc := strings.Join([]string{
		`[ -f ~/.zshrc ] && source ~/.zshrc`,
		`precmd() { ` + markerStatement + `; }`,
	}, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, ".zshrc"), []byte(rc), 0o600); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return &shellLauncher{
		kind:    Zsh,
		path:    path,
		args:    []string{"-i"},
		env:     []string{"ZDOTDIR=" + dir},
		cleanup: func() { os.RemoveAll(dir) },
	}, nil
}

func fishLauncher(path string) (*shellLauncher, error) {
	hook := `function __warp_mark --on-event fish_postexec; ` + markerStatement + `; end; ` + markerStatement
	return &shellLauncher{
		kind:    Fish,
		path:    path,
		args:    []string{"-i", "-C", hook},
		cleanup: func() {},
	}, nil
}

func writeTempRC(pattern, content string) (string, func(), error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	name := f.Name()
	return name, func() { os.Remove(name) }, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
