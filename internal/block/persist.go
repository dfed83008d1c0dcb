package block

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// HistoryStore is the rolling on-disk command history: one command per line,
// UTF-8, most-recent last, bounded to max lines. Only the input of completed
// blocks is persisted; output bytes never touch disk (they can be enormous
// and may contain secrets).
type HistoryStore struct {
	mu   sync.Mutex
	path string
	max  int
}

// NewHistoryStore creates a store writing to path, bounded to max lines.
func NewHistoryStore(path string, max int) *HistoryStore {
	if max < 1 {
		max = 1
	}
	return &HistoryStore{path: path, max: max}
}

// Load reads the persisted history, oldest first. A missing file is an empty
// history.
func (h *HistoryStore) Load() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readLocked()
}

// Append records one completed command and rewrites the file, truncated to
// the newest max lines. The write is atomic (temp file plus rename).
func (h *HistoryStore) Append(command string) error {
	command = strings.TrimRight(command, "\n")
	if command == "" || strings.ContainsRune(command, '\n') {
		// Multi-line inputs are not representable in the line format.
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	lines, err := h.readLocked()
	if err != nil {
		return err
	}
	lines = append(lines, command)
	if len(lines) > h.max {
		lines = lines[len(lines)-h.max:]
	}
	return h.writeLocked(lines)
}

func (h *HistoryStore) readLocked() ([]string, error) {
	f, err := os.Open(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return lines, nil
}

func (h *HistoryStore) writeLocked(lines []string) error {
	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write history: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*")
	if err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			tmp.Close()
			return fmt.Errorf("write history: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp.Name(), h.path); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
