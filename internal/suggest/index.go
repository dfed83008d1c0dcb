package suggest

import (
	"container/list"
	"sort"
	"strings"
	"sync"
)

// Source identifies where a suggestion came from. When scores tie, history
// outranks workflows, which outrank plain command names.
type Source int

const (
	SourceHistory Source = iota
	SourceWorkflow
	SourceCommand
)

func (s Source) String() string {
	switch s {
	case SourceHistory:
		return "history"
	case SourceWorkflow:
		return "workflow"
	case SourceCommand:
		return "command"
	}
	return "unknown"
}

// Suggestion is one ranked completion candidate.
type Suggestion struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Score  int    `json:"score"`
}

// historyEntry lives in the LRU list, front = most recently used.
type historyEntry struct {
	text     string
	useCount int
}

// Index ranks completion candidates from shell history, the workflow
// catalogue, and known command names. History is bounded: beyond capacity,
// the least recently used entry is evicted. Safe for concurrent use.
type Index struct {
	mu        sync.RWMutex
	capacity  int
	recency   *list.List
	byText    map[string]*list.Element
	workflows []string
	commands  []string
}

// NewIndex creates an index whose history holds at most capacity entries.
func NewIndex(capacity int) *Index {
	if capacity < 1 {
		capacity = 1
	}
	return &Index{
		capacity: capacity,
		recency:  list.New(),
		byText:   make(map[string]*list.Element),
	}
}

// LoadHistory seeds the index from persisted history, given oldest first.
// Later duplicates refresh recency rather than occupying a second slot.
func (x *Index) LoadHistory(commands []string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, cmd := range commands {
		x.touch(cmd)
	}
}

// UpdateHistory records one executed command: it becomes the most recent
// entry and its use count grows.
func (x *Index) UpdateHistory(command string) {
	command = strings.TrimSpace(command)
	if command == "" {
		return
	}
	x.mu.Lock()
	x.touch(command)
	x.mu.Unlock()
}

// touch moves command to the front, inserting and evicting as needed.
// Caller holds x.mu.
func (x *Index) touch(command string) {
	if el, ok := x.byText[command]; ok {
		el.Value.(*historyEntry).useCount++
		x.recency.MoveToFront(el)
		return
	}
	x.byText[command] = x.recency.PushFront(&historyEntry{text: command, useCount: 1})
	if x.recency.Len() > x.capacity {
		oldest := x.recency.Back()
		x.recency.Remove(oldest)
		delete(x.byText, oldest.Value.(*historyEntry).text)
	}
}

// HistoryLen returns the number of history entries currently held.
func (x *Index) HistoryLen() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.recency.Len()
}

// History returns the held history, most recent first.
func (x *Index) History() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, 0, x.recency.Len())
	for el := x.recency.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*historyEntry).text)
	}
	return out
}

// SetWorkflows replaces the workflow-derived candidates (workflow names).
func (x *Index) SetWorkflows(names []string) {
	x.mu.Lock()
	x.workflows = append([]string(nil), names...)
	x.mu.Unlock()
}

// SetCommands replaces the plain command-name candidates, typically the
// executables found on PATH.
func (x *Index) SetCommands(names []string) {
	x.mu.Lock()
	x.commands = append([]string(nil), names...)
	x.mu.Unlock()
}

// candidate is an internal scoring row.
type candidate struct {
	text     string
	source   Source
	score    int
	recency  int // lower is more recent; history only
	useCount int
}

// Query returns up to limit suggestions for the typed prefix, best first.
// An empty prefix returns recent history only.
func (x *Index) Query(prefix string, limit int) []Suggestion {
	if limit < 1 {
		return nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	if strings.TrimSpace(prefix) == "" {
		out := make([]Suggestion, 0, limit)
		for el := x.recency.Front(); el != nil && len(out) < limit; el = el.Next() {
			e := el.Value.(*historyEntry)
			out = append(out, Suggestion{Text: e.text, Source: SourceHistory.String()})
		}
		return out
	}

	var rows []candidate
	rank := 0
	for el := x.recency.Front(); el != nil; el = el.Next() {
		e := el.Value.(*historyEntry)
		if s := Score(prefix, e.text); s > scoreNoMatch {
			rows = append(rows, candidate{e.text, SourceHistory, s, rank, e.useCount})
		}
		rank++
	}
	for _, name := range x.workflows {
		if s := Score(prefix, name); s > scoreNoMatch {
			rows = append(rows, candidate{name, SourceWorkflow, s, 1 << 30, 0})
		}
	}
	for _, name := range x.commands {
		if s := Score(prefix, name); s > scoreNoMatch {
			rows = append(rows, candidate{name, SourceCommand, s, 1 << 30, 0})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.source != b.source {
			return a.source < b.source
		}
		if a.recency != b.recency {
			return a.recency < b.recency
		}
		if a.useCount != b.useCount {
			return a.useCount > b.useCount
		}
		return a.text < b.text
	})

	if len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]Suggestion, len(rows))
	for i, r := range rows {
		out[i] = Suggestion{Text: r.text, Source: r.source.String(), Score: r.score}
	}
	return out
}
