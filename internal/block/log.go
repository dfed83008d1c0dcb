package block

import (
	"iter"
	"sync"
	"time"

	"github.com/warpterm/warpterm/internal/shared/id"
)

// DefaultGrace is how long after a terminal transition late output bytes are
// still attributed to the finished block.
const DefaultGrace = 250 * time.Millisecond

// Stats counts inputs the log silently dropped. The log never raises on bad
// input; it drops and counts.
type Stats struct {
	DuplicateOpens   uint64 `json:"duplicate_opens"`
	UnknownAppends   uint64 `json:"unknown_appends"`
	UnknownCompletes uint64 `json:"unknown_completes"`
	LateAppends      uint64 `json:"late_appends"`
	RepeatCompletes  uint64 `json:"repeat_completes"`
}

// Log is the ordered, append-only sequence of blocks for one session.
// It is mutated only by the session task; reads are safe from any goroutine.
type Log struct {
	mu     sync.RWMutex
	blocks []*record
	index  map[id.BlockID]*record
	grace  time.Duration
	stats  Stats
	now    func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithGrace overrides the grace window.
func WithGrace(d time.Duration) Option {
	return func(l *Log) { l.grace = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// NewLog creates an empty block log.
func NewLog(opts ...Option) *Log {
	l := &Log{
		index: make(map[id.BlockID]*record),
		grace: DefaultGrace,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OpenBlock inserts a new Running block at the tail. Duplicate ids are
// dropped and counted.
func (l *Log) OpenBlock(bid id.BlockID, input string, origin Origin) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.index[bid]; exists {
		l.stats.DuplicateOpens++
		return
	}
	r := &record{
		id:          bid,
		input:       input,
		origin:      origin,
		submittedAt: l.now(),
		status:      Running(),
	}
	l.blocks = append(l.blocks, r)
	l.index[bid] = r
}

// AppendOutput extends a block's output by exactly the given bytes. Appends
// to unknown blocks, or past the grace window, are dropped and counted.
func (l *Log) AppendOutput(bid id.BlockID, p []byte) {
	if len(p) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.index[bid]
	if !ok {
		l.stats.UnknownAppends++
		return
	}
	if r.status.Terminal() && l.now().After(r.graceUntil) {
		l.stats.LateAppends++
		return
	}
	r.output = append(r.output, p...)
}

// CompleteBlock records a block's terminal status. One-shot: repeat calls and
// unknown ids are dropped and counted.
func (l *Log) CompleteBlock(bid id.BlockID, status Status) {
	if !status.Terminal() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.index[bid]
	if !ok {
		l.stats.UnknownCompletes++
		return
	}
	if r.status.Terminal() {
		l.stats.RepeatCompletes++
		return
	}
	now := l.now()
	r.status = status
	r.completedAt = now
	if r.completedAt.Before(r.submittedAt) {
		r.completedAt = r.submittedAt
	}
	r.graceUntil = now.Add(l.grace)
}

// Len returns the number of blocks in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}

// Get returns a frozen view of one block.
func (l *Log) Get(bid id.BlockID) (Block, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.index[bid]
	if !ok {
		return Block{}, false
	}
	return r.view(), true
}

// Snapshot returns frozen views of blocks from since (an index into the log)
// to the tail. Later appends do not mutate the returned views.
func (l *Log) Snapshot(since int) []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if since < 0 {
		since = 0
	}
	if since >= len(l.blocks) {
		return nil
	}
	out := make([]Block, 0, len(l.blocks)-since)
	for _, r := range l.blocks[since:] {
		out = append(out, r.view())
	}
	return out
}

// IterCompleted yields completed blocks in submission order. The sequence is
// restartable; each range re-reads the log.
func (l *Log) IterCompleted() iter.Seq[Block] {
	return func(yield func(Block) bool) {
		// Snapshot under the lock, yield outside it.
		l.mu.RLock()
		views := make([]Block, 0, len(l.blocks))
		for _, r := range l.blocks {
			if r.status.Terminal() {
				views = append(views, r.view())
			}
		}
		l.mu.RUnlock()

		for _, b := range views {
			if !yield(b) {
				return
			}
		}
	}
}

// Stats returns the drop counters.
func (l *Log) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats
}
