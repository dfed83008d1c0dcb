package block

import (
	"testing"
	"time"

	"github.com/warpterm/warpterm/internal/shared/id"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time                { return c.t }
func (c *fakeClock) advance(d time.Duration)       { c.t = c.t.Add(d) }

func TestOpenAppendComplete(t *testing.T) {
	l := NewLog()
	bid := id.NewBlockID()

	l.OpenBlock(bid, "echo hi", UserOrigin())
	l.AppendOutput(bid, []byte("hi\n"))
	l.CompleteBlock(bid, Exited(0))

	b, ok := l.Get(bid)
	if !ok {
		t.Fatal("block not found")
	}
	if b.Input != "echo hi" {
		t.Errorf("input = %q", b.Input)
	}
	if string(b.Output) != "hi\n" {
		t.Errorf("output = %q", b.Output)
	}
	if b.Status != Exited(0) {
		t.Errorf("status = %+v", b.Status)
	}
	if b.CompletedAt.Before(b.SubmittedAt) {
		t.Error("completed_at precedes submitted_at")
	}
}

func TestDuplicateOpenDropped(t *testing.T) {
	l := NewLog()
	bid := id.NewBlockID()

	l.OpenBlock(bid, "first", UserOrigin())
	l.OpenBlock(bid, "second", UserOrigin())

	if l.Len() != 1 {
		t.Fatalf("len = %d, want 1", l.Len())
	}
	b, _ := l.Get(bid)
	if b.Input != "first" {
		t.Errorf("input = %q, duplicate open must not overwrite", b.Input)
	}
	if got := l.Stats().DuplicateOpens; got != 1 {
		t.Errorf("DuplicateOpens = %d", got)
	}
}

func TestAppendWithinGrace(t *testing.T) {
	clock := newFakeClock()
	l := NewLog(WithClock(clock.now), WithGrace(250*time.Millisecond))
	bid := id.NewBlockID()

	l.OpenBlock(bid, "make", UserOrigin())
	l.CompleteBlock(bid, Exited(0))

	clock.advance(100 * time.Millisecond)
	l.AppendOutput(bid, []byte("late but in grace"))

	clock.advance(200 * time.Millisecond)
	l.AppendOutput(bid, []byte("too late"))

	b, _ := l.Get(bid)
	if string(b.Output) != "late but in grace" {
		t.Errorf("output = %q", b.Output)
	}
	if got := l.Stats().LateAppends; got != 1 {
		t.Errorf("LateAppends = %d", got)
	}
}

func TestCompleteIsOneShot(t *testing.T) {
	l := NewLog()
	bid := id.NewBlockID()

	l.OpenBlock(bid, "true", UserOrigin())
	l.CompleteBlock(bid, Exited(0))
	l.CompleteBlock(bid, Exited(7))

	b, _ := l.Get(bid)
	if b.Status != Exited(0) {
		t.Errorf("status = %+v, second complete must be ignored", b.Status)
	}
	if got := l.Stats().RepeatCompletes; got != 1 {
		t.Errorf("RepeatCompletes = %d", got)
	}
}

func TestUnknownIDsDropped(t *testing.T) {
	l := NewLog()

	l.AppendOutput(id.NewBlockID(), []byte("x"))
	l.CompleteBlock(id.NewBlockID(), Exited(0))

	stats := l.Stats()
	if stats.UnknownAppends != 1 || stats.UnknownCompletes != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSnapshotIsFrozen(t *testing.T) {
	clock := newFakeClock()
	l := NewLog(WithClock(clock.now), WithGrace(time.Hour))
	bid := id.NewBlockID()

	l.OpenBlock(bid, "tail -f log", UserOrigin())
	l.AppendOutput(bid, []byte("abc"))

	snap := l.Snapshot(0)
	l.AppendOutput(bid, []byte("def"))

	if string(snap[0].Output) != "abc" {
		t.Errorf("snapshot output = %q, must not see later appends", snap[0].Output)
	}
	b, _ := l.Get(bid)
	if string(b.Output) != "abcdef" {
		t.Errorf("live output = %q", b.Output)
	}
}

func TestSnapshotSince(t *testing.T) {
	l := NewLog()
	for i := 0; i < 5; i++ {
		l.OpenBlock(id.NewBlockID(), "cmd", UserOrigin())
	}

	if got := len(l.Snapshot(3)); got != 2 {
		t.Errorf("len(Snapshot(3)) = %d", got)
	}
	if got := len(l.Snapshot(99)); got != 0 {
		t.Errorf("len(Snapshot(99)) = %d", got)
	}
	if got := len(l.Snapshot(-1)); got != 5 {
		t.Errorf("len(Snapshot(-1)) = %d", got)
	}
}

func TestIterCompletedOrder(t *testing.T) {
	l := NewLog()
	ids := make([]id.BlockID, 4)
	for i := range ids {
		ids[i] = id.NewBlockID()
		l.OpenBlock(ids[i], "cmd", UserOrigin())
	}
	// Complete out of submission order; iteration must follow submission order.
	l.CompleteBlock(ids[2], Exited(0))
	l.CompleteBlock(ids[0], Exited(1))
	l.CompleteBlock(ids[3], Signalled(9))

	var got []id.BlockID
	for b := range l.IterCompleted() {
		got = append(got, b.ID)
	}
	want := []id.BlockID{ids[0], ids[2], ids[3]}
	if len(got) != len(want) {
		t.Fatalf("got %d completed blocks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("iter[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
