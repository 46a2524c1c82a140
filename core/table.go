package core

import (
	"sort"
	"sync"
	"time"
)

// EntryState is the lifecycle state of one correlation entry.
type EntryState int

const (
	// StateAwaiting means the probe was sent and no reply has matched yet.
	StateAwaiting EntryState = iota
	// StateResolved means the first valid reply has been matched.
	StateResolved
	// StateLost means the probe's timeout elapsed with no reply. Terminal:
	// a reply arriving afterwards is discarded.
	StateLost
	// StateSendFailed means the transmission itself failed. Terminal.
	StateSendFailed
)

// Entry is the per-sequence-number record kept by the table.
type Entry struct {
	Seq        uint16
	SentAt     time.Time
	ReceivedAt time.Time
	RTT        time.Duration
	State      EntryState
}

// Table correlates echo requests with their replies. It is the only mutable
// state shared between the sending and receiving sides, and exposes a narrow
// write interface: the sender inserts, the receiver resolves, the sweep
// expires. Entries are never deleted during a run; the final snapshot feeds
// the report.
type Table struct {
	mu      sync.Mutex
	entries map[uint16]*Entry
	pending int
}

func newTable() *Table {
	return &Table{entries: make(map[uint16]*Entry)}
}

// Insert records a freshly sent probe. Called by the sender only, before
// the corresponding datagram is written, so a reply can never race ahead of
// its own entry.
func (t *Table) Insert(seq uint16, sentAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[seq]; ok {
		return
	}
	t.entries[seq] = &Entry{Seq: seq, SentAt: sentAt, State: StateAwaiting}
	t.pending++
}

// Resolve attempts to match a reply to its entry, an atomic check-and-set.
// It returns the round-trip time and true on the first valid resolution, and
// false when the entry is absent, already resolved, or terminal, so
// duplicate, late and foreign replies cannot disturb the record.
func (t *Table) Resolve(seq uint16, receivedAt time.Time) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[seq]
	if !ok || e.State != StateAwaiting {
		return 0, false
	}
	e.ReceivedAt = receivedAt
	e.RTT = receivedAt.Sub(e.SentAt)
	e.State = StateResolved
	t.pending--
	return e.RTT, true
}

// MarkSendFailed transitions an entry to the terminal send-failed state.
// Called by the sender only, when the transport write fails.
func (t *Table) MarkSendFailed(seq uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[seq]
	if !ok || e.State != StateAwaiting {
		return
	}
	e.State = StateSendFailed
	t.pending--
}

// Expire transitions every awaiting entry whose timeout has elapsed to the
// terminal lost state and returns copies of the newly lost entries.
func (t *Table) Expire(now time.Time, timeout time.Duration) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var lost []Entry
	for _, e := range t.entries {
		if e.State == StateAwaiting && now.Sub(e.SentAt) >= timeout {
			e.State = StateLost
			t.pending--
			lost = append(lost, *e)
		}
	}
	return lost
}

// Pending returns the number of entries still awaiting a reply.
func (t *Table) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Snapshot returns copies of all entries ordered by sequence number.
func (t *Table) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries
}
