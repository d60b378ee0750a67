package mqtt

import (
	"sync"
	"time"
)

// Received is one inbound payload as recorded by the Inbox.
type Received struct {
	Seq        uint64
	ReceivedAt time.Time
	Topic      string
	Payload    []byte
}

// Inbox is the append-only, timestamped log of everything received on the
// subscribed topics. Readers keep their own cursor (a sequence number) and
// call Since to get only what they have not seen yet, so several readers can
// drain it concurrently while the delivery callback appends.
//
// Entries older than the retention window are trimmed on append. Sequence
// numbers are never reused, including across Reset.
type Inbox struct {
	mu        sync.Mutex
	entries   []Received
	next      uint64
	changed   chan struct{}
	retention time.Duration
	now       func() time.Time
}

// InboxOption customizes an Inbox.
type InboxOption func(*Inbox)

// WithClock sets the clock used to stamp entries.
func WithClock(now func() time.Time) InboxOption {
	return func(b *Inbox) { b.now = now }
}

// NewInbox returns an empty inbox. A zero retention keeps every entry until Reset.
func NewInbox(retention time.Duration, opts ...InboxOption) *Inbox {
	b := &Inbox{
		changed:   make(chan struct{}),
		retention: retention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Append records a payload and wakes every waiter on Changed.
func (b *Inbox) Append(topic string, payload []byte) Received {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := Received{
		Seq:        b.next,
		ReceivedAt: b.now(),
		Topic:      topic,
		Payload:    append([]byte(nil), payload...),
	}
	b.next++
	b.entries = append(b.entries, r)
	b.trimLocked(r.ReceivedAt)
	b.notifyLocked()
	return r
}

// Since returns the entries with a sequence number >= seq, in arrival order,
// and the cursor to pass on the next call.
func (b *Inbox) Since(seq uint64) ([]Received, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 || seq >= b.next {
		return nil, b.next
	}
	start := 0
	if first := b.entries[0].Seq; seq > first {
		start = int(seq - first)
	}
	out := make([]Received, len(b.entries)-start)
	copy(out, b.entries[start:])
	return out, b.next
}

// Cursor returns the sequence number the next appended entry will get.
func (b *Inbox) Cursor() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}

// Changed returns a channel that is closed on the next Append or Reset.
// Take it before calling Since so no append can slip between the two.
func (b *Inbox) Changed() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.changed
}

// Reset drops every retained entry.
func (b *Inbox) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
	b.notifyLocked()
}

// Len returns the number of retained entries.
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Inbox) trimLocked(now time.Time) {
	if b.retention <= 0 {
		return
	}
	cutoff := now.Add(-b.retention)
	i := 0
	for i < len(b.entries) && b.entries[i].ReceivedAt.Before(cutoff) {
		i++
	}
	if i > 0 {
		b.entries = append([]Received(nil), b.entries[i:]...)
	}
}

func (b *Inbox) notifyLocked() {
	close(b.changed)
	b.changed = make(chan struct{})
}
