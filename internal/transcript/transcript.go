// Package transcript keeps the ordered chat record of one negotiation.
//
// Entries are appended in conversation order. At most one entry is pending
// (a placeholder for a reply that has not arrived yet); it is either resolved
// in place or discarded, so a finished turn never leaves a "thinking" bubble
// behind.
package transcript

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Speaker string

const (
	Customer     Speaker = "customer"
	Counterparty Speaker = "counterparty"
)

var (
	// ErrNoPendingEntry means a resolve was attempted without a placeholder.
	// It indicates a serialization bug in the caller.
	ErrNoPendingEntry = errors.New("transcript: no pending entry")
	// ErrPendingExists means a second placeholder was requested.
	ErrPendingExists = errors.New("transcript: pending entry already exists")
	ErrEmptyContent  = errors.New("transcript: settled entry needs content")
)

type Entry struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Content   string    `json:"content"`
	Pending   bool      `json:"pending"`
	CreatedAt time.Time `json:"created_at"`
}

type ChangeKind string

const (
	ChangeAppended  ChangeKind = "appended"
	ChangeResolved  ChangeKind = "resolved"
	ChangeDiscarded ChangeKind = "discarded"
	ChangeReset     ChangeKind = "reset"
)

// Change describes one mutation. Index is the position of the affected
// entry before the mutation was applied; it is -1 for resets.
type Change struct {
	Kind  ChangeKind
	Index int
	Entry Entry
}

type Transcript struct {
	entries   []Entry
	pending   int
	listeners []func(Change)
	now       func() time.Time
}

func New() *Transcript {
	return &Transcript{pending: -1, now: time.Now}
}

// OnChange registers fn to be called after every mutation.
func (t *Transcript) OnChange(fn func(Change)) {
	if fn == nil {
		return
	}
	t.listeners = append(t.listeners, fn)
}

func (t *Transcript) notify(change Change) {
	for _, fn := range t.listeners {
		fn(change)
	}
}

func (t *Transcript) newEntry(speaker Speaker, content string, pending bool) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Content:   content,
		Pending:   pending,
		CreatedAt: t.now().UTC(),
	}
}

// AppendSettled appends an immutable entry. Blank content is rejected since
// a settled bubble without text carries nothing for the record.
func (t *Transcript) AppendSettled(speaker Speaker, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	entry := t.newEntry(speaker, content, false)
	t.entries = append(t.entries, entry)
	t.notify(Change{Kind: ChangeAppended, Index: len(t.entries) - 1, Entry: entry})
	return nil
}

// AppendPending appends a placeholder for speaker.
func (t *Transcript) AppendPending(speaker Speaker) error {
	if t.pending >= 0 {
		return ErrPendingExists
	}
	entry := t.newEntry(speaker, "", true)
	t.entries = append(t.entries, entry)
	t.pending = len(t.entries) - 1
	t.notify(Change{Kind: ChangeAppended, Index: t.pending, Entry: entry})
	return nil
}

// ResolvePending settles the placeholder in place with content.
func (t *Transcript) ResolvePending(content string) error {
	if t.pending < 0 {
		return ErrNoPendingEntry
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	idx := t.pending
	entry := t.entries[idx]
	entry.Content = content
	entry.Pending = false
	t.entries[idx] = entry
	t.pending = -1
	t.notify(Change{Kind: ChangeResolved, Index: idx, Entry: entry})
	return nil
}

// DiscardPending removes the placeholder. It reports whether one existed.
func (t *Transcript) DiscardPending() bool {
	if t.pending < 0 {
		return false
	}
	idx := t.pending
	entry := t.entries[idx]
	t.entries = append(t.entries[:idx], t.entries[idx+1:]...)
	t.pending = -1
	t.notify(Change{Kind: ChangeDiscarded, Index: idx, Entry: entry})
	return true
}

func (t *Transcript) HasPending() bool {
	return t.pending >= 0
}

func (t *Transcript) Len() int {
	return len(t.entries)
}

// Snapshot returns a copy of the entries in conversation order.
func (t *Transcript) Snapshot() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Settled returns only the settled entries, in order.
func (t *Transcript) Settled() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, entry := range t.entries {
		if !entry.Pending {
			out = append(out, entry)
		}
	}
	return out
}

// Reset drops every entry. Used when a fresh session replaces a closed one.
func (t *Transcript) Reset() {
	t.entries = nil
	t.pending = -1
	t.notify(Change{Kind: ChangeReset, Index: -1})
}
