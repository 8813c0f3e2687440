package authority

import (
	"context"
	"sync"
	"time"
)

// JournalEntry records one certificate issuance.
//
// Only public material is journaled, the private certificate scalar is handed
// to the registrant and never persisted by the authority.
type JournalEntry struct {
	Identity []byte
	Ai       []byte
	Ar       []byte
	IssuedAt time.Time
}

// Journal is the authority issuance record.
//
// Implementations enforce identity uniqueness: Record fails with ErrDuplicate
// when an entry for the same identity already exists.
type Journal interface {
	Record(ctx context.Context, entry JournalEntry) error
	Lookup(ctx context.Context, identity []byte) (JournalEntry, bool, error)
	Count(ctx context.Context) (int, error)
}

// MemJournal is an in memory Journal.
type MemJournal struct {
	mut     sync.Mutex
	entries map[string]JournalEntry
}

// NewMemJournal returns an empty MemJournal.
func NewMemJournal() *MemJournal {
	return &MemJournal{entries: make(map[string]JournalEntry)}
}

// Record registers entry.
// It errors with ErrDuplicate if the identity was journaled before.
func (self *MemJournal) Record(_ context.Context, entry JournalEntry) error {
	self.mut.Lock()
	defer self.mut.Unlock()

	key := string(entry.Identity)
	if _, found := self.entries[key]; found {
		return duplicateError("identity already journaled")
	}
	self.entries[key] = entry

	return nil
}

// Lookup returns the entry journaled for identity.
// The bool flag is true if such an entry exists.
func (self *MemJournal) Lookup(_ context.Context, identity []byte) (JournalEntry, bool, error) {
	self.mut.Lock()
	defer self.mut.Unlock()

	entry, found := self.entries[string(identity)]

	return entry, found, nil
}

// Count returns the number of journaled issuances.
func (self *MemJournal) Count(_ context.Context) (int, error) {
	self.mut.Lock()
	defer self.mut.Unlock()

	return len(self.entries), nil
}

var _ Journal = &MemJournal{}
