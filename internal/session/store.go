// Package session holds the pending, partially resolved expense for each sender.
package session

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/ledger-chat/internal/models"
)

// WaitingFor names the single field a pending session is blocked on.
type WaitingFor int

const (
	// WaitingForDate awaits a date reply.
	WaitingForDate WaitingFor = iota + 1
	// WaitingForCategory awaits a menu position or category name.
	WaitingForCategory
	// WaitingForCustomCategory awaits a free-text name for a new category.
	WaitingForCustomCategory
)

// String implements fmt.Stringer with the state names used in logs.
func (w WaitingFor) String() string {
	switch w {
	case WaitingForDate:
		return "awaiting_date"
	case WaitingForCategory:
		return "awaiting_category"
	case WaitingForCustomCategory:
		return "awaiting_custom_category"
	default:
		return "no_session"
	}
}

// Pending is an expense that still needs one more answer.
// Amount and Description are always set; Date may be zero.
type Pending struct {
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Category    models.CategoryChoice
	WaitingFor  WaitingFor
	UpdatedAt   time.Time
}

// Expense returns the completed expense for category.
func (p Pending) Expense(category string) models.Expense {
	return models.Expense{
		Date:        p.Date,
		Amount:      p.Amount,
		Description: p.Description,
		Category:    category,
	}
}

// Store maps sender identifiers to at most one pending session.
// Callers take a per-sender lock with Lock, so messages from one sender
// are handled one at a time while different senders proceed in parallel.
type Store struct {
	idleTimeout time.Duration
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	refs    int
	pending *Pending
}

// NewStore creates a Store. A positive idleTimeout expires sessions that
// have not been touched for that long; zero keeps them indefinitely.
func NewStore(idleTimeout time.Duration) *Store {
	if idleTimeout < 0 {
		idleTimeout = 0
	}
	return &Store{
		idleTimeout: idleTimeout,
		now:         time.Now,
		entries:     make(map[string]*entry),
	}
}

// Lock blocks until the sender's slot is free and returns it.
// The caller must call Unlock when done.
func (s *Store) Lock(senderID string) *Slot {
	s.mu.Lock()
	e, ok := s.entries[senderID]
	if !ok {
		e = &entry{}
		s.entries[senderID] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	return &Slot{store: s, senderID: senderID, entry: e}
}

// Len returns the number of open sessions. It waits for slots that are
// currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.entries {
		e.mu.Lock()
		if e.pending != nil {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// Slot is exclusive access to one sender's session.
type Slot struct {
	store    *Store
	senderID string
	entry    *entry
	released bool
}

// Get returns the open session, if any. An expired session is dropped.
func (sl *Slot) Get() (Pending, bool) {
	p := sl.entry.pending
	if p == nil {
		return Pending{}, false
	}
	if sl.store.idleTimeout > 0 && sl.store.now().Sub(p.UpdatedAt) >= sl.store.idleTimeout {
		sl.entry.pending = nil
		return Pending{}, false
	}
	return *p, true
}

// Set replaces the session and stamps UpdatedAt.
func (sl *Slot) Set(p Pending) {
	p.UpdatedAt = sl.store.now()
	sl.entry.pending = &p
}

// Clear removes the session.
func (sl *Slot) Clear() {
	sl.entry.pending = nil
}

// Unlock releases the slot. Calling it more than once is a no-op.
func (sl *Slot) Unlock() {
	if sl.released {
		return
	}
	sl.released = true
	sl.entry.mu.Unlock()

	sl.store.mu.Lock()
	defer sl.store.mu.Unlock()
	sl.entry.refs--
	// With no holders left, pending can be read under the store lock.
	if sl.entry.refs == 0 && sl.entry.pending == nil {
		delete(sl.store.entries, sl.senderID)
	}
}
