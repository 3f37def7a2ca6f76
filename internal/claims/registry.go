// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package claims

import (
	"context"
	"sync"
	"time"
)

// Entry is the pending confirmation of one listing. It lives only in the
// registry and is never written to the listing store.
type Entry struct {
	ExpiresAt   time.Time
	Code        string
	Token       string // identifies this hold among successive holds on the listing
	ListingID   int64
	RecipientID int64
	Attempts    int
}

// Expired reports whether the confirmation window has closed at now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Registry tracks at most one pending confirmation per listing. Every method
// is atomic with respect to concurrent callers.
type Registry interface {
	// Insert stores entry. It fails with ErrEntryExists while an unexpired
	// entry is held for the listing; an expired one is replaced.
	Insert(ctx context.Context, entry Entry, now time.Time) error
	// Get returns the entry of a listing or ErrNotFound.
	Get(ctx context.Context, listingID int64) (Entry, error)
	// CompareAndDelete removes the entry only if its token still matches and
	// reports whether it did.
	CompareAndDelete(ctx context.Context, listingID int64, token string) (bool, error)
	// RecordMismatch counts a wrong code against the entry and returns the
	// new count, or ErrNotFound if the entry was replaced or removed.
	RecordMismatch(ctx context.Context, listingID int64, token string) (int, error)
	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)
}

const registryShards = 32

type registryShard struct {
	entries map[int64]Entry
	mu      sync.Mutex
}

// MemoryRegistry is a sharded in-process Registry.
type MemoryRegistry struct {
	shards [registryShards]registryShard
}

var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	r := &MemoryRegistry{}
	for i := range r.shards {
		r.shards[i].entries = make(map[int64]Entry)
	}
	return r
}

func (r *MemoryRegistry) shard(listingID int64) *registryShard {
	return &r.shards[uint64(listingID)%registryShards]
}

func (r *MemoryRegistry) Insert(_ context.Context, entry Entry, now time.Time) error {
	s := r.shard(entry.ListingID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[entry.ListingID]; ok && !existing.Expired(now) {
		return ErrEntryExists
	}
	s.entries[entry.ListingID] = entry
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, listingID int64) (Entry, error) {
	s := r.shard(listingID)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[listingID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (r *MemoryRegistry) CompareAndDelete(_ context.Context, listingID int64, token string) (bool, error) {
	s := r.shard(listingID)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[listingID]
	if !ok || entry.Token != token {
		return false, nil
	}
	delete(s.entries, listingID)
	return true, nil
}

func (r *MemoryRegistry) RecordMismatch(_ context.Context, listingID int64, token string) (int, error) {
	s := r.shard(listingID)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[listingID]
	if !ok || entry.Token != token {
		return 0, ErrNotFound
	}
	entry.Attempts++
	s.entries[listingID] = entry
	return entry.Attempts, nil
}

func (r *MemoryRegistry) Len(_ context.Context) (int, error) {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n, nil
}
