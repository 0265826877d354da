package exilium

import (
	"context"
	"sync"
	"time"
)

// DefaultSnapshotTTL bounds how stale the in-memory view may get before the
// next read triggers a re-snapshot.
const DefaultSnapshotTTL = 5 * time.Second

// Snapshot is the record compatibility view: an in-memory copy of all user
// documents that mirrors its own mutations back to the store synchronously.
//
// This is a cache, not a source of truth. It is not reactive to out-of-band
// writes made elsewhere during its lifetime (a TTL re-snapshot bounds the
// staleness), and it is not safe across multiple processes. Callers get map
// semantics; durability belongs to the Store.
type Snapshot struct {
	store Store
	ttl   time.Duration

	mu       sync.Mutex
	users    map[string]*UserRecord
	loadedAt time.Time
}

// NewSnapshot loads the full user set and returns the view.
func NewSnapshot(ctx context.Context, store Store, ttl time.Duration) (*Snapshot, error) {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	s := &Snapshot{store: store, ttl: ttl}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// reload re-reads the whole user set. Callers must hold s.mu.
func (s *Snapshot) reload(ctx context.Context) error {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	s.users = users
	s.loadedAt = time.Now()
	return nil
}

func (s *Snapshot) refreshLocked(ctx context.Context) error {
	if time.Since(s.loadedAt) < s.ttl {
		return nil
	}
	return s.reload(ctx)
}

// Get returns a copy of the user's record, re-snapshotting first when the
// view has expired.
func (s *Snapshot) Get(ctx context.Context, userID string) (*UserRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return nil, false, err
	}
	rec, ok := s.users[userID]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

// All returns a copy of every record keyed by user id.
func (s *Snapshot) All(ctx context.Context) (map[string]*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]*UserRecord, len(s.users))
	for id, rec := range s.users {
		out[id] = rec.Clone()
	}
	return out, nil
}

// Put writes through to the store and patches the cached copy, so the view
// immediately reflects this process's own writes.
func (s *Snapshot) Put(ctx context.Context, userID string, rec *UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.SetUser(ctx, userID, rec); err != nil {
		return err
	}
	s.users[userID] = rec.Clone()
	return nil
}

// Delete removes the record from the store and the cached view.
func (s *Snapshot) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return err
	}
	delete(s.users, userID)
	return nil
}
