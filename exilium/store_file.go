package exilium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Reserved top-level keys in the fallback file. Everything else is a user id.
const (
	economiaKey = "_economia"
	marketKey   = "_market"
)

// FileStore persists the whole state as one human-readable JSON object:
// user ids mapped to records, plus the reserved "_economia" and "_market"
// keys. It is the permanent fallback backend and doubles as the durable
// mirror while the document database is primary.
type FileStore struct {
	path string

	mu       sync.Mutex
	users    map[string]*UserRecord
	economia *EconomiaConfig
	market   map[string]*MarketListing
}

// OpenFileStore loads (or initializes) the JSON file at path.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		users:  make(map[string]*UserRecord),
		market: make(map[string]*MarketListing),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		// A corrupt file starts over empty, matching the long-standing
		// fallback behavior; callers still have the broken file on disk.
		return nil
	}
	for key, msg := range raw {
		switch {
		case key == economiaKey:
			cfg := &EconomiaConfig{}
			if err := json.Unmarshal(msg, cfg); err == nil {
				s.economia = cfg
			}
		case key == marketKey:
			var listings []*MarketListing
			if err := json.Unmarshal(msg, &listings); err == nil {
				for _, l := range listings {
					s.market[l.ID] = l
				}
			}
		case strings.HasPrefix(key, "_"):
			// Unknown reserved key: preserve-by-ignore. It is dropped on
			// the next save, same as the original fallback file handling.
		default:
			rec := &UserRecord{}
			if err := json.Unmarshal(msg, rec); err == nil {
				s.users[key] = rec
			}
		}
	}
	return nil
}

// save writes the file atomically. Callers must hold s.mu.
func (s *FileStore) save() error {
	doc := make(map[string]any, len(s.users)+2)
	for id, rec := range s.users {
		doc[id] = rec
	}
	if s.economia != nil {
		doc[economiaKey] = s.economia
	}
	if len(s.market) > 0 {
		listings := make([]*MarketListing, 0, len(s.market))
		for _, l := range s.market {
			listings = append(listings, l)
		}
		sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })
		doc[marketKey] = listings
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) GetUser(ctx context.Context, userID string) (*UserRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

func (s *FileStore) SetUser(ctx context.Context, userID string, rec *UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = rec.Clone()
	return s.save()
}

func (s *FileStore) UpdateUser(ctx context.Context, userID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		rec = &UserRecord{}
	}
	merged, err := mergeRecord(rec, fields)
	if err != nil {
		return err
	}
	s.users[userID] = merged
	return s.save()
}

func (s *FileStore) DeleteUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return s.save()
}

func (s *FileStore) ListUsers(ctx context.Context) (map[string]*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*UserRecord, len(s.users))
	for id, rec := range s.users {
		out[id] = rec.Clone()
	}
	return out, nil
}

func (s *FileStore) ListListings(ctx context.Context) ([]*MarketListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*MarketListing, 0, len(s.market))
	for _, l := range s.market {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *FileStore) PutListing(ctx context.Context, listing *MarketListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *listing
	s.market[listing.ID] = &cp
	return s.save()
}

func (s *FileStore) DeleteListing(ctx context.Context, listingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.market, listingID)
	return s.save()
}

func (s *FileStore) GetEconomia(ctx context.Context) (*EconomiaConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.economia, nil
}

func (s *FileStore) SetEconomia(ctx context.Context, cfg *EconomiaConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.economia = cfg
	return s.save()
}

func (s *FileStore) Close(ctx context.Context) error {
	return nil
}

// mergeRecord applies a shallow field merge onto a record through a JSON
// round trip, so partial updates use the same field names as the persisted
// layout.
func mergeRecord(rec *UserRecord, fields map[string]any) (*UserRecord, error) {
	base, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &doc); err != nil {
		return nil, err
	}
	for key, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		doc[key] = raw
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	out := &UserRecord{}
	if err := json.Unmarshal(merged, out); err != nil {
		return nil, err
	}
	return out, nil
}
