package exilium

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DualStore fronts the document database with a permanent local-file
// fallback. While the database is healthy it is the primary; every
// successful write is still mirrored to the file so the file is always a
// durable, human-inspectable backup. Any database error flips a
// process-wide flag and the file serves everything until a background
// reconnection attempt succeeds.
type DualStore struct {
	file *FileStore
	log  *zap.Logger

	uri      string
	database string
	retries  int

	mu    sync.Mutex // serializes mongo swaps (reconnect, close)
	mongo atomic.Pointer[MongoStore]

	fallback atomic.Bool
	cron     *cron.Cron
}

// DualStoreOptions configures the dual-backend store.
type DualStoreOptions struct {
	// MongoURI empty means file-only mode: no database, no reconnect task.
	MongoURI      string
	MongoDatabase string
	DataPath      string
	// ConnectRetries bounds the initial connection attempts.
	ConnectRetries int
	// ReconnectSpec is a cron spec for background reconnection attempts,
	// e.g. "@every 2m".
	ReconnectSpec string
}

// OpenDualStore opens the file store, attempts the initial database
// connection with a bounded retry count, and starts the periodic
// reconnection task. Connection exhaustion is not an error: the store
// simply starts in fallback mode.
func OpenDualStore(ctx context.Context, opts DualStoreOptions, log *zap.Logger) (*DualStore, error) {
	file, err := OpenFileStore(opts.DataPath)
	if err != nil {
		return nil, err
	}
	s := &DualStore{
		file:     file,
		log:      log,
		uri:      opts.MongoURI,
		database: opts.MongoDatabase,
		retries:  opts.ConnectRetries,
	}
	if s.retries <= 0 {
		s.retries = 5
	}
	if opts.MongoURI == "" {
		log.Info("no database configured, using local file store")
		s.fallback.Store(true)
		return s, nil
	}

	connected := false
	for attempt := 1; attempt <= s.retries; attempt++ {
		mongo, err := ConnectMongo(ctx, s.uri, s.database, log)
		if err == nil {
			s.mongo.Store(mongo)
			connected = true
			log.Info("connected to database", zap.Int("attempt", attempt))
			break
		}
		log.Warn("database connection failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.retries),
			zap.Error(err))
	}
	if !connected {
		log.Warn("database unreachable, falling back to local file store")
		s.fallback.Store(true)
	}

	spec := opts.ReconnectSpec
	if spec == "" {
		spec = "@every 2m"
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(spec, s.tryReconnect); err != nil {
		return nil, err
	}
	s.cron.Start()
	return s, nil
}

// primary returns the database backend when it is currently serving, nil
// otherwise. The fallback flag is checked first so a mid-swap pointer is
// never handed out while the store is serving from the file.
func (s *DualStore) primary() *MongoStore {
	if s.fallback.Load() {
		return nil
	}
	return s.mongo.Load()
}

// Fallback reports whether the store is currently serving from the file.
func (s *DualStore) Fallback() bool {
	return s.primary() == nil
}

// fail records a database error: the current operation is served from the
// file and every subsequent operation skips the database until the
// reconnection task succeeds.
func (s *DualStore) fail(op string, err error) {
	if s.fallback.CompareAndSwap(false, true) {
		s.log.Warn("database error, switching to file fallback",
			zap.String("op", op), zap.Error(err))
	}
}

// mirror copies a successful primary write to the file backup. Mirror
// errors are logged and swallowed; the backup must never fail an operation.
func (s *DualStore) mirror(op string, err error) {
	if err != nil {
		s.log.Warn("file mirror write failed", zap.String("op", op), zap.Error(err))
	}
}

// tryReconnect runs on the cron schedule. On success it resyncs the file
// state into the database, since the file accumulated writes during the
// outage, and then promotes the database back to primary.
func (s *DualStore) tryReconnect() {
	if s.primary() != nil {
		return
	}
	if s.uri == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mongo, err := ConnectMongo(ctx, s.uri, s.database, s.log)
	if err != nil {
		s.log.Debug("database reconnection attempt failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	if old := s.mongo.Load(); old != nil {
		_ = old.Close(ctx)
	}
	s.mongo.Store(mongo)
	s.mu.Unlock()

	if err := s.resync(ctx, mongo); err != nil {
		s.log.Warn("database resync failed, staying on file fallback", zap.Error(err))
		return
	}
	s.fallback.Store(false)
	s.log.Info("database reconnected, promoted back to primary")
}

// resync pushes the file state to the database so nothing written during
// the outage is lost when the database becomes primary again.
func (s *DualStore) resync(ctx context.Context, mongo *MongoStore) error {
	users, err := s.file.ListUsers(ctx)
	if err != nil {
		return err
	}
	for id, rec := range users {
		if err := mongo.SetUser(ctx, id, rec); err != nil {
			return err
		}
	}
	listings, err := s.file.ListListings(ctx)
	if err != nil {
		return err
	}
	for _, l := range listings {
		if err := mongo.PutListing(ctx, l); err != nil {
			return err
		}
	}
	economia, err := s.file.GetEconomia(ctx)
	if err != nil {
		return err
	}
	if economia != nil {
		if err := mongo.SetEconomia(ctx, economia); err != nil {
			return err
		}
	}
	s.log.Info("resynced file state to database",
		zap.Int("users", len(users)), zap.Int("listings", len(listings)))
	return nil
}

func (s *DualStore) GetUser(ctx context.Context, userID string) (*UserRecord, bool, error) {
	if m := s.primary(); m != nil {
		rec, found, err := m.GetUser(ctx, userID)
		if err == nil {
			return rec, found, nil
		}
		s.fail("get_user", err)
	}
	return s.file.GetUser(ctx, userID)
}

func (s *DualStore) SetUser(ctx context.Context, userID string, rec *UserRecord) error {
	if m := s.primary(); m != nil {
		if err := m.SetUser(ctx, userID, rec); err != nil {
			s.fail("set_user", err)
		} else {
			s.mirror("set_user", s.file.SetUser(ctx, userID, rec))
			return nil
		}
	}
	return s.file.SetUser(ctx, userID, rec)
}

func (s *DualStore) UpdateUser(ctx context.Context, userID string, fields map[string]any) error {
	if m := s.primary(); m != nil {
		if err := m.UpdateUser(ctx, userID, fields); err != nil {
			s.fail("update_user", err)
		} else {
			s.mirror("update_user", s.file.UpdateUser(ctx, userID, fields))
			return nil
		}
	}
	return s.file.UpdateUser(ctx, userID, fields)
}

func (s *DualStore) DeleteUser(ctx context.Context, userID string) error {
	if m := s.primary(); m != nil {
		if err := m.DeleteUser(ctx, userID); err != nil {
			s.fail("delete_user", err)
		} else {
			s.mirror("delete_user", s.file.DeleteUser(ctx, userID))
			return nil
		}
	}
	return s.file.DeleteUser(ctx, userID)
}

func (s *DualStore) ListUsers(ctx context.Context) (map[string]*UserRecord, error) {
	if m := s.primary(); m != nil {
		users, err := m.ListUsers(ctx)
		if err == nil {
			return users, nil
		}
		s.fail("list_users", err)
	}
	return s.file.ListUsers(ctx)
}

func (s *DualStore) ListListings(ctx context.Context) ([]*MarketListing, error) {
	if m := s.primary(); m != nil {
		listings, err := m.ListListings(ctx)
		if err == nil {
			return listings, nil
		}
		s.fail("list_listings", err)
	}
	return s.file.ListListings(ctx)
}

func (s *DualStore) PutListing(ctx context.Context, listing *MarketListing) error {
	if m := s.primary(); m != nil {
		if err := m.PutListing(ctx, listing); err != nil {
			s.fail("put_listing", err)
		} else {
			s.mirror("put_listing", s.file.PutListing(ctx, listing))
			return nil
		}
	}
	return s.file.PutListing(ctx, listing)
}

func (s *DualStore) DeleteListing(ctx context.Context, listingID string) error {
	if m := s.primary(); m != nil {
		if err := m.DeleteListing(ctx, listingID); err != nil {
			s.fail("delete_listing", err)
		} else {
			s.mirror("delete_listing", s.file.DeleteListing(ctx, listingID))
			return nil
		}
	}
	return s.file.DeleteListing(ctx, listingID)
}

func (s *DualStore) GetEconomia(ctx context.Context) (*EconomiaConfig, error) {
	if m := s.primary(); m != nil {
		cfg, err := m.GetEconomia(ctx)
		if err == nil && cfg != nil {
			return cfg, nil
		}
		if err != nil {
			s.fail("get_economia", err)
		}
	}
	return s.file.GetEconomia(ctx)
}

func (s *DualStore) SetEconomia(ctx context.Context, cfg *EconomiaConfig) error {
	if m := s.primary(); m != nil {
		if err := m.SetEconomia(ctx, cfg); err != nil {
			s.fail("set_economia", err)
		} else {
			s.mirror("set_economia", s.file.SetEconomia(ctx, cfg))
			return nil
		}
	}
	return s.file.SetEconomia(ctx, cfg)
}

func (s *DualStore) Close(ctx context.Context) error {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.mongo.Load(); m != nil {
		return m.Close(ctx)
	}
	return nil
}
