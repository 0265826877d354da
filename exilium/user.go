package exilium

import (
	"context"
	"sync"
	"time"
)

// UserRecord is the canonical per-player document. Field names match the
// persisted layout, which predates this implementation, so the file store
// stays readable by older tooling.
//
// Invariants: Souls >= 0 at all times, every Itens quantity >= 1 (zero
// quantities are deleted, never stored), and Level is derived from XP and
// never mutated independently.
type UserRecord struct {
	Sobre            *string          `json:"sobre" bson:"sobre"`
	TempoTotal       int64            `json:"tempo_total" bson:"tempo_total"`
	Souls            int64            `json:"soul" bson:"soul"`
	XP               int64            `json:"xp" bson:"xp"`
	Level            int              `json:"level" bson:"level"`
	LastDaily        *time.Time       `json:"last_daily" bson:"last_daily"`
	LastMine         *time.Time       `json:"last_mine" bson:"last_mine"`
	MineStreak       int              `json:"mine_streak" bson:"mine_streak"`
	DailyStreak      int              `json:"daily_streak" bson:"daily_streak"`
	LastCaca         *time.Time       `json:"last_caca" bson:"last_caca"`
	CacaStreak       int              `json:"caca_streak" bson:"caca_streak"`
	CacaLongaAtiva   *string          `json:"caca_longa_ativa" bson:"caca_longa_ativa"`
	TrabalhoAtual    *string          `json:"trabalho_atual" bson:"trabalho_atual"`
	LastTrabalho     *time.Time       `json:"last_trabalho" bson:"last_trabalho"`
	LastCombate      *time.Time       `json:"last_combate" bson:"last_combate"`
	LastMessageXP    *time.Time       `json:"last_message_xp" bson:"last_message_xp"`
	Missoes          []string         `json:"missoes" bson:"missoes"`
	MissoesCompletas []string         `json:"missoes_completas" bson:"missoes_completas"`
	Itens            map[string]int64 `json:"itens" bson:"itens"`
	Equipados        map[string]bool  `json:"equipados" bson:"equipados"`
}

// DefaultUserRecord returns the full default schema for a new player.
func DefaultUserRecord() *UserRecord {
	return &UserRecord{
		Level:            1,
		Missoes:          []string{},
		MissoesCompletas: []string{},
		Itens:            map[string]int64{},
		Equipados:        map[string]bool{},
	}
}

// fillDefaults adds any missing schema field with its default value without
// touching fields that are already present. It reports whether anything was
// filled, so callers can skip the persist when the record was already
// complete. This is how additive schema evolution works: no migrations, just
// a deterministic backfill pass on read.
func (r *UserRecord) fillDefaults() bool {
	changed := false
	if r.Level < 1 {
		r.Level = 1
		changed = true
	}
	if r.Missoes == nil {
		r.Missoes = []string{}
		changed = true
	}
	if r.MissoesCompletas == nil {
		r.MissoesCompletas = []string{}
		changed = true
	}
	if r.Itens == nil {
		r.Itens = map[string]int64{}
		changed = true
	}
	if r.Equipados == nil {
		r.Equipados = map[string]bool{}
		changed = true
	}
	return changed
}

// Clone returns a deep copy so callers can mutate freely before writing back.
func (r *UserRecord) Clone() *UserRecord {
	out := *r
	out.Missoes = append([]string(nil), r.Missoes...)
	out.MissoesCompletas = append([]string(nil), r.MissoesCompletas...)
	out.Itens = make(map[string]int64, len(r.Itens))
	for k, v := range r.Itens {
		out.Itens[k] = v
	}
	out.Equipados = make(map[string]bool, len(r.Equipados))
	for k, v := range r.Equipados {
		out.Equipados[k] = v
	}
	return &out
}

// userLocks serializes read-modify-write cycles per user key. Two commands
// touching the same user run one after the other instead of overwriting
// each other's update.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// UserRegistry owns the user record lifecycle: canonical ids, creation with
// the full default schema, and backfill of missing fields.
type UserRegistry struct {
	snap  *Snapshot
	locks *userLocks
}

// NewUserRegistry creates a registry over the given snapshot view.
func NewUserRegistry(snap *Snapshot, locks *userLocks) *UserRegistry {
	return &UserRegistry{snap: snap, locks: locks}
}

// EnsureUser guarantees a canonical record exists for the user and returns
// the canonical string key. Existing values are never overwritten; only
// missing fields are added, and nothing is persisted when the record is
// already complete.
func (u *UserRegistry) EnsureUser(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrBadInput
	}
	unlock := u.locks.lock(userID)
	defer unlock()

	rec, found, err := u.snap.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if !found {
		if err := u.snap.Put(ctx, userID, DefaultUserRecord()); err != nil {
			return "", err
		}
		return userID, nil
	}
	if rec.fillDefaults() {
		if err := u.snap.Put(ctx, userID, rec); err != nil {
			return "", err
		}
	}
	return userID, nil
}

// get loads the record for a user that is expected to exist, ensuring it
// first. Callers must hold the user lock.
func (u *UserRegistry) get(ctx context.Context, userID string) (*UserRecord, error) {
	rec, found, err := u.snap.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		rec = DefaultUserRecord()
	} else {
		rec.fillDefaults()
	}
	return rec, nil
}

func (u *UserRegistry) put(ctx context.Context, userID string, rec *UserRecord) error {
	return u.snap.Put(ctx, userID, rec)
}
