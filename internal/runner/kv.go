package runner

import (
	"context"
	"fmt"
	"time"

	ristretto "github.com/dgraph-io/ristretto/v2"
	memdb "github.com/hashicorp/go-memdb"

	"github.com/Tuee22/parapet/internal/effect"
)

const (
	kvTable    = "kv"
	kvIndexID  = "id"
	kvItemCost = 1 << 10
)

// kvEntry is a stored key-value record. Raw holds the value's canonical
// bytes so identity survives the round trip. ExpiresAt is a
// millisecond-epoch deadline; zero means no expiry.
type kvEntry struct {
	Key       string
	Raw       []byte
	ExpiresAt int64
}

// KVStore is the backing store shared by the kv.get, kv.set, and
// kv.delete runners: a go-memdb table as the source of truth with a
// ristretto read cache in front. The time source is injected so TTL
// behavior is testable without sleeping.
//
// memdb transactions and the ristretto cache are both safe for
// concurrent use, which is what makes concurrent Run calls on the three
// runners safe without any locking of our own.
type KVStore struct {
	db    *memdb.MemDB
	cache *ristretto.Cache[string, *kvEntry]
	now   func() time.Time
}

func kvSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			kvTable: {
				Name: kvTable,
				Indexes: map[string]*memdb.IndexSchema{
					kvIndexID: {
						Name:    kvIndexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Key"},
					},
				},
			},
		},
	}
}

// NewKVStore builds an empty store. now defaults to time.Now.
func NewKVStore(now func() time.Time) (*KVStore, error) {
	if now == nil {
		now = time.Now
	}
	db, err := memdb.NewMemDB(kvSchema())
	if err != nil {
		return nil, fmt.Errorf("kv schema: %w", err)
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *kvEntry]{
		NumCounters: 1e5,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("kv cache: %w", err)
	}
	return &KVStore{db: db, cache: cache, now: now}, nil
}

// Runners returns the three kv runners bound to this store.
func (s *KVStore) Runners(timeout time.Duration) []Runner {
	return []Runner{
		newGuarded(effect.KindKVGet, timeout, s.get),
		newGuarded(effect.KindKVSet, timeout, s.set),
		newGuarded(effect.KindKVDelete, timeout, s.del),
	}
}

// Preload inserts a record directly, bypassing the effect path.
// Used by conformance fixtures and tests.
func (s *KVStore) Preload(key string, value effect.Value, ttlMS int64) error {
	raw, err := effect.MarshalCanonical(value)
	if err != nil {
		return fmt.Errorf("preload %q: %w", key, err)
	}
	entry := &kvEntry{Key: key, Raw: raw, ExpiresAt: s.deadline(ttlMS)}
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(kvTable, entry); err != nil {
		return fmt.Errorf("preload %q: %w", key, err)
	}
	txn.Commit()
	s.cache.Set(key, entry, kvItemCost)
	return nil
}

// Wait flushes pending cache writes. Tests call this before asserting
// on cache-visible state.
func (s *KVStore) Wait() {
	s.cache.Wait()
}

func (s *KVStore) deadline(ttlMS int64) int64 {
	if ttlMS <= 0 {
		return 0
	}
	return s.now().UnixMilli() + ttlMS
}

func (s *KVStore) expired(e *kvEntry) bool {
	return e.ExpiresAt > 0 && s.now().UnixMilli() >= e.ExpiresAt
}

// lookup finds a live entry for key, consulting the cache first and
// falling back to memdb. Expired entries are reaped on sight.
func (s *KVStore) lookup(key string) (*kvEntry, error) {
	if entry, ok := s.cache.Get(key); ok && entry != nil {
		if !s.expired(entry) {
			return entry, nil
		}
		s.reap(key)
		return nil, nil
	}

	txn := s.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(kvTable, kvIndexID, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	entry := raw.(*kvEntry)
	if s.expired(entry) {
		s.reap(key)
		return nil, nil
	}
	s.cache.Set(key, entry, kvItemCost)
	return entry, nil
}

// reap removes an expired entry from both layers.
func (s *KVStore) reap(key string) {
	s.cache.Del(key)
	txn := s.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(kvTable, kvIndexID, key)
	if err != nil || raw == nil {
		return
	}
	if err := txn.Delete(kvTable, raw); err != nil {
		return
	}
	txn.Commit()
}

func (s *KVStore) get(_ context.Context, payload effect.Object) effect.Outcome {
	key, ok := payload.Str("key")
	if !ok || key == "" {
		return effect.Fail(effect.CaseUnknown, "kv.get payload missing key")
	}
	entry, err := s.lookup(key)
	if err != nil {
		return effect.Failf(effect.CaseUnknown, "kv lookup: %v", err)
	}
	if entry == nil {
		// Absence is data, not failure.
		return effect.Data(effect.CaseMissing, effect.Object{})
	}
	val, err := effect.UnmarshalValue(entry.Raw)
	if err != nil {
		return effect.Failf(effect.CaseUnknown, "kv stored value corrupt: %v", err)
	}
	return effect.Ok(effect.Object{"value": val})
}

func (s *KVStore) set(_ context.Context, payload effect.Object) effect.Outcome {
	key, ok := payload.Str("key")
	if !ok || key == "" {
		return effect.Fail(effect.CaseInvalid, "kv.set payload missing key")
	}
	value, ok := payload["value"]
	if !ok {
		return effect.Fail(effect.CaseInvalid, "kv.set payload missing value")
	}
	ttlMS, _ := payload.Int64("ttl_ms")
	if ttlMS < 0 {
		return effect.Failf(effect.CaseInvalid, "kv.set ttl_ms must be non-negative, got %d", ttlMS)
	}

	raw, err := effect.MarshalCanonical(value)
	if err != nil {
		return effect.Failf(effect.CaseInvalid, "kv.set value not canonicalizable: %v", err)
	}
	entry := &kvEntry{Key: key, Raw: raw, ExpiresAt: s.deadline(ttlMS)}

	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(kvTable, entry); err != nil {
		return effect.Failf(effect.CaseUnknown, "kv insert: %v", err)
	}
	txn.Commit()
	s.cache.Set(key, entry, kvItemCost)
	return effect.Ok(effect.Object{})
}

func (s *KVStore) del(_ context.Context, payload effect.Object) effect.Outcome {
	key, ok := payload.Str("key")
	if !ok || key == "" {
		return effect.Fail(effect.CaseUnknown, "kv.delete payload missing key")
	}
	entry, err := s.lookup(key)
	if err != nil {
		return effect.Failf(effect.CaseUnknown, "kv lookup: %v", err)
	}
	if entry == nil {
		return effect.Data(effect.CaseMissing, effect.Object{})
	}

	txn := s.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(kvTable, kvIndexID, key)
	if err != nil {
		return effect.Failf(effect.CaseUnknown, "kv delete lookup: %v", err)
	}
	if raw != nil {
		if err := txn.Delete(kvTable, raw); err != nil {
			return effect.Failf(effect.CaseUnknown, "kv delete: %v", err)
		}
	}
	txn.Commit()
	s.cache.Del(key)
	return effect.Ok(effect.Object{})
}
