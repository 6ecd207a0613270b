// Package state implements the ephemeral key/value store shared by the
// service for transient cross-request values: counters, cached lookups,
// feature flags. Entries carry optional expiration and metadata; expired
// entries are logically absent from reads until a cleanup sweep removes
// them physically.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harrison/overseer/internal/logger"
)

var (
	// ErrNotFound indicates the key is absent or expired.
	ErrNotFound = errors.New("state: key not found")
	// ErrNotNumeric indicates an increment/decrement on a non-numeric value.
	ErrNotNumeric = errors.New("state: value is not numeric")
	// ErrNotArray indicates an array operation on a non-array value.
	ErrNotArray = errors.New("state: value is not an array")
)

// Entry is one key/value record with its bookkeeping fields.
type Entry struct {
	Key       string         `json:"key"`
	Value     any            `json:"value"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	seq uint64 // insertion order for queries
}

func (e *Entry) expiredAt(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// Option configures a Set or Update call.
type Option func(*options)

type options struct {
	ttl             time.Duration
	hasTTL          bool
	metadata        map[string]any
	hasMetadata     bool
	replaceMetadata bool
}

// WithTTL sets the entry's time to live. The entry expires at now+ttl; an
// explicit zero ttl expires immediately.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
		o.hasTTL = true
	}
}

// WithMetadata attaches metadata to the entry. On Update the map is
// shallow-merged over existing metadata unless WithMetadataReplace is also
// given.
func WithMetadata(md map[string]any) Option {
	return func(o *options) {
		o.metadata = md
		o.hasMetadata = true
	}
}

// WithMetadataReplace makes Update replace the metadata map wholesale
// instead of merging.
func WithMetadataReplace() Option {
	return func(o *options) {
		o.replaceMetadata = true
	}
}

// Query filters and paginates entry listings.
type Query struct {
	Prefix         string
	Offset         int
	Limit          int // 0 means no limit
	IncludeExpired bool
}

// Stats summarizes the store's contents.
type Stats struct {
	TotalEntries   int        `json:"totalEntries"`
	ExpiredEntries int        `json:"expiredEntries"`
	ApproxBytes    int64      `json:"approxBytes"`
	OldestEntry    *time.Time `json:"oldestEntry,omitempty"`
	NewestEntry    *time.Time `json:"newestEntry,omitempty"`
}

// Store is an in-memory TTL key/value store. All operations are safe for
// concurrent use; per-key read-modify-write operations (Increment,
// PushToArray, ...) are atomic under a single store-wide mutex.
//
// A Store is an owned object, not a process singleton: create it at startup
// and Close it on shutdown so the optional janitor goroutine stops cleanly.
type Store struct {
	mu      sync.Mutex
	entries map[string]*Entry
	nextSeq uint64

	stopJanitor chan struct{}
	janitorDone chan struct{}
	closeOnce   sync.Once
}

// New creates an empty store without a background janitor. Expired entries
// linger (invisible to reads) until CleanupExpiredEntries or Delete.
func New() *Store {
	return &Store{entries: make(map[string]*Entry)}
}

// NewWithJanitor creates a store that sweeps expired entries every
// interval. Close stops the sweep. The logger may be nil.
func NewWithJanitor(interval time.Duration, log *logger.ConsoleLogger) *Store {
	s := New()
	if interval <= 0 {
		return s
	}
	s.stopJanitor = make(chan struct{})
	s.janitorDone = make(chan struct{})
	go s.janitor(interval, log)
	return s
}

func (s *Store) janitor(interval time.Duration, log *logger.ConsoleLogger) {
	defer close(s.janitorDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if removed := s.CleanupExpiredEntries(); removed > 0 && log != nil {
				log.Debugf("state janitor removed %d expired entries", removed)
			}
		case <-s.stopJanitor:
			return
		}
	}
}

// Close stops the janitor, if one is running. The store remains usable.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		if s.stopJanitor != nil {
			close(s.stopJanitor)
			<-s.janitorDone
		}
	})
}

// Set creates the entry or fully replaces its value and options. An
// existing live entry keeps its CreatedAt and insertion position; an absent
// or expired key starts fresh.
func (s *Store) Set(key string, value any, opts ...Option) {
	o := collect(opts)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value, o, now)
}

func (s *Store) setLocked(key string, value any, o options, now time.Time) *Entry {
	e := &Entry{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prev, ok := s.entries[key]; ok && !prev.expiredAt(now) {
		e.CreatedAt = prev.CreatedAt
		e.seq = prev.seq
	} else {
		e.seq = s.nextSeq
		s.nextSeq++
	}
	if o.hasTTL {
		exp := now.Add(o.ttl)
		e.ExpiresAt = &exp
	}
	if o.hasMetadata {
		e.Metadata = cloneMetadata(o.metadata)
	}
	s.entries[key] = e
	return e
}

// Update replaces the value of an existing live entry, optionally
// refreshing its TTL and merging or replacing its metadata. Returns
// ErrNotFound for an absent or expired key.
func (s *Store) Update(key string, value any, opts ...Option) error {
	o := collect(opts)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expiredAt(now) {
		return fmt.Errorf("update %q: %w", key, ErrNotFound)
	}

	e.Value = value
	e.UpdatedAt = now
	if o.hasTTL {
		exp := now.Add(o.ttl)
		e.ExpiresAt = &exp
	}
	if o.hasMetadata {
		if o.replaceMetadata || e.Metadata == nil {
			e.Metadata = cloneMetadata(o.metadata)
		} else {
			for k, v := range o.metadata {
				e.Metadata[k] = v
			}
		}
	}
	return nil
}

// Get returns the value for key, or false for an absent or expired key.
func (s *Store) Get(key string) (any, bool) {
	e, ok := s.GetEntry(key)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// GetEntry returns a copy of the full entry for key, or false for an
// absent or expired key.
func (s *Store) GetEntry(key string) (Entry, bool) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expiredAt(now) {
		return Entry{}, false
	}
	return copyEntry(e), true
}

// Delete removes the key regardless of expiration and reports whether it
// existed.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok
}

// List returns entries matching q in insertion order. Expired entries are
// excluded unless q.IncludeExpired; pagination applies after filtering.
func (s *Store) List(q Query) []Entry {
	now := time.Now().UTC()

	// Copies are taken while the lock is held; the live *Entry structs and
	// their metadata maps are mutated in place by Update and the per-key
	// read-modify-write operations.
	s.mu.Lock()
	matched := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if q.Prefix != "" && !strings.HasPrefix(e.Key, q.Prefix) {
			continue
		}
		if !q.IncludeExpired && e.expiredAt(now) {
			continue
		}
		matched = append(matched, copyEntry(e))
	}
	s.mu.Unlock()

	sortBySeq(matched)

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched
}

// Keys returns all non-expired keys in insertion order, optionally
// filtered by prefix.
func (s *Store) Keys(prefix string) []string {
	entries := s.List(Query{Prefix: prefix})
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// Increment atomically adds amount to a numeric value, creating the key at
// zero first if absent or expired, and returns the new value. Returns
// ErrNotNumeric if the existing value is not a number.
func (s *Store) Increment(key string, amount float64) (float64, error) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expiredAt(now) {
		e = s.setLocked(key, float64(0), options{}, now)
	}

	n, ok := toNumber(e.Value)
	if !ok {
		return 0, fmt.Errorf("increment %q: %w", key, ErrNotNumeric)
	}

	n += amount
	e.Value = n
	e.UpdatedAt = now
	return n, nil
}

// Decrement atomically subtracts amount; see Increment.
func (s *Store) Decrement(key string, amount float64) (float64, error) {
	return s.Increment(key, -amount)
}

// PushToArray atomically appends items to an array value, creating an
// empty array first if the key is absent or expired, and returns the
// resulting array. Returns ErrNotArray if the existing value is not
// array-shaped.
func (s *Store) PushToArray(key string, items ...any) ([]any, error) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expiredAt(now) {
		e = s.setLocked(key, []any{}, options{}, now)
	}

	arr, ok := toArray(e.Value)
	if !ok {
		return nil, fmt.Errorf("push to %q: %w", key, ErrNotArray)
	}

	arr = append(arr, items...)
	e.Value = arr
	e.UpdatedAt = now
	return arr, nil
}

// RemoveFromArray atomically removes every element equal to one of items
// from an array value and returns the resulting array. Returns ErrNotFound
// for an absent or expired key and ErrNotArray for a non-array value.
func (s *Store) RemoveFromArray(key string, items ...any) ([]any, error) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expiredAt(now) {
		return nil, fmt.Errorf("remove from %q: %w", key, ErrNotFound)
	}

	arr, ok := toArray(e.Value)
	if !ok {
		return nil, fmt.Errorf("remove from %q: %w", key, ErrNotArray)
	}

	kept := make([]any, 0, len(arr))
	for _, v := range arr {
		remove := false
		for _, item := range items {
			if reflect.DeepEqual(v, item) {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, v)
		}
	}

	e.Value = kept
	e.UpdatedAt = now
	return kept, nil
}

// CleanupExpiredEntries removes every physically present entry whose
// expiration has passed and returns the count removed.
func (s *Store) CleanupExpiredEntries() int {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if e.expiredAt(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Entry)
}

// GetStats reports entry counts, approximate memory footprint, and the
// age range of stored entries. Expired-but-uncleaned entries are counted
// separately and included in the totals.
func (s *Store) GetStats() Stats {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{TotalEntries: len(s.entries)}
	for _, e := range s.entries {
		if e.expiredAt(now) {
			stats.ExpiredEntries++
		}
		stats.ApproxBytes += approxSize(e)
		if stats.OldestEntry == nil || e.CreatedAt.Before(*stats.OldestEntry) {
			created := e.CreatedAt
			stats.OldestEntry = &created
		}
		if stats.NewestEntry == nil || e.CreatedAt.After(*stats.NewestEntry) {
			created := e.CreatedAt
			stats.NewestEntry = &created
		}
	}
	return stats
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func cloneMetadata(md map[string]any) map[string]any {
	if md == nil {
		return nil
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

func copyEntry(e *Entry) Entry {
	out := *e
	out.Metadata = cloneMetadata(e.Metadata)
	if e.ExpiresAt != nil {
		exp := *e.ExpiresAt
		out.ExpiresAt = &exp
	}
	return out
}

func sortBySeq(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toArray(v any) ([]any, bool) {
	switch a := v.(type) {
	case []any:
		return a, true
	case nil:
		return []any{}, true
	default:
		return nil, false
	}
}

func approxSize(e *Entry) int64 {
	size := int64(len(e.Key)) + 64 // fixed overhead estimate per entry
	if data, err := json.Marshal(e.Value); err == nil {
		size += int64(len(data))
	}
	if len(e.Metadata) > 0 {
		if data, err := json.Marshal(e.Metadata); err == nil {
			size += int64(len(data))
		}
	}
	return size
}
