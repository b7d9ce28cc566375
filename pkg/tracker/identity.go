// Package tracker is the visitor side of the analytics pipeline: it keeps a
// durable pseudonymous visitor id, classifies a page visit as bounce or
// converted, and delivers events to the ingest endpoint.
package tracker

import (
	"math/rand/v2"
	"strconv"
	"sync"
	"time"
)

const (
	keyVisitorID  = "visitor_id"
	keyFirstVisit = "first_visit"
	keyVisitCount = "visit_count"
)

// KeyValueStore is durable per-browser storage. Any method may fail
// (storage disabled, quota, private mode).
type KeyValueStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// MemoryStore is a KeyValueStore kept in memory.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

// Visit describes the current page load.
type Visit struct {
	VisitorID  string
	IsNew      bool
	VisitCount int
}

// Identify reads or creates the visitor id and bumps the visit counter.
// It never fails: unusable storage makes every visit a new one.
func Identify(store KeyValueStore, now time.Time) Visit {
	v := Visit{}

	id, ok, err := store.Get(keyVisitorID)
	if err != nil || !ok || id == "" {
		v.VisitorID = NewVisitorID(now)
		v.IsNew = true
		if err == nil && store.Set(keyVisitorID, v.VisitorID) == nil {
			_ = store.Set(keyFirstVisit, now.UTC().Format(time.RFC3339))
		}
	} else {
		v.VisitorID = id
	}

	// counter is independent of the new/returning decision
	count := 0
	if raw, ok, err := store.Get(keyVisitCount); err == nil && ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			count = n
		}
	}
	v.VisitCount = count + 1
	_ = store.Set(keyVisitCount, strconv.Itoa(v.VisitCount))

	return v
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewVisitorID returns "v_<unix millis>_<9 base36 chars>".
func NewVisitorID(now time.Time) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return "v_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix)
}
