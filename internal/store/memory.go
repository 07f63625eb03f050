package store

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Memory is a process-local Store.
type Memory struct {
	mu      sync.Mutex
	records map[Namespace]map[string]Record
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[Namespace]map[string]Record), now: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) Get(_ context.Context, ns Namespace, key string) (Record, error) {
	if err := validKey(ns, key); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[ns][key]
	if !ok {
		return Record{}, notFound(ns, key)
	}
	if rec.Expired(m.now()) {
		delete(m.records[ns], key)
		return Record{}, notFound(ns, key)
	}
	rec.Value = slices.Clone(rec.Value)
	return rec, nil
}

func (m *Memory) Put(_ context.Context, ns Namespace, key string, value []byte, ttl time.Duration) error {
	if err := validKey(ns, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket := m.records[ns]
	if bucket == nil {
		bucket = make(map[string]Record)
		m.records[ns] = bucket
	}
	now := m.now().UTC()
	bucket[key] = Record{
		Namespace: ns,
		Key:       key,
		Value:     slices.Clone(value),
		CreatedAt: now,
		ExpiresAt: expiry(now, ttl),
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, ns Namespace, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[ns][key]
	delete(m.records[ns], key)
	return ok, nil
}

func (m *Memory) List(_ context.Context, ns Namespace) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := make([]Record, 0, len(m.records[ns]))
	for key, rec := range m.records[ns] {
		if rec.Expired(now) {
			delete(m.records[ns], key)
			continue
		}
		rec.Value = slices.Clone(rec.Value)
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (m *Memory) Clear(_ context.Context, ns Namespace) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.records[ns])
	delete(m.records, ns)
	return n, nil
}

func (m *Memory) Close() error { return nil }

func sortRecords(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})
}
