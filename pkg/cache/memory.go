package cache

import (
	"sync"
	"time"

	"github.com/vanderheijden86/canopy/pkg/debug"
	"github.com/vanderheijden86/canopy/pkg/metrics"
	"github.com/vanderheijden86/canopy/pkg/model"
)

type memoryEntry[V any] struct {
	value    V
	storedAt time.Time
}

// orderedMap is a write-once map that remembers insertion order, so a
// dump of the cache lists entries in traversal order.
type orderedMap[V any] struct {
	entries map[string]memoryEntry[V]
	keys    []string
}

func newOrderedMap[V any]() *orderedMap[V] {
	return &orderedMap[V]{entries: make(map[string]memoryEntry[V])}
}

func (m *orderedMap[V]) get(key string) (memoryEntry[V], bool) {
	e, ok := m.entries[key]
	return e, ok
}

func (m *orderedMap[V]) set(key string, value V) bool {
	if _, exists := m.entries[key]; exists {
		return false
	}
	m.entries[key] = memoryEntry[V]{value: value, storedAt: time.Now()}
	m.keys = append(m.keys, key)
	return true
}

func (m *orderedMap[V]) replace(key string, value V) {
	if _, exists := m.entries[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.entries[key] = memoryEntry[V]{value: value, storedAt: time.Now()}
}

func (m *orderedMap[V]) clear() {
	m.entries = make(map[string]memoryEntry[V])
	m.keys = nil
}

// Memory is the in-memory Store. It lives for one process; pair it
// with the SQLite store when resume across restarts matters.
type Memory struct {
	mu     sync.RWMutex
	policy Policy
	nodes  *orderedMap[*model.TreeNode]
	leaves *orderedMap[[]model.LeafRecord]
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithPolicy sets the staleness policy. Defaults to KeepAll.
func WithPolicy(p Policy) MemoryOption {
	return func(m *Memory) {
		m.policy = p
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		policy: KeepAll(),
		nodes:  newOrderedMap[*model.TreeNode](),
		leaves: newOrderedMap[[]model.LeafRecord](),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetNode implements Store.
func (m *Memory) GetNode(key string) (*model.TreeNode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.nodes.get(key)
	if !ok || m.policy.Stale(key, e.storedAt) {
		metrics.NodeCache.Miss()
		return nil, false
	}
	metrics.NodeCache.Hit()
	return e.value, true
}

// SetNode implements Store. Stale entries may be replaced; live ones
// are write-once.
func (m *Memory) SetNode(key string, node *model.TreeNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.nodes.get(key); ok {
		if !m.policy.Stale(key, e.storedAt) {
			debug.Log("cache: node key %q already present, keeping first write", key)
			return nil
		}
		m.nodes.replace(key, node)
		return nil
	}
	m.nodes.set(key, node)
	return nil
}

// GetLeaves implements Store.
func (m *Memory) GetLeaves(key string) ([]model.LeafRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.leaves.get(key)
	if !ok || m.policy.Stale(key, e.storedAt) {
		metrics.LeafCache.Miss()
		return nil, false
	}
	metrics.LeafCache.Hit()
	return e.value, true
}

// SetLeaves implements Store.
func (m *Memory) SetLeaves(key string, records []model.LeafRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.leaves.get(key); ok {
		if !m.policy.Stale(key, e.storedAt) {
			debug.Log("cache: leaf key %q already present, keeping first write", key)
			return nil
		}
		m.leaves.replace(key, records)
		return nil
	}
	m.leaves.set(key, records)
	return nil
}

// Clear implements Store.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes.clear()
	m.leaves.clear()
	return nil
}

// Stats implements Store.
func (m *Memory) Stats() (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		NodeEntries: len(m.nodes.entries),
		LeafEntries: len(m.leaves.entries),
	}, nil
}

// NodeKeys returns the cached node keys in insertion (traversal) order.
func (m *Memory) NodeKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.nodes.keys...)
}

var _ Store = (*Memory)(nil)
