package engine

import (
	"sync"
	"time"
)

type memoryEntry struct {
	engine    string
	expiresAt time.Time
}

// DomainMemory remembers, per host, which engine last fetched a page
// successfully. Entries expire after the TTL; expired entries are dropped
// lazily on access and on every Set.
type DomainMemory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewDomainMemory creates a DomainMemory with the given TTL.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	return &DomainMemory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the remembered engine name for a host, or "" if unknown or expired.
func (m *DomainMemory) Get(host string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[host]
	if !ok {
		return ""
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, host)
		return ""
	}
	return e.engine
}

// Set records which engine succeeded for a host.
func (m *DomainMemory) Set(host, engineName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for h, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, h)
		}
	}
	m.entries[host] = memoryEntry{engine: engineName, expiresAt: now.Add(m.ttl)}
}

// Delete forgets a host (e.g. after the remembered engine failed).
func (m *DomainMemory) Delete(host string) {
	m.mu.Lock()
	delete(m.entries, host)
	m.mu.Unlock()
}

// Len reports the number of remembered hosts, expired ones included.
func (m *DomainMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
