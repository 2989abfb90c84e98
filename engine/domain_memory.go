package engine

import (
	"net/url"
	"sync"
	"time"
)

// DomainMemory remembers which engine last fetched each host successfully.
// Expired entries are dropped when read and pruned on every write.
type DomainMemory struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	hosts map[string]domainEntry
}

type domainEntry struct {
	engine    string
	expiresAt time.Time
}

// NewDomainMemory creates a DomainMemory whose entries live for ttl.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	return &DomainMemory{ttl: ttl, now: time.Now, hosts: make(map[string]domainEntry)}
}

// Get returns the remembered engine for host, or "".
func (m *DomainMemory) Get(host string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.hosts[host]
	if !ok {
		return ""
	}
	if m.now().After(e.expiresAt) {
		delete(m.hosts, host)
		return ""
	}
	return e.engine
}

// Set records that engineName succeeded for host.
func (m *DomainMemory) Set(host, engineName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for h, e := range m.hosts {
		if now.After(e.expiresAt) {
			delete(m.hosts, h)
		}
	}
	m.hosts[host] = domainEntry{engine: engineName, expiresAt: now.Add(m.ttl)}
}

// Forget drops the entry for host.
func (m *DomainMemory) Forget(host string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hosts, host)
}

// Len returns the number of stored entries, expired ones included.
func (m *DomainMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hosts)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
