package groq

import (
	"sync/atomic"
	"time"
)

// Pool rotates across distinct API credentials so that sustained speech
// synthesis load is spread over multiple backing accounts. A session is
// assigned one client for its whole lifetime; rotation is per assignment,
// not per call.
type Pool struct {
	clients []*Client
	next    atomic.Uint64
}

// NewPool builds the pool once from the configured keys, deduplicating
// identical ones. With no keys configured the pool degrades to a single
// unconfigured client whose calls fail with ErrNotConfigured, which the
// adapters soft-degrade.
func NewPool(baseURL string, keys []string, timeout time.Duration) *Pool {
	seen := map[string]bool{}
	var clients []*Client
	for _, key := range keys {
		c := NewClient(baseURL, key, timeout)
		if !c.Configured() || seen[c.Key()] {
			continue
		}
		seen[c.Key()] = true
		clients = append(clients, c)
	}
	if len(clients) == 0 {
		clients = append(clients, NewClient(baseURL, "", timeout))
	}
	return &Pool{clients: clients}
}

// Assign returns the next client in round-robin order. Safe for
// concurrent use; the counter wraps via modulo arithmetic.
func (p *Pool) Assign() *Client {
	n := p.next.Add(1) - 1
	return p.clients[n%uint64(len(p.clients))]
}

// Default returns the first configured client without advancing rotation.
// Used by the request/response endpoints that are not tied to a session.
func (p *Pool) Default() *Client {
	return p.clients[0]
}

// Size reports how many distinct credentials back the pool.
func (p *Pool) Size() int {
	return len(p.clients)
}
