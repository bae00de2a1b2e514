package approval

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// descriptionKey is the argument carrying human-readable context; it never
// participates in cache identity.
const descriptionKey = "description"

// SessionCache holds remembered decisions for one run. Concurrent sibling
// branches may race on the same key; the last decision to resolve wins the
// slot. That is the accepted contract, and the mutex keeps the map itself
// uncorrupted.
type SessionCache struct {
	mu        sync.RWMutex
	decisions map[string]Decision
}

// NewSessionCache creates an empty run-scoped cache.
func NewSessionCache() *SessionCache {
	return &SessionCache{decisions: make(map[string]Decision)}
}

// Get returns the remembered decision for key, if any.
func (c *SessionCache) Get(key string) (Decision, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.decisions[key]
	return d, ok
}

// Put remembers a decision under key, replacing any previous entry.
func (c *SessionCache) Put(key string, d Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decisions[key] = d
}

// Len returns the number of remembered decisions.
func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.decisions)
}

// CacheKey builds the canonical identity of a request: action name plus a
// deterministic encoding of its arguments with the description stripped.
func CacheKey(req Request) string {
	name := strings.ToLower(strings.TrimSpace(req.Action))
	return name + "\x00" + canonicalArgs(req.Args)
}

func canonicalArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		if strings.EqualFold(k, descriptionKey) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(k)
		valJSON, err := json.Marshal(args[k])
		if err != nil {
			valJSON = []byte(`null`)
		}
		b.Write(keyJSON)
		b.WriteByte(':')
		b.Write(valJSON)
	}
	b.WriteByte('}')
	return b.String()
}
