package pipeline

import "sync"

// conversationLocks serializes processing per conversation key while letting
// unrelated conversations run fully in parallel. Entries are reference
// counted and removed once nobody holds or waits on them.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the key's lock is held and returns the release func
func (c *conversationLocks) acquire(key string) func() {
	c.mu.Lock()
	entry, ok := c.locks[key]
	if !ok {
		entry = &lockEntry{}
		c.locks[key] = entry
	}
	entry.refs++
	c.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		c.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}
