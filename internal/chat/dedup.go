// Deduplication cache.
//
// Clients deliver at least once: a retry after a lost acknowledgment re-sends
// the same logical message. The cache turns that into effectively-once
// processing at the router. ShouldProcess atomically checks and inserts a
// fingerprint *before* any persistence or delegate I/O, closing the window in
// which a duplicate could slip through while the first copy is still being
// written. If that I/O later fails, Release removes the reservation so a
// genuine retry is not permanently blackholed.
package chat

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DedupCache holds recently processed message fingerprints for a fixed TTL.
// It is safe for concurrent use.
type DedupCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time // fingerprint -> insertion time
	now     func() time.Time
}

// NewDedupCache returns a cache whose entries expire after ttl.
func NewDedupCache(ttl time.Duration) *DedupCache {
	return &DedupCache{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// ShouldProcess reports whether the message with this fingerprint should be
// processed. A missing or expired entry is (re)inserted and true is returned;
// a live entry means the message is a duplicate and must be dropped silently.
func (c *DedupCache) ShouldProcess(fingerprint string) bool {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if at, ok := c.entries[fingerprint]; ok && now.Sub(at) < c.ttl {
		return false
	}
	c.entries[fingerprint] = now
	return true
}

// Release drops a reservation early so a legitimate retry can get through
// after downstream processing failed.
func (c *DedupCache) Release(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, fingerprint)
}

// Len reports the current number of live entries.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// sweep removes entries older than the TTL.
func (c *DedupCache) sweep() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for fp, at := range c.entries {
		if now.Sub(at) >= c.ttl {
			delete(c.entries, fp)
		}
	}
}

// Run sweeps expired entries on the given interval until ctx is done.
func (c *DedupCache) Run(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// fingerprint derivation ------------------------------------------------------

// textPrefixLen bounds the derived-fingerprint text component.
const textPrefixLen = 48

// DirectFingerprint derives the dedup key for a one-to-one message. A
// client-supplied idempotency token wins, scoped by sender so tokens from
// different users can never collide; otherwise the key is a composite of
// sender, recipient, trimmed text, and the second the message arrived in.
func DirectFingerprint(senderID, recipientID, text, clientMessageID string, at time.Time) string {
	if clientMessageID != "" {
		return fmt.Sprintf("dm|%s|cid|%s", senderID, clientMessageID)
	}
	return fmt.Sprintf("dm|%s|%s|%s|%d", senderID, recipientID, strings.TrimSpace(text), at.Unix())
}

// GroupFingerprint derives the dedup key for a group message; the derived
// form uses a text prefix rather than the full text.
func GroupFingerprint(groupID, senderID, text, clientMessageID string, at time.Time) string {
	if clientMessageID != "" {
		return fmt.Sprintf("group|%s|%s|cid|%s", groupID, senderID, clientMessageID)
	}
	return fmt.Sprintf("group|%s|%s|%s|%d", groupID, senderID, prefixRunes(strings.TrimSpace(text), textPrefixLen), at.Unix())
}

// prefixRunes returns the first n runes of s.
func prefixRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
