// Package keypool owns the Gemini API key pool and its cooldown state.
//
// Keys fail independently: a key that trips a rate limit is excluded
// from selection for a fixed cooldown window and re-enters the pool
// lazily, on the first Available() call after the window elapses.
// Callers always take the first available key, so a key that keeps
// succeeding is reused until it fails.
package keypool

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/brushwork-ai/brushwork/internal/domain"
)

// Cooldown is how long a failed key is excluded from selection.
// The external rate-limit windows are opaque but recover within minutes.
const Cooldown = 5 * time.Minute

// KeyStore persists key membership. Cooldown state is in-memory only.
type KeyStore interface {
	SaveKeys(keys []string) error
}

// Pool is the set of API keys plus their failure timestamps.
// Membership changes are written through to the store; a failed write
// is logged and the in-memory pool stays authoritative.
type Pool struct {
	mu     sync.Mutex
	keys   []string             // insertion order
	failed map[string]time.Time // key -> last failure time
	store  KeyStore
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a pool seeded with the given keys (as loaded from the store).
func New(keys []string, store KeyStore, logger zerolog.Logger) *Pool {
	return &Pool{
		keys:   append([]string(nil), keys...),
		failed: make(map[string]time.Time),
		store:  store,
		logger: logger.With().Str("component", "keypool").Logger(),
		now:    time.Now,
	}
}

// Add appends a key to the pool. Returns false if already present.
func (p *Pool) Add(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, k := range p.keys {
		if k == key {
			return false
		}
	}
	p.keys = append(p.keys, key)
	p.persist()
	p.logger.Info().Str("key_suffix", domain.KeySuffix(key)).Msg("key added")
	return true
}

// Remove deletes a key from the pool. Returns false if absent.
func (p *Pool) Remove(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			delete(p.failed, key)
			p.persist()
			p.logger.Info().Str("key_suffix", domain.KeySuffix(key)).Msg("key removed")
			return true
		}
	}
	return false
}

// RemoveBySuffix deletes the first key whose value ends with suffix.
func (p *Pool) RemoveBySuffix(suffix string) bool {
	p.mu.Lock()
	var match string
	for _, k := range p.keys {
		if len(suffix) > 0 && len(k) >= len(suffix) && k[len(k)-len(suffix):] == suffix {
			match = k
			break
		}
	}
	p.mu.Unlock()

	if match == "" {
		return false
	}
	return p.Remove(match)
}

// Available returns the keys not currently cooling down, in insertion
// order. A key whose cooldown has just elapsed is returned to the pool
// here; there is no background timer.
func (p *Pool) Available() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var avail []string
	for _, k := range p.keys {
		failedAt, ok := p.failed[k]
		if !ok {
			avail = append(avail, k)
			continue
		}
		if now.Sub(failedAt) > Cooldown {
			delete(p.failed, k)
			avail = append(avail, k)
			p.logger.Debug().Str("key_suffix", domain.KeySuffix(k)).Msg("cooldown expired")
		}
	}
	return avail
}

// MarkFailed records now as the key's last failure time. Re-marking a
// cooling key restarts its cooldown.
func (p *Pool) MarkFailed(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failed[key] = p.now()
	p.logger.Warn().Str("key_suffix", domain.KeySuffix(key)).Msg("key cooling down")
}

// Keys returns the full key list in insertion order.
func (p *Pool) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

// Size returns the total number of keys, cooling or not.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// CoolingCount returns how many keys are currently excluded.
func (p *Pool) CoolingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	n := 0
	for _, failedAt := range p.failed {
		if now.Sub(failedAt) <= Cooldown {
			n++
		}
	}
	return n
}

// persist is called with the mutex held.
func (p *Pool) persist() {
	if p.store == nil {
		return
	}
	if err := p.store.SaveKeys(p.keys); err != nil {
		p.logger.Error().Err(err).Msg("failed to persist key pool")
	}
}
