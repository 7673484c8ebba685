package audit

import "time"

// DecisionCache caches the decision list for an inputs hash so repeated
// audit lookups do not hit the store
type DecisionCache interface {
	// Get returns cached records and true, or nil and false on a miss or
	// expiry. The generation identifies the cache state the caller saw and
	// must be passed to the Set that fills the miss.
	Get(hash string) ([]*DecisionRecord, uint64, bool)

	// Set stores records for a hash read at generation gen. The write is
	// dropped, and false returned, if the hash was invalidated since.
	Set(hash string, gen uint64, records []*DecisionRecord) bool

	// Invalidate drops the entry for one hash
	Invalidate(hash string)

	// Len returns the number of live entries
	Len() int
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Zero means entries live until invalidated.
	TTL time.Duration

	// MaxEntries bounds the number of hashes kept. Zero means unbounded.
	MaxEntries int
}

// DefaultCacheConfig returns the cache settings used when none are configured
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:        5 * time.Minute,
		MaxEntries: 10000,
	}
}
