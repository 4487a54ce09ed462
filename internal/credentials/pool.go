// Package credentials provides round-robin rotation over a fixed set of
// interchangeable LLM API credentials. Rotation spreads load across per-key
// rate limits; it is not mutual exclusion, and concurrent reuse of the same
// credential by multiple workers is permitted.
package credentials

import (
	"fmt"
	"sync/atomic"
)

// Credential is one opaque API key slot in the pool.
type Credential struct {
	Key string
}

// Pool hands out credentials in a fixed cyclic order. The only mutable state
// is a single rotation counter, updated atomically; Next never blocks and
// never fails.
type Pool struct {
	creds  []Credential
	cursor atomic.Uint64
}

// NewPool creates a pool from the given keys. An empty key list is a fatal
// configuration error, reported once here rather than per call.
func NewPool(keys []string) (*Pool, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one API credential is required")
	}

	creds := make([]Credential, len(keys))
	for i, key := range keys {
		creds[i] = Credential{Key: key}
	}
	return &Pool{creds: creds}, nil
}

// Next returns the next credential in rotation.
func (p *Pool) Next() Credential {
	idx := p.cursor.Add(1) - 1
	return p.creds[idx%uint64(len(p.creds))]
}

// Size returns the number of credentials in the pool.
func (p *Pool) Size() int {
	return len(p.creds)
}

// Mask returns a redacted form of a key suitable for logging.
func Mask(key string) string {
	if len(key) <= 12 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
