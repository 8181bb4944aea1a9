package secret

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL matches how long a sudo password was remembered historically.
const DefaultTTL = 24 * time.Hour

// Cached remembers the secret obtained from an underlying provider until
// it expires or is invalidated. It is safe for concurrent use.
type Cached struct {
	next Provider
	ttl  time.Duration
	now  func() time.Time

	mu       sync.Mutex
	secret   Secret
	obtained time.Time
}

// WithTTL caches secrets from next for ttl. A non-positive ttl disables
// caching.
func WithTTL(next Provider, ttl time.Duration) *Cached {
	return &Cached{next: next, ttl: ttl, now: time.Now}
}

// Obtain implements Provider.
func (c *Cached) Obtain(ctx context.Context) (Secret, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttl > 0 && !c.secret.IsZero() && c.now().Sub(c.obtained) < c.ttl {
		return c.secret, nil
	}
	c.secret = Secret{}

	s, err := c.next.Obtain(ctx)
	if err != nil {
		return Secret{}, err
	}
	if c.ttl > 0 {
		c.secret, c.obtained = s, c.now()
	}
	return s, nil
}

// Invalidate forgets the cached secret.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secret = Secret{}
	if inv, ok := c.next.(Invalidator); ok {
		inv.Invalidate()
	}
}
