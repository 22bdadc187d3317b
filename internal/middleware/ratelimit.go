package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ClientIP buckets requests by gin's resolved client address.
func ClientIP(c *gin.Context) string { return c.ClientIP() }

// minIdle is the shortest time a bucket is kept after its last request.
const minIdle = time.Minute

// RateLimit returns per-client rate limiting middleware using token buckets.
// Each key gets a bucket that fills at rps tokens/sec up to burst tokens;
// an empty bucket rejects the request with 429. A non-positive rps disables it.
func RateLimit(rps float64, burst int, keyFn KeyFunc) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	buckets := newBucketSet(rps, burst, time.Now)

	return func(c *gin.Context) {
		if !buckets.get(keyFn(c)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// bucketSet holds one limiter per key. Keys are client addresses, so the set
// is swept of idle buckets; a bucket idle past its refill time is full again
// and indistinguishable from a new one.
type bucketSet struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

func newBucketSet(rps float64, burst int, now func() time.Time) *bucketSet {
	if burst < 1 {
		burst = 1
	}
	idle := time.Duration(float64(burst) / rps * float64(time.Second))
	if idle < minIdle {
		idle = minIdle
	}
	return &bucketSet{
		limit:     rate.Limit(rps),
		burst:     burst,
		idle:      idle,
		buckets:   make(map[string]*bucket),
		lastSweep: now(),
		now:       now,
	}
}

func (s *bucketSet) get(key string) *rate.Limiter {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= s.idle {
		for k, b := range s.buckets {
			if now.Sub(b.lastSeen) >= s.idle {
				delete(s.buckets, k)
			}
		}
		s.lastSweep = now
	}

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

func (s *bucketSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
