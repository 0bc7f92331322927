package ratelimit

import (
	"sync"
	"time"

	"github.com/garyellow/nycu-course-go/internal/metrics"
)

// KeyedConfig configures a KeyedLimiter.
type KeyedConfig struct {
	PerMinute     float64       // Sustained requests per minute per key
	Burst         float64       // Bucket capacity
	CleanupPeriod time.Duration // How often idle keys are forgotten
	Metrics       *metrics.Metrics
}

// KeyedLimiter keeps one bucket per key (a client IP). Idle keys are
// dropped by a background sweep until Stop is called.
type KeyedLimiter struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
	cfg     KeyedConfig
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewKeyedLimiter creates a limiter and starts its cleanup loop.
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = 5 * time.Minute
	}
	kl := &KeyedLimiter{
		buckets: make(map[string]*Bucket),
		cfg:     cfg,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go kl.cleanupLoop()
	return kl
}

func (kl *KeyedLimiter) bucket(key string) *Bucket {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	b, ok := kl.buckets[key]
	if !ok {
		b = newBucket(kl.cfg.Burst, kl.cfg.PerMinute/60, kl.now)
		kl.buckets[key] = b
	}
	return b
}

// Allow reports whether key may make another request. When it may not,
// the returned duration says when to retry.
func (kl *KeyedLimiter) Allow(key string) (bool, time.Duration) {
	b := kl.bucket(key)
	if b.Allow() {
		return true, 0
	}
	kl.cfg.Metrics.RecordRateLimitDrop()
	return false, b.RetryAfter()
}

// Len returns the number of tracked keys.
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.buckets)
}

func (kl *KeyedLimiter) sweep() {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	for key, b := range kl.buckets {
		if b.Full() {
			delete(kl.buckets, key)
		}
	}
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.cfg.CleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-kl.stop:
			return
		case <-ticker.C:
			kl.sweep()
		}
	}
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (kl *KeyedLimiter) Stop() {
	kl.once.Do(func() { close(kl.stop) })
}
