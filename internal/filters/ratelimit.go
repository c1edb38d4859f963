package filters

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/exchange"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/observability"
	"github.com/vyrodovalexey/filtergw/internal/util"
)

// Rate limiter defaults.
const (
	// DefaultClientTTL is how long an idle per-client limiter is kept.
	DefaultClientTTL = 10 * time.Minute

	// MinCleanupInterval is the minimum interval for cleanup operations.
	MinCleanupInterval = 10 * time.Second

	// MaxCleanupInterval is the maximum interval for cleanup operations.
	MaxCleanupInterval = time.Minute
)

// clientEntry holds a rate limiter and its last access time for TTL-based cleanup.
type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimit is a token bucket limiter, either global or per client IP.
// Rejected requests get 429 with a Retry-After header.
type RateLimit struct {
	opts      options
	limiter   *rate.Limiter
	perClient bool
	rps       float64
	burst     int
	clientTTL time.Duration

	mu      sync.Mutex
	clients map[string]*clientEntry
	stopCh  chan struct{}
	stopped bool
}

// NewRateLimit creates a RateLimit filter allowing rps requests per second
// with the given burst.
func NewRateLimit(rps float64, burst int, perClient bool, opts ...Option) *RateLimit {
	return &RateLimit{
		opts:      newOptions(opts),
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		perClient: perClient,
		rps:       rps,
		burst:     burst,
		clientTTL: DefaultClientTTL,
		clients:   make(map[string]*clientEntry),
		stopCh:    make(chan struct{}),
	}
}

// Name implements filter.Named.
func (f *RateLimit) Name() string { return "RateLimit" }

// Order implements filter.Ordered.
func (f *RateLimit) Order() int { return OrderRateLimit }

// Filter implements filter.Filter.
func (f *RateLimit) Filter(ex *exchange.Exchange, chain filter.Chain) *async.Completion {
	clientIP := util.ClientIP(ex.Request())

	if !f.Allow(clientIP) {
		f.opts.logger.Warn("rate limit exceeded",
			observability.String("client_ip", clientIP),
			observability.String("path", ex.Request().URL.Path),
		)
		if f.opts.metrics != nil {
			f.opts.metrics.RecordRateLimitHit("local")
		}
		ex.Response().Header().Set(HeaderRetryAfter, "1")
		f.opts.reject(ex, f.Name(), http.StatusTooManyRequests, "rate limit exceeded")
		return async.Complete()
	}

	return chain.Filter(ex)
}

// Allow reports whether a request from clientIP may proceed.
func (f *RateLimit) Allow(clientIP string) bool {
	if !f.perClient {
		return f.limiter.Allow()
	}

	now := time.Now()

	f.mu.Lock()
	entry, ok := f.clients[clientIP]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(rate.Limit(f.rps), f.burst)}
		f.clients[clientIP] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	f.mu.Unlock()

	return limiter.Allow()
}

// SetClientTTL sets the TTL for per-client entries.
func (f *RateLimit) SetClientTTL(ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clientTTL = ttl
}

// CleanupOldClients removes client limiters idle for longer than maxAge.
func (f *RateLimit) CleanupOldClients(maxAge time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	removed := 0
	for ip, entry := range f.clients {
		if now.Sub(entry.lastAccess) > maxAge {
			delete(f.clients, ip)
			removed++
		}
	}

	if removed > 0 {
		f.opts.logger.Debug("cleaned up expired rate limiter entries",
			observability.Int("removed", removed),
			observability.Int("remaining", len(f.clients)),
		)
	}
}

// StartAutoCleanup periodically evicts idle per-client limiters until Stop
// is called.
func (f *RateLimit) StartAutoCleanup() {
	f.mu.Lock()
	if f.stopped || !f.perClient {
		f.mu.Unlock()
		return
	}
	ttl := f.clientTTL
	f.mu.Unlock()

	interval := min(max(ttl/2, MinCleanupInterval), MaxCleanupInterval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				f.mu.Lock()
				ttl := f.clientTTL
				f.mu.Unlock()
				f.CleanupOldClients(ttl)
			case <-f.stopCh:
				return
			}
		}
	}()
}

// Stop stops the cleanup goroutine.
func (f *RateLimit) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.stopped {
		f.stopped = true
		close(f.stopCh)
	}
}

func (f *RateLimit) clientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}
