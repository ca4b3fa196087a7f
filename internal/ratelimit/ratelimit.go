package ratelimit

import (
	"net/http"
	"real-estate-catalog/internal/config"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// window holds request times of one key inside the trailing hour
type window struct {
	minute []time.Time
	hour   []time.Time
}

// Limiter enforces per-key sliding-window limits (per minute and per hour).
// Keys are client IPs for the public lead form.
type Limiter struct {
	perMinute int
	perHour   int
	enabled   bool
	now       func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// New creates a limiter from config
func New(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		perMinute: cfg.RequestsPerMinute,
		perHour:   cfg.RequestsPerHour,
		enabled:   cfg.Enabled,
		now:       time.Now,
		windows:   make(map[string]*window),
	}
}

// Allow records a request for key and reports whether it is within limits.
// When refused, retryAfter is how long until the oldest blocking request
// leaves its window.
func (l *Limiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	if !l.enabled {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, found := l.windows[key]
	if !found {
		w = &window{}
		l.windows[key] = w
	}
	w.minute = filterTimes(w.minute, now.Add(-time.Minute))
	w.hour = filterTimes(w.hour, now.Add(-time.Hour))

	if l.perMinute > 0 && len(w.minute) >= l.perMinute {
		return false, w.minute[0].Add(time.Minute).Sub(now)
	}
	if l.perHour > 0 && len(w.hour) >= l.perHour {
		return false, w.hour[0].Add(time.Hour).Sub(now)
	}

	w.minute = append(w.minute, now)
	w.hour = append(w.hour, now)
	return true, 0
}

// Sweep drops keys with no request in the last hour
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-time.Hour)
	removed := 0
	for key, w := range l.windows {
		if len(filterTimes(w.hour, cutoff)) == 0 {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Stats returns the current usage of one key
func (l *Limiter) Stats(key string) Stats {
	if !l.enabled {
		return Stats{Enabled: false}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var minute, hour int
	if w, ok := l.windows[key]; ok {
		minute = len(filterTimes(w.minute, now.Add(-time.Minute)))
		hour = len(filterTimes(w.hour, now.Add(-time.Hour)))
	}

	return Stats{
		Enabled:             true,
		RequestsLastMinute:  minute,
		RequestsLastHour:    hour,
		LimitPerMinute:      l.perMinute,
		LimitPerHour:        l.perHour,
		RemainingThisMinute: max(0, l.perMinute-minute),
		RemainingThisHour:   max(0, l.perHour-hour),
		TrackedKeys:         len(l.windows),
	}
}

// Stats contains limiter usage for one key
type Stats struct {
	Enabled             bool `json:"enabled"`
	RequestsLastMinute  int  `json:"requests_last_minute"`
	RequestsLastHour    int  `json:"requests_last_hour"`
	LimitPerMinute      int  `json:"limit_per_minute"`
	LimitPerHour        int  `json:"limit_per_hour"`
	RemainingThisMinute int  `json:"remaining_this_minute"`
	RemainingThisHour   int  `json:"remaining_this_hour"`
	TrackedKeys         int  `json:"tracked_keys"`
}

// Middleware refuses requests over the limit with 429, keyed by client IP
func (l *Limiter) Middleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		ok, retryAfter := l.Allow(ip)
		if !ok {
			secs := int(retryAfter.Round(time.Second).Seconds())
			if secs < 1 {
				secs = 1
			}
			if log != nil {
				log.WithFields(logrus.Fields{"path": c.FullPath(), "retry_after": secs}).Warn("Rate limit exceeded")
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Demasiadas solicitudes, intenta de nuevo más tarde",
			})
			return
		}
		c.Next()
	}
}

// filterTimes keeps only times after the cutoff
func filterTimes(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
