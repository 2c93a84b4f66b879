package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// LoginAttempt tracks login attempts from an IP
type LoginAttempt struct {
	Count    int
	FirstAt  time.Time
	LockedAt time.Time
	IsLocked bool
}

// RateLimiter manages rate limiting for login attempts
type RateLimiter struct {
	mu           sync.RWMutex
	attempts     map[string]*LoginAttempt
	maxAttempts  int
	windowPeriod time.Duration
	lockDuration time.Duration
}

// NewRateLimiter creates a new rate limiter
// maxAttempts: maximum login attempts allowed within the window
// windowPeriod: time window for counting attempts
// lockDuration: how long to lock the IP after max attempts exceeded
func NewRateLimiter(maxAttempts int, windowPeriod, lockDuration time.Duration) *RateLimiter {
	rl := &RateLimiter{
		attempts:     make(map[string]*LoginAttempt),
		maxAttempts:  maxAttempts,
		windowPeriod: windowPeriod,
		lockDuration: lockDuration,
	}
	go rl.startCleanup()
	return rl
}

// startCleanup periodically cleans up old entries
func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	for range ticker.C {
		rl.cleanup()
	}
}

// cleanup removes expired entries
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for ip, attempt := range rl.attempts {
		if attempt.IsLocked {
			if now.Sub(attempt.LockedAt) > rl.lockDuration {
				delete(rl.attempts, ip)
			}
		} else if now.Sub(attempt.FirstAt) > rl.windowPeriod {
			delete(rl.attempts, ip)
		}
	}
}

// Check checks if an IP is allowed to attempt login
func (rl *RateLimiter) Check(ip string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	attempt, exists := rl.attempts[ip]

	if !exists {
		return true, rl.maxAttempts, 0
	}

	if attempt.IsLocked {
		remaining := rl.lockDuration - now.Sub(attempt.LockedAt)
		if remaining > 0 {
			return false, 0, remaining
		}
		delete(rl.attempts, ip)
		return true, rl.maxAttempts, 0
	}

	if now.Sub(attempt.FirstAt) > rl.windowPeriod {
		delete(rl.attempts, ip)
		return true, rl.maxAttempts, 0
	}

	attemptsRemaining := rl.maxAttempts - attempt.Count
	if attemptsRemaining <= 0 {
		return false, 0, rl.windowPeriod - now.Sub(attempt.FirstAt)
	}

	return true, attemptsRemaining, 0
}

// RecordAttempt records a login attempt for an IP
func (rl *RateLimiter) RecordAttempt(ip string, success bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if success {
		delete(rl.attempts, ip)
		return
	}

	now := time.Now()
	attempt, exists := rl.attempts[ip]

	if !exists || now.Sub(attempt.FirstAt) > rl.windowPeriod {
		rl.attempts[ip] = &LoginAttempt{
			Count:   1,
			FirstAt: now,
		}
		return
	}

	attempt.Count++
	if attempt.Count >= rl.maxAttempts {
		attempt.IsLocked = true
		attempt.LockedAt = now
	}
}

// LoginRateLimitMiddleware rejects login attempts from locked IPs
func LoginRateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		allowed, _, retryAfter := rl.Check(ip)
		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "too_many_attempts",
				"message": "Too many login attempts, try again later",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
