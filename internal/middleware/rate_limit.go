package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"esign-workers/internal/common/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"golang.org/x/time/rate"
)

// DefaultMaxTrackedCompanies bounds the bucket map before refilled buckets are pruned.
const DefaultMaxTrackedCompanies = 10000

// CompanyRateLimiter keeps one token bucket per company record, in process memory.
type CompanyRateLimiter struct {
	limiters   map[string]*rate.Limiter
	mu         sync.RWMutex
	rate       rate.Limit
	burst      int
	maxTracked int
}

// NewCompanyRateLimiter allows perMinute sends per company with the given burst.
// A non-positive perMinute disables limiting.
func NewCompanyRateLimiter(perMinute float64, burst int) *CompanyRateLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(perMinute / 60)
	}
	if burst < 1 {
		burst = 1
	}
	return &CompanyRateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		rate:       limit,
		burst:      burst,
		maxTracked: DefaultMaxTrackedCompanies,
	}
}

func (rl *CompanyRateLimiter) GetLimiter(companyID string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[companyID]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		limiter, exists = rl.limiters[companyID]
		if !exists {
			if len(rl.limiters) >= rl.maxTracked {
				rl.pruneLocked()
			}
			limiter = rate.NewLimiter(rl.rate, rl.burst)
			rl.limiters[companyID] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter
}

// pruneLocked drops buckets that have refilled; a full bucket allows exactly
// what a new one would.
func (rl *CompanyRateLimiter) pruneLocked() {
	for id, limiter := range rl.limiters {
		if limiter.Tokens() >= float64(rl.burst) {
			delete(rl.limiters, id)
		}
	}
}

// Tracked returns the number of companies with a live bucket.
func (rl *CompanyRateLimiter) Tracked() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}

// Allow reports whether one more request for companyID fits in its bucket.
func (rl *CompanyRateLimiter) Allow(companyID string) bool {
	if rl.rate == rate.Inf {
		return true
	}
	return rl.GetLimiter(companyID).Allow()
}

// RateLimitMiddleware rejects repeated sends for the same company with 429.
// The company comes from the JSON body, the same field the handler sends for.
// The body is read with ShouldBindBodyWith so handlers can bind it again.
func RateLimitMiddleware(rl *CompanyRateLimiter, route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			CompanyID interface{} `json:"companyId"`
		}
		var companyID string
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err == nil {
			companyID = CompanyKey(req.CompanyID)
		}

		// requests without a company id fail validation in the handler
		if companyID == "" {
			c.Next()
			return
		}

		if !rl.Allow(companyID) {
			metrics.RateLimitedRequests.WithLabelValues(route).Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    "RATE_LIMITED",
				"message": "Too many agreement requests for this company. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// CompanyKey normalizes a JSON company id, which may arrive as a string or a number.
func CompanyKey(v interface{}) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}
