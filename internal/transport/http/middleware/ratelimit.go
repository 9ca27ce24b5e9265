package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const errRateLimited = "rate limit exceeded"

// PerDomainRateLimit throttles job submission per tenant so one busy domain
// can't flood the pending queues at the HTTP boundary. Must run after
// DomainAuth so the domain is already in context; a request with no
// resolved domain (an admin request without ?domain=) is never throttled,
// while an admin request with ?domain= shares that domain's limiter.
func PerDomainRateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	limiterFor := func(domainName string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[domainName]
		if !ok {
			l = rate.NewLimiter(rps, burst)
			limiters[domainName] = l
		}
		return l
	}

	return func(c *gin.Context) {
		domainName := DomainFromContext(c)
		if domainName == "" {
			c.Next()
			return
		}
		if !limiterFor(domainName).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": errRateLimited})
			return
		}
		c.Next()
	}
}
