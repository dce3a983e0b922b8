package http

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/time/rate"

	"civicreport/internal/token"
)

const ctxUserID = "userID"

// AuthMiddleware verifies the bearer token and puts the caller's id
// into the request context.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false, "message": "Authorization token required",
			})
			return
		}

		sub, err := token.Verify(secret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false, "message": "Invalid or expired token",
			})
			return
		}

		userID, err := primitive.ObjectIDFromHex(sub)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false, "message": "Invalid or expired token",
			})
			return
		}

		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// currentUser returns the id AuthMiddleware stored. Only valid on
// routes behind AuthMiddleware.
func currentUser(c *gin.Context) primitive.ObjectID {
	return c.MustGet(ctxUserID).(primitive.ObjectID)
}

// AdminAuthMiddleware checks for a secret X-Admin-Token header.
func AdminAuthMiddleware(requiredToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		supplied := c.GetHeader("X-Admin-Token")
		if supplied == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false, "message": "Admin token required",
			})
			return
		}
		if supplied != requiredToken {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false, "message": "Invalid admin token",
			})
			return
		}
		c.Next()
	}
}

// SecurityHeadersMiddleware adds basic, sensible security headers.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Next()
	}
}

// --- Rate limiter ---

// IPRateLimiter keeps one token bucket per caller IP.
type IPRateLimiter struct {
	visitors map[string]*rate.Limiter
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*rate.Limiter),
		rps:      r,
		burst:    b,
	}
}

func (rl *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, exists := rl.visitors[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.rps, rl.burst)
		rl.visitors[ip] = limiter
	}
	return limiter
}

// Evict drops buckets that have refilled completely, so idle IPs do
// not accumulate forever.
func (rl *IPRateLimiter) Evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if v.Tokens() >= float64(rl.burst) {
			delete(rl.visitors, ip)
		}
	}
}

func RateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.GetLimiter(ip).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false, "message": "Too many requests. Please wait.",
			})
			return
		}
		c.Next()
	}
}
