package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"churn-insight-service/internal/core/domain"
)

const (
	limiterIdleTimeout   = time.Hour
	limiterSweepInterval = 5 * time.Minute
)

// UploadLimiter throttles dataset uploads per user with a token bucket.
type UploadLimiter struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	users     map[string]*userLimiter
	lastSweep time.Time
}

type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func NewUploadLimiter(rps float64, burst int) *UploadLimiter {
	if burst < 1 {
		burst = 1
	}
	return &UploadLimiter{
		rps:   rate.Limit(rps),
		burst: burst,
		now:   time.Now,
		users: make(map[string]*userLimiter),
	}
}

// Allow reports whether userID may upload now.
func (l *UploadLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	u, ok := l.users[userID]
	if !ok {
		u = &userLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.users[userID] = u
	}
	u.lastAccess = now
	return u.limiter.AllowN(now, 1)
}

// sweepLocked drops users idle for limiterIdleTimeout, at most once per limiterSweepInterval.
func (l *UploadLimiter) sweepLocked(now time.Time) {
	if l.lastSweep.IsZero() {
		l.lastSweep = now
		return
	}
	if now.Sub(l.lastSweep) < limiterSweepInterval {
		return
	}
	l.lastSweep = now
	for id, u := range l.users {
		if now.Sub(u.lastAccess) > limiterIdleTimeout {
			delete(l.users, id)
		}
	}
}

func (l *UploadLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := domain.SessionFrom(c.Request.Context()).CurrentUserIdentity()
		if !l.Allow(userID) {
			log.WithFields(log.Fields{
				"user_id":    userID,
				"request_id": c.GetString(ContextRequestID),
			}).Warn("upload rate limited")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many uploads, retry shortly"})
			return
		}
		c.Next()
	}
}

// MaxBody caps the request body size.
func MaxBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
