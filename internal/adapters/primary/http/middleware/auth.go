package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"churn-insight-service/internal/core/domain"
	ports "churn-insight-service/internal/core/ports/output"
)

// Auth attaches a Session to the request context. Requests without a bearer token continue
// anonymously; a token that fails verification is rejected with 401.
func Auth(provider ports.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, present := bearerToken(c.GetHeader("Authorization"))
		if !present {
			c.Request = c.Request.WithContext(domain.WithSession(c.Request.Context(), &domain.Session{}))
			c.Next()
			return
		}

		sess, err := provider.Authenticate(c.Request.Context(), token)
		if err != nil {
			log.WithError(err).WithField("request_id", c.GetString(ContextRequestID)).Warn("authentication failed")
			msg := "invalid or expired token"
			if errors.Is(err, domain.ErrInvalidUserID) {
				msg = domain.ErrInvalidUserID.Error()
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Request = c.Request.WithContext(domain.WithSession(c.Request.Context(), sess))
		c.Next()
	}
}

// RequireUser rejects anonymous sessions.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := domain.SessionFrom(c.Request.Context()).RequireUser(); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", true
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if strings.ContainsAny(token, "\r\n") {
		return "", true
	}
	return token, true
}
