package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"churn-insight-service/internal/core/domain"
)

func mapDomainError(c *gin.Context, err error) {
	switch {
	// Not found errors
	case errors.Is(err, domain.ErrSnapshotNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	// Session errors
	case errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, domain.ErrInvalidUserID):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

	// Bad request / validation errors
	case errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrParse),
		errors.Is(err, domain.ErrEmptyDataset),
		errors.Is(err, domain.ErrSchemaMismatch),
		errors.Is(err, domain.ErrFeatureMismatch),
		errors.Is(err, domain.ErrInvalidFilter),
		errors.Is(err, domain.ErrInvalidVersion):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	// Service unavailable errors
	case errors.Is(err, domain.ErrModelUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrPersistence):
		c.JSON(http.StatusInternalServerError, gin.H{"error": domain.ErrPersistence.Error()})

	case errors.Is(err, domain.ErrHistoryRead):
		log.WithError(err).WithField("path", c.FullPath()).Error("prediction history unreadable")
		c.JSON(http.StatusInternalServerError, gin.H{"error": domain.ErrHistoryRead.Error()})

	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// respondError is mapDomainError plus the expected template layout on schema failures.
func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrSchemaMismatch) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           err.Error(),
			"expected_schema": h.explorerSvc.Schema(),
		})
		return
	}
	mapDomainError(c, err)
}
