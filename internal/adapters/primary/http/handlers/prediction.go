package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"churn-insight-service/internal/adapters/primary/http/dto"
	"churn-insight-service/internal/core/domain"
)

func (h *Handler) ListModels(c *gin.Context) {
	models := h.catalog.Models()
	items := make([]dto.ModelResponse, 0, len(models))
	for _, m := range models {
		items = append(items, dto.ToModelResponse(m))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "features": h.predictSvc.Layout()})
}

func (h *Handler) PredictRecord(c *gin.Context) {
	var req dto.PredictRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.predictSvc.PredictRecord(c.Request.Context(), domain.SessionFrom(c.Request.Context()), req.Model, req.Record)
	if err != nil {
		log.WithError(err).WithField("model", req.Model).Warn("prediction failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToPredictionResultResponse(result))
}

// PredictBatch scores an uploaded file when the request is multipart, otherwise the caller's current dataset.
func (h *Handler) PredictBatch(c *gin.Context) {
	ctx := c.Request.Context()
	sess := domain.SessionFrom(ctx)

	var (
		result *domain.PredictionResult
		err    error
		model  string
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		model = c.PostForm("model")
		if model == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "form field \"model\" is required"})
			return
		}
		upload, ok := h.readUpload(c)
		if !ok {
			return
		}
		table, decodeErr := h.decoder.Decode(upload.Filename, upload.Data)
		if decodeErr != nil {
			mapDomainError(c, decodeErr)
			return
		}
		result, err = h.predictSvc.PredictBatch(ctx, sess, model, table)
	} else {
		var req dto.PredictBatchRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
			return
		}
		model = req.Model
		result, err = h.predictSvc.PredictCurrent(ctx, sess, model)
	}

	if err != nil {
		log.WithError(err).WithField("model", model).Warn("batch prediction failed")
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToPredictionResultResponse(result))
}

func (h *Handler) GetPredictionHistory(c *gin.Context) {
	table, err := h.explorerSvc.History(c.Request.Context(), domain.SessionFrom(c.Request.Context()))
	if err != nil {
		mapDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToTableResponse(table))
}
