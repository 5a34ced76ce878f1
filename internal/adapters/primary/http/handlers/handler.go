package handlers

import (
	"github.com/gin-gonic/gin"

	"churn-insight-service/internal/adapters/primary/http/middleware"
	"churn-insight-service/internal/core/ports/output"
	"churn-insight-service/internal/core/services"
)

type Handler struct {
	ingestSvc   *services.IngestionService
	explorerSvc *services.ExplorerService
	predictSvc  *services.PredictionService
	catalog     ports.ModelCatalog
	decoder     ports.TableDecoder
	limiter     *middleware.UploadLimiter
	maxUpload   int64
}

// Options are the request limits applied to file uploads.
type Options struct {
	MaxUploadBytes int64
	Limiter        *middleware.UploadLimiter
}

func New(
	ingestSvc *services.IngestionService,
	explorerSvc *services.ExplorerService,
	predictSvc *services.PredictionService,
	catalog ports.ModelCatalog,
	decoder ports.TableDecoder,
	opts Options,
) *Handler {
	return &Handler{
		ingestSvc:   ingestSvc,
		explorerSvc: explorerSvc,
		predictSvc:  predictSvc,
		catalog:     catalog,
		decoder:     decoder,
		limiter:     opts.Limiter,
		maxUpload:   opts.MaxUploadBytes,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	upload := []gin.HandlerFunc{middleware.RequireUser(), middleware.MaxBody(h.maxUpload)}
	if h.limiter != nil {
		upload = append(upload, h.limiter.Middleware())
	}

	// Datasets
	r.POST("/datasets", append(upload, h.UploadDataset)...)
	r.GET("/datasets/current", h.GetCurrentDataset)
	r.GET("/datasets/current/summary", h.GetCurrentSummary)
	r.GET("/datasets/current/kpis", h.GetCurrentKPIs)
	r.GET("/datasets/current/export", h.ExportCurrentDataset)
	r.GET("/datasets/versions", h.ListVersions)
	r.GET("/datasets/versions/:version", h.GetVersion)
	r.GET("/schema", h.GetSchema)

	// Predictions
	r.GET("/models", h.ListModels)
	r.POST("/predictions", h.PredictRecord)
	r.POST("/predictions/batch", middleware.MaxBody(h.maxUpload), h.PredictBatch)
	r.GET("/predictions/history", h.GetPredictionHistory)
}
