package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"churn-insight-service/internal/adapters/primary/http/dto"
	"churn-insight-service/internal/core/domain"
	"churn-insight-service/internal/core/services"
)

func (h *Handler) UploadDataset(c *gin.Context) {
	sess := domain.SessionFrom(c.Request.Context())

	upload, ok := h.readUpload(c)
	if !ok {
		return
	}

	result, err := h.ingestSvc.Ingest(c.Request.Context(), sess, upload)
	if err != nil {
		log.WithError(err).WithField("filename", upload.Filename).Warn("dataset upload rejected")
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToIngestResponse(result))
}

// readUpload reads the multipart "file" field. It writes the error response itself.
func (h *Handler) readUpload(c *gin.Context) (services.Upload, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit)})
			return services.Upload{}, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return services.Upload{}, false
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
		return services.Upload{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
		return services.Upload{}, false
	}
	return services.Upload{Filename: fh.Filename, Data: data}, true
}

func (h *Handler) GetCurrentDataset(c *gin.Context) {
	criteria, err := parseFilter(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	resolved, err := h.explorerSvc.Current(c.Request.Context(), domain.SessionFrom(c.Request.Context()), criteria)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToDatasetResponse(resolved))
}

func (h *Handler) GetCurrentSummary(c *gin.Context) {
	criteria, err := parseFilter(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	resolved, err := h.explorerSvc.Current(c.Request.Context(), domain.SessionFrom(c.Request.Context()), criteria)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := dto.SummaryResponse{Origin: string(resolved.Origin), Summary: services.Summarize(resolved.Table)}
	if resolved.Snapshot != nil {
		s := dto.ToSnapshotResponse(resolved.Snapshot)
		resp.Snapshot = &s
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetCurrentKPIs(c *gin.Context) {
	criteria, err := parseFilter(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	resolved, dashboard, err := h.explorerSvc.KPIs(c.Request.Context(), domain.SessionFrom(c.Request.Context()), criteria)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := dto.KPIResponse{Origin: string(resolved.Origin), Dashboard: dashboard}
	if resolved.Snapshot != nil {
		s := dto.ToSnapshotResponse(resolved.Snapshot)
		resp.Snapshot = &s
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ExportCurrentDataset(c *gin.Context) {
	criteria, err := parseFilter(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	export, err := h.explorerSvc.Export(c.Request.Context(), domain.SessionFrom(c.Request.Context()),
		c.DefaultQuery("format", "csv"), criteria)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, export.ContentType, export.Data)
}

func (h *Handler) ListVersions(c *gin.Context) {
	metas, err := h.explorerSvc.Versions(c.Request.Context(), domain.SessionFrom(c.Request.Context()))
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]dto.SnapshotResponse, 0, len(metas))
	for _, m := range metas {
		items = append(items, dto.ToSnapshotResponse(m))
	}
	c.JSON(http.StatusOK, dto.ListSnapshotsResponse{Items: items, Total: len(items)})
}

func (h *Handler) GetVersion(c *gin.Context) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidVersion.Error()})
		return
	}

	resolved, err := h.explorerSvc.Version(c.Request.Context(), domain.SessionFrom(c.Request.Context()), version)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToDatasetResponse(resolved))
}

func (h *Handler) GetSchema(c *gin.Context) {
	c.JSON(http.StatusOK, dto.SchemaResponse{
		Identifier: h.explorerSvc.Identifier(),
		Columns:    h.explorerSvc.Schema(),
		Formats:    h.explorerSvc.Formats(),
	})
}
