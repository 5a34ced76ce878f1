package dto

import (
	"time"

	"churn-insight-service/internal/core/domain"
	"churn-insight-service/internal/core/services"
)

type SnapshotResponse struct {
	Version   int      `json:"version"`
	VersionID string   `json:"version_id"`
	RowCount  int      `json:"row_count"`
	CreatedAt string   `json:"created_at"`
	Columns   []string `json:"columns,omitempty"`
}

// TableResponse carries the header and row values of a table. Missing cells are null.
type TableResponse struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
	Total   int             `json:"total"`
}

type DatasetResponse struct {
	Origin   string            `json:"origin"`
	Snapshot *SnapshotResponse `json:"snapshot,omitempty"`
	Data     TableResponse     `json:"data"`
}

type SummaryResponse struct {
	Origin   string            `json:"origin"`
	Snapshot *SnapshotResponse `json:"snapshot,omitempty"`
	*services.Summary
}

// KPIResponse is the dashboard of the current dataset under the request's filters.
type KPIResponse struct {
	Origin   string            `json:"origin"`
	Snapshot *SnapshotResponse `json:"snapshot,omitempty"`
	*services.Dashboard
}

type ListSnapshotsResponse struct {
	Items []SnapshotResponse `json:"items"`
	Total int                `json:"total"`
}

type IngestResponse struct {
	Snapshot SnapshotResponse `json:"snapshot"`
	Warnings []string         `json:"warnings"`
	Message  string           `json:"message"`
}

type SchemaResponse struct {
	Identifier string                `json:"identifier"`
	Columns    []domain.SchemaColumn `json:"columns"`
	Formats    []string              `json:"export_formats"`
}

func ToSnapshotResponse(m *domain.SnapshotMeta) SnapshotResponse {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return SnapshotResponse{
		Version:   m.Version,
		VersionID: m.VersionID,
		RowCount:  m.RowCount,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
		Columns:   names,
	}
}

func ToTableResponse(t *domain.Table) TableResponse {
	n := t.NumRows()
	rows := make([][]interface{}, n)
	for r := 0; r < n; r++ {
		row := make([]interface{}, len(t.Columns))
		for c, col := range t.Columns {
			row[c] = col.Value(r)
		}
		rows[r] = row
	}
	return TableResponse{Columns: t.ColumnNames(), Rows: rows, Total: n}
}

func ToDatasetResponse(resolved *domain.ResolvedDataset) DatasetResponse {
	resp := DatasetResponse{
		Origin: string(resolved.Origin),
		Data:   ToTableResponse(resolved.Table),
	}
	if resolved.Snapshot != nil {
		s := ToSnapshotResponse(resolved.Snapshot)
		resp.Snapshot = &s
	}
	return resp
}

func ToIngestResponse(r *services.IngestResult) IngestResponse {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return IngestResponse{
		Snapshot: ToSnapshotResponse(r.Snapshot),
		Warnings: warnings,
		Message:  r.Message,
	}
}
