package ports

import (
	"context"

	"churn-insight-service/internal/core/domain"
)

// HistoryWriter appends prediction history. One call is one atomic append.
type HistoryWriter interface {
	Append(ctx context.Context, records []domain.HistoryRecord) error
}

// HistoryReader reads the whole shared history as a table.
type HistoryReader interface {
	ReadAll(ctx context.Context) (*domain.Table, error)
}
