package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"churn-insight-service/internal/core/domain"
	output "churn-insight-service/internal/core/ports/output"
)

const createHistoryTable = `
	CREATE TABLE IF NOT EXISTS prediction_history (
		id              BIGSERIAL PRIMARY KEY,
		inputs          JSONB NOT NULL,
		prediction_time DATE NOT NULL,
		model_used      TEXT NOT NULL,
		prediction      TEXT NOT NULL,
		probability     DOUBLE PRECISION NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

var historyColumns = []string{"inputs", "prediction_time", "model_used", "prediction", "probability"}

type historyRepo struct {
	pool   *pgxpool.Pool
	layout domain.FeatureLayout
}

// NewHistoryRepository creates a HistoryWriter that mirrors predictions into Postgres
func NewHistoryRepository(pool *pgxpool.Pool, layout domain.FeatureLayout) output.HistoryWriter {
	return &historyRepo{pool: pool, layout: layout}
}

// EnsureHistorySchema creates the prediction_history table when it does not exist
func EnsureHistorySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, createHistoryTable); err != nil {
		return fmt.Errorf("create prediction_history: %w", err)
	}
	return nil
}

func (r *historyRepo) Append(ctx context.Context, records []domain.HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"prediction_history"},
		historyColumns,
		pgx.CopyFromRows(historyRows(r.layout, records)),
	)
	if err != nil {
		return fmt.Errorf("%w: copy prediction history: %v", domain.ErrHistoryAppend, err)
	}
	return nil
}

// historyRows keys each record's inputs by feature name.
func historyRows(layout domain.FeatureLayout, records []domain.HistoryRecord) [][]interface{} {
	rows := make([][]interface{}, len(records))
	for i, rec := range records {
		inputs := make(map[string]interface{}, len(layout))
		for j, f := range layout {
			if j < len(rec.Inputs) {
				inputs[f.Name] = rec.Inputs[j]
			}
		}
		rows[i] = []interface{}{
			inputs,
			rec.PredictionTime,
			rec.ModelUsed,
			rec.Prediction,
			rec.Probability,
		}
	}
	return rows
}

// Ensure interface compliance
var _ output.HistoryWriter = (*historyRepo)(nil)
