package ports

import (
	"context"

	"churn-insight-service/internal/core/domain"
)

// ModelProvider is an opaque trained classifier.
type ModelProvider interface {
	Predict(ctx context.Context, rows []domain.FeatureRow) ([]int, error)
	PredictProba(ctx context.Context, rows []domain.FeatureRow) ([][]float64, error)
	DecodeLabel(encoded int) (string, error)
}

// ModelCatalog resolves model identifiers to ready providers.
type ModelCatalog interface {
	// Provider returns domain.ErrModelUnavailable when the model is unknown, disabled or not serving.
	Provider(ctx context.Context, modelID string) (ModelProvider, error)
	Models() []domain.ModelInfo
}
