package modelserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"churn-insight-service/internal/core/domain"
	ports "churn-insight-service/internal/core/ports/output"
)

// DefaultModels are the three classifiers trained for the churn dashboard, served locally.
var DefaultModels = []domain.ModelInfo{
	{ID: "random_forest", DisplayName: "Random Forest", Endpoint: "http://localhost:8081", ModelName: "churn-rf", Classes: domain.DefaultClasses},
	{ID: "gboost", DisplayName: "GBoost", Endpoint: "http://localhost:8081", ModelName: "churn-gb", Classes: domain.DefaultClasses},
	{ID: "xgboost", DisplayName: "XGBoost", Endpoint: "http://localhost:8081", ModelName: "churn-xgb", Classes: domain.DefaultClasses},
}

type catalogFile struct {
	Models []domain.ModelInfo `yaml:"models"`
}

// LoadCatalog reads model definitions from a YAML file.
func LoadCatalog(path string) ([]domain.ModelInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse model catalog: %w", err)
	}
	seen := map[string]bool{}
	for i, m := range f.Models {
		if m.ID == "" || m.ModelName == "" {
			return nil, fmt.Errorf("model catalog entry %d needs id and model_name", i+1)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("model catalog has duplicate id %q", m.ID)
		}
		seen[m.ID] = true
		if m.Endpoint == "" && m.InferenceService == "" {
			return nil, fmt.Errorf("model %q needs an endpoint or an inference_service", m.ID)
		}
		if m.DisplayName == "" {
			f.Models[i].DisplayName = m.ID
		}
	}
	return f.Models, nil
}

// LoadCatalogOrDefault falls back to DefaultModels when path does not exist.
func LoadCatalogOrDefault(path string) ([]domain.ModelInfo, error) {
	models, err := LoadCatalog(path)
	if errors.Is(err, os.ErrNotExist) {
		log.WithField("path", path).Warn("Model catalog not found, using built-in models")
		return DefaultModels, nil
	}
	return models, err
}

type catalog struct {
	models []domain.ModelInfo
	kserve ports.KServeClient
	client *http.Client
}

// NewCatalog resolves model ids to HTTP providers. Models backed by an InferenceService take
// their endpoint from its status when kserve is available.
func NewCatalog(models []domain.ModelInfo, kserve ports.KServeClient, timeout time.Duration) ports.ModelCatalog {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &catalog{
		models: models,
		kserve: kserve,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *catalog) Models() []domain.ModelInfo {
	out := make([]domain.ModelInfo, len(c.models))
	copy(out, c.models)
	return out
}

func (c *catalog) Provider(ctx context.Context, modelID string) (ports.ModelProvider, error) {
	info, ok := c.find(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown model %q", domain.ErrModelUnavailable, modelID)
	}
	if info.Disabled {
		return nil, fmt.Errorf("%w: model %q is disabled", domain.ErrModelUnavailable, modelID)
	}

	endpoint := info.Endpoint
	if info.InferenceService != "" && c.kserve != nil && c.kserve.IsAvailable() {
		status, err := c.kserve.GetStatus(ctx, info.Namespace, info.InferenceService)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrModelUnavailable, modelID, err)
		}
		if !status.Ready {
			return nil, fmt.Errorf("%w: %s is not ready: %s", domain.ErrModelUnavailable, modelID, status.Error)
		}
		if status.URL != "" {
			endpoint = status.URL
		}
	}
	if endpoint == "" {
		return nil, fmt.Errorf("%w: %s has no endpoint", domain.ErrModelUnavailable, modelID)
	}

	return newHTTPModel(c.client, endpoint, info), nil
}

func (c *catalog) find(id string) (domain.ModelInfo, bool) {
	for _, m := range c.models {
		if m.ID == id {
			return m, true
		}
	}
	return domain.ModelInfo{}, false
}

var _ ports.ModelCatalog = (*catalog)(nil)
