package modelserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"churn-insight-service/internal/core/domain"
	ports "churn-insight-service/internal/core/ports/output"
	"churn-insight-service/internal/testutil"
)

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Instances [][]interface{} `json:"instances"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		preds := make([]interface{}, len(req.Instances))
		for i := range req.Instances {
			switch r.URL.Path {
			case "/v1/models/churn-rf:predict":
				preds[i] = 1
			case "/v1/models/churn-rf-proba:predict":
				preds[i] = []float64{0.25, 0.75}
			case "/v1/models/churn-labels:predict":
				preds[i] = "No"
			default:
				http.Error(w, "model not found", http.StatusNotFound)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"predictions": preds})
	}))
}

func rows() []domain.FeatureRow {
	return []domain.FeatureRow{
		{"Female", "0", "Yes", "No", 1.0},
		{"Male", "1", "No", "No", 34.0},
	}
}

func TestHTTPModel_Predict(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	m := newHTTPModel(srv.Client(), srv.URL+"/", domain.ModelInfo{ModelName: "churn-rf"})

	enc, err := m.Predict(context.Background(), rows())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, enc)

	proba, err := m.PredictProba(context.Background(), rows())
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.25, 0.75}, {0.25, 0.75}}, proba)

	label, err := m.DecodeLabel(1)
	require.NoError(t, err)
	assert.Equal(t, "Yes", label)

	_, err = m.DecodeLabel(2)
	assert.Error(t, err)
}

func TestHTTPModel_StringLabels(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	m := newHTTPModel(srv.Client(), srv.URL, domain.ModelInfo{ModelName: "churn-labels"})
	enc, err := m.Predict(context.Background(), rows())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, enc)
}

func TestHTTPModel_ServerError(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	m := newHTTPModel(srv.Client(), srv.URL, domain.ModelInfo{ModelName: "missing"})
	_, err := m.Predict(context.Background(), rows())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`models:
  - id: random_forest
    display_name: Random Forest
    endpoint: http://localhost:8081
    model_name: churn-rf
  - id: xgboost
    model_name: churn-xgb
    inference_service: churn-xgb
    namespace: model-serving
    disabled: true
`), 0o644))

	models, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "Random Forest", models[0].DisplayName)
	assert.Equal(t, "xgboost", models[1].DisplayName)
	assert.True(t, models[1].Disabled)

	t.Run("duplicate id", func(t *testing.T) {
		dup := filepath.Join(dir, "dup.yaml")
		require.NoError(t, os.WriteFile(dup, []byte(`models:
  - {id: a, model_name: m, endpoint: http://x}
  - {id: a, model_name: m, endpoint: http://x}
`), 0o644))
		_, err := LoadCatalog(dup)
		assert.Error(t, err)
	})

	t.Run("missing file falls back", func(t *testing.T) {
		models, err := LoadCatalogOrDefault(filepath.Join(dir, "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultModels, models)
	})
}

func TestCatalog_Provider(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	models := []domain.ModelInfo{
		{ID: "random_forest", ModelName: "churn-rf", Endpoint: srv.URL},
		{ID: "gboost", ModelName: "churn-gb", Endpoint: srv.URL, Disabled: true},
		{ID: "xgboost", ModelName: "churn-rf", InferenceService: "churn-xgb", Namespace: "ml"},
	}

	t.Run("static endpoint", func(t *testing.T) {
		c := NewCatalog(models, nil, time.Second)
		p, err := c.Provider(context.Background(), "random_forest")
		require.NoError(t, err)
		enc, err := p.Predict(context.Background(), rows())
		require.NoError(t, err)
		assert.Equal(t, []int{1, 1}, enc)
	})

	t.Run("unknown and disabled", func(t *testing.T) {
		c := NewCatalog(models, nil, time.Second)
		_, err := c.Provider(context.Background(), "svm")
		assert.ErrorIs(t, err, domain.ErrModelUnavailable)
		_, err = c.Provider(context.Background(), "gboost")
		assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	})

	t.Run("inference service endpoint", func(t *testing.T) {
		ks := new(testutil.MockKServeClient)
		ks.On("IsAvailable").Return(true)
		ks.On("GetStatus", mock.Anything, "ml", "churn-xgb").
			Return(&ports.KServeStatus{URL: srv.URL, Ready: true}, nil).Once()

		c := NewCatalog(models, ks, time.Second)
		p, err := c.Provider(context.Background(), "xgboost")
		require.NoError(t, err)
		_, err = p.PredictProba(context.Background(), rows())
		require.NoError(t, err)
		ks.AssertExpectations(t)
	})

	t.Run("inference service not ready", func(t *testing.T) {
		ks := new(testutil.MockKServeClient)
		ks.On("IsAvailable").Return(true)
		ks.On("GetStatus", mock.Anything, "ml", "churn-xgb").
			Return(&ports.KServeStatus{Ready: false, Error: "RevisionMissing"}, nil)

		c := NewCatalog(models, ks, time.Second)
		_, err := c.Provider(context.Background(), "xgboost")
		assert.ErrorIs(t, err, domain.ErrModelUnavailable)
		assert.Contains(t, err.Error(), "RevisionMissing")
	})

	t.Run("models are copied", func(t *testing.T) {
		c := NewCatalog(models, nil, 0)
		list := c.Models()
		list[0].ID = "changed"
		assert.Equal(t, "random_forest", c.Models()[0].ID)
	})
}
