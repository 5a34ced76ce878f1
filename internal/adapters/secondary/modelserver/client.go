package modelserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"churn-insight-service/internal/core/domain"
	ports "churn-insight-service/internal/core/ports/output"
)

// httpModel calls a classifier served over the KServe v1 inference protocol.
// Labels come from {model}:predict and class probabilities from the companion proba model.
type httpModel struct {
	client    *http.Client
	endpoint  string
	modelName string
	probaName string
	classes   []string
}

func newHTTPModel(client *http.Client, endpoint string, info domain.ModelInfo) *httpModel {
	probaName := info.ProbaModelName
	if probaName == "" {
		probaName = info.ModelName + "-proba"
	}
	classes := info.Classes
	if len(classes) == 0 {
		classes = domain.DefaultClasses
	}
	return &httpModel{
		client:    client,
		endpoint:  strings.TrimRight(endpoint, "/"),
		modelName: info.ModelName,
		probaName: probaName,
		classes:   classes,
	}
}

type predictRequest struct {
	Instances []domain.FeatureRow `json:"instances"`
}

type predictResponse struct {
	Predictions []json.RawMessage `json:"predictions"`
}

func (m *httpModel) call(ctx context.Context, model string, rows []domain.FeatureRow) ([]json.RawMessage, error) {
	body, err := json.Marshal(predictRequest{Instances: rows})
	if err != nil {
		return nil, fmt.Errorf("encode instances: %w", err)
	}

	url := fmt.Sprintf("%s/v1/models/%s:predict", m.endpoint, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.WithFields(log.Fields{
		"url":  url,
		"rows": len(rows),
	}).Debug("calling model server")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("model server %s returned %d: %s", model, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if len(out.Predictions) != len(rows) {
		return nil, fmt.Errorf("model server %s returned %d predictions for %d rows", model, len(out.Predictions), len(rows))
	}
	return out.Predictions, nil
}

func (m *httpModel) Predict(ctx context.Context, rows []domain.FeatureRow) ([]int, error) {
	raw, err := m.call(ctx, m.modelName, rows)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(raw))
	for i, r := range raw {
		enc, err := m.encode(r)
		if err != nil {
			return nil, fmt.Errorf("prediction %d: %w", i, err)
		}
		out[i] = enc
	}
	return out, nil
}

// encode accepts either a numeric class index or a class label.
func (m *httpModel) encode(raw json.RawMessage) (int, error) {
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		if num != float64(int(num)) || int(num) < 0 || int(num) >= len(m.classes) {
			return 0, fmt.Errorf("class %v out of range", num)
		}
		return int(num), nil
	}
	var label string
	if err := json.Unmarshal(raw, &label); err != nil {
		return 0, fmt.Errorf("unexpected prediction %s", string(raw))
	}
	for i, c := range m.classes {
		if strings.EqualFold(c, label) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown class %q", label)
}

func (m *httpModel) PredictProba(ctx context.Context, rows []domain.FeatureRow) ([][]float64, error) {
	raw, err := m.call(ctx, m.probaName, rows)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &out[i]); err != nil {
			return nil, fmt.Errorf("probabilities %d: %w", i, err)
		}
		if len(out[i]) != len(m.classes) {
			return nil, fmt.Errorf("probabilities %d: got %d classes, expected %d", i, len(out[i]), len(m.classes))
		}
	}
	return out, nil
}

func (m *httpModel) DecodeLabel(encoded int) (string, error) {
	if encoded < 0 || encoded >= len(m.classes) {
		return "", fmt.Errorf("class %d out of range", encoded)
	}
	return m.classes[encoded], nil
}

var _ ports.ModelProvider = (*httpModel)(nil)
