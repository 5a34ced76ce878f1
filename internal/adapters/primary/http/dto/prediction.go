package dto

import "churn-insight-service/internal/core/domain"

type PredictRecordRequest struct {
	Model  string                 `json:"model" binding:"required"`
	Record map[string]interface{} `json:"record" binding:"required"`
}

type PredictBatchRequest struct {
	Model string `json:"model" binding:"required"`
}

type PredictionResponse struct {
	CustomerID  string  `json:"customer_id,omitempty"`
	Prediction  string  `json:"prediction"`
	Label       string  `json:"label"`
	Encoded     int     `json:"encoded"`
	Probability float64 `json:"probability"`
}

type PredictionResultResponse struct {
	Model           string               `json:"model"`
	Predictions     []PredictionResponse `json:"predictions"`
	Total           int                  `json:"total"`
	HistoryAppended bool                 `json:"history_appended"`
}

type ModelResponse struct {
	ID               string   `json:"id"`
	DisplayName      string   `json:"display_name"`
	Classes          []string `json:"classes"`
	InferenceService string   `json:"inference_service,omitempty"`
	Enabled          bool     `json:"enabled"`
}

func ToPredictionResultResponse(r *domain.PredictionResult) PredictionResultResponse {
	items := make([]PredictionResponse, len(r.Predictions))
	for i, p := range r.Predictions {
		items[i] = PredictionResponse{
			CustomerID:  p.CustomerID,
			Prediction:  p.Label,
			Label:       p.Decoded,
			Encoded:     p.Encoded,
			Probability: p.Probability,
		}
	}
	return PredictionResultResponse{
		Model:           r.ModelID,
		Predictions:     items,
		Total:           len(items),
		HistoryAppended: r.HistoryAppended,
	}
}

func ToModelResponse(m domain.ModelInfo) ModelResponse {
	classes := m.Classes
	if len(classes) == 0 {
		classes = domain.DefaultClasses
	}
	return ModelResponse{
		ID:               m.ID,
		DisplayName:      m.DisplayName,
		Classes:          classes,
		InferenceService: m.InferenceService,
		Enabled:          !m.Disabled,
	}
}
