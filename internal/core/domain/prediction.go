package domain

import (
	"math"
	"time"
)

const (
	LabelChurn   = "Churn"
	LabelNoChurn = "No Churn"
)

// History file columns appended after the feature columns.
const (
	HistoryColPredictionTime = "PredictionTime"
	HistoryColModelUsed      = "ModelUsed"
	HistoryColPrediction     = "Prediction"
	HistoryColProbability    = "Probability"
)

type FeatureSpec struct {
	Name    string `json:"name"`
	Numeric bool   `json:"numeric"`
}

// FeatureLayout is the exact ordered input the classifiers were trained on.
type FeatureLayout []FeatureSpec

var DefaultFeatureLayout = FeatureLayout{
	{Name: "gender"},
	{Name: "SeniorCitizen"},
	{Name: "Partner"},
	{Name: "Dependents"},
	{Name: "tenure", Numeric: true},
	{Name: "PhoneService"},
	{Name: "MultipleLines"},
	{Name: "InternetService"},
	{Name: "OnlineSecurity"},
	{Name: "OnlineBackup"},
	{Name: "DeviceProtection"},
	{Name: "TechSupport"},
	{Name: "StreamingTV"},
	{Name: "StreamingMovies"},
	{Name: "Contract"},
	{Name: "PaperlessBilling"},
	{Name: "PaymentMethod"},
	{Name: "MonthlyCharges", Numeric: true},
	{Name: "TotalCharges", Numeric: true},
}

func (l FeatureLayout) Names() []string {
	out := make([]string, len(l))
	for i, f := range l {
		out[i] = f.Name
	}
	return out
}

func (l FeatureLayout) Index(name string) int {
	for i, f := range l {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// HistoryHeader is the fixed header of the prediction history file.
func (l FeatureLayout) HistoryHeader() []string {
	return append(l.Names(),
		HistoryColPredictionTime, HistoryColModelUsed, HistoryColPrediction, HistoryColProbability)
}

// FeatureRow is one model input in layout order: string for categorical, float64 for numeric.
type FeatureRow []interface{}

// Prediction is the decoded outcome for one input row.
type Prediction struct {
	CustomerID  string     `json:"customer_id,omitempty"`
	Encoded     int        `json:"encoded"`
	Label       string     `json:"label"`
	Decoded     string     `json:"decoded"`
	Probability float64    `json:"probability"`
	Inputs      FeatureRow `json:"-"`
}

type PredictionResult struct {
	ModelID         string       `json:"model_id"`
	Predictions     []Prediction `json:"predictions"`
	HistoryAppended bool         `json:"history_appended"`
}

// HistoryRecord is one row of the shared prediction history.
type HistoryRecord struct {
	Inputs         FeatureRow
	PredictionTime time.Time
	ModelUsed      string
	Prediction     string
	Probability    float64
}

func DisplayLabel(encoded int) string {
	if encoded == 1 {
		return LabelChurn
	}
	return LabelNoChurn
}

// RoundProbability converts a class probability into a percentage rounded to 2 decimals.
func RoundProbability(p float64) float64 {
	return math.Round(p*100*100) / 100
}
