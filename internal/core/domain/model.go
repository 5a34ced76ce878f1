package domain

// ModelInfo describes one classifier the Model Provider serves.
type ModelInfo struct {
	ID               string   `json:"id" yaml:"id"`
	DisplayName      string   `json:"display_name" yaml:"display_name"`
	Endpoint         string   `json:"-" yaml:"endpoint"`
	ModelName        string   `json:"-" yaml:"model_name"`
	ProbaModelName   string   `json:"-" yaml:"proba_model_name"`
	InferenceService string   `json:"inference_service,omitempty" yaml:"inference_service"`
	Namespace        string   `json:"-" yaml:"namespace"`
	Classes          []string `json:"classes" yaml:"classes"`
	Disabled         bool     `json:"disabled" yaml:"disabled"`
}

// DefaultClasses are the label encoder classes of the churn target.
var DefaultClasses = []string{"No", "Yes"}
