package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"churn-insight-service/internal/core/domain"
)

func TestHistoryRows(t *testing.T) {
	layout := domain.FeatureLayout{{Name: "gender"}, {Name: "tenure", Numeric: true}}
	at := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	rows := historyRows(layout, []domain.HistoryRecord{{
		Inputs:         domain.FeatureRow{"Male", 3.0},
		PredictionTime: at,
		ModelUsed:      "GBoost",
		Prediction:     "Yes",
		Probability:    66.67,
	}})

	assert.Len(t, rows, 1)
	assert.Len(t, rows[0], len(historyColumns))
	assert.Equal(t, map[string]interface{}{"gender": "Male", "tenure": 3.0}, rows[0][0])
	assert.Equal(t, at, rows[0][1])
	assert.Equal(t, "GBoost", rows[0][2])
	assert.Equal(t, 66.67, rows[0][4])
}
