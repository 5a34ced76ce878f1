package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "customerID", cfg.Dataset.IdentifierColumn)
	assert.Equal(t, []string{"tenure", "MonthlyCharges", "TotalCharges", "AvgMonthlyCharges", "MonthlyChargesToTotalChargesRatio"}, cfg.Dataset.NumericColumns)
	assert.False(t, cfg.History.BatchHistory)
	assert.Equal(t, "local", cfg.Archive.Backend)
	assert.Equal(t, 30*time.Second, cfg.Models.Timeout)
	assert.Equal(t, "model-serving", cfg.Kubernetes.DefaultNS)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("NUMERIC_COLUMNS", " tenure , TotalCharges,,")
	t.Setenv("PREDICTION_BATCH_HISTORY", "true")
	t.Setenv("ARCHIVE_BACKEND", "GCS")
	t.Setenv("MODEL_TIMEOUT", "not-a-duration")
	t.Setenv("UPLOAD_RPS", "0.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"tenure", "TotalCharges"}, cfg.Dataset.NumericColumns)
	assert.True(t, cfg.History.BatchHistory)
	assert.Equal(t, "gcs", cfg.Archive.Backend)
	assert.Equal(t, 30*time.Second, cfg.Models.Timeout)
	assert.Equal(t, 0.5, cfg.Upload.RatePerSecond)
}
