package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"churn-insight-service/internal/core/domain"
	"churn-insight-service/internal/testutil"
)

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

type predictionFixture struct {
	catalog  *testutil.MockModelCatalog
	provider *testutil.MockModelProvider
	history  *testutil.MockHistoryWriter
	repo     *testutil.MockSnapshotRepo
	svc      *PredictionService
}

func newPredictionFixture(t *testing.T, batchHistory bool) *predictionFixture {
	f := &predictionFixture{
		catalog:  new(testutil.MockModelCatalog),
		provider: new(testutil.MockModelProvider),
		history:  new(testutil.MockHistoryWriter),
		repo:     new(testutil.MockSnapshotRepo),
	}
	resolver := NewSnapshotResolver(f.repo, testutil.ChurnTable(t), "")
	f.svc = NewPredictionService(f.catalog, f.history, resolver, PredictionConfig{
		BatchHistory: batchHistory,
		Now:          func() time.Time { return fixedNow },
	})
	f.catalog.On("Models").Return([]domain.ModelInfo{{ID: "random_forest", DisplayName: "Random Forest"}}).Maybe()
	return f
}

func TestPredictionService_PredictRecord(t *testing.T) {
	f := newPredictionFixture(t, false)

	f.catalog.On("Provider", mock.Anything, "random_forest").Return(f.provider, nil)
	f.provider.On("Predict", mock.Anything, mock.MatchedBy(func(rows []domain.FeatureRow) bool {
		return len(rows) == 1 && rows[0][0] == "Female" && rows[0][4] == 12.0 && rows[0][18] == 844.2
	})).Return([]int{1}, nil)
	f.provider.On("PredictProba", mock.Anything, mock.Anything).Return([][]float64{{0.1876, 0.8124}}, nil)
	f.provider.On("DecodeLabel", 1).Return("Yes", nil)
	f.history.On("Append", mock.Anything, mock.MatchedBy(func(recs []domain.HistoryRecord) bool {
		r := recs[0]
		return len(recs) == 1 &&
			r.ModelUsed == "Random Forest" &&
			r.Prediction == "Yes" &&
			r.Probability == 81.24 &&
			r.PredictionTime.Equal(fixedNow) &&
			len(r.Inputs) == len(domain.DefaultFeatureLayout)
	})).Return(nil)

	res, err := f.svc.PredictRecord(context.Background(), user1, "random_forest", testutil.ChurnRecord())
	require.NoError(t, err)
	require.Len(t, res.Predictions, 1)

	p := res.Predictions[0]
	assert.Equal(t, domain.LabelChurn, p.Label)
	assert.Equal(t, "Yes", p.Decoded)
	assert.Equal(t, 81.24, p.Probability)
	assert.GreaterOrEqual(t, p.Probability, 0.0)
	assert.LessOrEqual(t, p.Probability, 100.0)
	assert.True(t, res.HistoryAppended)
	f.history.AssertNumberOfCalls(t, "Append", 1)
}

func TestPredictionService_PredictRecord_FeatureMismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		want   string
	}{
		{"missing", func(r map[string]interface{}) { delete(r, "Contract") }, `missing feature "Contract"`},
		{"unknown", func(r map[string]interface{}) { r["contract_type"] = "One year" }, `unknown feature "contract_type"`},
		{"not numeric", func(r map[string]interface{}) { r["tenure"] = "twelve" }, `feature "tenure"`},
		{"empty category", func(r map[string]interface{}) { r["gender"] = " " }, `feature "gender" is empty`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPredictionFixture(t, false)
			record := testutil.ChurnRecord()
			tt.mutate(record)

			_, err := f.svc.PredictRecord(context.Background(), user1, "random_forest", record)
			assert.ErrorIs(t, err, domain.ErrFeatureMismatch)
			assert.Contains(t, err.Error(), tt.want)
			f.catalog.AssertNotCalled(t, "Provider", mock.Anything, mock.Anything)
		})
	}
}

func TestPredictionService_PredictRecord_NumericStringsAccepted(t *testing.T) {
	f := newPredictionFixture(t, false)
	record := testutil.ChurnRecord()
	record["tenure"] = " 24 "

	f.catalog.On("Provider", mock.Anything, "random_forest").Return(f.provider, nil)
	f.provider.On("Predict", mock.Anything, mock.MatchedBy(func(rows []domain.FeatureRow) bool {
		return rows[0][4] == 24.0
	})).Return([]int{0}, nil)
	f.provider.On("PredictProba", mock.Anything, mock.Anything).Return([][]float64{{0.7, 0.3}}, nil)
	f.provider.On("DecodeLabel", 0).Return("No", nil)
	f.history.On("Append", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.PredictRecord(context.Background(), user1, "random_forest", record)
	require.NoError(t, err)
	assert.Equal(t, domain.LabelNoChurn, res.Predictions[0].Label)
	assert.Equal(t, 70.0, res.Predictions[0].Probability)
}

func TestPredictionService_ModelUnavailable(t *testing.T) {
	f := newPredictionFixture(t, false)
	f.catalog.On("Provider", mock.Anything, "svm").Return(nil, domain.ErrModelUnavailable)

	_, err := f.svc.PredictRecord(context.Background(), user1, "svm", testutil.ChurnRecord())
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestPredictionService_ProviderFailure(t *testing.T) {
	f := newPredictionFixture(t, false)
	f.catalog.On("Provider", mock.Anything, "random_forest").Return(f.provider, nil)
	f.provider.On("Predict", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := f.svc.PredictRecord(context.Background(), user1, "random_forest", testutil.ChurnRecord())
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	f.history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestPredictionService_HistoryFailureStillReturnsPrediction(t *testing.T) {
	f := newPredictionFixture(t, false)
	f.catalog.On("Provider", mock.Anything, "random_forest").Return(f.provider, nil)
	f.provider.On("Predict", mock.Anything, mock.Anything).Return([]int{0}, nil)
	f.provider.On("PredictProba", mock.Anything, mock.Anything).Return([][]float64{{0.9, 0.1}}, nil)
	f.provider.On("DecodeLabel", 0).Return("No", nil)
	f.history.On("Append", mock.Anything, mock.Anything).Return(errors.Join(domain.ErrHistoryAppend, errors.New("read-only fs")))

	res, err := f.svc.PredictRecord(context.Background(), user1, "random_forest", testutil.ChurnRecord())
	require.NoError(t, err)
	assert.False(t, res.HistoryAppended)
	assert.Equal(t, 90.0, res.Predictions[0].Probability)
}

func TestPredictionService_PredictBatch(t *testing.T) {
	f := newPredictionFixture(t, false)

	var sent []domain.FeatureRow
	f.catalog.On("Provider", mock.Anything, "random_forest").Return(f.provider, nil)
	f.provider.On("Predict", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).([]domain.FeatureRow)
	}).Return([]int{0, 0, 1}, nil)
	f.provider.On("PredictProba", mock.Anything, mock.Anything).Return([][]float64{{0.6, 0.4}, {0.95, 0.05}, {0.2, 0.8}}, nil)
	f.provider.On("DecodeLabel", 0).Return("No", nil)
	f.provider.On("DecodeLabel", 1).Return("Yes", nil)

	table := testutil.ChurnTable(t)
	res, err := f.svc.PredictBatch(context.Background(), user1, "random_forest", table)
	require.NoError(t, err)

	require.Len(t, sent, 3)
	for _, row := range sent {
		assert.Len(t, row, len(domain.DefaultFeatureLayout))
	}
	// blank TotalCharges gets the sentinel
	assert.Equal(t, 1.0, sent[1][18])
	assert.Equal(t, 108.15, sent[2][18])
	assert.Equal(t, "No", sent[0][1])

	assert.Equal(t, "7590-VHVEG", res.Predictions[0].CustomerID)
	assert.Equal(t, domain.LabelChurn, res.Predictions[2].Label)
	assert.False(t, res.HistoryAppended)
	f.history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)

	// input table is not modified
	col, _ := table.Column("TotalCharges")
	assert.False(t, col.Cells[1].Valid)
}

func TestPredictionService_PredictBatch_AppendsHistoryWhenEnabled(t *testing.T) {
	f := newPredictionFixture(t, true)
	f.catalog.On("Provider", mock.Anything, "random_forest").Return(f.provider, nil)
	f.provider.On("Predict", mock.Anything, mock.Anything).Return([]int{0, 0, 0}, nil)
	f.provider.On("PredictProba", mock.Anything, mock.Anything).Return([][]float64{{1, 0}, {1, 0}, {1, 0}}, nil)
	f.provider.On("DecodeLabel", 0).Return("No", nil)
	f.history.On("Append", mock.Anything, mock.MatchedBy(func(recs []domain.HistoryRecord) bool {
		return len(recs) == 3
	})).Return(nil).Once()

	res, err := f.svc.PredictBatch(context.Background(), user1, "random_forest", testutil.ChurnTable(t))
	require.NoError(t, err)
	assert.True(t, res.HistoryAppended)
	f.history.AssertExpectations(t)
}

func TestPredictionService_PredictBatch_ZeroTenure(t *testing.T) {
	f := newPredictionFixture(t, false)
	rows := copyRows(testutil.ChurnRows)
	rows[0][5] = "0"

	var sent []domain.FeatureRow
	f.catalog.On("Provider", mock.Anything, "random_forest").Return(f.provider, nil)
	f.provider.On("Predict", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).([]domain.FeatureRow)
	}).Return([]int{0, 0, 0}, nil)
	f.provider.On("PredictProba", mock.Anything, mock.Anything).Return([][]float64{{1, 0}, {1, 0}, {1, 0}}, nil)
	f.provider.On("DecodeLabel", 0).Return("No", nil)

	_, err := f.svc.PredictBatch(context.Background(), user1, "random_forest", testutil.NewTable(t, testutil.ChurnHeader, rows))
	require.NoError(t, err)
	assert.Equal(t, 1.0, sent[0][4])
	assert.Equal(t, 34.0, sent[1][4])
}

func TestPredictionService_PredictBatch_MissingFeature(t *testing.T) {
	f := newPredictionFixture(t, false)
	table := testutil.ChurnTable(t)
	table.DropColumn("Contract")

	_, err := f.svc.PredictBatch(context.Background(), user1, "random_forest", table)
	assert.ErrorIs(t, err, domain.ErrFeatureMismatch)
	assert.Contains(t, err.Error(), `"Contract"`)
}

func TestPredictionService_PredictCurrent_UsesTemplateFallback(t *testing.T) {
	f := newPredictionFixture(t, false)
	f.repo.On("Latest", mock.Anything, "user1").Return(nil, domain.ErrSnapshotNotFound)
	f.catalog.On("Provider", mock.Anything, "random_forest").Return(f.provider, nil)
	f.provider.On("Predict", mock.Anything, mock.MatchedBy(func(rows []domain.FeatureRow) bool {
		// resolver imputed the blank TotalCharges with the median before batching
		return len(rows) == 3 && math.Abs(rows[1][18].(float64)-69.0) < 1e-9
	})).Return([]int{0, 0, 1}, nil)
	f.provider.On("PredictProba", mock.Anything, mock.Anything).Return([][]float64{{0.6, 0.4}, {0.6, 0.4}, {0.4, 0.6}}, nil)
	f.provider.On("DecodeLabel", mock.Anything).Return("No", nil)

	res, err := f.svc.PredictCurrent(context.Background(), user1, "random_forest")
	require.NoError(t, err)
	assert.Len(t, res.Predictions, 3)
	f.provider.AssertExpectations(t)
}
