package testutil

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"churn-insight-service/internal/core/domain"
	"churn-insight-service/internal/core/ports/output"
)

// MockSnapshotRepo is a mock of SnapshotRepository.
type MockSnapshotRepo struct {
	mock.Mock
}

func (m *MockSnapshotRepo) Append(ctx context.Context, userID string, table *domain.Table) (*domain.SnapshotMeta, error) {
	args := m.Called(ctx, userID, table)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SnapshotMeta), args.Error(1)
}

func (m *MockSnapshotRepo) Latest(ctx context.Context, userID string) (*domain.Snapshot, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Snapshot), args.Error(1)
}

func (m *MockSnapshotRepo) Get(ctx context.Context, userID string, version int) (*domain.Snapshot, error) {
	args := m.Called(ctx, userID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Snapshot), args.Error(1)
}

func (m *MockSnapshotRepo) List(ctx context.Context, userID string) ([]*domain.SnapshotMeta, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SnapshotMeta), args.Error(1)
}

// MockModelCatalog is a mock of ModelCatalog.
type MockModelCatalog struct {
	mock.Mock
}

func (m *MockModelCatalog) Provider(ctx context.Context, modelID string) (ports.ModelProvider, error) {
	args := m.Called(ctx, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.ModelProvider), args.Error(1)
}

func (m *MockModelCatalog) Models() []domain.ModelInfo {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]domain.ModelInfo)
}

// MockModelProvider is a mock of ModelProvider.
type MockModelProvider struct {
	mock.Mock
}

func (m *MockModelProvider) Predict(ctx context.Context, rows []domain.FeatureRow) ([]int, error) {
	args := m.Called(ctx, rows)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockModelProvider) PredictProba(ctx context.Context, rows []domain.FeatureRow) ([][]float64, error) {
	args := m.Called(ctx, rows)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float64), args.Error(1)
}

func (m *MockModelProvider) DecodeLabel(encoded int) (string, error) {
	args := m.Called(encoded)
	return args.String(0), args.Error(1)
}

// MockHistoryWriter is a mock of HistoryWriter.
type MockHistoryWriter struct {
	mock.Mock
}

func (m *MockHistoryWriter) Append(ctx context.Context, records []domain.HistoryRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

// MockHistoryReader is a mock of HistoryReader.
type MockHistoryReader struct {
	mock.Mock
}

func (m *MockHistoryReader) ReadAll(ctx context.Context) (*domain.Table, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Table), args.Error(1)
}

// MockRawArchive is a mock of RawArchive.
type MockRawArchive struct {
	mock.Mock
}

func (m *MockRawArchive) Put(ctx context.Context, key string, data []byte) (string, error) {
	args := m.Called(ctx, key, data)
	return args.String(0), args.Error(1)
}

// MockTableDecoder is a mock of TableDecoder.
type MockTableDecoder struct {
	mock.Mock
}

func (m *MockTableDecoder) Decode(filename string, data []byte) (*domain.Table, error) {
	args := m.Called(filename, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Table), args.Error(1)
}

// MockTableEncoder is a mock of TableEncoder.
type MockTableEncoder struct {
	mock.Mock
}

func (m *MockTableEncoder) Encode(w io.Writer, table *domain.Table) error {
	args := m.Called(w, table)
	return args.Error(0)
}

func (m *MockTableEncoder) ContentType() string {
	return m.Called().String(0)
}

func (m *MockTableEncoder) Extension() string {
	return m.Called().String(0)
}

// MockAuthProvider is a mock of AuthProvider.
type MockAuthProvider struct {
	mock.Mock
}

func (m *MockAuthProvider) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

// MockKServeClient is a mock of KServeClient.
type MockKServeClient struct {
	mock.Mock
}

func (m *MockKServeClient) GetStatus(ctx context.Context, namespace, name string) (*ports.KServeStatus, error) {
	args := m.Called(ctx, namespace, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.KServeStatus), args.Error(1)
}

func (m *MockKServeClient) IsAvailable() bool {
	return m.Called().Bool(0)
}
