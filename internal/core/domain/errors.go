package domain

import "errors"

// ============================================================================
// Ingestion Errors
// ============================================================================

var (
	ErrUnsupportedFormat = errors.New("unsupported file format (expected .csv or .xlsx)")
	ErrParse             = errors.New("failed to parse uploaded file")
	ErrEmptyDataset      = errors.New("the uploaded file is empty or improperly formatted")
	ErrSchemaMismatch    = errors.New("the structure of the uploaded file does not align with the expected template")
)

// ============================================================================
// Storage Errors
// ============================================================================

var (
	ErrPersistence      = errors.New("failed to persist dataset snapshot")
	ErrSnapshotNotFound = errors.New("no dataset snapshot found")
	ErrInvalidVersion   = errors.New("snapshot version must be a positive integer")
)

// ============================================================================
// Prediction Errors
// ============================================================================

var (
	ErrFeatureMismatch  = errors.New("input does not match the model feature layout")
	ErrModelUnavailable = errors.New("model is unavailable")
	ErrHistoryAppend    = errors.New("failed to append prediction history")
	ErrHistoryRead      = errors.New("failed to read prediction history")
)

// ============================================================================
// Session / Request Errors
// ============================================================================

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidUserID   = errors.New("user identity must contain only letters, digits, '-' or '_'")
	ErrInvalidFilter   = errors.New("invalid filter")
)
