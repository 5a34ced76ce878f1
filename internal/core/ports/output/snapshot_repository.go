package ports

import (
	"context"

	"churn-insight-service/internal/core/domain"
)

// SnapshotRepository is the per-user versioned store. Each user's entries live in an
// independent physical store; appends for one user are serialized by the implementation.
type SnapshotRepository interface {
	// Append writes table as the user's next version. The write is all-or-nothing.
	Append(ctx context.Context, userID string, table *domain.Table) (*domain.SnapshotMeta, error)

	// Latest returns the highest version or domain.ErrSnapshotNotFound.
	Latest(ctx context.Context, userID string) (*domain.Snapshot, error)

	// Get returns one specific version or domain.ErrSnapshotNotFound.
	Get(ctx context.Context, userID string, version int) (*domain.Snapshot, error)

	// List returns metadata of every version, oldest first.
	List(ctx context.Context, userID string) ([]*domain.SnapshotMeta, error)
}
