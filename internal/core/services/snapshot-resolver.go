package services

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"churn-insight-service/internal/core/domain"
	"churn-insight-service/internal/core/ports/output"
)

// SnapshotResolver picks the table a user works with: their latest upload, or the shared template.
type SnapshotResolver struct {
	repo       ports.SnapshotRepository
	template   *domain.Table
	identifier string
}

func NewSnapshotResolver(repo ports.SnapshotRepository, template *domain.Table, identifier string) *SnapshotResolver {
	if identifier == "" {
		identifier = domain.DefaultIdentifierColumn
	}
	return &SnapshotResolver{repo: repo, template: template, identifier: identifier}
}

// Resolve returns the session user's latest snapshot, falling back to the template when there is none.
func (r *SnapshotResolver) Resolve(ctx context.Context, sess *domain.Session) (*domain.ResolvedDataset, error) {
	userID, err := sess.RequireUser()
	if err != nil {
		return nil, err
	}

	var resolved *domain.ResolvedDataset
	snap, err := r.repo.Latest(ctx, userID)
	switch {
	case err == nil:
		resolved = domain.Uploaded(snap)
	case errors.Is(err, domain.ErrSnapshotNotFound):
		resolved = domain.UsingTemplate(r.template)
	default:
		return nil, err
	}

	return r.finish(userID, resolved)
}

// ResolveVersion loads one specific stored version. There is no template fallback.
func (r *SnapshotResolver) ResolveVersion(ctx context.Context, sess *domain.Session, version int) (*domain.ResolvedDataset, error) {
	userID, err := sess.RequireUser()
	if err != nil {
		return nil, err
	}
	if version < 1 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidVersion, version)
	}
	snap, err := r.repo.Get(ctx, userID, version)
	if err != nil {
		return nil, err
	}
	return r.finish(userID, domain.Uploaded(snap))
}

func (r *SnapshotResolver) finish(userID string, resolved *domain.ResolvedDataset) (*domain.ResolvedDataset, error) {
	prepared, err := r.prepare(resolved.Table)
	if err != nil {
		return nil, err
	}
	resolved.Table = prepared
	resolveTotal.WithLabelValues(string(resolved.Origin)).Inc()

	fields := log.Fields{"user_id": userID, "origin": resolved.Origin, "rows": prepared.NumRows()}
	if resolved.Snapshot != nil {
		fields["version"] = resolved.Snapshot.VersionID
	}
	log.WithFields(fields).Debug("Dataset resolved")
	return resolved, nil
}

// prepare keys, coerces and imputes a copy of t. The stored table is never modified.
func (r *SnapshotResolver) prepare(t *domain.Table) (*domain.Table, error) {
	out := t.Clone()
	if err := out.SetKey(r.identifier); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchemaMismatch, err)
	}

	for _, col := range out.Columns {
		if col.Name == out.Key {
			continue
		}
		out.CoerceNumeric(col.Name)
	}

	for _, col := range out.Columns {
		if col.IsNumeric() {
			imputeMedian(col)
		}
	}
	return out, nil
}

// imputeMedian fills missing cells with the median of the column. An all-missing column gets 0.
func imputeMedian(col *domain.Column) {
	if col.Missing() == 0 {
		return
	}
	fill := 0.0
	if values := col.Numbers(); len(values) > 0 {
		fill = median(values)
	}
	for i := range col.Cells {
		if !col.Cells[i].Valid {
			col.Cells[i] = domain.Cell{Num: fill, Valid: true}
		}
	}
}
