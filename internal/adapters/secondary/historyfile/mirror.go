package historyfile

import (
	"context"

	log "github.com/sirupsen/logrus"

	"churn-insight-service/internal/core/domain"
	output "churn-insight-service/internal/core/ports/output"
)

type mirrored struct {
	primary output.HistoryWriter
	mirrors []output.HistoryWriter
}

// WithMirrors copies every append to mirrors after the primary succeeds.
// Only the primary's error is returned; mirror failures are logged.
func WithMirrors(primary output.HistoryWriter, mirrors ...output.HistoryWriter) output.HistoryWriter {
	if len(mirrors) == 0 {
		return primary
	}
	return &mirrored{primary: primary, mirrors: mirrors}
}

func (m *mirrored) Append(ctx context.Context, records []domain.HistoryRecord) error {
	if err := m.primary.Append(ctx, records); err != nil {
		return err
	}
	for _, mirror := range m.mirrors {
		if err := mirror.Append(ctx, records); err != nil {
			log.WithField("rows", len(records)).WithError(err).Warn("Prediction history mirror append failed")
		}
	}
	return nil
}
