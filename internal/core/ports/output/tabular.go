package ports

import (
	"io"

	"churn-insight-service/internal/core/domain"
)

// TableDecoder parses an uploaded file. The extension of filename selects the format.
type TableDecoder interface {
	Decode(filename string, data []byte) (*domain.Table, error)
}

// TableEncoder renders a table in one download format.
type TableEncoder interface {
	Encode(w io.Writer, table *domain.Table) error
	ContentType() string
	Extension() string
}
