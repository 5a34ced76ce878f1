package ports

import (
	"context"

	"churn-insight-service/internal/core/domain"
)

// AuthProvider turns a bearer credential issued by the identity service into a session.
type AuthProvider interface {
	Authenticate(ctx context.Context, token string) (*domain.Session, error)
}
