package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"churn-insight-service/internal/core/domain"
	ports "churn-insight-service/internal/core/ports/output"
)

// Claims is the access token payload issued by the identity service. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
}

type jwtProvider struct {
	secret []byte
	issuer string
}

// NewJWTProvider verifies HS256 access tokens signed with secret. An empty issuer skips the iss check.
func NewJWTProvider(secret, issuer string) (ports.AuthProvider, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &jwtProvider{secret: []byte(secret), issuer: issuer}, nil
}

func (p *jwtProvider) Authenticate(_ context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if !parsed.Valid {
		return nil, domain.ErrUnauthenticated
	}

	if err := domain.ValidateUserID(claims.Subject); err != nil {
		return nil, err
	}

	return &domain.Session{
		UserID:        claims.Subject,
		Authenticated: true,
		TokenID:       claims.ID,
	}, nil
}

// IssueToken signs a token for userID. The service only verifies tokens; this backs local tooling and tests.
func IssueToken(secret, issuer, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

var _ ports.AuthProvider = (*jwtProvider)(nil)
