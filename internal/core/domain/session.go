package domain

import "context"

// Session carries the caller identity for one request. Core operations receive it explicitly.
type Session struct {
	UserID        string
	Authenticated bool
	TokenID       string
}

// CurrentUserIdentity returns the user id, or false when the session is anonymous.
func (s *Session) CurrentUserIdentity() (string, bool) {
	if s == nil || !s.Authenticated || s.UserID == "" {
		return "", false
	}
	return s.UserID, true
}

func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Authenticated
}

// RequireUser returns a validated user id or ErrUnauthenticated / ErrInvalidUserID.
func (s *Session) RequireUser() (string, error) {
	userID, ok := s.CurrentUserIdentity()
	if !ok {
		return "", ErrUnauthenticated
	}
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	return userID, nil
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the request session, or an anonymous one when none is attached.
func SessionFrom(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey{}).(*Session); ok && s != nil {
		return s
	}
	return &Session{}
}
