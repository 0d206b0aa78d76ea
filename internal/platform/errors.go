package platform

import (
	"context"
	"errors"
)

var (
	ErrTokenExpired        = errors.New("jwt expired")
	ErrInvalidToken        = errors.New("invalid jwt")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrForbidden           = errors.New("permission denied")
	ErrNotFound            = errors.New("record not found")
	ErrInvalidCredentials  = errors.New("invalid login credentials")
	ErrEmailTaken          = errors.New("email already registered")
	ErrObjectExists        = errors.New("object already exists")
)

// IsAuthError reports whether err means the access token was rejected and a
// refresh may help.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrInvalidToken)
}

type accessTokenKey struct{}

// WithAccessToken attaches token to ctx. An empty token marks a guest call
// and hides any token set further up the chain.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessToken returns the token attached to ctx, or "" for a guest call.
func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}
