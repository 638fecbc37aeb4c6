// Package handlers provides the REST API for the presence service.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/meridianchat/presenced/internal/db"
	apperrors "github.com/meridianchat/presenced/internal/errors"
)

// Authenticator resolves the authenticated caller of a request.
// Token issuance and verification details are owned elsewhere; handlers only
// need the caller's user ID.
type Authenticator interface {
	UserFromRequest(r *http.Request) (string, error)
}

// TokenAuth authenticates requests against the access_tokens table, taking
// the token from ?access_token= or an Authorization: Bearer header.
type TokenAuth struct {
	repo *db.Repository
}

// NewTokenAuth creates a TokenAuth over the given repository.
func NewTokenAuth(repo *db.Repository) *TokenAuth {
	return &TokenAuth{repo: repo}
}

// UserFromRequest implements Authenticator.
func (a *TokenAuth) UserFromRequest(r *http.Request) (string, error) {
	token := extractToken(r)
	if token == "" {
		return "", apperrors.New(apperrors.ErrUnknownToken, "missing access token")
	}

	userID, err := a.userForToken(r.Context(), token)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrDatabase, "failed to resolve access token", err)
	}
	if userID == "" {
		return "", apperrors.New(apperrors.ErrUnknownToken, "unrecognized access token")
	}
	return userID, nil
}

func (a *TokenAuth) userForToken(ctx context.Context, token string) (string, error) {
	return a.repo.UserForToken(ctx, token)
}

func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("access_token"); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
