package authn

import (
	"context"
	"errors"
	"log/slog"

	"github.com/membergate/membergate/internal/model"
	"github.com/membergate/membergate/internal/services/credential"
	"github.com/membergate/membergate/internal/services/provision"
	"github.com/membergate/membergate/internal/services/session"
	"github.com/membergate/membergate/internal/storage"
)

// Service is the authentication facade consumed by the routing layer. It
// composes the credential codec, session manager and slot provisioner into
// the sign-up, login, logout and session-extraction operations.
type Service struct {
	storage     storage.Storage
	codec       *credential.Codec
	sessions    *session.Manager
	provisioner *provision.Provisioner
	logger      *slog.Logger
}

// New creates a new authentication Service
func New(store storage.Storage, codec *credential.Codec, sessions *session.Manager, provisioner *provision.Provisioner, logger *slog.Logger) *Service {
	return &Service{
		storage:     store,
		codec:       codec,
		sessions:    sessions,
		provisioner: provisioner,
		logger:      logger,
	}
}

// SignUp validates the chosen username and password and claims the given
// invitation slot, returning the first session token for the new account.
func (s *Service) SignUp(ctx context.Context, username, password, deviceLabel string, slotID model.UserID) (model.SessionToken, error) {
	if err := model.ValidateUsername(username); err != nil {
		return "", err
	}
	if err := model.ValidatePassword(password); err != nil {
		return "", err
	}

	token, err := s.provisioner.Fill(ctx, username, password, deviceLabel, slotID)
	if err != nil {
		return "", err
	}

	s.logger.Info("sign up", slog.String("username", username))
	return token, nil
}

// Login verifies the password against the stored fingerprint and issues a
// session on success. The username is matched case-insensitively; the
// fingerprint is recomputed with the account's stored casing and nonce.
//
// A missing account reports model.ErrNotFound while a wrong password
// reports model.ErrInvalidCredentials. Callers that surface these to
// untrusted clients should collapse them into one response, since the
// distinction leaks which usernames exist.
func (s *Service) Login(ctx context.Context, username, password, deviceLabel string) (model.SessionToken, error) {
	stored, err := s.storage.CorrectlyCasedUsername(ctx, username)
	if err != nil {
		return "", err
	}

	creds, err := s.storage.GetCredentials(ctx, stored)
	if err != nil {
		// An unfilled slot has no credentials and cannot authenticate.
		return "", err
	}

	if err := s.codec.Verify(creds, stored, password); err != nil {
		s.logger.Info("login rejected", slog.String("username", stored))
		return "", err
	}

	token, err := s.sessions.Issue(ctx, stored, deviceLabel)
	if err != nil {
		return "", err
	}

	s.logger.Info("login", slog.String("username", stored))
	return token, nil
}

// Logout revokes the session for a token. It is a no-op for an empty,
// unknown or already-revoked token.
func (s *Service) Logout(ctx context.Context, token model.SessionToken) error {
	if token == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, token)
}

// ExtractSession resolves a session cookie value into a live session. It
// fails with model.ErrNoSession if the cookie is absent or does not resolve.
func (s *Service) ExtractSession(ctx context.Context, cookieValue string) (*model.Session, error) {
	if cookieValue == "" {
		return nil, model.ErrNoSession
	}
	return s.sessions.Resolve(ctx, model.SessionToken(cookieValue))
}

// ExtractSessionOrEmpty resolves a session cookie value, substituting the
// anonymous sentinel when no session exists or resolution fails.
func (s *Service) ExtractSessionOrEmpty(ctx context.Context, cookieValue string) *model.Session {
	sess, err := s.ExtractSession(ctx, cookieValue)
	if err != nil {
		if !errors.Is(err, model.ErrNoSession) {
			s.logger.Warn("session resolution failed", slog.String("error", err.Error()))
		}
		return s.sessions.Empty()
	}
	return sess
}
