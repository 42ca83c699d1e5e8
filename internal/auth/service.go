package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/helios-portal/helios-portal/internal/shared"
	"github.com/helios-portal/helios-portal/internal/staff"
)

// UserStore is the slice of staff persistence the session manager needs.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*staff.User, error)
}

// Service turns a verified identity into a bearer credential and keeps it
// fresh without forcing re-authentication.
type Service struct {
	repo       Repository
	users      UserStore
	signer     *TokenSigner
	refreshTTL time.Duration
	logger     *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, users UserStore, signer *TokenSigner, refreshTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{repo: repo, users: users, signer: signer, refreshTTL: refreshTTL, logger: logger}
}

// Issue signs a fresh token pair for the user and replaces any existing
// session row. The insert is verified by a read-back; a row that cannot be
// re-read is a persistence fault, not a business error.
func (s *Service) Issue(ctx context.Context, user *staff.User) (*TokenPair, error) {
	accessToken, accessExpiresAt, err := s.signer.Sign(user.ID, user.DiscordID, user.Rank)
	if err != nil {
		return nil, err
	}
	refreshToken, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &Session{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshDigest:    digest(refreshToken),
		RefreshExpiresAt: now.Add(s.refreshTTL),
		CreatedAt:        now,
	}
	if err := s.repo.ReplaceForUser(ctx, sess); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, sess.ID); err != nil {
		s.logger.Error("session readback failed", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, fmt.Errorf("auth: session readback: %w", shared.ErrPersistence)
	}
	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: sess.RefreshExpiresAt,
	}, nil
}

// Authenticate verifies the signed token, then re-checks the session row
// and the account status, both of which can change server-side after the
// token was minted.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*staff.User, error) {
	user, err := s.Identify(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, ErrAccountNotActive
	}
	return user, nil
}

// Identify performs the token and session checks of Authenticate but
// tolerates any account status. The verification routes need it: a
// pending account holds a session before it becomes active.
func (s *Service) Identify(ctx context.Context, accessToken string) (*staff.User, error) {
	if accessToken == "" {
		return nil, ErrMissingToken
	}
	claims, err := s.signer.Parse(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	sess, err := s.repo.GetByAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, err
	}
	if !sess.AccessExpiresAt.After(time.Now().UTC()) {
		return nil, ErrSessionRevoked
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, err
	}
	return user, nil
}

// Refresh exchanges a live refresh token for a brand-new pair, rotating
// the existing session row in place so session identity is preserved.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrRefreshInvalid
	}
	now := time.Now().UTC()
	sess, err := s.repo.GetByRefreshDigest(ctx, digest(refreshToken), now)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}
	accessToken, accessExpiresAt, err := s.signer.Sign(user.ID, user.DiscordID, user.Rank)
	if err != nil {
		return nil, err
	}
	newRefresh, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	refreshExpiresAt := now.Add(s.refreshTTL)
	if err := s.repo.UpdateTokens(ctx, sess.ID, accessToken, accessExpiresAt, digest(newRefresh), refreshExpiresAt); err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     newRefresh,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// RotateOnRankChange re-signs the access token with the new rank so the
// user need not log in again after verification assigns their rank. The
// session is located by its current access token value, not by user id.
func (s *Service) RotateOnRankChange(ctx context.Context, user *staff.User, oldAccessToken string) (string, error) {
	accessToken, accessExpiresAt, err := s.signer.Sign(user.ID, user.DiscordID, user.Rank)
	if err != nil {
		return "", err
	}
	if err := s.repo.UpdateAccessTokenByOld(ctx, oldAccessToken, accessToken, accessExpiresAt); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", ErrSessionRevoked
		}
		return "", err
	}
	return accessToken, nil
}

// Logout deletes the session row backing the presented token.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	sess, err := s.repo.GetByAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.repo.Delete(ctx, sess.ID)
}

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// digest maps a refresh token to its stored form. Tokens are looked up by
// value, so the digest must be deterministic.
func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
