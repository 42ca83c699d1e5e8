package verification

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/helios-portal/helios-portal/internal/roblox"
	"github.com/helios-portal/helios-portal/internal/shared"
	"github.com/helios-portal/helios-portal/internal/staff"
)

// UserStore is the slice of staff persistence the workflow needs.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*staff.User, error)
	MarkVerified(ctx context.Context, userID, robloxID int64, robloxName string, rank int, rankName string) error
}

// RobloxAPI is the identity-B read surface the workflow consumes.
type RobloxAPI interface {
	ResolveUsername(ctx context.Context, username string) (int64, error)
	GetUserBio(ctx context.Context, userID int64) (string, error)
	GetGroupRole(ctx context.Context, userID, groupID int64) (*roblox.GroupRole, error)
}

// PermissionSeeder initializes rank-tier default permissions.
type PermissionSeeder interface {
	InitializeDefaults(ctx context.Context, userID int64, rank int) error
}

// SessionRotator swaps the caller's access token after the rank changed.
type SessionRotator interface {
	RotateOnRankChange(ctx context.Context, user *staff.User, oldAccessToken string) (string, error)
}

// Service orchestrates the challenge/response flow that links a Roblox
// identity to an account and assigns its initial authority rank.
type Service struct {
	codes    Repository
	users    UserStore
	roblox   RobloxAPI
	perms    PermissionSeeder
	sessions SessionRotator
	groupID  int64
	codeTTL  time.Duration
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(codes Repository, users UserStore, robloxAPI RobloxAPI, perms PermissionSeeder, sessions SessionRotator, groupID int64, codeTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{
		codes:    codes,
		users:    users,
		roblox:   robloxAPI,
		perms:    perms,
		sessions: sessions,
		groupID:  groupID,
		codeTTL:  codeTTL,
		logger:   logger,
	}
}

// RequestCode returns the user's live challenge code, creating one only
// when none exists. Re-requests are idempotent so a double-click cannot
// flood codes and the code pasted into the profile stays stable.
func (s *Service) RequestCode(ctx context.Context, userID int64) (*Code, error) {
	now := time.Now().UTC()
	existing, err := s.codes.GetLive(ctx, userID, now)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}
	return s.codes.Insert(ctx, userID, code, now.Add(s.codeTTL))
}

// Verify runs the ordered challenge checks and, on success, activates the
// account with its initial rank. Each failure reason maps to a distinct,
// user-actionable message; the first failed check wins.
func (s *Service) Verify(ctx context.Context, userID int64, robloxUsername, submittedCode, currentAccessToken string) (*Result, error) {
	now := time.Now().UTC()

	live, err := s.codes.GetLive(ctx, userID, now)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, failed(ReasonCodeInvalidOrExpired)
		}
		return nil, err
	}
	if Normalize(strings.TrimSpace(submittedCode)) != Normalize(live.Code) {
		return nil, failed(ReasonCodeInvalidOrExpired)
	}

	robloxID, err := s.roblox.ResolveUsername(ctx, robloxUsername)
	if err != nil {
		if errors.Is(err, roblox.ErrUserNotFound) {
			return nil, failed(ReasonUserNotFound)
		}
		return nil, err
	}

	bio, err := s.roblox.GetUserBio(ctx, robloxID)
	if err != nil {
		if errors.Is(err, roblox.ErrUserNotFound) {
			return nil, failed(ReasonUserNotFound)
		}
		return nil, err
	}
	normalizedBio := Normalize(bio)
	if !ContainsAlphabetSymbol(normalizedBio) {
		return nil, failed(ReasonNoChallengeMarkerInBio)
	}
	if !strings.Contains(normalizedBio, Normalize(live.Code)) {
		return nil, failed(ReasonChallengeNotFound)
	}

	role, err := s.roblox.GetGroupRole(ctx, robloxID, s.groupID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, failed(ReasonNotInRequiredGroup)
	}

	if err := s.users.MarkVerified(ctx, userID, robloxID, robloxUsername, role.Rank, role.Name); err != nil {
		return nil, err
	}
	if err := s.codes.MarkUsed(ctx, live.ID); err != nil {
		return nil, err
	}
	if err := s.perms.InitializeDefaults(ctx, userID, role.Rank); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	accessToken, err := s.sessions.RotateOnRankChange(ctx, user, currentAccessToken)
	if err != nil {
		// The account is verified; only the convenience rotation failed.
		// The user can refresh or log in again.
		s.logger.Warn("rotate session after verification", slog.Int64("user_id", userID), slog.Any("error", err))
		accessToken = ""
	}

	return &Result{
		RobloxID:    robloxID,
		RobloxName:  robloxUsername,
		Rank:        role.Rank,
		RankName:    role.Name,
		AccessToken: accessToken,
	}, nil
}
