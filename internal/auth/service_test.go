package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/helios-portal/helios-portal/internal/shared"
	"github.com/helios-portal/helios-portal/internal/staff"
	_ "github.com/helios-portal/helios-portal/testing"
)

type memorySessionRepo struct {
	sessions map[string]*Session
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{sessions: make(map[string]*Session)}
}

func (r *memorySessionRepo) ReplaceForUser(ctx context.Context, sess *Session) error {
	for id, existing := range r.sessions {
		if existing.UserID == sess.UserID {
			delete(r.sessions, id)
		}
	}
	clone := *sess
	r.sessions[sess.ID] = &clone
	return nil
}

func (r *memorySessionRepo) GetByID(ctx context.Context, id string) (*Session, error) {
	if sess, ok := r.sessions[id]; ok {
		clone := *sess
		return &clone, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memorySessionRepo) GetByAccessToken(ctx context.Context, accessToken string) (*Session, error) {
	for _, sess := range r.sessions {
		if sess.AccessToken == accessToken {
			clone := *sess
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memorySessionRepo) GetByRefreshDigest(ctx context.Context, digest string, now time.Time) (*Session, error) {
	for _, sess := range r.sessions {
		if sess.RefreshDigest == digest && sess.RefreshExpiresAt.After(now) {
			clone := *sess
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memorySessionRepo) UpdateTokens(ctx context.Context, id string, accessToken string, accessExpiresAt time.Time, refreshDigest string, refreshExpiresAt time.Time) error {
	sess, ok := r.sessions[id]
	if !ok {
		return shared.ErrNotFound
	}
	sess.AccessToken = accessToken
	sess.AccessExpiresAt = accessExpiresAt
	sess.RefreshDigest = refreshDigest
	sess.RefreshExpiresAt = refreshExpiresAt
	return nil
}

func (r *memorySessionRepo) UpdateAccessTokenByOld(ctx context.Context, oldAccessToken, newAccessToken string, accessExpiresAt time.Time) error {
	for _, sess := range r.sessions {
		if sess.AccessToken == oldAccessToken {
			sess.AccessToken = newAccessToken
			sess.AccessExpiresAt = accessExpiresAt
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memorySessionRepo) Delete(ctx context.Context, id string) error {
	delete(r.sessions, id)
	return nil
}

type memoryUserStore struct {
	users map[int64]*staff.User
}

func (s *memoryUserStore) GetByID(ctx context.Context, id int64) (*staff.User, error) {
	if u, ok := s.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, shared.ErrNotFound
}

func newTestService(users ...*staff.User) (*Service, *memorySessionRepo) {
	store := &memoryUserStore{users: make(map[int64]*staff.User)}
	for _, u := range users {
		store.users[u.ID] = u
	}
	repo := newMemorySessionRepo()
	signer := NewTokenSigner("test-secret", "helios-test", 15*time.Minute)
	svc := NewService(repo, store, signer, 24*time.Hour, slog.Default())
	return svc, repo
}

func activeUser(id int64, rank int) *staff.User {
	return &staff.User{ID: id, DiscordID: "d-1", DiscordName: "tester", Rank: &rank, Status: staff.StatusActive}
}

func TestIssueAndAuthenticate(t *testing.T) {
	user := activeUser(1, 10)
	svc, _ := newTestService(user)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.True(t, pair.AccessExpiresAt.After(time.Now()))

	got, err := svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
}

func TestAuthenticateRejectsPendingAccount(t *testing.T) {
	user := &staff.User{ID: 2, DiscordID: "d-2", DiscordName: "newbie", Status: staff.StatusPendingVerification}
	svc, _ := newTestService(user)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, user)
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrAccountNotActive)

	// The same token still identifies the session for verification routes.
	got, err := svc.Identify(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
}

func TestAuthenticateMissingAndInvalidTokens(t *testing.T) {
	svc, _ := newTestService(activeUser(3, 10))
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "")
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = svc.Authenticate(ctx, "not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateRevokedSession(t *testing.T) {
	user := activeUser(4, 10)
	svc, repo := newTestService(user)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, user)
	require.NoError(t, err)

	for id := range repo.sessions {
		require.NoError(t, repo.Delete(ctx, id))
	}

	_, err = svc.Authenticate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrSessionRevoked)
}

func TestIssueReplacesExistingSession(t *testing.T) {
	user := activeUser(5, 10)
	svc, repo := newTestService(user)
	ctx := context.Background()

	first, err := svc.Issue(ctx, user)
	require.NoError(t, err)
	second, err := svc.Issue(ctx, user)
	require.NoError(t, err)
	require.Len(t, repo.sessions, 1)

	_, err = svc.Authenticate(ctx, first.AccessToken)
	require.ErrorIs(t, err, ErrSessionRevoked)
	_, err = svc.Authenticate(ctx, second.AccessToken)
	require.NoError(t, err)
}

func TestRefreshRotatesInPlace(t *testing.T) {
	user := activeUser(6, 10)
	svc, repo := newTestService(user)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, user)
	require.NoError(t, err)
	var sessionID string
	for id := range repo.sessions {
		sessionID = id
	}

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, rotated.AccessToken)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// Session identity is preserved; the old refresh token is spent.
	require.Len(t, repo.sessions, 1)
	_, ok := repo.sessions[sessionID]
	require.True(t, ok)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrRefreshInvalid)

	_, err = svc.Authenticate(ctx, rotated.AccessToken)
	require.NoError(t, err)
}

func TestRefreshExpiredToken(t *testing.T) {
	user := activeUser(7, 10)
	svc, repo := newTestService(user)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, user)
	require.NoError(t, err)
	for _, sess := range repo.sessions {
		sess.RefreshExpiresAt = time.Now().UTC().Add(-time.Minute)
	}

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrRefreshInvalid)
}

func TestRefreshEmptyToken(t *testing.T) {
	svc, _ := newTestService(activeUser(8, 10))
	_, err := svc.Refresh(context.Background(), "")
	require.ErrorIs(t, err, ErrRefreshInvalid)
}

func TestRotateOnRankChange(t *testing.T) {
	user := activeUser(9, 10)
	svc, _ := newTestService(user)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, user)
	require.NoError(t, err)

	newRank := 50
	user.Rank = &newRank
	rotated, err := svc.RotateOnRankChange(ctx, user, pair.AccessToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, rotated)

	_, err = svc.Authenticate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrSessionRevoked)
	got, err := svc.Authenticate(ctx, rotated)
	require.NoError(t, err)
	require.Equal(t, newRank, *got.Rank)
}

func TestRotateOnRankChangeSessionGone(t *testing.T) {
	user := activeUser(10, 10)
	svc, _ := newTestService(user)

	_, err := svc.RotateOnRankChange(context.Background(), user, "stale-token")
	require.ErrorIs(t, err, ErrSessionRevoked)
}

func TestLogoutIsIdempotent(t *testing.T) {
	user := activeUser(11, 10)
	svc, repo := newTestService(user)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, user)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.AccessToken))
	require.Empty(t, repo.sessions)
	require.NoError(t, svc.Logout(ctx, pair.AccessToken))
}
