package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Skotchmaster/session_auth/internal/db/dbtest"
	"github.com/Skotchmaster/session_auth/internal/events"
	"github.com/Skotchmaster/session_auth/internal/hash"
	"github.com/Skotchmaster/session_auth/internal/metrics"
	"github.com/Skotchmaster/session_auth/internal/models"
	"github.com/Skotchmaster/session_auth/internal/repo"
	"github.com/Skotchmaster/session_auth/internal/tokens"
)

const testRefreshTTL = 14 * 24 * time.Hour

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	svc    *AuthService
	db     *gorm.DB
	repo   *repo.GormRepo
	pub    *recordingPublisher
	clock  *time.Time
	hasher *hash.Hasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb := dbtest.New(t)
	r := repo.New(gdb)

	hasher, err := hash.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	signer, err := tokens.NewSigner([]byte("0123456789abcdef0123456789abcdef"), "session-auth", 15*time.Minute)
	require.NoError(t, err)

	now := time.Now().UTC()
	pub := &recordingPublisher{}
	env := &testEnv{db: gdb, repo: r, pub: pub, clock: &now, hasher: hasher}
	env.svc = &AuthService{
		Users:      r,
		Sessions:   r,
		Hasher:     hasher,
		Signer:     signer,
		RefreshTTL: testRefreshTTL,
		Events:     pub,
		Metrics:    metrics.New(),
		Clock:      func() time.Time { return *env.clock },
	}
	return env
}

func (e *testEnv) seedUser(t *testing.T, email, password, role string) *models.User {
	t.Helper()
	h, err := e.hasher.HashPassword(password)
	require.NoError(t, err)
	u := &models.User{Email: email, PasswordHash: h, Role: role, Name: "Alice"}
	require.NoError(t, e.repo.CreateUserIfNotExists(context.Background(), u))
	return u
}

func (e *testEnv) advance(d time.Duration) {
	*e.clock = e.clock.Add(d)
}

func TestAuthService_Login_Success(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	u := env.seedUser(t, "a@x.com", "secret1", models.RoleUser)

	res, err := env.svc.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshSecret)
	assert.Equal(t, u.ID, res.User.ID)
	assert.Equal(t, env.clock.Add(testRefreshTTL), res.RefreshExp)

	id, err := env.svc.IdentifyCaller(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, tokens.Identity{UserID: u.ID, Role: models.RoleUser}, id)

	var stored models.RefreshSession
	require.NoError(t, env.db.First(&stored, res.SessionID).Error)
	assert.Equal(t, u.ID, stored.UserID)
	assert.Equal(t, HashRefreshSecret(res.RefreshSecret), stored.TokenHash)
	assert.NotEqual(t, res.RefreshSecret, stored.TokenHash)
	assert.Nil(t, stored.RevokedAt)

	assert.Equal(t, []string{events.TypeSessionCreated}, env.pub.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.svc.Metrics.Logins.WithLabelValues(metrics.ResultOK)))
}

func TestAuthService_Login_FailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedUser(t, "a@x.com", "secret1", models.RoleUser)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "a@x.com", password: "wrong"},
		{name: "unknown email", email: "nobody@x.com", password: "secret1"},
		{name: "email case differs", email: "A@X.COM", password: "secret1"},
		{name: "empty email", email: "", password: "secret1"},
		{name: "empty password", email: "a@x.com", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.svc.Login(context.Background(), tt.email, tt.password)
			assert.Nil(t, res)
			assert.Same(t, ErrInvalidCredentials, err)
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&models.RefreshSession{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, env.pub.types())
	assert.Equal(t, float64(len(tests)), testutil.ToFloat64(env.svc.Metrics.Logins.WithLabelValues(metrics.ResultRejected)))
}

func TestAuthService_Login_ConcurrentSessionsAreIndependent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedUser(t, "a@x.com", "secret1", models.RoleUser)

	const n = 5
	secrets := make([]string, n)
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.svc.Login(context.Background(), "a@x.com", "secret1")
			if err != nil {
				errs <- err
				return
			}
			secrets[i] = res.RefreshSecret
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for _, s := range secrets {
		require.NotEmpty(t, s)
		assert.False(t, seen[s], "refresh secrets must be distinct")
		seen[s] = true

		_, err := env.svc.Refresh(context.Background(), s)
		assert.NoError(t, err)
	}

	// Revoking one session leaves the others usable.
	revoked, err := env.svc.Logout(context.Background(), secrets[0])
	require.NoError(t, err)
	assert.True(t, revoked)
	for _, s := range secrets[1:] {
		_, err := env.svc.Refresh(context.Background(), s)
		assert.NoError(t, err)
	}
}

func TestAuthService_Refresh_DoesNotMutateSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	u := env.seedUser(t, "a@x.com", "secret1", models.RoleUser)
	login, err := env.svc.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	var before models.RefreshSession
	require.NoError(t, env.db.First(&before, login.SessionID).Error)

	first, err := env.svc.Refresh(context.Background(), login.RefreshSecret)
	require.NoError(t, err)
	second, err := env.svc.Refresh(context.Background(), login.RefreshSecret)
	require.NoError(t, err)

	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, u.ID, first.UserID)

	var after models.RefreshSession
	require.NoError(t, env.db.First(&after, login.SessionID).Error)
	assert.Equal(t, before.TokenHash, after.TokenHash)
	assert.True(t, before.ExpiresAt.Equal(after.ExpiresAt))
	assert.Nil(t, after.RevokedAt)
}

func TestAuthService_Refresh_UsesCurrentRole(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	u := env.seedUser(t, "a@x.com", "secret1", models.RoleUser)
	login, err := env.svc.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", u.ID).Update("role", models.RoleAdmin).Error)

	res, err := env.svc.Refresh(context.Background(), login.RefreshSecret)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.Role)

	id, err := env.svc.IdentifyCaller(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, id.Role)
}

func TestAuthService_Refresh_Rejections(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedUser(t, "a@x.com", "secret1", models.RoleUser)
	login, err := env.svc.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		want   error
	}{
		{name: "no credential", secret: "", want: ErrNoRefreshCredential},
		{name: "unknown secret", secret: "not-a-real-secret", want: ErrInvalidRefresh},
		{name: "hash instead of secret", secret: HashRefreshSecret(login.RefreshSecret), want: ErrInvalidRefresh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.svc.Refresh(context.Background(), tt.secret)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestAuthService_Refresh_ExpiryBoundary(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedUser(t, "a@x.com", "secret1", models.RoleUser)
	login, err := env.svc.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	env.advance(testRefreshTTL - time.Second)
	_, err = env.svc.Refresh(context.Background(), login.RefreshSecret)
	require.NoError(t, err)

	env.advance(time.Second)
	_, err = env.svc.Refresh(context.Background(), login.RefreshSecret)
	assert.ErrorIs(t, err, ErrRefreshExpired)

	env.advance(time.Hour)
	_, err = env.svc.Refresh(context.Background(), login.RefreshSecret)
	assert.ErrorIs(t, err, ErrRefreshExpired)
}

func TestAuthService_Refresh_UserDeleted(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	u := env.seedUser(t, "a@x.com", "secret1", models.RoleUser)
	login, err := env.svc.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, env.db.Delete(&models.User{}, u.ID).Error)

	_, err = env.svc.Refresh(context.Background(), login.RefreshSecret)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthService_Logout(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedUser(t, "a@x.com", "secret1", models.RoleUser)
	login, err := env.svc.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)
	refreshed, err := env.svc.Refresh(context.Background(), login.RefreshSecret)
	require.NoError(t, err)

	revoked, err := env.svc.Logout(context.Background(), login.RefreshSecret)
	require.NoError(t, err)
	assert.True(t, revoked)

	var stored models.RefreshSession
	require.NoError(t, env.db.First(&stored, login.SessionID).Error)
	require.NotNil(t, stored.RevokedAt)
	assert.True(t, stored.Revoked())

	_, err = env.svc.Refresh(context.Background(), login.RefreshSecret)
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	// Access tokens minted earlier stay valid until they expire.
	_, err = env.svc.IdentifyCaller(login.AccessToken)
	assert.NoError(t, err)
	_, err = env.svc.IdentifyCaller(refreshed.AccessToken)
	assert.NoError(t, err)

	revoked, err = env.svc.Logout(context.Background(), login.RefreshSecret)
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = env.svc.Logout(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = env.svc.Logout(context.Background(), "garbage")
	require.NoError(t, err)
	assert.False(t, revoked)

	assert.Equal(t, []string{events.TypeSessionCreated, events.TypeSessionRevoked}, env.pub.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.svc.Metrics.Logouts.WithLabelValues("true")))
	assert.Equal(t, 3.0, testutil.ToFloat64(env.svc.Metrics.Logouts.WithLabelValues("false")))
}

func TestAuthService_PublishFailureDoesNotFailLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.pub.err = errors.New("broker down")
	env.seedUser(t, "a@x.com", "secret1", models.RoleUser)

	res, err := env.svc.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	revoked, err := env.svc.Logout(context.Background(), res.RefreshSecret)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestAuthService_IdentifyCaller_Invalid(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		_, err := env.svc.IdentifyCaller(tok)
		assert.Same(t, ErrInvalidAccessToken, err)
	}
}

func TestAuthService_Me(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	u := env.seedUser(t, "a@x.com", "secret1", models.RoleAdmin)

	got, err := env.svc.Me(context.Background(), tokens.Identity{UserID: u.ID, Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, "Alice", got.Name)

	_, err = env.svc.Me(context.Background(), tokens.Identity{UserID: u.ID + 42, Role: models.RoleUser})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthService_PurgeExpired(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedUser(t, "a@x.com", "secret1", models.RoleUser)
	old, err := env.svc.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	env.advance(testRefreshTTL / 2)
	fresh, err := env.svc.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	env.advance(testRefreshTTL/2 + time.Minute)
	n, err := env.svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.svc.Metrics.Purged))

	_, err = env.svc.Refresh(context.Background(), old.RefreshSecret)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
	_, err = env.svc.Refresh(context.Background(), fresh.RefreshSecret)
	assert.NoError(t, err)
}

type failingSigner struct{}

func (failingSigner) Issue(uint, string) (string, time.Time, error) {
	return "", time.Time{}, errors.New("signing key unavailable")
}

func (failingSigner) Verify(string) (tokens.Identity, error) {
	return tokens.Identity{}, tokens.ErrInvalidToken
}

func TestAuthService_Login_SigningFailureStoresNoSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedUser(t, "a@x.com", "secret1", models.RoleUser)
	env.svc.Signer = failingSigner{}

	res, err := env.svc.Login(context.Background(), "a@x.com", "secret1")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	var count int64
	require.NoError(t, env.db.Model(&models.RefreshSession{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, env.pub.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.svc.Metrics.Logins.WithLabelValues(metrics.ResultError)))
}
