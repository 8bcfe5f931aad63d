package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/models"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]models.User)}
}

func (s *fakeUserStore) add(t *testing.T, id, username, email, password string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{ID: id, Username: username, Email: email, FullName: username, Password: string(hash)}
	s.mu.Lock()
	s.users[id] = user
	s.mu.Unlock()
	return user
}

func (s *fakeUserStore) FindByLogin(_ context.Context, identifier string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == identifier || u.Email == identifier {
			return u, nil
		}
	}
	return models.User{}, ErrUserNotFound
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, id, hash string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Password = hash
	u.UpdatedAt = updatedAt
	s.users[id] = u
	return nil
}

type managerFixture struct {
	manager *Manager
	users   *fakeUserStore
	store   *MemorySessionStore
	alice   models.User
}

func newManagerFixture(t *testing.T) managerFixture {
	t.Helper()
	users := newFakeUserStore()
	alice := users.add(t, "user-alice", "alice", "alice@example.com", "secret1")
	store := NewMemorySessionStore(alice.ID)

	manager := NewManager(Config{
		AccessSecret:  "access-secret",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    24 * time.Hour,
		HashCost:      bcrypt.MinCost,
	}, users, store)

	return managerFixture{manager: manager, users: users, store: store, alice: alice}
}

func TestManagerLoginStoresRefreshToken(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	session, err := f.manager.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	stored, err := f.store.Get(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Tokens.RefreshToken, stored)
	assert.NotEmpty(t, session.Tokens.AccessToken)
	assert.Equal(t, "alice", session.User.Username)

	claims, err := f.manager.AccessCodec().Verify(session.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, claims.Subject)
}

func TestManagerLoginByEmailIsCaseInsensitive(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Login(context.Background(), "  Alice@Example.COM ", "secret1")
	require.NoError(t, err)
}

func TestManagerLoginFailures(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.manager.Login(ctx, "bob", "secret1")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	_, err = f.manager.Login(ctx, "alice", "wrong")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	_, err = f.manager.Login(ctx, "", "secret1")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	stored, err := f.store.Get(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestManagerSecondLoginInvalidatesFirstSession(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	first, err := f.manager.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	_, err = f.manager.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	_, err = f.manager.Refresh(ctx, first.Tokens.RefreshToken)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestManagerSessionLifecycle(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	session, err := f.manager.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	r1 := session.Tokens.RefreshToken

	rotated, err := f.manager.Refresh(ctx, r1)
	require.NoError(t, err)
	r2 := rotated.RefreshToken
	assert.NotEqual(t, r1, r2)
	assert.NotEqual(t, session.Tokens.AccessToken, rotated.AccessToken)

	_, err = f.manager.Refresh(ctx, r1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	require.NoError(t, f.manager.Logout(ctx, f.alice.ID))
	require.NoError(t, f.manager.Logout(ctx, f.alice.ID))

	_, err = f.manager.Refresh(ctx, r2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestManagerRefreshRejectsInvalidCredentials(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.manager.Refresh(ctx, "   ")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	_, err = f.manager.Refresh(ctx, "garbage")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredential))
	assert.True(t, errors.Is(err, ErrInvalidCredential))

	session, err := f.manager.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	_, err = f.manager.Refresh(ctx, session.Tokens.AccessToken)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredential), "access token must not be accepted as a refresh token")
}

func TestManagerRefreshExpired(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.manager.WithNowFunc(fixedClock(now))

	session, err := f.manager.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	f.manager.WithNowFunc(fixedClock(now.Add(25 * time.Hour)))
	_, err = f.manager.Refresh(ctx, session.Tokens.RefreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredential))
	assert.True(t, errors.Is(err, ErrExpired))

	_, err = f.manager.AccessCodec().Verify(session.Tokens.AccessToken)
	assert.True(t, errors.Is(err, ErrExpired))
}

func TestManagerRefreshUnknownUser(t *testing.T) {
	f := newManagerFixture(t)

	token, _, err := NewCodec("refresh-secret", TokenTypeRefresh).Issue("ghost", time.Hour)
	require.NoError(t, err)

	_, err = f.manager.Refresh(context.Background(), token)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestManagerConcurrentRefreshHasSingleWinner(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	session, err := f.manager.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.manager.Refresh(ctx, session.Tokens.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperrors.ErrUnauthorized):
				rejected++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, rejected)
}

func TestManagerChangePassword(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	err := f.manager.ChangePassword(ctx, f.alice.ID, "wrong", "secret2", "secret2")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	err = f.manager.ChangePassword(ctx, f.alice.ID, "secret1", "secret2", "secret3")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	require.NoError(t, f.manager.ChangePassword(ctx, f.alice.ID, "secret1", "secret2", "secret2"))

	_, err = f.manager.Login(ctx, "alice", "secret1")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	_, err = f.manager.Login(ctx, "alice", "secret2")
	require.NoError(t, err)

	err = f.manager.ChangePassword(ctx, "ghost", "a", "b", "b")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestManagerChangePasswordKeepsSession(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	session, err := f.manager.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	require.NoError(t, f.manager.ChangePassword(ctx, f.alice.ID, "secret1", "secret2", "secret2"))

	_, err = f.manager.Refresh(ctx, session.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestNewManagerRejectsSharedSecret(t *testing.T) {
	assert.Panics(t, func() {
		NewManager(Config{AccessSecret: "same", RefreshSecret: "same"}, newFakeUserStore(), NewMemorySessionStore())
	})
}
