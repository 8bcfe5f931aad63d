package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/cache"
	"github.com/vidtube/backend/internal/catalog"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/videos"
)

type memoryUsers struct {
	mu       sync.Mutex
	byID     map[string]models.User
	sessions *auth.MemorySessionStore
}

func newMemoryUsers(sessions *auth.MemorySessionStore) *memoryUsers {
	return &memoryUsers{byID: make(map[string]models.User), sessions: sessions}
}

func (s *memoryUsers) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.byID[user.ID] = user
	s.sessions.AddUser(user.ID)
	return nil
}

func (s *memoryUsers) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Username == username || existing.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryUsers) FindByLogin(_ context.Context, identifier string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Username == identifier || existing.Email == identifier {
			return existing, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *memoryUsers) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *memoryUsers) FindPublicByID(ctx context.Context, id string) (models.User, error) {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	user.Password = ""
	user.RefreshToken = ""
	return user, nil
}

func (s *memoryUsers) UpdatePassword(_ context.Context, id, hash string, updatedAt time.Time) error {
	return s.update(id, func(u *models.User) {
		u.Password = hash
		u.UpdatedAt = updatedAt
	})
}

func (s *memoryUsers) UpdateAccount(ctx context.Context, id, fullName, email string, updatedAt time.Time) (models.User, error) {
	err := s.update(id, func(u *models.User) {
		u.FullName = fullName
		u.Email = email
		u.UpdatedAt = updatedAt
	})
	if err != nil {
		return models.User{}, err
	}
	return s.FindPublicByID(ctx, id)
}

func (s *memoryUsers) UpdateAvatar(ctx context.Context, id, avatar string, updatedAt time.Time) (models.User, error) {
	if err := s.update(id, func(u *models.User) { u.Avatar = avatar; u.UpdatedAt = updatedAt }); err != nil {
		return models.User{}, err
	}
	return s.FindPublicByID(ctx, id)
}

func (s *memoryUsers) UpdateCoverImage(ctx context.Context, id, cover string, updatedAt time.Time) (models.User, error) {
	if err := s.update(id, func(u *models.User) { u.CoverImage = cover; u.UpdatedAt = updatedAt }); err != nil {
		return models.User{}, err
	}
	return s.FindPublicByID(ctx, id)
}

func (s *memoryUsers) update(id string, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(&user)
	s.byID[id] = user
	return nil
}

type stubVideoStore struct {
	mu           sync.Mutex
	videos       map[string]models.Video
	lastPipeline catalog.Pipeline
	deleted      []string
}

func newStubVideoStore() *stubVideoStore {
	return &stubVideoStore{videos: make(map[string]models.Video)}
}

func (s *stubVideoStore) Create(_ context.Context, v models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[v.ID] = v
	return nil
}

func (s *stubVideoStore) FindByID(_ context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return v, nil
}

func (s *stubVideoStore) Detail(ctx context.Context, id, _ string) (models.VideoDetail, error) {
	v, err := s.FindByID(ctx, id)
	if err != nil {
		return models.VideoDetail{}, err
	}
	return models.VideoDetail{Video: v}, nil
}

func (s *stubVideoStore) Update(_ context.Context, v models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[v.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.videos[v.ID] = v
	return nil
}

func (s *stubVideoStore) TogglePublished(_ context.Context, id string, updatedAt time.Time) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	v.IsPublished = !v.IsPublished
	v.UpdatedAt = updatedAt
	s.videos[id] = v
	return v, nil
}

func (s *stubVideoStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.videos, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubVideoStore) List(_ context.Context, p catalog.Pipeline) (repositories.CatalogPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPipeline = p
	return repositories.CatalogPage{Items: []models.Video{}, Page: p.Page, Limit: p.Limit}, nil
}

func (s *stubVideoStore) WatchHistory(context.Context, string) ([]models.WatchHistoryEntry, error) {
	return []models.WatchHistoryEntry{}, nil
}

type stubMedia struct {
	mu      sync.Mutex
	saved   []string
	deleted []string
}

func (m *stubMedia) Save(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	location := "https://cdn.test/" + key
	m.saved = append(m.saved, location)
	return location, nil
}

func (m *stubMedia) Delete(_ context.Context, location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, location)
	return nil
}

type recordingQueue struct {
	mu    sync.Mutex
	views []videos.View
}

func (q *recordingQueue) Enqueue(v videos.View) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.views = append(q.views, v)
	return true
}

type stubLikes struct {
	liked map[string]bool
}

func (s *stubLikes) Toggle(_ context.Context, target repositories.LikeTarget, targetID, userID string) (bool, error) {
	if targetID == missingID {
		return false, repositories.ErrNotFound
	}
	key := string(target) + targetID + userID
	s.liked[key] = !s.liked[key]
	return s.liked[key], nil
}

func (s *stubLikes) LikedVideos(context.Context, string) ([]models.Video, error) {
	return []models.Video{}, nil
}

type stubComments struct {
	comments map[string]models.Comment
}

func (s *stubComments) Create(_ context.Context, c models.Comment) error {
	s.comments[c.ID] = c
	return nil
}

func (s *stubComments) FindByID(_ context.Context, id string) (models.Comment, error) {
	c, ok := s.comments[id]
	if !ok {
		return models.Comment{}, repositories.ErrNotFound
	}
	return c, nil
}

func (s *stubComments) ListForVideo(_ context.Context, videoID string, limit, offset int) ([]models.Comment, int64, error) {
	out := []models.Comment{}
	for _, c := range s.comments {
		if c.VideoID == videoID {
			out = append(out, c)
		}
	}
	total := int64(len(out))
	if offset >= len(out) {
		return []models.Comment{}, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (s *stubComments) UpdateContent(_ context.Context, id, content string, updatedAt time.Time) error {
	c, ok := s.comments[id]
	if !ok {
		return repositories.ErrNotFound
	}
	c.Content = content
	c.UpdatedAt = updatedAt
	s.comments[id] = c
	return nil
}

func (s *stubComments) Delete(_ context.Context, id string) error {
	if _, ok := s.comments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

type stubSubscriptions struct {
	users      *memoryUsers
	subscribed map[[2]string]bool
	statsCalls int
}

func (s *stubSubscriptions) Toggle(_ context.Context, subscriberID, channelID string) (bool, error) {
	if _, err := s.users.FindByID(context.Background(), channelID); err != nil {
		return false, err
	}
	key := [2]string{subscriberID, channelID}
	s.subscribed[key] = !s.subscribed[key]
	return s.subscribed[key], nil
}

func (s *stubSubscriptions) IsSubscribed(_ context.Context, subscriberID, channelID string) (bool, error) {
	return s.subscribed[[2]string{subscriberID, channelID}], nil
}

func (s *stubSubscriptions) Subscribers(context.Context, string) ([]models.OwnerProfile, error) {
	return []models.OwnerProfile{}, nil
}

func (s *stubSubscriptions) SubscribedChannels(context.Context, string) ([]models.OwnerProfile, error) {
	return []models.OwnerProfile{}, nil
}

func (s *stubSubscriptions) ChannelStats(_ context.Context, username string) (models.ChannelStats, error) {
	s.statsCalls++
	user, err := s.users.FindByLogin(context.Background(), username)
	if err != nil {
		return models.ChannelStats{}, err
	}
	var subscribers int64
	for key, on := range s.subscribed {
		if on && key[1] == user.ID {
			subscribers++
		}
	}
	return models.ChannelStats{ID: user.ID, Username: user.Username, Email: user.Email, SubscribersCount: subscribers}, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error {
	return apperrors.Internal(nil)
}

const missingID = "00000000-0000-0000-0000-000000000000"

type fixture struct {
	t        *testing.T
	router   http.Handler
	manager  *auth.Manager
	sessions *auth.MemorySessionStore
	users    *memoryUsers
	videos   *stubVideoStore
	media    *stubMedia
	views    *recordingQueue
	comments *stubComments
	subs     *stubSubscriptions
	channels *cache.MemoryCache
}

func newFixture(t *testing.T, mutate ...func(*Dependencies)) *fixture {
	t.Helper()

	sessions := auth.NewMemorySessionStore()
	users := newMemoryUsers(sessions)
	manager := auth.NewManager(auth.Config{
		AccessSecret:  "access-secret-for-tests",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "refresh-secret-for-tests",
		RefreshTTL:    24 * time.Hour,
		HashCost:      bcrypt.MinCost,
	}, users, sessions)

	f := &fixture{
		t:        t,
		manager:  manager,
		sessions: sessions,
		users:    users,
		videos:   newStubVideoStore(),
		media:    &stubMedia{},
		views:    &recordingQueue{},
		comments: &stubComments{comments: make(map[string]models.Comment)},
		subs:     &stubSubscriptions{users: users, subscribed: make(map[[2]string]bool)},
		channels: cache.NewMemoryCache(time.Minute),
	}

	deps := Dependencies{
		Logger:        slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Sessions:      manager,
		Verifier:      manager.AccessCodec(),
		UserLoader:    users,
		Users:         users,
		Videos:        f.videos,
		Likes:         &stubLikes{liked: make(map[string]bool)},
		Comments:      f.comments,
		Subscriptions: f.subs,
		Channels:      f.channels,
		Media:         f.media,
		Views:         f.views,
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	f.router = NewRouter(deps)
	return f
}

func (f *fixture) seedUser(username, password string) models.User {
	f.t.Helper()
	hash, err := f.manager.HashPassword(password)
	require.NoError(f.t, err)
	now := time.Now().UTC()
	user := models.User{
		ID:        "11111111-1111-4111-8111-" + strings.Repeat("0", 12-len(username)) + hexName(username),
		Username:  username,
		Email:     username + "@example.com",
		FullName:  strings.ToUpper(username[:1]) + username[1:],
		Password:  hash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(f.t, f.users.Create(context.Background(), user))
	return user
}

func (f *fixture) login(username, password string) models.SessionTokens {
	f.t.Helper()
	session, err := f.manager.Login(context.Background(), username, password)
	require.NoError(f.t, err)
	return session.Tokens
}

func (f *fixture) seedVideo(owner models.User, published bool) models.Video {
	f.t.Helper()
	now := time.Now().UTC()
	v := models.Video{
		ID:          "22222222-2222-4222-8222-" + strings.Repeat("0", 12-len(owner.Username)) + hexName(owner.Username),
		OwnerID:     owner.ID,
		Title:       "Cats",
		Description: "cats doing things",
		VideoFile:   "https://cdn.test/videos/cats.mp4",
		Thumbnail:   "https://cdn.test/thumbnails/cats.png",
		IsPublished: published,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(f.t, f.videos.Create(context.Background(), v))
	return v
}

func (f *fixture) do(method, path string, body any, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type testEnvelope struct {
	StatusCode int               `json:"statusCode"`
	Data       json.RawMessage   `json:"data"`
	Message    string            `json:"message"`
	Success    bool              `json:"success"`
	Errors     map[string]string `json:"errors"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.Equal(t, rec.Code, env.StatusCode)
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// hexName maps a short lowercase name onto hex digits for deterministic ids.
func hexName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		sb.WriteByte("0123456789abcdef"[int(r)%16])
	}
	return sb.String()
}

var _ middleware.UserLoader = (*memoryUsers)(nil)
