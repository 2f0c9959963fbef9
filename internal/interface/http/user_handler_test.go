package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	userapp "github.com/saharansameer/wavytv-backend/internal/application"
	"github.com/saharansameer/wavytv-backend/internal/domain/entity"
	repo "github.com/saharansameer/wavytv-backend/internal/domain/repository"
	"github.com/saharansameer/wavytv-backend/pkg/helpers"
	"github.com/saharansameer/wavytv-backend/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.Init()
}

// stubRepo implements repository.UserRepository with canned data and call
// recording, enough to drive the handlers through a real Service.
type stubRepo struct {
	user    *entity.User
	channel *entity.ChannelProfile
	history []entity.WatchHistoryEntry

	accountCalls  int
	imagesCalls   int
	passwordCalls int

	accountErr error
}

func (s *stubRepo) Create(u *entity.User) error { return nil }

func (s *stubRepo) GetByID(id string) (*entity.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, repo.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) GetByEmail(email string) (*entity.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, repo.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) GetByUsername(username string) (*entity.User, error) {
	if s.user == nil || s.user.Username != username {
		return nil, repo.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) UpdateAccount(id, fullName, username, email string) error {
	s.accountCalls++
	if s.accountErr != nil {
		return s.accountErr
	}
	if s.user == nil || s.user.ID != id {
		return repo.ErrNotFound
	}
	s.user.FullName, s.user.Username, s.user.Email = fullName, username, email
	return nil
}

func (s *stubRepo) UpdateImages(id string, avatar, cover *entity.ImageRef) error {
	s.imagesCalls++
	if s.user == nil || s.user.ID != id {
		return repo.ErrNotFound
	}
	if avatar != nil {
		s.user.Avatar = *avatar
	}
	if cover != nil {
		s.user.CoverImage = *cover
	}
	return nil
}

func (s *stubRepo) UpdatePassword(id, passwordHash string) error {
	s.passwordCalls++
	if s.user == nil || s.user.ID != id {
		return repo.ErrNotFound
	}
	s.user.Password = passwordHash
	return nil
}

func (s *stubRepo) ChannelProfile(username, viewerID string) (*entity.ChannelProfile, error) {
	if s.channel == nil || s.channel.Username != username {
		return nil, repo.ErrNotFound
	}
	return s.channel, nil
}

func (s *stubRepo) WatchHistory(userID string) ([]entity.WatchHistoryEntry, error) {
	if s.history == nil {
		return []entity.WatchHistoryEntry{}, nil
	}
	return s.history, nil
}

type stubMedia struct {
	uploads int
	deletes int
}

func (m *stubMedia) Upload(ctx context.Context, folder, filename, contentType string, r io.Reader) (helpers.UploadedAsset, error) {
	m.uploads++
	id := folder + "/new"
	return helpers.UploadedAsset{URL: "https://media.example.com/" + id, AssetID: id}, nil
}

func (m *stubMedia) Delete(ctx context.Context, assetID string) error {
	m.deletes++
	return nil
}

const testUserID = "11111111-1111-1111-1111-111111111111"

func testUser(t *testing.T) *entity.User {
	t.Helper()
	hash, err := helpers.HashPassword("current-pass")
	require.NoError(t, err)
	return &entity.User{
		ID:       testUserID,
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice",
		Password: hash,
	}
}

func newTestRouter(r *stubRepo, m *stubMedia) *gin.Engine {
	var media userapp.MediaStore
	if m != nil {
		media = m
	}
	svc := userapp.NewService(r, helpers.NewJWTManager("a", "r", 0, 0), media, nil, nil, nil, "", nil)
	h := NewUserHandler(svc, logrus.New())

	e := gin.New()
	// Stand-in for the auth middleware.
	e.Use(func(c *gin.Context) { c.Set("userID", testUserID) })
	e.GET("/api/users/me", h.GetProfile)
	e.PATCH("/api/users/me", h.UpdateAccount)
	e.PATCH("/api/users/me/images", h.UpdateImages)
	e.PATCH("/api/users/me/password", h.ChangePassword)
	e.GET("/api/users/channel/:username", h.Channel)
	e.GET("/api/users/history", h.WatchHistory)
	return e
}

func doJSON(e *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestGetProfile(t *testing.T) {
	r := &stubRepo{user: testUser(t)}
	e := newTestRouter(r, nil)

	w := doJSON(e, http.MethodGet, "/api/users/me", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env["success"])
	data := env["data"].(map[string]any)
	assert.Equal(t, "alice", data["username"])
	assert.NotContains(t, data, "password")
	assert.NotContains(t, data, "watchHistory")
}

func TestGetProfileNotFound(t *testing.T) {
	e := newTestRouter(&stubRepo{}, nil)
	w := doJSON(e, http.MethodGet, "/api/users/me", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateAccountMissingFields(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"no fullName", map[string]any{"username": "alice", "email": "a@example.com"}},
		{"no username", map[string]any{"fullName": "Alice", "email": "a@example.com"}},
		{"no email", map[string]any{"fullName": "Alice", "username": "alice"}},
		{"empty fullName", map[string]any{"fullName": "", "username": "alice", "email": "a@example.com"}},
		{"invalid email", map[string]any{"fullName": "Alice", "username": "alice", "email": "not-an-email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubRepo{user: testUser(t)}
			e := newTestRouter(r, nil)

			w := doJSON(e, http.MethodPatch, "/api/users/me", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, 0, r.accountCalls, "record must stay unchanged")
			assert.Equal(t, "alice", r.user.Username)
		})
	}
}

func TestUpdateAccountSuccessCarriesNoData(t *testing.T) {
	r := &stubRepo{user: testUser(t)}
	e := newTestRouter(r, nil)

	w := doJSON(e, http.MethodPatch, "/api/users/me", map[string]any{
		"fullName": "Alice B", "username": "AliceB", "email": "Alice@Example.com",
	})
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env["success"])
	assert.NotContains(t, env, "data")
	assert.Equal(t, "aliceb", r.user.Username, "handle stored lowercased")
	assert.Equal(t, "alice@example.com", r.user.Email)
}

func TestUpdateAccountNoMatchingRecord(t *testing.T) {
	// Authenticated id that matches no record: contractually a 400, not 404.
	r := &stubRepo{}
	e := newTestRouter(r, nil)

	w := doJSON(e, http.MethodPatch, "/api/users/me", map[string]any{
		"fullName": "Alice", "username": "alice", "email": "a@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateAccountConflict(t *testing.T) {
	r := &stubRepo{user: testUser(t), accountErr: repo.ErrConflict}
	e := newTestRouter(r, nil)

	w := doJSON(e, http.MethodPatch, "/api/users/me", map[string]any{
		"fullName": "Alice", "username": "taken", "email": "a@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	r := &stubRepo{user: testUser(t)}
	e := newTestRouter(r, nil)

	w := doJSON(e, http.MethodPatch, "/api/users/me/password", map[string]any{
		"oldPassword": "wrong", "newPassword": "next", "confirmPassword": "next",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "incorrect old password", env["message"])
	assert.Equal(t, 0, r.passwordCalls)
}

func TestChangePasswordMismatch(t *testing.T) {
	r := &stubRepo{user: testUser(t)}
	e := newTestRouter(r, nil)

	w := doJSON(e, http.MethodPatch, "/api/users/me/password", map[string]any{
		"oldPassword": "current-pass", "newPassword": "b", "confirmPassword": "c",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "passwords do not match", env["message"])
	assert.Equal(t, 0, r.passwordCalls)
}

func TestChangePasswordMissingField(t *testing.T) {
	r := &stubRepo{user: testUser(t)}
	e := newTestRouter(r, nil)

	w := doJSON(e, http.MethodPatch, "/api/users/me/password", map[string]any{
		"oldPassword": "current-pass", "newPassword": "next",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, r.passwordCalls)
}

func TestChangePasswordSuccess(t *testing.T) {
	r := &stubRepo{user: testUser(t)}
	e := newTestRouter(r, nil)

	w := doJSON(e, http.MethodPatch, "/api/users/me/password", map[string]any{
		"oldPassword": "current-pass", "newPassword": "next-pass", "confirmPassword": "next-pass",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, r.passwordCalls)
	assert.True(t, r.user.CheckPassword("next-pass"))
}

func multipartBody(t *testing.T, parts map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for field, content := range parts {
		fw, err := mw.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestUpdateImagesNeitherFile(t *testing.T) {
	r := &stubRepo{user: testUser(t)}
	media := &stubMedia{}
	e := newTestRouter(r, media)

	buf, ct := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPatch, "/api/users/me/images", buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, media.uploads, "no media-host call before validation")
	assert.Equal(t, 0, r.imagesCalls)
}

func TestUpdateImagesWithoutMediaStore(t *testing.T) {
	// Default configuration runs without a media bucket; the route must
	// respond with the envelope, not panic on the missing collaborator.
	r := &stubRepo{user: testUser(t)}
	e := newTestRouter(r, nil)

	buf, ct := multipartBody(t, map[string]string{"avatar": "new image bytes"})
	req := httptest.NewRequest(http.MethodPatch, "/api/users/me/images", buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 0, r.imagesCalls)
	env := decodeEnvelope(t, w)
	assert.Equal(t, false, env["success"])
	assert.Equal(t, "image uploads are currently unavailable", env["message"])
}

func TestUpdateImagesAvatarOnly(t *testing.T) {
	u := testUser(t)
	u.Avatar = entity.ImageRef{URL: "old-avatar-url", AssetID: "avatars/old"}
	u.CoverImage = entity.ImageRef{URL: "cover-url", AssetID: "coverImages/keep"}
	r := &stubRepo{user: u}
	media := &stubMedia{}
	e := newTestRouter(r, media)

	buf, ct := multipartBody(t, map[string]string{"avatar": "new image bytes"})
	req := httptest.NewRequest(http.MethodPatch, "/api/users/me/images", buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, media.uploads)
	assert.Equal(t, 1, media.deletes, "replaced avatar asset removed")
	assert.Equal(t, "cover-url", r.user.CoverImage.URL, "cover slot untouched")
	assert.Equal(t, "avatars/new", r.user.Avatar.AssetID)

	env := decodeEnvelope(t, w)
	data := env["data"].(map[string]any)
	assert.Equal(t, "https://media.example.com/avatars/new", data["avatar"])
	assert.Equal(t, "cover-url", data["coverImage"])
}

func TestChannelNotFound(t *testing.T) {
	e := newTestRouter(&stubRepo{user: testUser(t)}, nil)
	w := doJSON(e, http.MethodGet, "/api/users/channel/ghost", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "channel does not exist", env["message"])
}

func TestChannelFound(t *testing.T) {
	r := &stubRepo{
		user: testUser(t),
		channel: &entity.ChannelProfile{
			FullName:         "Bob",
			Username:         "bob",
			SubscribersCount: 42,
			SubscribedCount:  7,
			IsSubscribed:     true,
		},
	}
	e := newTestRouter(r, nil)

	// Mixed-case handle resolves to the lowercase channel.
	w := doJSON(e, http.MethodGet, "/api/users/channel/BoB", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	data := env["data"].(map[string]any)
	assert.Equal(t, "bob", data["username"])
	assert.Equal(t, float64(42), data["subscribersCount"])
	assert.Equal(t, float64(7), data["subscribedCount"])
	assert.Equal(t, true, data["isSubscribed"])
}

func TestWatchHistoryOrderAndOwnerShape(t *testing.T) {
	r := &stubRepo{
		user: testUser(t),
		history: []entity.WatchHistoryEntry{
			{ID: "v2", Title: "second watched", Owner: entity.VideoOwner{Username: "bob", FullName: "Bob"}},
			{ID: "v1", Title: "first watched", Owner: entity.VideoOwner{Username: "alice", FullName: "Alice"}},
		},
	}
	e := newTestRouter(r, nil)

	w := doJSON(e, http.MethodGet, "/api/users/history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	data := env["data"].([]any)
	require.Len(t, data, 2)

	first := data[0].(map[string]any)
	assert.Equal(t, "v2", first["id"], "watch order preserved, not id order")
	owner := first["owner"].(map[string]any)
	assert.Contains(t, owner, "username")
	assert.Contains(t, owner, "fullName")
	assert.NotContains(t, owner, "email", "owner carries the public subset only")
	assert.NotContains(t, owner, "password")
}

func TestWatchHistoryEmpty(t *testing.T) {
	e := newTestRouter(&stubRepo{user: testUser(t)}, nil)
	w := doJSON(e, http.MethodGet, "/api/users/history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	data, ok := env["data"].([]any)
	require.True(t, ok, "empty history is an empty list, not null")
	assert.Empty(t, data)
}
