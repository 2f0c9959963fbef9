package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/saharansameer/wavytv-backend/internal/domain/entity"
	repo "github.com/saharansameer/wavytv-backend/internal/domain/repository"
	"github.com/saharansameer/wavytv-backend/pkg/helpers"
	"github.com/saharansameer/wavytv-backend/pkg/mailer"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrChannelNotFound    = errors.New("channel does not exist")
	ErrIncorrectPassword  = errors.New("incorrect old password")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrNoImage            = errors.New("avatar or cover image is required")
	ErrMediaUnavailable   = errors.New("image uploads are currently unavailable")
	ErrUploadFailed       = errors.New("image upload failed")
	ErrAssetCleanup       = errors.New("previous image cleanup failed")
)

// MediaStore is the media-host collaborator: upload a file into a logical
// folder, delete an asset by the id a previous upload returned.
type MediaStore interface {
	Upload(ctx context.Context, folder, filename, contentType string, r io.Reader) (helpers.UploadedAsset, error)
	Delete(ctx context.Context, assetID string) error
}

// Publisher pushes notification jobs onto the email queue.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

type Service struct {
	Repo         repo.UserRepository
	JWT          *helpers.JWTManager
	Media        MediaStore
	Redis        *redis.Client
	Logger       *logrus.Logger
	ES           *elasticsearch.Client
	ESUsersIndex string
	Pub          Publisher
}

func NewService(r repo.UserRepository, jwt *helpers.JWTManager, media MediaStore, rdb *redis.Client, logger *logrus.Logger, es *elasticsearch.Client, esUsersIndex string, pub Publisher) *Service {
	return &Service{
		Repo:         r,
		JWT:          jwt,
		Media:        media,
		Redis:        rdb,
		Logger:       logger,
		ES:           es,
		ESUsersIndex: esUsersIndex,
		Pub:          pub,
	}
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

func sessionKey(userID string) string {
	return "user:session:" + userID
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Register creates a user record with a bcrypt-hashed credential.
// Username and email are normalized to lowercase before insert.
func (s *Service) Register(ctx context.Context, fullName, username, email, password string) (*entity.User, error) {
	hash, err := helpers.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &entity.User{
		Username: strings.ToLower(username),
		Email:    strings.ToLower(email),
		FullName: fullName,
		Password: hash,
	}
	if err := s.Repo.Create(u); err != nil {
		return nil, err
	}
	_ = s.indexUser(ctx, u.ID, map[string]any{
		"username": u.Username, "email": u.Email, "full_name": u.FullName,
	})
	return u, nil
}

// Authenticate validates email/password and returns the user without issuing tokens.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	u, err := s.Repo.GetByEmail(strings.ToLower(email))
	if err != nil || u == nil {
		return nil, ErrInvalidCredentials
	}
	if !u.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// IssueTokens generates the access/refresh pair and records a session in Redis.
func (s *Service) IssueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID, sid)
	if err != nil {
		s.logError(err, "generate access token failed", u.ID)
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID, sid)
	if err != nil {
		s.logError(err, "generate refresh token failed", u.ID)
		return TokenPair{}, err
	}

	if s.Redis != nil {
		key := sessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"user_id":    u.ID,
			"username":   u.Username,
			"email":      u.Email,
			"full_name":  u.FullName,
			"avatar_url": u.Avatar.URL,
			"sid":        sid,
			"created_at": nowRFC3339(),
		})
		pipe.Expire(ctx, key, 24*time.Hour)
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*entity.User, TokenPair, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Refresh validates a refresh token against the active session and rotates
// both the session id and the token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	u, err := s.Repo.GetByID(claims.UserID)
	if err != nil || u == nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	if s.Redis != nil {
		data, rErr := s.Redis.HGetAll(ctx, sessionKey(u.ID)).Result()
		if rErr != nil || len(data) == 0 || data["sid"] != claims.SessionID {
			return TokenPair{}, ErrInvalidCredentials
		}
	}
	return s.IssueTokens(ctx, u)
}

// Logout drops the server-side session.
func (s *Service) Logout(ctx context.Context, userID string) {
	if s.Redis != nil {
		if err := s.Redis.Del(ctx, sessionKey(userID)).Err(); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", userID).Warn("session delete failed")
		}
	}
}

func (s *Service) GetProfile(userID string) (*entity.User, error) {
	u, err := s.Repo.GetByID(userID)
	if err != nil || u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// UpdateAccount applies the all-or-nothing profile update. Presence of all
// three fields is enforced at the binding layer; the handle is normalized
// to lowercase here so channel lookups stay case-insensitive.
func (s *Service) UpdateAccount(ctx context.Context, userID, fullName, username, email string) error {
	username = strings.ToLower(username)
	email = strings.ToLower(email)
	if err := s.Repo.UpdateAccount(userID, fullName, username, email); err != nil {
		return err
	}

	if s.Redis != nil {
		key := sessionKey(userID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"username":   username,
			"email":      email,
			"full_name":  fullName,
			"updated_at": nowRFC3339(),
		})
		if ttl, tErr := s.Redis.TTL(ctx, key).Result(); tErr == nil && ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if _, pErr := pipe.Exec(ctx); pErr != nil && s.Logger != nil {
			s.Logger.WithError(pErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	_ = s.indexUser(ctx, userID, map[string]any{
		"username": username, "email": email, "full_name": fullName,
	})
	s.notify(ctx, email, "email_changed",
		fmt.Sprintf("The profile for @%s was updated. If this wasn't you, reset your password.", username))
	return nil
}

// FileUpload is a local file received from the client, ready to stream to
// the media host.
type FileUpload struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// UpdateImages uploads whichever of avatar/cover is present, persists the new
// references in one write, then deletes the replaced assets. Deletion happens
// only after persistence succeeds; a deletion failure surfaces as
// ErrAssetCleanup even though the record already carries the new references.
func (s *Service) UpdateImages(ctx context.Context, userID string, avatar, cover *FileUpload) (*entity.User, error) {
	if avatar == nil && cover == nil {
		return nil, ErrNoImage
	}
	// The media store is optional at bootstrap; without it the route must
	// degrade to an error response, not a panic.
	if s.Media == nil {
		return nil, ErrMediaUnavailable
	}
	u, err := s.Repo.GetByID(userID)
	if err != nil || u == nil {
		return nil, ErrUserNotFound
	}
	// Previous asset ids, captured before any mutation.
	oldAvatar, oldCover := u.Avatar.AssetID, u.CoverImage.AssetID

	var newAvatar, newCover *entity.ImageRef
	if avatar != nil {
		asset, uErr := s.Media.Upload(ctx, "avatars", avatar.Name, avatar.ContentType, avatar.Reader)
		if uErr != nil {
			s.logError(uErr, "avatar upload failed", userID)
			return nil, fmt.Errorf("%w: avatar", ErrUploadFailed)
		}
		newAvatar = &entity.ImageRef{URL: asset.URL, AssetID: asset.AssetID}
	}
	if cover != nil {
		asset, uErr := s.Media.Upload(ctx, "coverImages", cover.Name, cover.ContentType, cover.Reader)
		if uErr != nil {
			s.logError(uErr, "cover image upload failed", userID)
			return nil, fmt.Errorf("%w: cover image", ErrUploadFailed)
		}
		newCover = &entity.ImageRef{URL: asset.URL, AssetID: asset.AssetID}
	}

	if err := s.Repo.UpdateImages(userID, newAvatar, newCover); err != nil {
		return nil, err
	}
	if newAvatar != nil {
		u.Avatar = *newAvatar
	}
	if newCover != nil {
		u.CoverImage = *newCover
	}

	// Replaced assets are removed only now, avatar first. A failure here
	// leaves the record pointing at the new assets but reports the request
	// as failed; see DESIGN.md.
	if newAvatar != nil && oldAvatar != "" {
		if dErr := s.Media.Delete(ctx, oldAvatar); dErr != nil {
			s.logError(dErr, "old avatar delete failed", userID)
			return nil, ErrAssetCleanup
		}
	}
	if newCover != nil && oldCover != "" {
		if dErr := s.Media.Delete(ctx, oldCover); dErr != nil {
			s.logError(dErr, "old cover image delete failed", userID)
			return nil, ErrAssetCleanup
		}
	}

	if s.Redis != nil {
		s.Redis.HSet(ctx, sessionKey(userID), map[string]any{
			"avatar_url": u.Avatar.URL,
			"updated_at": nowRFC3339(),
		})
	}
	_ = s.indexUser(ctx, userID, map[string]any{"avatar_url": u.Avatar.URL})
	return u, nil
}

// ChangePassword verifies the current credential, checks the confirmation,
// and overwrites the stored hash. Verification precedes the match check.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword, confirmPassword string) error {
	u, err := s.Repo.GetByID(userID)
	if err != nil || u == nil {
		return ErrUserNotFound
	}
	if !u.CheckPassword(oldPassword) {
		return ErrIncorrectPassword
	}
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdatePassword(userID, hash); err != nil {
		return err
	}
	s.notify(ctx, u.Email, "password_changed",
		fmt.Sprintf("The password for @%s was changed. If this wasn't you, contact support immediately.", u.Username))
	return nil
}

// Channel runs the channel aggregation for a handle, lowercased first.
func (s *Service) Channel(username, viewerID string) (*entity.ChannelProfile, error) {
	p, err := s.Repo.ChannelProfile(strings.ToLower(username), viewerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	return p, nil
}

// WatchHistory returns the caller's enriched history in watch order.
// A user with no history (or no record) yields an empty list.
func (s *Service) WatchHistory(userID string) ([]entity.WatchHistoryEntry, error) {
	return s.Repo.WatchHistory(userID)
}

// notify queues a best-effort email; failures are logged, never surfaced.
func (s *Service) notify(ctx context.Context, to, kind, text string) {
	if s.Pub == nil {
		return
	}
	job := mailer.EmailJob{To: to, Kind: kind, Text: text}
	if err := s.Pub.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("kind", kind).Warn("email job publish failed")
	}
}

func (s *Service) indexUser(ctx context.Context, userID string, doc map[string]any) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	body := map[string]any{"doc": doc, "doc_as_upsert": true}
	b, _ := json.Marshal(body)
	req := esapi.UpdateRequest{Index: s.ESUsersIndex, DocumentID: userID, Body: strings.NewReader(string(b))}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", userID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", userID).Warn("es index response error")
	}
	return nil
}

// SearchUsers performs a multi_match search over username and full name.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"username^2", "full_name"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(
		s.ES.Search.WithContext(c),
		s.ES.Search.WithIndex(s.ESUsersIndex),
		s.ES.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func (s *Service) logError(err error, msg, userID string) {
	if s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Error(msg)
	}
}
