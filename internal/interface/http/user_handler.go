package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/saharansameer/wavytv-backend/internal/application"
	"github.com/saharansameer/wavytv-backend/internal/domain/entity"
	repo "github.com/saharansameer/wavytv-backend/internal/domain/repository"
	"github.com/saharansameer/wavytv-backend/pkg/response"
	"github.com/saharansameer/wavytv-backend/pkg/validation"
)

type UserHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

type updateAccountRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

func profileJSON(u *entity.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"fullName":   u.FullName,
		"avatar":     u.Avatar.URL,
		"coverImage": u.CoverImage.URL,
		"created_at": u.CreatedAt,
		"updated_at": u.UpdatedAt,
	}
}

// GetProfile GET /api/users/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	uid := c.GetString("userID")
	u, err := h.Svc.GetProfile(uid)
	if err != nil {
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
		return
	}
	response.Success(c, http.StatusOK, profileJSON(u), "current user")
}

// UpdateAccount PATCH /api/users/me
// All three fields are required; an empty string counts as missing and
// rejects the whole request. An update that matches no record is a 400,
// matching the contract clients already depend on.
func (h *UserHandler) UpdateAccount(c *gin.Context) {
	uid := c.GetString("userID")
	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "all fields are required", validation.ToDetails(err))
		return
	}
	err := h.Svc.UpdateAccount(c.Request.Context(), uid, req.FullName, req.Username, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrConflict):
			response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, repo.ErrNotFound):
			response.Error[any](c, http.StatusBadRequest, "failed to update account", nil)
		default:
			h.Logger.WithError(err).Error("account update failed")
			response.Error[any](c, http.StatusInternalServerError, "failed to update account", nil)
		}
		return
	}
	// Success intentionally carries no data; clients re-fetch /users/me.
	response.OK(c, http.StatusOK, "account details updated")
}

// UpdateImages PATCH /api/users/me/images (multipart)
// Accepts file parts "avatar" and/or "coverImage"; rejects when neither is
// present before any collaborator call is made.
func (h *UserHandler) UpdateImages(c *gin.Context) {
	uid := c.GetString("userID")

	avatar, aErr := c.FormFile("avatar")
	cover, cErr := c.FormFile("coverImage")
	if aErr != nil && cErr != nil {
		response.Error[any](c, http.StatusBadRequest, "avatar or cover image is required", nil)
		return
	}

	avatarUpload, aFile, err := openUpload(avatar, aErr)
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "could not read avatar file", nil)
		return
	}
	if aFile != nil {
		defer func() { _ = aFile.Close() }()
	}
	coverUpload, cFile, err := openUpload(cover, cErr)
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "could not read cover image file", nil)
		return
	}
	if cFile != nil {
		defer func() { _ = cFile.Close() }()
	}

	u, err := h.Svc.UpdateImages(c.Request.Context(), uid, avatarUpload, coverUpload)
	if err != nil {
		switch {
		case errors.Is(err, userapp.ErrNoImage):
			response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, userapp.ErrMediaUnavailable):
			response.Error[any](c, http.StatusServiceUnavailable, err.Error(), nil)
		case errors.Is(err, userapp.ErrUserNotFound):
			response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, userapp.ErrUploadFailed):
			response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, userapp.ErrAssetCleanup):
			response.Error[any](c, http.StatusInternalServerError, err.Error(), nil)
		default:
			h.Logger.WithError(err).Error("image update failed")
			response.Error[any](c, http.StatusInternalServerError, "failed to update images", nil)
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"avatar":     u.Avatar.URL,
		"coverImage": u.CoverImage.URL,
	}, "images updated")
}

func openUpload(fh *multipart.FileHeader, ferr error) (*userapp.FileUpload, multipart.File, error) {
	if ferr != nil || fh == nil {
		return nil, nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &userapp.FileUpload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Reader:      f,
	}, f, nil
}

// ChangePassword PATCH /api/users/me/password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	uid := c.GetString("userID")
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "all fields are required", validation.ToDetails(err))
		return
	}
	err := h.Svc.ChangePassword(c.Request.Context(), uid, req.OldPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, userapp.ErrIncorrectPassword), errors.Is(err, userapp.ErrPasswordMismatch):
			response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, userapp.ErrUserNotFound):
			response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
		default:
			h.Logger.WithError(err).Error("password change failed")
			response.Error[any](c, http.StatusInternalServerError, "failed to change password", nil)
		}
		return
	}
	response.OK(c, http.StatusOK, "password changed")
}

// Channel GET /api/users/channel/:username
func (h *UserHandler) Channel(c *gin.Context) {
	username := c.Param("username")
	if username == "" {
		response.Error[any](c, http.StatusBadRequest, "username is required", nil)
		return
	}
	viewerID := c.GetString("userID")
	p, err := h.Svc.Channel(username, viewerID)
	if err != nil {
		if errors.Is(err, userapp.ErrChannelNotFound) {
			response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		h.Logger.WithError(err).WithField("username", username).Error("channel lookup failed")
		response.Error[any](c, http.StatusInternalServerError, "failed to fetch channel", nil)
		return
	}
	response.Success(c, http.StatusOK, p, "channel profile")
}

// WatchHistory GET /api/users/history
func (h *UserHandler) WatchHistory(c *gin.Context) {
	uid := c.GetString("userID")
	history, err := h.Svc.WatchHistory(uid)
	if err != nil {
		h.Logger.WithError(err).Error("watch history lookup failed")
		response.Error[any](c, http.StatusInternalServerError, "failed to fetch watch history", nil)
		return
	}
	response.Success(c, http.StatusOK, history, "watch history")
}

// Search GET /api/users/search?q=&size=
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "query is required", nil)
		return
	}
	size := 10
	if v, ok := c.GetQuery("size"); ok {
		if n, err := parsePositive(v); err == nil {
			size = n
		}
	}
	res, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		h.Logger.WithError(err).Error("user search failed")
		response.Error[any](c, http.StatusInternalServerError, "search failed", nil)
		return
	}
	response.Success(c, http.StatusOK, res, "search results")
}

func parsePositive(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}
