package repository

import (
	"errors"

	"github.com/saharansameer/wavytv-backend/internal/domain/entity"
)

var (
	// ErrNotFound is returned when a lookup or update matches no record.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates the handle/email
	// uniqueness invariant.
	ErrConflict = errors.New("username or email already taken")
)

// UserRepository defines the persistence operations the user domain needs.
// Partial updates touch only the named columns; the two aggregation queries
// are fixed pipelines evaluated entirely by the store.
type UserRepository interface {
	Create(u *entity.User) error
	GetByID(id string) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	GetByUsername(username string) (*entity.User, error)

	// UpdateAccount applies a partial update of the three profile fields,
	// enforcing the store's uniqueness validators.
	UpdateAccount(id, fullName, username, email string) error

	// UpdateImages persists new avatar/cover references. A nil slot is left
	// untouched. No other column is validated or written.
	UpdateImages(id string, avatar, cover *entity.ImageRef) error

	// UpdatePassword overwrites only the stored credential hash.
	UpdatePassword(id, passwordHash string) error

	// ChannelProfile runs the channel aggregation for username, computing
	// subscriber counts and whether viewerID is subscribed.
	ChannelProfile(username, viewerID string) (*entity.ChannelProfile, error)

	// WatchHistory returns the user's history entries enriched with owner
	// fields, preserving the stored watch order.
	WatchHistory(userID string) ([]entity.WatchHistoryEntry, error)
}
