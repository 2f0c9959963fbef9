package entity

import (
	"time"

	"github.com/saharansameer/wavytv-backend/pkg/helpers"
)

// ImageRef points at an asset stored on the media host. AssetID is the
// host-side identifier needed to delete the asset later; URL is what clients
// render.
type ImageRef struct {
	URL     string
	AssetID string
}

// User is the aggregate root for the user domain.
// Password holds a bcrypt hash and must never be serialized to clients.
// WatchHistory is the ordered list of watched video ids.
type User struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	Password     string
	Avatar       ImageRef
	CoverImage   ImageRef
	WatchHistory []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CheckPassword verifies a plain-text candidate against the stored hash.
// One-way comparison; the hash is never decrypted.
func (u *User) CheckPassword(plain string) bool {
	return helpers.CompareHashAndPassword(u.Password, plain)
}
