package entity

import "time"

// Video belongs to exactly one owning user. Only read in this service;
// creation and publishing live in the video service.
type Video struct {
	ID           string
	OwnerID      string
	Title        string
	Description  string
	VideoURL     string
	ThumbnailURL string
	Duration     float64
	Views        int64
	IsPublished  bool
	CreatedAt    time.Time
}

// VideoOwner is the public subset of the owning user embedded in
// watch-history results.
type VideoOwner struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
}

// WatchHistoryEntry is one enriched row of a user's watch history,
// in the order the videos were watched.
type WatchHistoryEntry struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	VideoURL     string     `json:"videoFile"`
	ThumbnailURL string     `json:"thumbnail"`
	Duration     float64    `json:"duration"`
	Views        int64      `json:"views"`
	CreatedAt    time.Time  `json:"createdAt"`
	Owner        VideoOwner `json:"owner"`
}
