package entity

// Subscription links a subscriber to a channel (both are users).
// Read-only in this service; rows are written by the subscription service.
type Subscription struct {
	ID           string
	SubscriberID string
	ChannelID    string
}

// ChannelProfile is the fixed projection produced by the channel aggregation:
// public profile fields plus derived subscription counts relative to the
// viewing user.
type ChannelProfile struct {
	FullName         string `json:"fullName"`
	Username         string `json:"username"`
	Avatar           string `json:"avatar"`
	CoverImage       string `json:"coverImage"`
	SubscribersCount int64  `json:"subscribersCount"`
	SubscribedCount  int64  `json:"subscribedCount"`
	IsSubscribed     bool   `json:"isSubscribed"`
}
