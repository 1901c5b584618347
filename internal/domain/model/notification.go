package model

import "time"

type Channel string

const (
	ChannelFCM     Channel = "fcm"     // Google push (FCM HTTP v1)
	ChannelWebPush Channel = "webpush" // Apple web push (APNs)
)

// Notification types emitted by this service.
const (
	NotifTypeJobReady       = "job_ready"
	NotifTypeJobFailed      = "job_failed"
	NotifTypeWeeklyReminder = "weekly_reminder"
)

// Notification is one logical event handed to the dispatcher.
type Notification struct {
	Type  string
	Title string
	Body  string
	Data  map[string]string
}

// PushDevice is a registered push endpoint for a user.
type PushDevice struct {
	ID           string
	UserID       string
	Channel      Channel
	Token        string
	Platform     string // free-form hint, e.g. "ios-safari", "android"
	RegisteredAt time.Time
}

// NotificationRecord is the append-only delivery audit row. It doubles as
// the data source for the per-type cooldown gate.
type NotificationRecord struct {
	ID        string
	UserID    string
	Type      string
	Channel   Channel
	Delivered bool
	Error     string
	SentAt    time.Time
}

// PushRetry is a deferred re-delivery of a transiently failed push.
type PushRetry struct {
	ID            string
	UserID        string
	Type          string
	Title         string
	Body          string
	Data          map[string]string
	Attempts      int
	NextAttemptAt time.Time
	CreatedAt     time.Time
}

// Reason codes for business-rule skips. These are not errors: the dispatcher
// returns them structured so callers can log without alarming.
const (
	ReasonDisabled    = "notifications_disabled"
	ReasonRateLimited = "rate_limited"
	ReasonNoDevice    = "no_device"
)

// SendResult is the dispatcher's outcome for one logical notification.
type SendResult struct {
	Delivered bool
	Channel   Channel
	Reason    string
	Err       error
}
