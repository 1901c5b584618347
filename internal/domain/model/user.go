package model

import "time"

// ChannelPreference selects how pushes reach a user.
type ChannelPreference string

const (
	ChannelPrefAuto    ChannelPreference = "auto"
	ChannelPrefFCM     ChannelPreference = "fcm"
	ChannelPrefWebPush ChannelPreference = "webpush"
)

// NotificationPrefs gates the dispatcher before any channel is contacted.
type NotificationPrefs struct {
	Enabled       bool
	DisabledTypes map[string]bool // per-type opt-outs
	Channel       ChannelPreference
}

// TypeEnabled applies the global toggle first, then the per-type one.
func (p NotificationPrefs) TypeEnabled(notifType string) bool {
	if !p.Enabled {
		return false
	}
	return !p.DisabledTypes[notifType]
}

type User struct {
	ID           string
	Email        string
	Timezone     string // IANA name; empty means system default
	Prefs        NotificationPrefs
	LastActiveAt time.Time
	RegisteredAt time.Time
}
