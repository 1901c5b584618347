package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// TagSyncState remembers what was last pushed to the audience service for a
// user, so unchanged weeks are skipped.
type TagSyncState struct {
	UserID   string
	WeekKey  string
	Hash     string
	SyncedAt time.Time
}

// TagSnapshot is the canonical weekly summary pushed to the audience
// service. Values are serialized as strings per its contract.
func TagSnapshot(p *WeeklyProgress) map[string]string {
	return map[string]string{
		"week":             p.WeekKey(),
		"journal_count":    strconv.Itoa(p.JournalCount),
		"meditation_count": strconv.Itoa(p.MeditationCount),
		"unlocked":         strconv.FormatBool(p.Unlocked),
		"report_ready":     strconv.FormatBool(p.ReportReady),
		"report_sent":      strconv.FormatBool(p.ReportSentAt != nil),
	}
}

// HashTags produces a stable digest of a snapshot: keys sorted, so two
// identical snapshots always hash alike.
func HashTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s;", k, tags[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
