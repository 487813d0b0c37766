// Package dedup decides whether an engagement snapshot repeats one already
// recorded for the same content within the same minute.
package dedup

import (
	"time"

	"contentpulse/internal/model"
)

// Granularity is the capture-time resolution that makes two snapshots distinct.
const Granularity = time.Minute

// Minute truncates t to minute granularity.
func Minute(t time.Time) time.Time {
	return t.Truncate(Granularity)
}

// IsDuplicate reports whether existing holds a snapshot for the same content
// captured in the same minute as candidate.
func IsDuplicate(candidate model.EngagementSnapshot, existing []model.EngagementSnapshot) bool {
	want := Minute(candidate.CapturedAt)
	for _, s := range existing {
		if s.ContentID == candidate.ContentID && Minute(s.CapturedAt).Equal(want) {
			return true
		}
	}
	return false
}
