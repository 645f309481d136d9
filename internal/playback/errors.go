package playback

import (
	"sort"
	"time"
)

// DefaultErrorTTL is how long a media error stays active for a video.
const DefaultErrorTTL = 5 * time.Second

type mediaError struct {
	message string
	at      time.Time
}

// ErrorTracker records media errors per video id. A video's error toasts once
// and expires after the TTL; repeats inside the window are absorbed.
type ErrorTracker struct {
	ttl     time.Duration
	entries map[string]mediaError
}

func NewErrorTracker(ttl time.Duration) *ErrorTracker {
	if ttl <= 0 {
		ttl = DefaultErrorTTL
	}
	return &ErrorTracker{ttl: ttl, entries: make(map[string]mediaError)}
}

// Record notes an error for videoID and reports whether it should be toasted.
func (t *ErrorTracker) Record(videoID, message string, now time.Time) bool {
	if e, ok := t.entries[videoID]; ok && now.Sub(e.at) < t.ttl {
		return false
	}
	t.entries[videoID] = mediaError{message: message, at: now}
	return true
}

// Active reports whether videoID has an unexpired error.
func (t *ErrorTracker) Active(videoID string, now time.Time) bool {
	e, ok := t.entries[videoID]
	return ok && now.Sub(e.at) < t.ttl
}

// Message returns the recorded error message for videoID.
func (t *ErrorTracker) Message(videoID string) string {
	return t.entries[videoID].message
}

// Expire drops errors older than the TTL and returns their video ids in
// sorted order.
func (t *ErrorTracker) Expire(now time.Time) []string {
	var expired []string
	for id, e := range t.entries {
		if now.Sub(e.at) >= t.ttl {
			expired = append(expired, id)
			delete(t.entries, id)
		}
	}
	sort.Strings(expired)
	return expired
}

// Len returns the number of tracked errors.
func (t *ErrorTracker) Len() int {
	return len(t.entries)
}
