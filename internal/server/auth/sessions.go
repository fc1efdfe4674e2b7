package auth

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Session is one issued token and the moment it was signed.
type Session struct {
	Token    string    `json:"token"`
	SignedAt time.Time `json:"signedAt"`
}

// Sessions is a user's live sessions ordered oldest first. It is stored as a
// JSON array and only ever changed through Add, Remove and Prune.
type Sessions []Session

// Prune drops sessions signed more than window ago.
func (s Sessions) Prune(now time.Time, window time.Duration) Sessions {
	out := make(Sessions, 0, len(s)+1)
	for _, sess := range s {
		if now.Sub(sess.SignedAt) <= window {
			out = append(out, sess)
		}
	}
	return out
}

// Add prunes stale sessions, appends token and evicts the oldest entries
// beyond max. max <= 0 means no cap.
func (s Sessions) Add(token string, now time.Time, window time.Duration, max int) Sessions {
	out := s.Prune(now, window)
	out = append(out, Session{Token: token, SignedAt: now})
	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

// Remove deletes token and reports whether it was present.
func (s Sessions) Remove(token string) (Sessions, bool) {
	out := make(Sessions, 0, len(s))
	found := false
	for _, sess := range s {
		if sess.Token == token {
			found = true
			continue
		}
		out = append(out, sess)
	}
	return out, found
}

// Contains reports whether token is a live session at now.
func (s Sessions) Contains(token string, now time.Time, window time.Duration) bool {
	for _, sess := range s {
		if sess.Token == token && now.Sub(sess.SignedAt) <= window {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer.
func (s Sessions) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *Sessions) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("sessions: unsupported type %T", src)
	}
	return json.Unmarshal(data, s)
}
