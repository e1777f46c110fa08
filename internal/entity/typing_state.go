package entity

import "time"

// TypingState records one actor currently signaling typing in a room.
// UpdatedAt is the last typing=true signal; entries past their expiry are
// swept locally to self-heal from a missed typing=false.
type TypingState struct {
	UserID    string    `json:"user_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t TypingState) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(t.UpdatedAt) > ttl
}
