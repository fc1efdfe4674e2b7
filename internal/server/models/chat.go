package models

import "time"

// Chat is a direct or group conversation. Members are ordered by join
// sequence. AdminID and DirectKey are empty for groups and direct chats
// respectively; LatestMessageID is empty until the first message.
type Chat struct {
	ID              string
	Name            string
	IsGroup         bool
	AdminID         string
	LatestMessageID string
	DirectKey       string
	Members         []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasMember reports whether userID belongs to the chat.
func (c *Chat) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// DirectKey returns the canonical key of the unordered pair (a, b).
func DirectKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

type Message struct {
	ID        string
	ChatID    string
	SenderID  string
	Content   string
	ReadBy    []string
	CreatedAt time.Time
}
