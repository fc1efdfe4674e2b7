// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	"github.com/dmitrijs2005/chatterbox/internal/server/auth"
)

// DefaultPic is assigned when a user signs up without a picture.
const DefaultPic = "https://media.istockphoto.com/id/1393750072/vector/flat-white-icon-man-for-web-design-silhouette-flat-illustration-vector-illustration-stock.jpg"

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash []byte
	Pic          string
	Verified     bool
	Sessions     auth.Sessions
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
