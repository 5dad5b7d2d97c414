package user

import (
	"time"

	"blog_api/internal/auth"
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"` // Never expose password in JSON
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) Identity() auth.Identity {
	return auth.Identity{ID: u.ID, Username: u.Username}
}

// Session is the outcome of a successful login.
type Session struct {
	Token    string
	Identity auth.Identity
	// MaxAge is the cookie lifetime in seconds, zero for a browser-session cookie.
	MaxAge int
}
