// Package domain contains entity without logic, just meta-data
package domain

type UserID string

const (
	UserStatusActive = "active"
	UserStatusBanned = "banned"
)

// User is the cached view of a durable user record, resolved once at handshake.
type User struct {
	ID     UserID `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Status string `json:"status"`
	Role   string `json:"role"`
}

func (u *User) Banned() bool { return u.Status == UserStatusBanned }
