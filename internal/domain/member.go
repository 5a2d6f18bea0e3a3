package domain

import "time"

// Participant is one user's presence in an active call.
// No transport or lifecycle logic here.
type Participant struct {
	UserID   UserID    `json:"userId"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// NewParticipant avoids raw literals in the call table.
func NewParticipant(user *User, at time.Time) Participant {
	return Participant{UserID: user.ID, Name: user.Name, JoinedAt: at}
}
