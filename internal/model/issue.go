package model

import "time"

type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// User is a GitHub account reference.
type User struct {
	Login string `json:"login"`
}

type Issue struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     State     `json:"state"`
	Assignee  *User     `json:"assignee"`
	Comments  int       `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `json:"user"`
}

// IsAssigned reports whether the issue has an assignee with a login.
func (i *Issue) IsAssigned() bool {
	return i.Assignee != nil && i.Assignee.Login != ""
}
