package entity

import "time"

// User is the subject a report belongs to, identified by exact name.
type User struct {
	ID        int       `json:"user_id"`
	Name      string    `json:"name"`
	Height    *float64  `json:"height,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
