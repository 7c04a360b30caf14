package entity

import "time"

// TestSession is one uploaded report: a subject, a date and a set of readings.
type TestSession struct {
	ID         int         `json:"session_id"`
	UserID     int         `json:"user_id"`
	TestDate   time.Time   `json:"-"`
	Location   *string     `json:"location"`
	Weight     *float64    `json:"weight"`
	SourceFile string      `json:"source_file,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	BloodTests []BloodTest `json:"blood_tests,omitempty"`
}

// NewSession carries the values needed to insert a session.
type NewSession struct {
	TestDate   time.Time
	Location   *string
	Weight     *float64
	SourceFile string
}
