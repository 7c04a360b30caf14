package entity

import "time"

// BloodTest is a single reading within a session.
type BloodTest struct {
	ID          int      `json:"test_id"`
	SessionID   int      `json:"session_id"`
	TestName    string   `json:"test_name"`
	Value       *float64 `json:"value"`
	Unit        *string  `json:"unit"`
	NormalRange *string  `json:"normal_range"`
}

// NewBloodTest carries the values needed to insert a reading.
type NewBloodTest struct {
	TestName    string
	Value       *float64
	Unit        *string
	NormalRange *string
}

// BloodTestUpdate is the editable subset of a reading.
type BloodTestUpdate struct {
	TestName string
	Value    float64
	Unit     *string
}

// TrendPoint is one reading of a test placed on the session timeline.
type TrendPoint struct {
	SessionID int       `json:"session_id"`
	TestID    int       `json:"test_id"`
	TestDate  time.Time `json:"-"`
	TestName  string    `json:"test_name"`
	Value     *float64  `json:"value"`
	Unit      *string   `json:"unit"`
}
