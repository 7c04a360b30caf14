package server

import (
	"time"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/entity"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/llm"
)

const isoDate = "2006-01-02"

type sessionResponse struct {
	SessionID  int                `json:"session_id"`
	UserID     int                `json:"user_id"`
	TestDate   string             `json:"test_date"`
	Location   *string            `json:"location"`
	Weight     *float64           `json:"weight"`
	SourceFile string             `json:"source_file,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	BloodTests []entity.BloodTest `json:"blood_tests,omitempty"`
}

func toSessionResponse(s *entity.TestSession, withTests bool) sessionResponse {
	out := sessionResponse{
		SessionID:  s.ID,
		UserID:     s.UserID,
		TestDate:   s.TestDate.Format(isoDate),
		Location:   s.Location,
		Weight:     s.Weight,
		SourceFile: s.SourceFile,
		CreatedAt:  s.CreatedAt,
	}
	if withTests {
		out.BloodTests = s.BloodTests
		if out.BloodTests == nil {
			out.BloodTests = []entity.BloodTest{}
		}
	}
	return out
}

type uploadResponse struct {
	Filename         string               `json:"filename"`
	StoredAs         string               `json:"stored_as"`
	Path             string               `json:"path"`
	SessionID        int                  `json:"session_id"`
	UserID           int                  `json:"user_id"`
	ExtractionMethod string               `json:"extraction_method"`
	Pages            int                  `json:"pages,omitempty"`
	StructuredData   llm.StructuredReport `json:"structured_data"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type testUpdatedResponse struct {
	Message string            `json:"message"`
	Test    *entity.BloodTest `json:"test"`
}

type trendPoint struct {
	SessionID int      `json:"session_id"`
	TestID    int      `json:"test_id"`
	TestDate  string   `json:"test_date"`
	Value     *float64 `json:"value"`
	Unit      *string  `json:"unit"`
}

type trendResponse struct {
	UserID   int          `json:"user_id"`
	Name     string       `json:"name"`
	TestName string       `json:"test_name"`
	Points   []trendPoint `json:"points"`
}
