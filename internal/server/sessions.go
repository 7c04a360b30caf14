package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/bloodwork-tracker/constants"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/entity"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/export"
)

func pathID(r *http.Request, name string) (int, error) {
	raw := r.PathValue(name)
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, common.InvalidInputErrorf("%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	var (
		list []*entity.TestSession
		err  error
	)
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		uid, convErr := strconv.Atoi(raw)
		if convErr != nil {
			writeError(w, r, s.logger, common.InvalidInputErrorf("user_id must be an integer"))
			return
		}
		list, err = s.sessions.ListByUser(r.Context(), uid)
	} else {
		list, err = s.sessions.List(r.Context())
	}
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	out := make([]sessionResponse, 0, len(list))
	for _, sess := range list {
		out = append(out, toSessionResponse(sess, false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess, true))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("Session %d deleted", id)})
}

func (s *Server) handleGetTest(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	testID, err := pathID(r, "testID")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	t, err := s.tests.Get(r.Context(), sessionID, testID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type updateTestRequest struct {
	TestName *string `json:"test_name"`
	Value    any     `json:"value"`
	Unit     *string `json:"unit"`
}

// handleUpdateTest validates the whole body before touching the row, so a rejected
// update leaves the stored reading unchanged.
func (s *Server) handleUpdateTest(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	testID, err := pathID(r, "testID")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	var req updateTestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, s.logger, common.InvalidInputErrorf("invalid JSON body: %v", err))
		return
	}

	v := common.NewValidator().
		Field("value", req.Value, common.Required, common.Numeric)
	if req.TestName != nil {
		v.Field("test_name", strings.TrimSpace(*req.TestName), common.Required, common.MaxLength(128))
	}
	if req.Unit != nil {
		v.Field("unit", *req.Unit, common.MaxLength(32))
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	value, _ := common.ParseNumeric(req.Value)

	current, err := s.tests.Get(r.Context(), sessionID, testID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	name := current.TestName
	if req.TestName != nil {
		name, _ = constants.CanonicalTestName(*req.TestName)
	}
	var unit *string
	if req.Unit != nil {
		u := strings.TrimSpace(*req.Unit)
		unit = &u
	}

	updated, err := s.tests.Update(r.Context(), sessionID, testID, entity.BloodTestUpdate{
		TestName: name,
		Value:    value,
		Unit:     unit,
	})
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, testUpdatedResponse{Message: "Test updated", Test: updated})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	testName := strings.TrimSpace(r.URL.Query().Get("test"))
	if testName == "" {
		writeError(w, r, s.logger, common.InvalidInputErrorf("query parameter %q is required", "test"))
		return
	}
	user, err := s.users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	points, err := s.tests.Trend(r.Context(), userID, testName)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	canonical, _ := constants.CanonicalTestName(testName)
	out := trendResponse{UserID: user.ID, Name: user.Name, TestName: canonical, Points: make([]trendPoint, 0, len(points))}
	for _, p := range points {
		out.Points = append(out.Points, trendPoint{
			SessionID: p.SessionID,
			TestID:    p.TestID,
			TestDate:  p.TestDate.Format(isoDate),
			Value:     p.Value,
			Unit:      p.Unit,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter export.Filter
	if raw := q.Get("user_id"); raw != "" {
		uid, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, s.logger, common.InvalidInputErrorf("user_id must be an integer"))
			return
		}
		filter.UserID = &uid
	}
	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := strings.TrimSpace(q.Get(p.key))
		if raw == "" {
			continue
		}
		t, err := time.Parse(isoDate, raw)
		if err != nil {
			writeError(w, r, s.logger, common.InvalidInputErrorf("%s must be YYYY-MM-DD", p.key))
			return
		}
		*p.dst = &t
	}

	data, err := s.export.ExportSessionsXLSX(r.Context(), filter)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="bloodwork.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
