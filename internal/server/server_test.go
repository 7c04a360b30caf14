package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/bloodwork-tracker/constants"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/entity"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/export"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/ingest"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/llm"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/pipeline"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/repository"
)

type stubProcessor struct {
	calls int
	path  string
	out   *pipeline.Outcome
	err   error
}

func (s *stubProcessor) ProcessFile(_ context.Context, path, _ string) (*pipeline.Outcome, error) {
	s.calls++
	s.path = path
	return s.out, s.err
}

type env struct {
	srv      *Server
	h        http.Handler
	proc     *stubProcessor
	db       *repository.DB
	users    repository.UserRepository
	sessions repository.SessionRepository
	tests    repository.BloodTestRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	dir := t.TempDir()

	db, err := repository.Open(ctx, repository.Config{DSN: repository.SQLitePrefix + filepath.Join(dir, "api.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(logger) })
	require.NoError(t, repository.Migrate(ctx, db.Driver))

	e := &env{
		proc:     &stubProcessor{},
		db:       db,
		users:    repository.NewUserRepository(db.Driver, logger),
		sessions: repository.NewSessionRepository(db.Driver, logger),
		tests:    repository.NewBloodTestRepository(db.Driver, logger),
	}
	e.srv = New(Deps{
		Processor:      e.proc,
		Stager:         ingest.NewStager(filepath.Join(dir, "uploads"), logger),
		Users:          e.users,
		Sessions:       e.sessions,
		Tests:          e.tests,
		Export:         export.NewService(e.sessions, e.users, logger),
		DB:             db,
		MaxUploadBytes: 1 << 20,
		CORSOrigins:    []string{"http://localhost:3000"},
		Logger:         logger,
	})
	e.h = e.srv.Handler()
	return e
}

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }

// seed stores one session with glucose and HbA1c readings.
func (e *env) seed(t *testing.T, name string, date time.Time) *entity.TestSession {
	t.Helper()
	ctx := context.Background()
	u, _, err := e.users.Upsert(ctx, name, nil)
	require.NoError(t, err)
	s, err := e.sessions.CreateWithTests(ctx, u.ID, entity.NewSession{TestDate: date, Location: sptr("City Lab")}, []entity.NewBloodTest{
		{TestName: "Glucose", Value: fptr(5.4), Unit: sptr("mmol/L"), NormalRange: sptr("3.9-5.6")},
		{TestName: "HbA1c", Value: fptr(5.9), Unit: sptr("%")},
	})
	require.NoError(t, err)
	return s
}

func (e *env) do(t *testing.T, method, target string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var er errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	return er
}

func multipartFile(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestListSessions_NewestFirst(t *testing.T) {
	e := newEnv(t)
	older := e.seed(t, "Jane Doe", time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC))
	newer := e.seed(t, "Jane Doe", time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC))

	rec := e.do(t, http.MethodGet, "/sessions", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].SessionID)
	assert.Equal(t, "2024-07-04", got[0].TestDate)
	assert.Equal(t, older.ID, got[1].SessionID)
	assert.Empty(t, got[0].BloodTests)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestGetSession_WithTests(t *testing.T) {
	e := newEnv(t)
	s := e.seed(t, "Jane Doe", time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC))

	rec := e.do(t, http.MethodGet, "/sessions/"+strconv.Itoa(s.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "City Lab", *got.Location)
	require.Len(t, got.BloodTests, 2)
	assert.Equal(t, "Glucose", got.BloodTests[0].TestName)
}

func TestGetSession_BadAndMissingID(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/sessions/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, common.CodeInvalidInput, decodeError(t, rec).Code)

	rec = e.do(t, http.MethodGet, "/sessions/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, common.CodeNotFound, decodeError(t, rec).Code)
}

func TestDeleteSession_CascadesToTests(t *testing.T) {
	e := newEnv(t)
	s := e.seed(t, "Jane Doe", time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC))
	testID := s.BloodTests[0].ID

	rec := e.do(t, http.MethodDelete, "/sessions/"+strconv.Itoa(s.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msg messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, "Session "+strconv.Itoa(s.ID)+" deleted", msg.Message)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/sessions/"+strconv.Itoa(s.ID), nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/sessions/"+strconv.Itoa(s.ID)+"/tests/"+strconv.Itoa(testID), nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/sessions/"+strconv.Itoa(s.ID), nil, nil).Code)
}

func TestUpdateTest_NonNumericLeavesRowUnchanged(t *testing.T) {
	e := newEnv(t)
	s := e.seed(t, "Jane Doe", time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC))
	testID := s.BloodTests[0].ID
	target := "/sessions/" + strconv.Itoa(s.ID) + "/tests/" + strconv.Itoa(testID)

	rec := e.do(t, http.MethodPut, target, strings.NewReader(`{"test_name":"Glucose","value":"abc"}`), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, common.CodeInvalidInput, decodeError(t, rec).Code)

	got, err := e.tests.Get(context.Background(), s.ID, testID)
	require.NoError(t, err)
	require.NotNil(t, got.Value)
	assert.Equal(t, 5.4, *got.Value)
}

func TestUpdateTest_Success(t *testing.T) {
	e := newEnv(t)
	s := e.seed(t, "Jane Doe", time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC))
	testID := s.BloodTests[0].ID
	target := "/sessions/" + strconv.Itoa(s.ID) + "/tests/" + strconv.Itoa(testID)

	rec := e.do(t, http.MethodPut, target, strings.NewReader(`{"value":"6,1","unit":"mmol/L"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got testUpdatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Test updated", got.Message)
	require.NotNil(t, got.Test)
	assert.Equal(t, "Glucose", got.Test.TestName)
	assert.Equal(t, 6.1, *got.Test.Value)
	assert.Equal(t, "3.9-5.6", *got.Test.NormalRange)
}

func TestUpdateTest_EmptyNameAndWrongSession(t *testing.T) {
	e := newEnv(t)
	a := e.seed(t, "Jane Doe", time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC))
	b := e.seed(t, "John Roe", time.Date(2024, 7, 5, 0, 0, 0, 0, time.UTC))
	testID := a.BloodTests[0].ID

	rec := e.do(t, http.MethodPut, "/sessions/"+strconv.Itoa(a.ID)+"/tests/"+strconv.Itoa(testID), strings.NewReader(`{"test_name":"  ","value":5}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPut, "/sessions/"+strconv.Itoa(b.ID)+"/tests/"+strconv.Itoa(testID), strings.NewReader(`{"value":5}`), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPut, "/sessions/"+strconv.Itoa(a.ID)+"/tests/"+strconv.Itoa(testID), strings.NewReader(`{`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_RejectsNonPDF(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartFile(t, "file", "notes.txt", []byte("hello"))

	rec := e.do(t, http.MethodPost, "/upload", body, map[string]string{"Content-Type": ct})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, common.CodeInvalidFile, decodeError(t, rec).Code)
	assert.Zero(t, e.proc.calls)
}

func TestUpload_MissingFile(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartFile(t, "document", "report.pdf", []byte("%PDF-1.4"))

	rec := e.do(t, http.MethodPost, "/upload", body, map[string]string{"Content-Type": ct})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, e.proc.calls)
}

func TestUpload_TooLarge(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartFile(t, "file", "big.pdf", bytes.Repeat([]byte("x"), 2<<20))

	rec := e.do(t, http.MethodPost, "/upload", body, map[string]string{"Content-Type": ct})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUpload_ProcessesPDF(t *testing.T) {
	e := newEnv(t)
	e.proc.out = &pipeline.Outcome{
		Method:  constants.MethodPDFText,
		Status:  constants.StatusPersisted,
		Report:  llm.StructuredReport{PersonalInfo: llm.PersonalMetadata{Name: "Jane Doe", TestDate: "04-07-2024"}},
		User:    &entity.User{ID: 3, Name: "Jane Doe"},
		Session: &entity.TestSession{ID: 11, UserID: 3},
	}
	body, ct := multipartFile(t, "file", "Report.PDF", []byte("%PDF-1.4 fake"))

	rec := e.do(t, http.MethodPost, "/upload", body, map[string]string{"Content-Type": ct})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 1, e.proc.calls)

	var got uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Report.PDF", got.Filename)
	assert.Equal(t, 11, got.SessionID)
	assert.Equal(t, 3, got.UserID)
	assert.Equal(t, constants.MethodPDFText, got.ExtractionMethod)
	assert.Equal(t, "Jane Doe", got.StructuredData.PersonalInfo.Name)
	assert.FileExists(t, e.proc.path)
}

func TestUpload_PipelineErrorPayload(t *testing.T) {
	e := newEnv(t)
	e.proc.err = common.NewAppError(common.CodeExtractionFailed, "no text could be extracted", errors.New("all pages failed"))
	body, ct := multipartFile(t, "file", "scan.pdf", []byte("%PDF-1.4"))

	rec := e.do(t, http.MethodPost, "/upload", body, map[string]string{"Content-Type": ct})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	er := decodeError(t, rec)
	assert.Equal(t, common.CodeExtractionFailed, er.Code)
	assert.Contains(t, er.Error, "all pages failed")
}

func TestTrend(t *testing.T) {
	e := newEnv(t)
	first := e.seed(t, "Jane Doe", time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC))
	e.seed(t, "Jane Doe", time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC))

	rec := e.do(t, http.MethodGet, "/users/"+strconv.Itoa(first.UserID)+"/trend?test=hba1c", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got trendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Jane Doe", got.Name)
	require.Len(t, got.Points, 2)
	assert.Equal(t, "2023-01-10", got.Points[0].TestDate)
	assert.Equal(t, "2024-07-04", got.Points[1].TestDate)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/users/"+strconv.Itoa(first.UserID)+"/trend", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/users/999/trend?test=Glucose", nil, nil).Code)
}

func TestExportXLSX(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "Jane Doe", time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC))

	rec := e.do(t, http.MethodGet, "/export.xlsx?from=2024-01-01", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Tests")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/export.xlsx?from=04-07-2024", nil, nil).Code)
}

func TestHealthzAndCORS(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", nil, map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = e.do(t, http.MethodGet, "/healthz", nil, map[string]string{"Origin": "http://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

type flakyPinger struct{ err error }

func (p *flakyPinger) HealthCheck(context.Context, time.Duration, *slog.Logger) error { return p.err }

func TestHealthServer_ReportsDatabaseState(t *testing.T) {
	pinger := &flakyPinger{}
	hs := NewHealthServer(pinger, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	lis := bufconn.Listen(1 << 20)
	go func() { _ = hs.GRPC.Serve(lis) }()
	t.Cleanup(hs.GRPC.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	client := healthpb.NewHealthClient(conn)
	ctx := context.Background()

	hs.Check(ctx)
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	pinger.err = errors.New("connection refused")
	hs.Check(ctx)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
