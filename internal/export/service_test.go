package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/entity"
)

type stubSessions struct {
	sessions []*entity.TestSession
}

func (s stubSessions) CreateWithTests(context.Context, int, entity.NewSession, []entity.NewBloodTest) (*entity.TestSession, error) {
	return nil, nil
}
func (s stubSessions) List(context.Context) ([]*entity.TestSession, error) { return s.sessions, nil }
func (s stubSessions) ListByUser(context.Context, int) ([]*entity.TestSession, error) {
	return s.sessions, nil
}
func (s stubSessions) ListWithTests(context.Context) ([]*entity.TestSession, error) {
	return s.sessions, nil
}
func (s stubSessions) Get(context.Context, int) (*entity.TestSession, error) { return nil, nil }
func (s stubSessions) Delete(context.Context, int) error { return nil }

type stubUsers struct{}

func (stubUsers) Upsert(context.Context, string, *float64) (*entity.User, bool, error) {
	return nil, false, nil
}
func (stubUsers) Get(_ context.Context, id int) (*entity.User, error) {
	if id == 1 {
		return &entity.User{ID: 1, Name: "Jane Doe"}, nil
	}
	return nil, common.NotFoundErrorf("user not found")
}

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }

func TestExportSessionsXLSX(t *testing.T) {
	sessions := stubSessions{sessions: []*entity.TestSession{
		{
			ID: 2, UserID: 1, TestDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), Location: sptr("Lab A"),
			BloodTests: []entity.BloodTest{
				{ID: 10, SessionID: 2, TestName: "HDL", Value: fptr(50), Unit: sptr("mg/dL")},
				{ID: 11, SessionID: 2, TestName: "Vitamin D"},
			},
		},
		{ID: 1, UserID: 7, TestDate: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)},
	}}
	svc := NewService(sessions, stubUsers{}, nil)

	data, err := svc.ExportSessionsXLSX(context.Background(), Filter{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sessionsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"2", "Jane Doe", "15-03-2024", "Lab A", "", "2"}, rows[1][:6])
	assert.Equal(t, "", rows[2][1])

	tests, err := f.GetRows(testsSheet)
	require.NoError(t, err)
	require.Len(t, tests, 3)
	assert.Equal(t, "HDL", tests[1][3])
	assert.Equal(t, "50", tests[1][4])
	assert.Equal(t, "Vitamin D", tests[2][3])
}

func TestExportSessionsXLSX_Filter(t *testing.T) {
	sessions := stubSessions{sessions: []*entity.TestSession{
		{ID: 2, UserID: 1, TestDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{ID: 1, UserID: 1, TestDate: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)},
	}}
	svc := NewService(sessions, stubUsers{}, nil)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data, err := svc.ExportSessionsXLSX(context.Background(), Filter{From: &from})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sessionsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2", rows[1][0])
}
