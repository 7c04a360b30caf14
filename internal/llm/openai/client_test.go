package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/llm"
)

const reportJSON = `{"personal_info":{"name":"Maria P.","age":54,"weight":null,"height":null,"location":"Athens","test_date":"07-03-2024"},
"test_results":[{"test_name":"Glucose","value":95,"unit":"mg/dL","normal_range":"70-110"}],"errors":[]}`

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func newTestClient(url string, retries int) *Client {
	return NewClient(Config{
		APIKey:               "sk-test",
		BaseURL:              url,
		Model:                "gpt-4o",
		Timeout:              2 * time.Second,
		MaxRetries:           retries,
		RetryInitialInterval: time.Millisecond,
	}, nil)
}

func TestStructureReport_OK(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))
		_, _ = io.WriteString(w, completion(reportJSON))
	}))
	defer srv.Close()

	report, raw, err := newTestClient(srv.URL, 0).StructureReport(t.Context(), "Glucose: 95 mg/dL\nDate: 2024-03-07")
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	assert.Equal(t, "Maria P.", report.PersonalInfo.Name)
	assert.Equal(t, "07-03-2024", report.PersonalInfo.TestDate)
	require.Len(t, report.TestResults, 1)
	assert.Equal(t, "Glucose", report.TestResults[0].TestName)
	assert.InDelta(t, 95, *report.TestResults[0].Value, 1e-9)
	assert.Equal(t, "mg/dL", *report.TestResults[0].Unit)
	assert.Empty(t, report.Errors)

	rf := captured["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", rf["type"])
	js := rf["json_schema"].(map[string]any)
	assert.Equal(t, true, js["strict"])
	msgs := captured["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].(map[string]any)["content"], "HbA1c and HbA1 are different tests")
	assert.Contains(t, msgs[1].(map[string]any)["content"], "Glucose: 95 mg/dL")
}

func TestStructureReport_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, completion(reportJSON))
	}))
	defer srv.Close()

	_, _, err := newTestClient(srv.URL, 3).StructureReport(t.Context(), "Glucose 95")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestStructureReport_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, _, err := newTestClient(srv.URL, 2).StructureReport(t.Context(), "Glucose 95")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrUpstream))
	assert.Equal(t, int32(3), calls.Load())
}

func TestStructureReport_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, _, err := newTestClient(srv.URL, 3).StructureReport(t.Context(), "Glucose 95")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStructureReport_MalformedRequestIsNotRetried(t *testing.T) {
	// a control character makes the URL unparseable, so the request is never sent
	_, _, err := newTestClient("http://api.example\x7f", 3).StructureReport(t.Context(), "Glucose 95")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 1 attempt(s)")
	assert.False(t, isTransient(fmt.Errorf("build request: %w", llm.ErrRequest)))
}

func TestStructureReport_RetriesConnectionFailures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, _, err := newTestClient(url, 2).StructureReport(t.Context(), "Glucose 95")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrUpstream))
	assert.Contains(t, err.Error(), "after 3 attempt(s)")
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&llm.StatusError{Status: http.StatusBadGateway}))
	assert.False(t, isTransient(&llm.StatusError{Status: http.StatusBadRequest}))
	assert.True(t, isTransient(fmt.Errorf("attempt: %w", context.DeadlineExceeded)))
	assert.False(t, isTransient(errors.New("something deterministic")))
}

func TestStructureReport_InvalidOutputIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, completion(`{"personal_info":{"name":"","test_date":""},"test_results":[],"errors":[]}`))
	}))
	defer srv.Close()

	report, _, err := newTestClient(srv.URL, 3).StructureReport(t.Context(), "Glucose 95")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Empty(t, report.TestResults)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStructureReport_EmptyText(t *testing.T) {
	_, _, err := newTestClient("http://127.0.0.1:0", 0).StructureReport(t.Context(), "  \n ")
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestTranscribePage(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))
		_, _ = io.WriteString(w, completion("GLUCOSE    95   mg/dL"))
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL, 0).TranscribePage(t.Context(), 2, []byte("\x89PNG fake"))
	require.NoError(t, err)
	assert.Equal(t, "GLUCOSE    95   mg/dL", text)

	msgs := captured["messages"].([]any)
	parts := msgs[1].(map[string]any)["content"].([]any)
	img := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.True(t, strings.HasPrefix(img["url"].(string), "data:image/png;base64,"))
	assert.Contains(t, parts[0].(map[string]any)["text"], "page 2")
}
