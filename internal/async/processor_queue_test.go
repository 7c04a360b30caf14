package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/bloodwork-tracker/constants"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/entity"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/pipeline"
)

type countingProcessor struct {
	calls   atomic.Int32
	failFor string
	seenIDs sync.Map
}

func (p *countingProcessor) ProcessFile(ctx context.Context, path, filename string) (*pipeline.Outcome, error) {
	n := p.calls.Add(1)
	p.seenIDs.Store(filename, common.RequestIDFromContext(ctx))
	if filename == p.failFor {
		return &pipeline.Outcome{Filename: filename, Status: constants.StatusFailed}, errors.New("boom")
	}
	return &pipeline.Outcome{
		Filename: filename,
		Status:   constants.StatusPersisted,
		Session:  &entity.TestSession{ID: int(n)},
	}, nil
}

func TestProcessorQueue_ProcessesAllAndReports(t *testing.T) {
	proc := &countingProcessor{failFor: "bad.pdf"}
	var (
		mu      sync.Mutex
		results []Result
	)
	q := NewProcessorQueue(proc, nil,
		WithWorkers(2),
		WithQueueSize(1),
		WithResultHandler(func(r Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}),
	)

	for _, name := range []string{"a.pdf", "b.pdf", "bad.pdf", "c.pdf"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{Path: "/in/" + name, Filename: name}))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	assert.Equal(t, int32(4), proc.calls.Load())
	require.Len(t, results, 4)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			assert.Equal(t, "bad.pdf", r.Job.Filename)
		}
	}
	assert.Equal(t, 1, failed)

	id, ok := proc.seenIDs.Load("a.pdf")
	require.True(t, ok)
	assert.NotEmpty(t, id)
}

func TestProcessorQueue_RejectsAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&countingProcessor{}, nil, WithWorkers(1))
	q.Shutdown(context.Background())
	err := q.Enqueue(context.Background(), Job{Filename: "late.pdf"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}
