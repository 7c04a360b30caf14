package async

import (
	"context"
	"time"
)

// Job is one stored PDF waiting to go through the pipeline.
type Job struct {
	Path        string
	Filename    string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
