package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner executes an external tool. Tests swap in a fake so pdftoppm is not required.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	logger := r.logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	err := cmd.Run()

	attrs := []any{"cmd", name, "args", strings.Join(args, " "), "duration_ms", time.Since(start).Milliseconds()}
	if err != nil {
		// stderr from pdftoppm on a damaged file can be large
		logger.Error("ocr.exec.failed", append(attrs, "error", err, "stderr", truncate(stderr.String(), 8<<10))...)
	} else {
		logger.Debug("ocr.exec.done", append(attrs, "stdout_bytes", stdout.Len())...)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
