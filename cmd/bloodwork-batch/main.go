package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/app"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/async"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/export"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/ingest"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/repository"
)

const inMemoryDSN = repository.SQLitePrefix + "file:bloodwork-batch?mode=memory&cache=shared"

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem   = pflag.Bool("inmem", false, "use in-memory SQLite database")
		dir     = pflag.String("dir", "", "directory to process lab reports from (required)")
		out     = pflag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		fromStr = pflag.String("from", "", "from date YYYY-MM-DD")
		toStr   = pflag.String("to", "", "to date YYYY-MM-DD")
		workers = pflag.Int("workers", 2, "concurrent reports in flight")
		watch   = pflag.Bool("watch", false, "keep running and process new PDFs dropped into --dir")
	)
	pflag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "bloodwork.xlsx")
	}

	var from, to *time.Time
	for _, f := range []struct {
		name string
		raw  string
		dst  **time.Time
	}{{"from", *fromStr, &from}, {"to", *toStr, &to}} {
		if f.raw == "" {
			continue
		}
		parsed, err := time.Parse("2006-01-02", f.raw)
		if err != nil {
			printError("Error: invalid --%s date format, use YYYY-MM-DD: %v\n", f.name, err)
			os.Exit(1)
		}
		*f.dst = &parsed
	}

	cfg := common.LoadConfig()
	cfg.Log.Format = "json"
	logger := common.NewLogger(os.Stdout, cfg.Log)
	if *inmem {
		cfg.Database.DSN = inMemoryDSN
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "code", common.ErrorCode(err), "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var (
		mu        sync.Mutex
		processed int
		failures  int
	)
	queue := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(*workers),
		async.WithResultHandler(func(r async.Result) {
			mu.Lock()
			defer mu.Unlock()
			if r.Err != nil {
				failures++
				return
			}
			processed++
		}),
	)

	submit := func(res ingest.IngestionResult) {
		job := async.Job{Path: res.StoredPath, Filename: res.Filename}
		if err := queue.Enqueue(ctx, job); err != nil {
			logger.Error("failed to enqueue", "file", res.Filename, "error", err)
		}
	}

	logger.Info("starting ingestion", "dir", *dir)
	results, stats, err := a.Stager.IngestDirectory(ctx, *dir, true)
	if err != nil {
		logger.Error("failed to ingest directory", "error", err)
		os.Exit(1)
	}
	ingested := 0
	for _, r := range results {
		if r.Err != "" || r.Deduplicated {
			continue
		}
		ingested++
		submit(r)
	}
	logger.Info("ingestion complete",
		"files_ingested", ingested,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"deduplicated", stats.Deduplicated)

	if *watch {
		paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:    []string{*dir},
			Debounce: 500 * time.Millisecond,
			Logger:   logger,
		})
		if err != nil {
			logger.Error("failed to start watcher", "error", err)
			os.Exit(1)
		}
		logger.Info("watching for new reports", "dir", *dir)
	loop:
		for {
			select {
			case p, ok := <-paths:
				if !ok {
					break loop
				}
				if underDir(p, a.Stager.Dir) {
					continue
				}
				r, err := a.Stager.IngestPath(ctx, p)
				if err != nil {
					logger.Error("failed to stage file", "path", p, "error", err)
					continue
				}
				submit(r)
			case err, ok := <-errs:
				if ok {
					logger.Warn("watcher error", "error", err)
				}
			case <-ctx.Done():
				break loop
			}
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	queue.Shutdown(drainCtx)

	logger.Info("exporting to XLSX", "output", *out)
	xlsxBytes, err := a.Export.ExportSessionsXLSX(context.Background(), export.Filter{From: from, To: to})
	if err != nil {
		logger.Error("failed to export sessions", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	mu.Lock()
	defer mu.Unlock()
	logger.Info("batch processing complete",
		"files_ingested", ingested,
		"files_processed", processed,
		"failures", failures,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files ingested: %d\n", ingested)
	fmt.Printf("- Files processed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)
}

// underDir reports whether path lies inside dir, so staged copies are not re-ingested.
func underDir(path, dir string) bool {
	absPath, err1 := filepath.Abs(path)
	absDir, err2 := filepath.Abs(dir)
	if err1 != nil || err2 != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
