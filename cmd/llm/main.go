package main

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/llm"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/llm/openai"
)

// llm re-runs structuring on a saved raw-text artifact to see how stable the model's
// output is for a given report.
func main() {
	cfg := common.LoadConfig()
	cfg.Log.Format = "json"
	logger := common.NewLogger(os.Stdout, cfg.Log)

	if len(os.Args) < 2 {
		logger.Error("usage: llm <raw_text.txt> [times]")
		os.Exit(2)
	}
	raw, err := os.ReadFile(os.Args[1])
	if err != nil {
		logger.Error("read raw text", "path", os.Args[1], "error", err)
		os.Exit(2)
	}
	times := 3
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}
	if cfg.LLM.APIKey == "" {
		logger.Error("OPENAI_API_KEY env var is required")
		os.Exit(2)
	}

	client := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
	}, logger)

	var first *llm.StructuredReport
	mismatches := 0
	for i := 1; i <= times; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		start := time.Now()
		report, _, err := client.StructureReport(ctx, string(raw))
		cancel()
		if err != nil {
			logger.Error("structuring failed", "run", i, "error", err)
			continue
		}
		logger.Info("structured",
			"run", i,
			"name", report.PersonalInfo.Name,
			"test_date", report.PersonalInfo.TestDate,
			"results", len(report.TestResults),
			"errors", len(report.Errors),
			"duration_ms", time.Since(start).Milliseconds())

		if first == nil {
			first = &report
			continue
		}
		if !sameResults(*first, report) {
			mismatches++
			logger.Warn("output differs from first run", "run", i)
		}
	}

	if first != nil {
		out, _ := json.MarshalIndent(first, "", "  ")
		os.Stdout.Write(append(out, '\n'))
	}
	logger.Info("done", "runs", times, "mismatches", mismatches)
}

// sameResults compares the subject and readings, ignoring the errors list.
func sameResults(a, b llm.StructuredReport) bool {
	a.Errors, b.Errors = nil, nil
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return string(ja) == string(jb)
}
