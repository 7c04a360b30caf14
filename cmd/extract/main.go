package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/llm/openai"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/ocr"
)

// extract prints the raw text the pipeline would hand to the model for one PDF.
func main() {
	var (
		vision    = pflag.Bool("vision", true, "fall back to page transcription when the PDF has no text layer")
		structure = pflag.Bool("structure", false, "also run the structuring model and print its JSON")
		timeout   = pflag.Duration("timeout", 5*time.Minute, "overall deadline")
	)
	pflag.Parse()

	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stderr, cfg.Log)

	if pflag.NArg() != 1 {
		logger.Error("usage", "cmd", "extract [--vision=false] [--structure] <report.pdf>")
		os.Exit(2)
	}
	path := pflag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var client *openai.Client
	if *vision || *structure {
		if cfg.LLM.APIKey == "" {
			logger.Error("OPENAI_API_KEY is required for --vision and --structure; pass --vision=false for text-layer only")
			os.Exit(1)
		}
		client = openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			VisionModel: cfg.LLM.VisionModel,
			Timeout:     cfg.LLM.Timeout,
			MaxRetries:  cfg.LLM.MaxRetries,
		}, logger)
	}

	var pages ocr.PageReader
	if *vision {
		pages = ocr.NewVisionExtractor(ocr.VisionConfig{
			Pdftoppm:    cfg.Extract.Pdftoppm,
			DPI:         cfg.Extract.DPI,
			Concurrency: cfg.Extract.VisionConcurrency,
			PageTimeout: cfg.Extract.VisionTimeout,
		}, client, logger)
	}

	res, err := ocr.NewExtractor(ocr.NewPDFTextReader(logger), pages, logger).Extract(ctx, path)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err)
		os.Exit(1)
	}
	logger.Info("text extraction OK",
		"method", res.Method,
		"pages", res.Pages,
		"text_len", len(res.Text),
		"duration_ms", res.Duration.Milliseconds())
	if !*structure {
		fmt.Println(res.Text)
		return
	}

	report, _, err := client.StructureReport(ctx, res.Text)
	if err != nil {
		logger.Error("structuring failed", "error", err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
}
