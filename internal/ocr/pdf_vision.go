package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/bloodwork-tracker/constants"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/llm"
)

// ErrNoPages is returned when rasterization produced no page images.
var ErrNoPages = errors.New("pdf rendered no pages")

// ErrBlankPages is returned when no page yielded any text.
var ErrBlankPages = errors.New("no page yielded text")

type VisionConfig struct {
	Pdftoppm    string        // binary name or absolute path; if empty -> "pdftoppm"
	DPI         int           // default 300
	Concurrency int           // parallel page transcriptions, default 4
	PageTimeout time.Duration // per-page transcription budget, 0 = none
	TempDir     string        // parent for scratch dirs, "" = os.TempDir()
}

// PageCounter reports how many pages a PDF has.
type PageCounter interface {
	CountPages(path string) (int, error)
}

type pdfcpuCounter struct{}

func (pdfcpuCounter) CountPages(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, fmt.Errorf("pdfcpu page count: %w", err)
	}
	return ctx.PageCount, nil
}

// VisionExtractor rasterizes each page and asks a vision model to transcribe it.
type VisionExtractor struct {
	cfg         VisionConfig
	transcriber llm.PageTranscriber
	runner      Runner
	counter     PageCounter
	logger      *slog.Logger
}

type VisionOption func(*VisionExtractor)

func WithRunner(r Runner) VisionOption {
	return func(v *VisionExtractor) { v.runner = r }
}

func WithPageCounter(c PageCounter) VisionOption {
	return func(v *VisionExtractor) { v.counter = c }
}

func NewVisionExtractor(cfg VisionConfig, transcriber llm.PageTranscriber, logger *slog.Logger, opts ...VisionOption) *VisionExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	v := &VisionExtractor{
		cfg:         cfg,
		transcriber: transcriber,
		runner:      execRunner{logger: logger},
		counter:     pdfcpuCounter{},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type pageImage struct {
	number int
	path   string
}

// ExtractPages returns one "--- Page N ---" section per page in page order, and the page
// count. A page whose render or transcription fails carries the error placeholder. An
// error is returned when nothing could be rendered or no page produced any text.
func (v *VisionExtractor) ExtractPages(ctx context.Context, path string) (string, int, error) {
	start := time.Now()

	tmpDir, err := os.MkdirTemp(v.cfg.TempDir, "bloodwork-pages-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			v.logger.Warn("ocr.vision.cleanup_failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	pages, err := v.render(ctx, path, tmpDir)
	if err != nil {
		return "", 0, err
	}
	if len(pages) == 0 {
		return "", 0, ErrNoPages
	}

	texts := make([]string, len(pages))
	failed := make([]bool, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.Concurrency)
	for i, p := range pages {
		g.Go(func() error {
			text, err := v.transcribe(gctx, p)
			if err != nil {
				v.logger.Warn("ocr.vision.page_failed", "path", path, "page", p.number, "error", err)
				texts[i] = constants.PageErrorPlaceholder
				failed[i] = true
				return nil
			}
			texts[i] = strings.TrimSpace(text)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return "", len(pages), err
	}

	nFailed, nText := 0, 0
	var b strings.Builder
	for i, p := range pages {
		if failed[i] {
			nFailed++
		} else if texts[i] != "" {
			nText++
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", p.number, texts[i])
	}

	v.logger.Info("ocr.vision.done",
		"path", path,
		"pages", len(pages),
		"failed_pages", nFailed,
		"text_pages", nText,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if nFailed == len(pages) {
		return "", len(pages), fmt.Errorf("all %d pages failed transcription", len(pages))
	}
	// labels alone are not text
	if nText == 0 {
		return "", len(pages), fmt.Errorf("%w: %d pages transcribed blank", ErrBlankPages, len(pages))
	}
	return b.String(), len(pages), nil
}

func (v *VisionExtractor) transcribe(ctx context.Context, p pageImage) (string, error) {
	if p.path == "" {
		return "", errors.New("page not rendered")
	}
	img, err := os.ReadFile(p.path)
	if err != nil {
		return "", fmt.Errorf("read page image: %w", err)
	}
	if v.cfg.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.PageTimeout)
		defer cancel()
	}
	return v.transcriber.TranscribePage(ctx, p.number, img)
}

// render produces one PNG per page. With a known page count each page is rendered on
// its own so a single bad page keeps its slot; otherwise the whole file is rendered at once.
func (v *VisionExtractor) render(ctx context.Context, path, dir string) ([]pageImage, error) {
	n, err := v.counter.CountPages(path)
	if err != nil || n <= 0 {
		v.logger.Warn("ocr.vision.page_count_failed", "path", path, "count", n, "error", err)
		return v.renderAll(ctx, path, dir)
	}

	pages := make([]pageImage, n)
	rendered := 0
	for i := 1; i <= n; i++ {
		pages[i-1].number = i
		prefix := filepath.Join(dir, fmt.Sprintf("page-%d", i))
		args := []string{
			"-r", strconv.Itoa(v.cfg.DPI),
			"-png",
			"-f", strconv.Itoa(i),
			"-l", strconv.Itoa(i),
			"-singlefile",
			path, prefix,
		}
		if _, _, err := v.runner.Run(ctx, v.cfg.Pdftoppm, args...); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			v.logger.Warn("ocr.vision.render_failed", "path", path, "page", i, "error", err)
			continue
		}
		pages[i-1].path = prefix + ".png"
		rendered++
	}
	if rendered == 0 {
		return nil, fmt.Errorf("pdftoppm rendered none of %d pages", n)
	}
	return pages, nil
}

func (v *VisionExtractor) renderAll(ctx context.Context, path, dir string) ([]pageImage, error) {
	prefix := filepath.Join(dir, "page")
	args := []string{"-r", strconv.Itoa(v.cfg.DPI), "-png", path, prefix}
	if _, stderr, err := v.runner.Run(ctx, v.cfg.Pdftoppm, args...); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, truncate(string(stderr), 512))
	}
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	// pdftoppm zero-pads page numbers to a fixed width, so lexical order is page order.
	sort.Strings(matches)
	pages := make([]pageImage, len(matches))
	for i, m := range matches {
		pages[i] = pageImage{number: i + 1, path: m}
	}
	return pages, nil
}
