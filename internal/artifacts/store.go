// Package artifacts keeps side-channel copies of what each upload produced: the raw
// extracted text and the structured JSON returned by the model.
package artifacts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/utils"
)

const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Store persists artifact bytes under a slash-separated key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// RawTextKey names the raw extraction dump for an uploaded file.
func RawTextKey(filename string) string {
	return fmt.Sprintf("raw/raw_text_%s.txt", utils.FileStem(filename))
}

// StructuredKey names the structured report dump for an uploaded file.
func StructuredKey(filename string) string {
	return fmt.Sprintf("structured/structured_%s.json", utils.FileStem(filename))
}

// Writer writes artifacts on a best-effort basis: failures are logged, never returned.
type Writer struct {
	store  Store
	logger *slog.Logger
}

func NewWriter(store Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, logger: logger}
}

func (w *Writer) WriteRawText(ctx context.Context, filename, text string) {
	w.put(ctx, RawTextKey(filename), []byte(text), "text/plain; charset=utf-8")
}

func (w *Writer) WriteStructured(ctx context.Context, filename string, data []byte) {
	w.put(ctx, StructuredKey(filename), data, "application/json")
}

func (w *Writer) put(ctx context.Context, key string, data []byte, contentType string) {
	if w == nil || w.store == nil {
		return
	}
	loc, err := w.store.Put(ctx, key, data, contentType)
	if err != nil {
		w.logger.Warn("artifacts.write_failed", "key", key, "error", err)
		return
	}
	w.logger.Debug("artifacts.written", "location", loc, "bytes", len(data))
}
