package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/utils"
)

// Stager copies incoming reports into the upload directory under a timestamped name.
type Stager struct {
	Dir    string
	Logger *slog.Logger
	Now    func() time.Time
}

func NewStager(dir string, logger *slog.Logger) *Stager {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		dir = "./uploads"
	}
	return &Stager{Dir: dir, Logger: logger, Now: time.Now}
}

// Save writes r to <Dir>/<stem>_<dd-mm-YYYY_HH-MM-SS>.pdf and returns the stored name,
// full path and content hash. Only .pdf names are accepted.
func (s *Stager) Save(original string, r io.Reader) (filename, path, hashHex string, err error) {
	if !AllowedExt(filepath.Ext(strings.TrimSpace(original))) {
		return "", "", "", common.NewAppError(common.CodeInvalidFile, "only PDF files are allowed", common.ErrInvalidInput)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", "", "", fmt.Errorf("create upload dir: %w", err)
	}

	filename = utils.StampedPDFName(original, s.Now())
	path = filepath.Join(s.Dir, filename)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		// same stem within the same second; disambiguate rather than overwrite
		filename = strings.TrimSuffix(filename, ".pdf") + "_" + fmt.Sprint(s.Now().UnixNano()%1e6) + ".pdf"
		path = filepath.Join(s.Dir, filename)
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	}
	if err != nil {
		return "", "", "", fmt.Errorf("create upload file: %w", err)
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(f, h), r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", "", "", fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", "", "", fmt.Errorf("close upload file: %w", err)
	}

	hashHex = hex.EncodeToString(h.Sum(nil))
	s.Logger.Info("ingest.saved", "original", original, "filename", filename, "sha256", hashHex)
	return filename, path, hashHex, nil
}

// IngestPath stages a single file from the local filesystem.
func (s *Stager) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	f, err := os.Open(path)
	if err != nil {
		s.Logger.Warn("ingest.open_failed", "path", path, "error", err)
		return out, err
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			s.Logger.Warn("ingest.close_failed", "path", path, "error", err)
		}
	}(f)

	out.Filename, out.StoredPath, out.HashHex, err = s.Save(filepath.Base(path), f)
	return out, err
}

// IngestDirectory walks root, skips hidden entries if requested, and stages every PDF.
// Files whose content was already staged during this walk are reported as deduplicated.
func (s *Stager) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}
	absDir, _ := filepath.Abs(s.Dir)

	var results []IngestionResult
	var stats DirStats
	seen := map[string]string{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			// never re-ingest our own output
			if abs, _ := filepath.Abs(path); abs == absDir {
				return filepath.SkipDir
			}
			if skipHidden && path != root && IsHidden(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if (skipHidden && IsHidden(path)) || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		sum, err := hashFile(path)
		if err != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		if prev, dup := seen[sum]; dup {
			s.Logger.Info("ingest.deduplicated", "path", path, "same_as", prev)
			results = append(results, IngestionResult{SourcePath: path, HashHex: sum, Deduplicated: true})
			stats.Deduplicated++
			return nil
		}
		seen[sum] = path

		r, err := s.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
