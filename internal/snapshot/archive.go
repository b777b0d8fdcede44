package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mgnrega-tn/backend/internal/metrics"
	"github.com/mgnrega-tn/backend/pkg/logger"
)

const DefaultMaxFiles = 5

// Archive is a directory of immutable upstream snapshots named
// <unix-seconds>.json.
type Archive struct {
	dir      string
	maxFiles int
}

func NewArchive(dir string, maxFiles int) *Archive {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	return &Archive{dir: dir, maxFiles: maxFiles}
}

func (a *Archive) Dir() string {
	return a.dir
}

// Write persists payload verbatim as the snapshot for instant at. Existing
// snapshots are never overwritten.
func (a *Archive) Write(ctx context.Context, at time.Time, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, payload, "", "  "); err != nil {
		return "", fmt.Errorf("failed to format snapshot: %w", err)
	}
	pretty.WriteByte('\n')

	path := filepath.Join(a.dir, strconv.FormatInt(at.Unix(), 10)+".json")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot: %w", err)
	}

	if _, err := f.Write(pretty.Bytes()); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close snapshot: %w", err)
	}

	logger.Info("Saved raw snapshot", zap.String("path", path), zap.Int("bytes", pretty.Len()))
	return path, nil
}

// Recent lists at most maxFiles snapshot paths, newest first.
func (a *Archive) Recent() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(a.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	if len(files) > a.maxFiles {
		files = files[:a.maxFiles]
	}
	return files, nil
}

// FindDistrict returns the monthly rows for district name from the most
// recent snapshot that mentions it, sorted by (year, month). Only the first
// matching file is used. It returns nil when the archive directory does not
// exist or no recent snapshot matches.
func (a *Archive) FindDistrict(ctx context.Context, name string) ([]Row, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return nil, nil
	}

	info, err := os.Stat(a.dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot dir: %w", err)
	}

	files, err := a.Recent()
	if err != nil {
		return nil, err
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		metrics.SnapshotFilesScanned.Inc()
		rows, err := matchFile(path, want)
		if err != nil {
			logger.Warn("Skipping unreadable snapshot", zap.String("path", path), zap.Error(err))
			continue
		}
		if len(rows) > 0 {
			logger.Debug("Snapshot match",
				zap.String("path", path),
				zap.String("district", name),
				zap.Int("rows", len(rows)),
			)
			return rows, nil
		}
	}

	return nil, nil
}

func matchFile(path, want string) ([]Row, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	records, err := DecodeRecords(doc)
	if err != nil {
		return nil, err
	}

	type period struct{ year, month int }
	byPeriod := make(map[period]Row)

	for i, r := range records {
		district := r.District()
		if district == "" || strings.ToLower(district) != want {
			continue
		}

		row, err := r.Normalize()
		if err != nil {
			logger.Debug("Skipping snapshot record", zap.String("path", path), zap.Int("index", i), zap.Error(err))
			continue
		}
		// later records for the same period replace earlier ones
		byPeriod[period{row.Year, row.Month}] = row
	}

	if len(byPeriod) == 0 {
		return nil, nil
	}

	rows := make([]Row, 0, len(byPeriod))
	for _, row := range byPeriod {
		rows = append(rows, row)
	}
	SortRows(rows)
	return rows, nil
}

// SortRows orders rows by (year, month) ascending.
func SortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Year != rows[j].Year {
			return rows[i].Year < rows[j].Year
		}
		return rows[i].Month < rows[j].Month
	})
}
