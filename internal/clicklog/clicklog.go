// Package clicklog is the durable, append-only, self-rotating click log.
//
// The active segment is a file of newline-terminated JSON records. Each append
// holds an in-process mutex and an exclusive flock on "<path>.lock", so
// records from concurrent goroutines and processes never interleave. When the
// active segment grows past MaxBytes it is renamed to
// "<path>.<YYYYMMDD-HHMMSS>" inside the same critical section and a fresh
// empty segment takes its place. Archived segments are never written again.
package clicklog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/clicktrail/clicktrail/internal/metrics"
	"github.com/clicktrail/clicktrail/internal/model"
)

// ArchiveLayout is the timestamp suffix of archived segments.
const ArchiveLayout = "20060102-150405"

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("click log is closed")

// Config controls a Logger.
type Config struct {
	Enabled  bool
	Path     string
	MaxBytes int64 // rotation threshold, 0 disables rotation
	Sync     bool  // fsync after every record
	Location *time.Location
}

// Logger appends click events to the active segment.
type Logger struct {
	cfg     Config
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time

	mu     sync.Mutex
	closed bool
}

// New creates a Logger. The directory of cfg.Path must already exist.
func New(cfg Config, logger *slog.Logger, m metrics.Recorder) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Logger{
		cfg:     cfg,
		logger:  logger.With("component", "clicklog"),
		metrics: m,
		now:     time.Now,
	}
}

// WithClock replaces the time source used for archive names.
func (l *Logger) WithClock(now func() time.Time) *Logger {
	l.now = now
	return l
}

// Enabled reports whether appends are written.
func (l *Logger) Enabled() bool {
	return l.cfg.Enabled
}

// Path returns the active segment path.
func (l *Logger) Path() string {
	return l.cfg.Path
}

// Append writes event as one record. It is a no-op when the log is disabled.
//
// The record is written with a single write call. A rotation failure after a
// successful write is logged and does not fail the append.
func (l *Logger) Append(ctx context.Context, event *model.ClickEvent) error {
	if !l.cfg.Enabled {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := Encode(event)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	unlock, err := lockFile(l.lockPath())
	if err != nil {
		return err
	}
	defer unlock()

	size, err := l.write(line)
	if err != nil {
		return err
	}

	if l.cfg.MaxBytes > 0 && size > l.cfg.MaxBytes {
		archive, err := l.rotate()
		if err != nil {
			l.logger.Error("click log rotation failed",
				"path", l.cfg.Path,
				"size", size,
				"error", err,
			)
			return nil
		}
		l.metrics.IncLogRotation()
		l.logger.Info("click log rotated",
			"archive", archive,
			"size", size,
		)
	}

	return nil
}

// write appends line to the active segment and returns the resulting size.
func (l *Logger) write(line []byte) (int64, error) {
	f, err := os.OpenFile(l.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open click log: %w", err)
	}
	defer f.Close()

	n, err := f.Write(line)
	if err == nil && n < len(line) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return 0, fmt.Errorf("write click log: %w", err)
	}

	if l.cfg.Sync {
		if err := f.Sync(); err != nil {
			return 0, fmt.Errorf("sync click log: %w", err)
		}
	}

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat click log: %w", err)
	}
	return info.Size(), nil
}

// rotate seals the active segment. Caller holds both locks.
func (l *Logger) rotate() (string, error) {
	base := l.cfg.Path + "." + l.now().In(l.cfg.Location).Format(ArchiveLayout)

	archive := base
	for i := 1; ; i++ {
		_, err := os.Lstat(archive)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("stat archive: %w", err)
		}
		archive = base + "-" + strconv.Itoa(i)
	}

	if err := os.Rename(l.cfg.Path, archive); err != nil {
		return "", fmt.Errorf("rename segment: %w", err)
	}

	f, err := os.OpenFile(l.cfg.Path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return archive, fmt.Errorf("create segment: %w", err)
	}
	if err := f.Close(); err != nil {
		return archive, fmt.Errorf("create segment: %w", err)
	}

	return archive, nil
}

// Segments returns archived segment paths, oldest first.
func (l *Logger) Segments() ([]string, error) {
	return Archives(l.cfg.Path)
}

// Ping checks that the log directory is reachable.
func (l *Logger) Ping(ctx context.Context) error {
	if !l.cfg.Enabled {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(filepath.Dir(l.cfg.Path))
	if err != nil {
		return fmt.Errorf("stat click log dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("click log dir %s is not a directory", filepath.Dir(l.cfg.Path))
	}
	return nil
}

// Close rejects further appends.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *Logger) lockPath() string {
	return l.cfg.Path + ".lock"
}

// Encode serializes event as one newline-terminated record.
// JSON string escaping guarantees the record has no embedded newline.
func Encode(event *model.ClickEvent) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(event); err != nil {
		return nil, fmt.Errorf("encode click event: %w", err)
	}
	return buf.Bytes(), nil
}

// Archives lists the archived segments of the active segment at path,
// oldest first.
func Archives(path string) ([]string, error) {
	dir := filepath.Dir(path)
	prefix := filepath.Base(path) + "."

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}

	type archive struct {
		path  string
		stamp string
		seq   int
	}

	var found []archive
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		stamp, seq, ok := parseArchiveSuffix(strings.TrimPrefix(name, prefix))
		if !ok {
			continue
		}
		found = append(found, archive{path: filepath.Join(dir, name), stamp: stamp, seq: seq})
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].stamp != found[j].stamp {
			return found[i].stamp < found[j].stamp
		}
		return found[i].seq < found[j].seq
	})

	paths := make([]string, len(found))
	for i, a := range found {
		paths[i] = a.path
	}
	return paths, nil
}

// parseArchiveSuffix splits "<ArchiveLayout>[-N]".
func parseArchiveSuffix(suffix string) (string, int, bool) {
	if len(suffix) < len(ArchiveLayout) {
		return "", 0, false
	}
	stamp, rest := suffix[:len(ArchiveLayout)], suffix[len(ArchiveLayout):]
	if _, err := time.Parse(ArchiveLayout, stamp); err != nil {
		return "", 0, false
	}
	if rest == "" {
		return stamp, 0, true
	}
	n, err := strconv.Atoi(strings.TrimPrefix(rest, "-"))
	if err != nil || n < 1 || rest[0] != '-' {
		return "", 0, false
	}
	return stamp, n, true
}
