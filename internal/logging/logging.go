// Package logging provides the runtime's structured logger: JSON-lines
// output over log/slog with secret redaction applied before serialization,
// and a daily/size-based rotating writer.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config controls where and how log lines are written.
type Config struct {
	File    string // path to the log file; empty disables file output
	Level   string // debug|info|warn|error
	Stdout  bool   // also write to stdout
	MaxDays int    // archives older than this are deleted; 0 disables
	MaxMB   int    // size-based rotation threshold in MB; 0 disables
}

func levelFromString(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds the root logger for the process. module/event fields are
// supplied per call site via slog's With/attributes, following the
// runtime-wide convention of {ts, level, module, event, ...fields}.
func New(cfg Config) (*slog.Logger, func() error, error) {
	var writers []io.Writer
	var closer func() error = func() error { return nil }

	if cfg.Stdout || cfg.File == "" {
		writers = append(writers, os.Stdout)
	}
	if cfg.File != "" {
		rw, err := newRotatingWriter(cfg.File, cfg.MaxMB, cfg.MaxDays)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, rw)
		closer = rw.Close
	}

	var out io.Writer = io.Discard
	if len(writers) == 1 {
		out = writers[0]
	} else if len(writers) > 1 {
		out = io.MultiWriter(writers...)
	}

	handler := &redactingHandler{
		inner: slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: levelFromString(cfg.Level),
		}),
	}
	return slog.New(handler), closer, nil
}

// redactingHandler wraps another slog.Handler, scrubbing secrets from every
// attribute (recursing into groups, maps, and slices) and from the message
// itself before delegating to the wrapped handler.
type redactingHandler struct {
	inner slog.Handler
	group string
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	nr := slog.NewRecord(r.Time, r.Level, redactFreeText(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, nr)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = redactAttr(a)
	}
	return &redactingHandler{inner: h.inner.WithAttrs(out), group: h.group}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{inner: h.inner.WithGroup(name), group: name}
}

func redactAttr(a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, redacted)
	}
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, redactString(a.Value.String()))
	case slog.KindAny:
		return slog.Any(a.Key, redactValue(a.Key, a.Value.Any()))
	case slog.KindGroup:
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	default:
		return a
	}
}

// rotatingWriter appends to a file, renaming it to a dated archive when it
// exceeds maxMB, and pruning archives older than maxDays. It mirrors the
// external log-rotation collaborator described by the runtime's design:
// daily + size-based rename to <stem>.YYYY-MM-DD.log.
type rotatingWriter struct {
	mu      sync.Mutex
	path    string
	maxMB   int
	maxDays int
	f       *os.File
	size    int64
	day     string
}

func newRotatingWriter(path string, maxMB, maxDays int) (*rotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	rw := &rotatingWriter{path: path, maxMB: maxMB, maxDays: maxDays}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

func (rw *rotatingWriter) open() error {
	f, err := os.OpenFile(rw.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	rw.f = f
	rw.size = info.Size()
	rw.day = time.Now().Format("2006-01-02")
	return nil
}

func (rw *rotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	needRotate := today != rw.day
	if rw.maxMB > 0 && rw.size+int64(len(p)) > int64(rw.maxMB)*1024*1024 {
		needRotate = true
	}
	if needRotate {
		if err := rw.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := rw.f.Write(p)
	rw.size += int64(n)
	return n, err
}

func (rw *rotatingWriter) rotate() error {
	if rw.f != nil {
		rw.f.Close()
	}
	archive := fmt.Sprintf("%s.%s.log", stripExt(rw.path), rw.day)
	if _, err := os.Stat(rw.path); err == nil {
		_ = os.Rename(rw.path, archive)
	}
	if err := rw.open(); err != nil {
		return err
	}
	rw.pruneOld()
	return nil
}

func (rw *rotatingWriter) pruneOld() {
	if rw.maxDays <= 0 {
		return
	}
	dir := filepath.Dir(rw.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -rw.maxDays)
	stem := filepath.Base(stripExt(rw.path))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) < len(stem) || name[:len(stem)] != stem {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}

func (rw *rotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.f != nil {
		return rw.f.Close()
	}
	return nil
}

func stripExt(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)]
}
