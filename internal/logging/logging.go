// ABOUTME: slog logger construction: colorized console output, JSON, or a rotating log file
// ABOUTME: The REPL logs to a file so diagnostics never interleave with streamed answers

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/2389/moplexity-client/internal/config"
)

// ParseLevel maps a config level name to a slog level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger from cfg. Output goes to cfg.File (rotated) when set,
// otherwise to console. The returned closer releases the file; it is a no-op
// for console output.
func New(cfg config.LoggingConfig, console io.Writer) (*slog.Logger, io.Closer, error) {
	level := ParseLevel(cfg.Level)

	out := console
	var closer io.Closer = nopCloser{}
	colored := true

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		out = file
		closer = file
		colored = false
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	} else {
		handler = NewColorHandler(out, level, colored)
	}

	return slog.New(handler), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ColorHandler writes one human-readable line per record, colorized when
// enabled. Safe for concurrent use.
type ColorHandler struct {
	mu      *sync.Mutex
	w       io.Writer
	level   slog.Level
	colored bool
	attrs   []slog.Attr
	groups  []string
}

// NewColorHandler creates a handler writing to w.
func NewColorHandler(w io.Writer, level slog.Level, colored bool) *ColorHandler {
	return &ColorHandler{
		mu:      &sync.Mutex{},
		w:       w,
		level:   level,
		colored: colored,
	}
}

func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *ColorHandler) paint(c *color.Color, s string) string {
	if !h.colored {
		return s
	}
	return c.Sprint(s)
}

var (
	timeColor  = color.New(color.FgHiBlack)
	debugColor = color.New(color.FgMagenta)
	infoColor  = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
)

func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	buf.WriteString(h.paint(timeColor, r.Time.Format("15:04:05")+" "))

	switch {
	case r.Level >= slog.LevelError:
		buf.WriteString(h.paint(errorColor, "ERR "))
	case r.Level >= slog.LevelWarn:
		buf.WriteString(h.paint(warnColor, "WRN "))
	case r.Level >= slog.LevelInfo:
		buf.WriteString(h.paint(infoColor, "INF "))
	default:
		buf.WriteString(h.paint(debugColor, "DBG "))
	}

	buf.WriteString(r.Message)

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	// Handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		h.writeAttr(&buf, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&buf, prefix, a)
		return true
	})

	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, buf.String())
	return err
}

func (h *ColorHandler) writeAttr(buf *strings.Builder, prefix string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	buf.WriteString(h.paint(timeColor, " "+prefix+a.Key+"="))
	buf.WriteString(a.Value.String())
}

func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		a.Key = prefix + a.Key
		newAttrs = append(newAttrs, a)
	}
	c := *h
	c.attrs = newAttrs
	return &c
}

func (h *ColorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	c := *h
	c.groups = newGroups
	return &c
}
