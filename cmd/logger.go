package cmd

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/webitel/push-connect-service/config"
)

// ProvideLogger builds the process-wide *slog.Logger. Records fan out to a
// local handler (JSON or text, per LogConfig.Format) and to the OTel log
// bridge, so a collector attached to the global LoggerProvider sees the
// same records a human reading stdout does. With no collector configured
// the bridge writes to the otel no-op provider and costs nothing.
func ProvideLogger(cfg *config.Config) *slog.Logger {
	local := newLocalHandler(cfg.Log)
	bridge := otelslog.NewHandler(ServiceName)
	return slog.New(teeHandler{local: local, bridge: bridge})
}

func newLocalHandler(cfg config.LogConfig) slog.Handler {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// teeHandler sends every record to both the local and OTel-bridge
// handlers. Enabled is the OR of both so a record either side cares about
// still gets through.
type teeHandler struct {
	local  slog.Handler
	bridge slog.Handler
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return t.local.Enabled(ctx, level) || t.bridge.Enabled(ctx, level)
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	if t.local.Enabled(ctx, record.Level) {
		if err := t.local.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	if t.bridge.Enabled(ctx, record.Level) {
		return t.bridge.Handle(ctx, record.Clone())
	}
	return nil
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{local: t.local.WithAttrs(attrs), bridge: t.bridge.WithAttrs(attrs)}
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{local: t.local.WithGroup(name), bridge: t.bridge.WithGroup(name)}
}
