package lib

import (
	"log/slog"
	"os"
)

// InitLogger installs the default slog logger: readable text with debug level
// locally, JSON otherwise.
func InitLogger(cfg Config) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if cfg.Env == "local" {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
