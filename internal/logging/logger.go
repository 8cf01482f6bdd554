// Package logging builds the process logger: colored text for dev builds,
// JSON for released ones.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"smartenv/internal/config"
)

// Process identifies what is logging.
type Process struct {
	App     string
	Version string
	// Node is the local link address. Empty for processes that are not on
	// the link, like the dummy publisher.
	Node string
	// Output defaults to os.Stdout.
	Output io.Writer
}

func (p Process) attrs(withBuild bool, env string) []any {
	attrs := []any{"app", p.App}
	if p.Node != "" {
		attrs = append(attrs, "node", p.Node)
	}
	if withBuild {
		attrs = append(attrs, "version", p.Version, "env", env)
	}
	return attrs
}

// New returns a tint logger when p.Version is "dev" and a JSON logger
// otherwise. Every record carries the app and node.
func New(cfg config.Base, p Process) *slog.Logger {
	out := p.Output
	if out == nil {
		out = os.Stdout
	}

	if p.Version == "dev" {
		h := tint.NewHandler(out, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
			NoColor:    cfg.NoColor,
		})
		return slog.New(h).With(p.attrs(false, cfg.AppEnv)...)
	}

	h := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(p.attrs(true, cfg.AppEnv)...)
}
