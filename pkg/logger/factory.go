package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Deployment environments understood by WithEnvironment.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

type options struct {
	level      slog.Level
	format     Format
	out        io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
}

type Option func(*options)

// WithEnvironment picks level and format for env and stamps every record
// with env and service. Unknown environments count as development.
func WithEnvironment(env, service string) Option {
	return func(o *options) {
		switch strings.ToLower(env) {
		case EnvProduction, "prod":
			env, o.level, o.format = EnvProduction, slog.LevelInfo, FormatJSON
		case EnvStaging, "stage":
			env, o.level, o.format = EnvStaging, slog.LevelInfo, FormatJSON
		default:
			env, o.level, o.format = EnvDevelopment, slog.LevelDebug, FormatText
		}
		o.attrs = append(o.attrs, slog.String("env", env))
		if service != "" {
			o.attrs = append(o.attrs, slog.String("service", service))
		}
	}
}

// WithLevel overrides the level by name ("debug", "warn", ...). An empty
// name keeps the current level. Panics on anything else.
func WithLevel(name string) Option {
	return func(o *options) {
		if name == "" {
			return
		}
		if err := o.level.UnmarshalText([]byte(name)); err != nil {
			panic(fmt.Errorf("logger: %w", err))
		}
	}
}

// WithFormat panics on unknown formats so a bad deploy fails at startup.
func WithFormat(f Format) Option {
	return func(o *options) {
		if f != FormatJSON && f != FormatText {
			panic(fmt.Errorf("logger: unknown format %q", f))
		}
		o.format = f
	}
}

func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.out = w
		}
	}
}

// WithContextValue logs ctx.Value(key) as name on every record that has it.
func WithContextValue(name string, key any) Option {
	return func(o *options) {
		if name == "" || key == nil {
			return
		}
		o.extractors = append(o.extractors, func(ctx context.Context) (slog.Attr, bool) {
			v := ctx.Value(key)
			return slog.Any(name, v), v != nil
		})
	}
}

// New builds a logger writing JSON at info level to stdout unless
// options say otherwise.
func New(opts ...Option) *slog.Logger {
	o := &options{level: slog.LevelInfo, format: FormatJSON, out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	ho := &slog.HandlerOptions{Level: o.level}
	var h slog.Handler = slog.NewJSONHandler(o.out, ho)
	if o.format == FormatText {
		h = slog.NewTextHandler(o.out, ho)
	}
	if len(o.attrs) > 0 {
		h = h.WithAttrs(o.attrs)
	}
	if len(o.extractors) > 0 {
		h = &contextHandler{next: h, extractors: o.extractors}
	}
	return slog.New(h)
}

func SetAsDefault(l *slog.Logger) { slog.SetDefault(l) }

// Discard drops every record.
func Discard() *slog.Logger { return slog.New(slog.DiscardHandler) }
