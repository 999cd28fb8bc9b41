package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/cottand/liquid/ty"
)

// enabledSections are the sections whose records below slog.LevelWarn get logged
var enabledSections = []string{
	"check",
	"resolve",
	"lower",
	"solver",
	"parser",
	"eval",
	"package",
	"cmd",
}

var level = new(slog.LevelVar)

var LoggerOpts = &slog.HandlerOptions{
	AddSource: true,
	Level:     level,
	ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == "time" {
			return slog.Attr{}
		}
		return a
	},
}

var DefaultLogger = New(os.Stderr)

func init() {
	level.Set(slog.LevelWarn)
}

// New returns a logger writing text records to w, filtered by section,
// which renders ty.Ty and ty.Predicate attributes lazily
func New(w io.Writer) *slog.Logger {
	return slog.New(TyHandler(&filteringHandler{underlying: slog.NewTextHandler(w, LoggerOpts)}))
}

// SetLevel changes the level of every logger created by this package
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Section returns DefaultLogger with the given section attribute
func Section(name string) *slog.Logger {
	return DefaultLogger.With("section", name)
}

var _ slog.Handler = &filteringHandler{}

type filteringHandler struct {
	underlying slog.Handler
	sections   []string
}

func (f filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return f.underlying.Enabled(ctx, level)
}

func (f filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level >= slog.LevelWarn || len(f.sections) > 0 {
		return f.underlying.Handle(ctx, record)
	}
	// first filter out records which do not match enabledSections
	wantSection := false
	record.Attrs(func(attr slog.Attr) bool {
		wantSection = wantSection || attr.Key == "section" && slices.ContainsFunc(enabledSections, func(section string) bool {
			return strings.HasPrefix(attr.Value.String(), section)
		})
		// iterate as long as we have not found our section
		return !wantSection
	})
	if !wantSection {
		return nil
	}
	return f.underlying.Handle(ctx, record)
}

func (f filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var newAttrs []slog.Attr
	sections := slices.Clone(f.sections)

	// keep the section attribute in filteringHandler
	for _, attr := range attrs {
		if attr.Key == "section" && slices.ContainsFunc(enabledSections, func(section string) bool {
			return section == attr.Value.String()
		}) {
			sections = append(sections, attr.Value.String())
		}
		newAttrs = append(newAttrs, attr)
	}
	return &filteringHandler{
		underlying: f.underlying.WithAttrs(newAttrs),
		sections:   sections,
	}
}

func (f filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{
		underlying: f.underlying.WithGroup(name),
		sections:   f.sections,
	}
}

// tyLogValuer wraps types and predicates so that they are only rendered
// if the record is actually written
type tyLogValuer struct{ value any }

func (l tyLogValuer) LogValue() slog.Value {
	switch value := l.value.(type) {
	case ty.Ty:
		return slog.StringValue(value.String())
	case ty.Predicate:
		return slog.StringValue(value.String())
	}
	return slog.AnyValue(l.value)
}

// TyHandler is a slog.Handler capable of lazy-printing types and predicates
func TyHandler(underlying slog.Handler) slog.Handler {
	return &tyLogHandler{underlying: underlying}
}

type tyLogHandler struct {
	underlying slog.Handler
}

func wrapTy(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindAny {
		return attr
	}
	switch attr.Value.Any().(type) {
	case ty.Ty, ty.Predicate:
		attr.Value = slog.AnyValue(tyLogValuer{attr.Value.Any()})
	}
	return attr
}

func (l *tyLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return l.underlying.Enabled(ctx, level)
}

func (l *tyLogHandler) Handle(ctx context.Context, record slog.Record) error {
	newRecord := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		newRecord.AddAttrs(wrapTy(attr))
		return true
	})
	return l.underlying.Handle(ctx, newRecord)
}

func (l *tyLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	wrapped := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		wrapped[i] = wrapTy(attr)
	}
	return TyHandler(l.underlying.WithAttrs(wrapped))
}

func (l *tyLogHandler) WithGroup(name string) slog.Handler {
	return TyHandler(l.underlying.WithGroup(name))
}
