package capture

import (
	"context"
	"log/slog"
	"slices"

	"github.com/coffersTech/logwindow/internal/model"
)

// Attribute keys promoted to LogEvent fields instead of properties.
const (
	LoggerKey = "logger"
	ThreadKey = "thread"
)

// FromSlog snapshots an slog record. inherited holds attributes already
// flattened by the handler; the record's own attributes are flattened
// under groupPrefix. logger names the event unless an attribute named
// LoggerKey overrides it.
func (n *Normalizer) FromSlog(r slog.Record, logger string, inherited []slog.Attr, groupPrefix string) *model.LogEvent {
	e := n.newEvent(r.Time)
	e.Level = levelName(int(r.Level))
	e.Message = r.Message
	e.Logger = logger

	attrs := extract(n, "properties", func() []slog.Attr {
		out := slices.Clone(inherited)
		r.Attrs(func(a slog.Attr) bool {
			out = flattenAttr(out, groupPrefix, a)
			return true
		})
		return out
	})

	props := make(map[string]string, len(attrs))
	for _, a := range attrs {
		switch a.Key {
		case LoggerKey:
			e.Logger = a.Value.String()
			continue
		case ThreadKey:
			e.Thread = a.Value.String()
			continue
		}
		if a.Value.Kind() == slog.KindAny {
			if err, ok := a.Value.Any().(error); ok {
				e.Exception = append(e.Exception, extract(n, "exception", func() []string {
					return errorLines(err)
				})...)
			}
		}
		props[a.Key] = extract(n, "properties", a.Value.String)
	}
	if len(props) > 0 {
		e.Properties = props
	}

	if e.Thread == "" {
		e.Thread = extract(n, "thread", goroutineName)
	}

	cs := extract(n, "location", func() callSite { return callSiteFromPC(r.PC) })
	e.ClassName = cs.className
	e.FileName = cs.fileName
	e.MethodName = cs.methodName
	e.LineNumber = cs.line
	return e
}

// flattenAttr appends a to out, expanding groups into dotted keys.
func flattenAttr(out []slog.Attr, prefix string, a slog.Attr) []slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return out
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			out = flattenAttr(out, p, ga)
		}
		return out
	}
	a.Key = prefix + a.Key
	return append(out, a)
}

// SlogOptions configures a SlogHandler.
type SlogOptions struct {
	// Level is the minimum level captured. Defaults to slog.LevelInfo.
	Level slog.Leveler
	// Logger names captured events. Defaults to "slog".
	Logger string
}

// SlogHandler is an slog.Handler that captures every enabled record into
// a Sink on the calling goroutine.
type SlogHandler struct {
	sink   Sink
	norm   *Normalizer
	opts   SlogOptions
	attrs  []slog.Attr
	prefix string
}

// NewSlogHandler creates a handler feeding sink through norm.
func NewSlogHandler(sink Sink, norm *Normalizer, opts *SlogOptions) *SlogHandler {
	h := &SlogHandler{sink: sink, norm: norm}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}
	if h.opts.Logger == "" {
		h.opts.Logger = "slog"
	}
	return h
}

func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *SlogHandler) Handle(_ context.Context, r slog.Record) error {
	h.sink.Append(h.norm.FromSlog(r, h.opts.Logger, h.attrs, h.prefix))
	return nil
}

func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = slices.Clip(h.attrs)
	for _, a := range attrs {
		h2.attrs = flattenAttr(h2.attrs, h.prefix, a)
	}
	return &h2
}

func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}
