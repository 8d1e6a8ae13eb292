package capture

import (
	"fmt"
	"slices"

	"go.uber.org/zap/zapcore"

	"github.com/coffersTech/logwindow/internal/model"
)

// FromZap snapshots a zap entry and its fields.
func (n *Normalizer) FromZap(ent zapcore.Entry, fields []zapcore.Field) *model.LogEvent {
	e := n.newEvent(ent.Time)
	e.Level = ent.Level.CapitalString()
	e.Message = ent.Message
	e.Logger = ent.LoggerName

	if ent.Caller.Defined {
		cs := extract(n, "location", func() callSite {
			return callSiteFrame(ent.Caller.Function, ent.Caller.File, ent.Caller.Line)
		})
		e.ClassName = cs.className
		e.FileName = cs.fileName
		e.MethodName = cs.methodName
		e.LineNumber = cs.line
	}

	props := make(map[string]string, len(fields))
	for _, f := range fields {
		switch {
		case f.Key == LoggerKey && f.Type == zapcore.StringType:
			e.Logger = f.String
			continue
		case f.Key == ThreadKey && f.Type == zapcore.StringType:
			e.Thread = f.String
			continue
		case f.Type == zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok {
				e.Exception = append(e.Exception, extract(n, "exception", func() []string {
					return errorLines(err)
				})...)
			}
		}
		for k, v := range extract(n, "properties", func() map[string]string {
			return fieldStrings(f)
		}) {
			props[k] = v
		}
	}
	if len(props) > 0 {
		e.Properties = props
	}

	if ent.Stack != "" {
		e.Exception = append(e.Exception, stackLines(ent.Stack)...)
	}
	if e.Thread == "" {
		e.Thread = extract(n, "thread", goroutineName)
	}
	return e
}

// fieldStrings encodes one zap field into string properties.
func fieldStrings(f zapcore.Field) map[string]string {
	enc := zapcore.NewMapObjectEncoder()
	f.AddTo(enc)
	out := make(map[string]string, len(enc.Fields))
	for k, v := range enc.Fields {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// ZapCore is a zapcore.Core that captures entries into a Sink. Tee it with
// the output core so the process's own logs become queryable.
type ZapCore struct {
	zapcore.LevelEnabler
	sink   Sink
	norm   *Normalizer
	fields []zapcore.Field
}

// NewZapCore creates a core feeding sink through norm for levels enabled
// by enab.
func NewZapCore(sink Sink, norm *Normalizer, enab zapcore.LevelEnabler) *ZapCore {
	return &ZapCore{LevelEnabler: enab, sink: sink, norm: norm}
}

func (c *ZapCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = slices.Concat(c.fields, fields)
	return &clone
}

func (c *ZapCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *ZapCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	c.sink.Append(c.norm.FromZap(ent, slices.Concat(c.fields, fields)))
	return nil
}

func (c *ZapCore) Sync() error {
	return nil
}
