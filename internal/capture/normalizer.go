// Package capture turns log records from logging frameworks into
// immutable model.LogEvent snapshots and pushes them into a Sink.
package capture

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	"go.uber.org/zap"

	"github.com/coffersTech/logwindow/internal/model"
)

// Sink receives normalized events. engine.LogQuery implements it.
type Sink interface {
	Append(e *model.LogEvent)
}

// HostResolver returns the identity of the producing machine.
type HostResolver func() (string, error)

// DefaultHostResolver asks gopsutil for the host name and falls back to
// os.Hostname.
func DefaultHostResolver() (string, error) {
	if info, err := host.Info(); err == nil && info.Hostname != "" {
		return info.Hostname, nil
	}
	return os.Hostname()
}

// Normalizer copies the fields of framework-specific records into
// LogEvents. It never fails: a field whose extraction panics is logged
// and left empty.
type Normalizer struct {
	resolveHost HostResolver
	logger      *zap.Logger
	now         func() time.Time

	seq  atomic.Int64
	host atomic.Pointer[string]
	// hostRetryAt holds the unix nanos before which a failed host lookup
	// is not retried.
	hostRetryAt atomic.Int64
}

// hostRetryInterval spaces out host lookups after a failure.
const hostRetryInterval = time.Minute

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithHostResolver replaces DefaultHostResolver.
func WithHostResolver(r HostResolver) Option {
	return func(n *Normalizer) { n.resolveHost = r }
}

// WithHost pins the host name reported on every event.
func WithHost(name string) Option {
	return func(n *Normalizer) {
		if name != "" {
			n.host.Store(&name)
		}
	}
}

// WithLogger sets the logger used to report extraction failures. It must
// not feed back into a capture hook served by this Normalizer.
func WithLogger(l *zap.Logger) Option {
	return func(n *Normalizer) { n.logger = l }
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		resolveHost: DefaultHostResolver,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Host returns the cached host name, resolving it on first use. After a
// failed resolution events carry no host until hostRetryInterval passes.
func (n *Normalizer) Host() string {
	if h := n.host.Load(); h != nil {
		return *h
	}
	now := n.now()
	if now.UnixNano() < n.hostRetryAt.Load() {
		return ""
	}
	name, err := n.resolveHost()
	if err != nil || name == "" {
		n.hostRetryAt.Store(now.Add(hostRetryInterval).UnixNano())
		n.logger.Debug("host name unavailable", zap.Error(err))
		return ""
	}
	n.host.CompareAndSwap(nil, &name)
	return name
}

func (n *Normalizer) nextSeq() int64 {
	return n.seq.Add(1)
}

// extract runs fn and returns its result. A panic inside fn is logged and
// the zero value is returned so the field stays absent.
func extract[T any](n *Normalizer, field string, fn func() T) (v T) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v = zero
			n.logger.Warn("log field extraction failed",
				zap.String("field", field),
				zap.Any("panic", r))
		}
	}()
	return fn()
}

type callSite struct {
	className  string
	fileName   string
	methodName string
	line       int
}

// callSiteFrame resolves function, file and line into call-site fields.
func callSiteFrame(function, file string, line int) callSite {
	cs := callSite{line: line}
	if file != "" {
		cs.fileName = filepath.Base(file)
	}
	cs.className, cs.methodName = splitFunction(function)
	return cs
}

func callSiteFromPC(pc uintptr) callSite {
	if pc == 0 {
		return callSite{}
	}
	f, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	return callSiteFrame(f.Function, f.File, f.Line)
}

// splitFunction splits a runtime function name such as
// "example.com/app/store.(*Cache).Get" into the package-qualified
// receiver "example.com/app/store.Cache" and the method "Get". Plain
// functions keep the package as class name.
func splitFunction(fn string) (class, method string) {
	if fn == "" {
		return "", ""
	}
	start := strings.LastIndex(fn, "/") + 1
	dot := strings.Index(fn[start:], ".")
	if dot < 0 {
		return fn, ""
	}
	pkg, rest := fn[:start+dot], fn[start+dot+1:]

	if strings.HasPrefix(rest, "(") {
		if end := strings.Index(rest, ")."); end > 0 {
			recv := strings.TrimPrefix(rest[1:end], "*")
			return pkg + "." + recv, rest[end+2:]
		}
	}
	return pkg, rest
}

// goroutineName identifies the calling goroutine, e.g. "goroutine-42".
func goroutineName() string {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		if _, err := strconv.ParseUint(string(b[:i]), 10, 64); err == nil {
			return "goroutine-" + string(b[:i])
		}
	}
	return "goroutine"
}

// errorLines renders err with its detail verb, one entry per line.
func errorLines(err error) []string {
	if err == nil {
		return nil
	}
	text := strings.TrimRight(fmt.Sprintf("%+v", err), "\n")
	return strings.Split(text, "\n")
}

// stackLines splits a rendered stack trace, dropping blank lines.
func stackLines(stack string) []string {
	var lines []string
	for _, line := range strings.Split(stack, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// levelName maps slog levels onto the canonical DEBUG..FATAL names.
func levelName(l int) string {
	switch {
	case l < 0:
		return "DEBUG"
	case l < 4:
		return "INFO"
	case l < 8:
		return "WARN"
	case l < 12:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// newEvent starts an event with the fields every source shares.
func (n *Normalizer) newEvent(ts time.Time) *model.LogEvent {
	if ts.IsZero() {
		ts = n.now()
	}
	return &model.LogEvent{
		Timestamp: ts.UnixMilli(),
		Seq:       n.nextSeq(),
		Host:      n.Host(),
	}
}
