package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSlog(sink Sink, opts *SlogOptions) *slog.Logger {
	return slog.New(NewSlogHandler(sink, NewNormalizer(fixedHost("test-host")), opts))
}

func TestSlogHandlerCapturesRecord(t *testing.T) {
	sink := &recordingSink{}
	logger := newSlog(sink, nil)

	logger.Warn("disk nearly full", "mount", "/var", "pct", 93)

	events := sink.all()
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "WARN", e.Level)
	assert.Equal(t, "disk nearly full", e.Message)
	assert.Equal(t, "slog", e.Logger)
	assert.Equal(t, "test-host", e.Host)
	assert.Equal(t, map[string]string{"mount": "/var", "pct": "93"}, e.Properties)
	assert.NotZero(t, e.Timestamp)
	assert.Regexp(t, `^goroutine-\d+$`, e.Thread)

	assert.Equal(t, "slog_test.go", e.FileName)
	assert.Equal(t, "TestSlogHandlerCapturesRecord", e.MethodName)
	assert.True(t, strings.HasSuffix(e.ClassName, "internal/capture"), e.ClassName)
	assert.Positive(t, e.LineNumber)
}

func TestSlogHandlerLevelThreshold(t *testing.T) {
	sink := &recordingSink{}
	logger := newSlog(sink, &SlogOptions{Level: slog.LevelWarn})

	logger.Info("ignored")
	logger.Error("kept")

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "ERROR", events[0].Level)
}

func TestSlogHandlerAttrsAndGroups(t *testing.T) {
	sink := &recordingSink{}
	logger := newSlog(sink, &SlogOptions{Logger: "api"}).
		With("service", "orders").
		WithGroup("req").
		With("id", "r-1")

	logger.Info("handled", "status", 200, slog.Group("user", "name", "bob"))

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "api", events[0].Logger)
	assert.Equal(t, map[string]string{
		"service":       "orders",
		"req.id":        "r-1",
		"req.status":    "200",
		"req.user.name": "bob",
	}, events[0].Properties)
}

func TestSlogHandlerDerivedHandlersAreIndependent(t *testing.T) {
	sink := &recordingSink{}
	base := newSlog(sink, nil).With("a", 1)
	left := base.With("b", 2)
	right := base.With("c", 3)

	left.Info("left")
	right.Info("right")

	events := sink.all()
	require.Len(t, events, 2)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, events[0].Properties)
	assert.Equal(t, map[string]string{"a": "1", "c": "3"}, events[1].Properties)
}

func TestSlogHandlerPromotesLoggerAndThread(t *testing.T) {
	sink := &recordingSink{}
	logger := newSlog(sink, nil)

	logger.Info("tick", LoggerKey, "scheduler", ThreadKey, "cron-1")

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "scheduler", events[0].Logger)
	assert.Equal(t, "cron-1", events[0].Thread)
	assert.Nil(t, events[0].Properties)
}

func TestSlogHandlerErrorBecomesException(t *testing.T) {
	sink := &recordingSink{}
	logger := newSlog(sink, nil)

	err := fmt.Errorf("save order: %w", errors.New("connection reset"))
	logger.Error("request failed", "err", err)

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, []string{"save order: connection reset"}, events[0].Exception)
	assert.Equal(t, "save order: connection reset", events[0].Properties["err"])
}

type panicValuer struct{}

func (panicValuer) String() string { panic("no string for you") }

func TestSlogHandlerSurvivesPanickingStringer(t *testing.T) {
	sink := &recordingSink{}
	logger := newSlog(sink, nil)

	logger.Info("still captured", "bad", panicValuer{}, "good", "yes")

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "still captured", events[0].Message)
	assert.Equal(t, "yes", events[0].Properties["good"])
	assert.Contains(t, events[0].Properties["bad"], "PANIC=")
}
