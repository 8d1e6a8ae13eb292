package model

import (
	"math"
	"sort"
	"strings"
)

// LogEvent is a snapshot of one captured log record.
// Events are shared by pointer between the buffer and query results and
// must not be modified after construction.
type LogEvent struct {
	Timestamp  int64             `json:"timestamp"` // unix millis
	Seq        int64             `json:"seq"`
	Level      string            `json:"level,omitempty"`
	Logger     string            `json:"logger,omitempty"`
	Thread     string            `json:"thread,omitempty"`
	ClassName  string            `json:"className,omitempty"`
	FileName   string            `json:"fileName,omitempty"`
	MethodName string            `json:"methodName,omitempty"`
	LineNumber int               `json:"lineNumber,omitempty"`
	Message    string            `json:"message,omitempty"`
	Exception  []string          `json:"exception,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	Host       string            `json:"host,omitempty"`
}

// PropertiesString renders the properties as {k1=v1, k2=v2} with keys
// sorted. A nil map renders as the empty string.
func (e *LogEvent) PropertiesString() string {
	if e.Properties == nil {
		return ""
	}
	keys := make([]string, 0, len(e.Properties))
	for k := range e.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(e.Properties[k])
	}
	sb.WriteByte('}')
	return sb.String()
}

// LogFilter describes a query over the buffer. Zero values disable the
// corresponding criterion.
type LogFilter struct {
	Levels          []string `json:"levels,omitempty"`
	BeforeTimestamp *int64   `json:"beforeTimestamp,omitempty"`
	AfterTimestamp  *int64   `json:"afterTimestamp,omitempty"`
	MatchesText     string   `json:"matchesText,omitempty"`
	Count           int      `json:"count,omitempty"`
}

// LevelsSet returns the accepted levels as a set. Empty level names are skipped.
func (f *LogFilter) LevelsSet() map[string]struct{} {
	set := make(map[string]struct{}, len(f.Levels))
	for _, l := range f.Levels {
		if l == "" {
			continue
		}
		set[l] = struct{}{}
	}
	return set
}

// LogResults is the outcome of a query. FromTimestamp and ToTimestamp
// bound every event scanned, matched or not.
type LogResults struct {
	Events        []*LogEvent `json:"events"`
	FromTimestamp int64       `json:"fromTimestamp"`
	ToTimestamp   int64       `json:"toTimestamp"`
}

// EmptyResults returns results for a scan that saw no events. The bounds
// are inverted sentinels so callers can tell "no events" from a real range.
func EmptyResults() LogResults {
	return LogResults{
		Events:        []*LogEvent{},
		FromTimestamp: math.MaxInt64,
		ToTimestamp:   math.MinInt64,
	}
}

// Empty reports whether the scan that produced r saw no events.
func (r LogResults) Empty() bool {
	return r.FromTimestamp == math.MaxInt64 && r.ToTimestamp == math.MinInt64
}

// Int64 returns a pointer to v, for building filters.
func Int64(v int64) *int64 {
	return &v
}
