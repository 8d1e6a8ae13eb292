package capture

import (
	"math"
	"strings"
	"time"

	"github.com/valyala/fastjson"

	"github.com/coffersTech/logwindow/internal/model"
)

// FromJSON snapshots a record pushed over the ingest API. Recognized keys:
// timestamp (unix millis, integer or float), level, logger, thread,
// className, fileName, methodName, lineNumber, message (or msg), exception
// (array of lines or a single string), properties (object) and host. Values
// of the wrong type leave the field empty. A record without a numeric
// timestamp is stamped with the current time.
func (n *Normalizer) FromJSON(v *fastjson.Value) *model.LogEvent {
	e := n.newEvent(jsonTime(v.Get("timestamp")))

	e.Level = strings.ToUpper(jsonString(v, "level"))
	e.Logger = jsonString(v, "logger")
	e.Thread = jsonString(v, "thread")
	e.ClassName = jsonString(v, "className")
	e.FileName = jsonString(v, "fileName")
	e.MethodName = jsonString(v, "methodName")
	e.LineNumber = v.GetInt("lineNumber")

	e.Message = jsonString(v, "message")
	if e.Message == "" {
		e.Message = jsonString(v, "msg")
	}
	if h := jsonString(v, "host"); h != "" {
		e.Host = h
	}

	e.Exception = extract(n, "exception", func() []string {
		return jsonLines(v.Get("exception"))
	})
	e.Properties = extract(n, "properties", func() map[string]string {
		return jsonProperties(v.Get("properties"))
	})
	return e
}

// jsonTime reads unix millis written as any JSON number. Fractions of a
// millisecond are truncated. A missing or non-numeric value yields the zero
// time.
func jsonTime(v *fastjson.Value) time.Time {
	if v == nil || v.Type() != fastjson.TypeNumber {
		return time.Time{}
	}
	if ms, err := v.Int64(); err == nil {
		return time.UnixMilli(ms)
	}
	f, err := v.Float64()
	if err != nil || math.IsNaN(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return time.Time{}
	}
	return time.UnixMilli(int64(f))
}

func jsonString(v *fastjson.Value, key string) string {
	return string(v.GetStringBytes(key))
}

func jsonLines(v *fastjson.Value) []string {
	if v == nil {
		return nil
	}
	switch v.Type() {
	case fastjson.TypeString:
		return stackLines(string(v.GetStringBytes()))
	case fastjson.TypeArray:
		var lines []string
		for _, item := range v.GetArray() {
			if b, err := item.StringBytes(); err == nil {
				lines = append(lines, string(b))
			}
		}
		return lines
	default:
		return nil
	}
}

func jsonProperties(v *fastjson.Value) map[string]string {
	if v == nil {
		return nil
	}
	obj, err := v.Object()
	if err != nil || obj.Len() == 0 {
		return nil
	}
	props := make(map[string]string, obj.Len())
	obj.Visit(func(key []byte, val *fastjson.Value) {
		if val.Type() == fastjson.TypeString {
			props[string(key)] = string(val.GetStringBytes())
			return
		}
		props[string(key)] = val.String()
	})
	return props
}

// FromLine snapshots a line of plain text as a message-only event.
func (n *Normalizer) FromLine(line string) *model.LogEvent {
	e := n.newEvent(time.Time{})
	e.Message = line
	return e
}
