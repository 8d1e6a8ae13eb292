package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPropertiesString(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]string
		want  string
	}{
		{"nil", nil, ""},
		{"empty", map[string]string{}, "{}"},
		{"single", map[string]string{"user": "42"}, "{user=42}"},
		{"sorted", map[string]string{"b": "2", "a": "1", "c": "3"}, "{a=1, b=2, c=3}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &LogEvent{Properties: tt.props}
			assert.Equal(t, tt.want, e.PropertiesString())
		})
	}
}

func TestLevelsSetSkipsEmpty(t *testing.T) {
	f := &LogFilter{Levels: []string{"WARN", "", "ERROR", "WARN"}}
	set := f.LevelsSet()

	assert.Len(t, set, 2)
	assert.Contains(t, set, "WARN")
	assert.Contains(t, set, "ERROR")
}

func TestEmptyResults(t *testing.T) {
	r := EmptyResults()

	assert.Empty(t, r.Events)
	assert.NotNil(t, r.Events)
	assert.Equal(t, int64(math.MaxInt64), r.FromTimestamp)
	assert.Equal(t, int64(math.MinInt64), r.ToTimestamp)
	assert.True(t, r.Empty())

	r.FromTimestamp, r.ToTimestamp = 0, 0
	assert.False(t, r.Empty())
}
