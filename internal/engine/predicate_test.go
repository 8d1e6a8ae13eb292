package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/logwindow/internal/model"
)

func TestComposeEmptyFilterIsNil(t *testing.T) {
	assert.Nil(t, Compose(nil))
	assert.Nil(t, Compose(&model.LogFilter{}))
	assert.Nil(t, Compose(&model.LogFilter{Levels: []string{""}, Count: 10}))
}

func TestComposeSingleAtomIsUsedDirectly(t *testing.T) {
	tests := []struct {
		name   string
		filter model.LogFilter
		kind   PredicateKind
	}{
		{"levels", model.LogFilter{Levels: []string{"WARN"}}, PredicateLevel},
		{"before", model.LogFilter{BeforeTimestamp: model.Int64(10)}, PredicateBefore},
		{"after", model.LogFilter{AfterTimestamp: model.Int64(10)}, PredicateAfter},
		{"text", model.LogFilter{MatchesText: "boom"}, PredicateText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Compose(&tt.filter)
			require.NotNil(t, p)
			assert.Equal(t, tt.kind, p.Kind)
			assert.Empty(t, p.Terms)
		})
	}
}

func TestComposeOrdersAndTerms(t *testing.T) {
	p := Compose(&model.LogFilter{
		MatchesText:     "x",
		AfterTimestamp:  model.Int64(1),
		BeforeTimestamp: model.Int64(9),
		Levels:          []string{"INFO"},
	})
	require.NotNil(t, p)
	require.Equal(t, PredicateAnd, p.Kind)

	var kinds []PredicateKind
	for _, term := range p.Terms {
		kinds = append(kinds, term.Kind)
	}
	assert.Equal(t, []PredicateKind{PredicateLevel, PredicateBefore, PredicateAfter, PredicateText}, kinds)
	assert.Equal(t, `AndPredicate[Level[INFO], Before(9), After(1), Text("x")]`, p.String())
}

func TestNilPredicateMatchesEverything(t *testing.T) {
	var p *Predicate
	assert.True(t, p.Matches(&model.LogEvent{}))
	assert.Equal(t, "<all>", p.String())
}

func TestLevelPredicate(t *testing.T) {
	p := Compose(&model.LogFilter{Levels: []string{"WARN", "ERROR"}})

	assert.True(t, p.Matches(&model.LogEvent{Level: "WARN"}))
	assert.True(t, p.Matches(&model.LogEvent{Level: "ERROR"}))
	assert.False(t, p.Matches(&model.LogEvent{Level: "INFO"}))
	assert.False(t, p.Matches(&model.LogEvent{Level: "warn"}), "level match is case-sensitive")
	assert.False(t, p.Matches(&model.LogEvent{}))
}

func TestTimestampPredicatesAreExclusive(t *testing.T) {
	before := Compose(&model.LogFilter{BeforeTimestamp: model.Int64(100)})
	after := Compose(&model.LogFilter{AfterTimestamp: model.Int64(100)})

	assert.True(t, before.Matches(&model.LogEvent{Timestamp: 99}))
	assert.False(t, before.Matches(&model.LogEvent{Timestamp: 100}))
	assert.True(t, after.Matches(&model.LogEvent{Timestamp: 101}))
	assert.False(t, after.Matches(&model.LogEvent{Timestamp: 100}))
}

func TestTextPredicateScope(t *testing.T) {
	p := Compose(&model.LogFilter{MatchesText: "needle"})

	tests := []struct {
		name  string
		event model.LogEvent
		want  bool
	}{
		{"message", model.LogEvent{Message: "a needle here"}, true},
		{"logger", model.LogEvent{Logger: "needle.pkg"}, true},
		{"thread", model.LogEvent{Thread: "needle-worker"}, true},
		{"class name", model.LogEvent{ClassName: "pkg.needleType"}, true},
		{"exception line", model.LogEvent{
			Message:   "failed",
			Exception: []string{"error: boom", "\tat pkg.needle(file.go:12)"},
		}, true},
		{"property value", model.LogEvent{Properties: map[string]string{"k": "needle"}}, true},
		{"property key", model.LogEvent{Properties: map[string]string{"needle": "v"}}, true},
		{"file name is not searched", model.LogEvent{FileName: "needle.go"}, false},
		{"host is not searched", model.LogEvent{Host: "needle"}, false},
		{"case-sensitive", model.LogEvent{Message: "NEEDLE"}, false},
		{"absent", model.LogEvent{Message: "hay"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Matches(&tt.event))
		})
	}
}

func TestAndPredicateRequiresAllTerms(t *testing.T) {
	p := Compose(&model.LogFilter{
		Levels:      []string{"WARN"},
		MatchesText: "disk",
	})

	assert.True(t, p.Matches(&model.LogEvent{Level: "WARN", Message: "disk full"}))
	assert.False(t, p.Matches(&model.LogEvent{Level: "ERROR", Message: "disk full"}))
	assert.False(t, p.Matches(&model.LogEvent{Level: "WARN", Message: "cpu hot"}))
}
