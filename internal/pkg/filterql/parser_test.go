package filterql

import (
	"reflect"
	"testing"

	"github.com/coffersTech/logwindow/internal/model"
)

func TestLexer(t *testing.T) {
	tests := []struct {
		input    string
		expected []TokenType
	}{
		{"level:WARN", []TokenType{TokenWord, TokenColon, TokenWord, TokenEOF}},
		{`text:"disk full"`, []TokenType{TokenWord, TokenColon, TokenString, TokenEOF}},
		{"level:WARN,ERROR", []TokenType{TokenWord, TokenColon, TokenWord, TokenComma, TokenWord, TokenEOF}},
		{"  timeout  ", []TokenType{TokenWord, TokenEOF}},
		{"", []TokenType{TokenEOF}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lexer := NewLexer(tt.input)
			for i, expected := range tt.expected {
				tok := lexer.NextToken()
				if tok.Type != expected {
					t.Errorf("token %d: expected %v, got %v (%q)", i, expected, tok.Type, tok.Value)
				}
			}
		})
	}
}

func TestLexerStringEscapes(t *testing.T) {
	tok := NewLexer(`"say \"hi\" \\ now"`).NextToken()
	if tok.Type != TokenString || tok.Value != `say "hi" \ now` {
		t.Errorf("unexpected token %+v", tok)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  model.LogFilter
	}{
		{"", model.LogFilter{}},
		{"level:warn", model.LogFilter{Levels: []string{"WARN"}}},
		{"level:WARN,error lvl:FATAL", model.LogFilter{Levels: []string{"WARN", "ERROR", "FATAL"}}},
		{"before:200 after:100", model.LogFilter{BeforeTimestamp: model.Int64(200), AfterTimestamp: model.Int64(100)}},
		{`after:"2024-01-02T03:04:05Z"`, model.LogFilter{AfterTimestamp: model.Int64(1704164645000)}},
		{"count:25", model.LogFilter{Count: 25}},
		{"limit:-1", model.LogFilter{Count: -1}},
		{"timeout", model.LogFilter{MatchesText: "timeout"}},
		{`connection "reset by peer"`, model.LogFilter{MatchesText: "connection reset by peer"}},
		{`text:"a,b"`, model.LogFilter{MatchesText: "a,b"}},
		{"level:ERROR AND db", model.LogFilter{Levels: []string{"ERROR"}, MatchesText: "db"}},
		{"foo,bar", model.LogFilter{MatchesText: "foo,bar"}},
		{"level:WARN foo,,bar baz", model.LogFilter{Levels: []string{"WARN"}, MatchesText: "foo,,bar baz"}},
		{"retry,", model.LogFilter{MatchesText: "retry,"}},
		{`a,"b c"`, model.LogFilter{MatchesText: "a,b c"}},
		{`"AND"`, model.LogFilter{MatchesText: "AND"}},
		{`"timeout: connection"`, model.LogFilter{MatchesText: "timeout: connection"}},
		{`level:ERROR count:5 "pool exhausted" after:10`, model.LogFilter{
			Levels:         []string{"ERROR"},
			Count:          5,
			MatchesText:    "pool exhausted",
			AfterTimestamp: model.Int64(10),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if !reflect.DeepEqual(*got, tt.want) {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, *got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		"host:web-1",
		"level:",
		"before:yesterday",
		"after:1,2",
		"count:many",
		":WARN",
		"level:WARN,",
		"timeout: connection",
		"foo,level:WARN",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			if f, err := Parse(input); err == nil {
				t.Errorf("Parse(%q) = %+v, expected error", input, f)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	if ts, err := ParseTimestamp("1700000000000"); err != nil || ts != 1700000000000 {
		t.Errorf("unix millis: got %d, %v", ts, err)
	}
	if ts, err := ParseTimestamp("1970-01-01T00:00:01.5Z"); err != nil || ts != 1500 {
		t.Errorf("rfc3339: got %d, %v", ts, err)
	}
	if _, err := ParseTimestamp("soon"); err == nil {
		t.Error("expected error")
	}
}
