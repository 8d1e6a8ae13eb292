// Package filterql parses a compact text form of model.LogFilter, e.g.
//
//	level:WARN,ERROR after:1700000000000 count:50 "connection refused"
//
// Every term narrows the filter. Bare words and quoted strings form the
// search text, joined by single spaces. Commas inside a bare word are kept
// (foo,bar searches for "foo,bar"). A word followed by ':' is always read
// as a key, and a bare AND is a connective, so search text containing ':'
// or the word AND must be quoted: "timeout: connection". Timestamps are
// unix milliseconds or quoted RFC 3339 times.
package filterql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coffersTech/logwindow/internal/model"
)

// Parser parses filter queries into a LogFilter.
type Parser struct {
	lexer   *Lexer
	current Token
	filter  model.LogFilter
	text    []string
}

// Parse parses the input string. An empty input yields an empty filter.
func Parse(input string) (*model.LogFilter, error) {
	p := &Parser{lexer: NewLexer(input)}
	p.advance()

	for p.current.Type != TokenEOF {
		if err := p.parseTerm(); err != nil {
			return nil, err
		}
	}

	p.filter.MatchesText = strings.Join(p.text, " ")
	return &p.filter, nil
}

func (p *Parser) advance() {
	p.current = p.lexer.NextToken()
}

// parseTerm handles key:value, bare words and quoted strings.
func (p *Parser) parseTerm() error {
	tok := p.current
	switch tok.Type {
	case TokenString:
		p.text = append(p.text, tok.Value)
		p.advance()
		return nil

	case TokenWord:
		p.advance()
		if p.current.Type == TokenComma {
			p.text = append(p.text, p.parseCommaText(tok.Value))
			return nil
		}
		if p.current.Type != TokenColon {
			if !strings.EqualFold(tok.Value, "AND") {
				p.text = append(p.text, tok.Value)
			}
			return nil
		}
		p.advance()
		values, err := p.parseValues(tok.Value)
		if err != nil {
			return err
		}
		return p.apply(tok, values)

	default:
		return fmt.Errorf("unexpected %v at offset %d", tok.Type, tok.Pos)
	}
}

// parseCommaText rebuilds search text such as foo,bar or foo,,bar that the
// lexer split at its commas.
func (p *Parser) parseCommaText(first string) string {
	parts := []string{first}
	for p.current.Type == TokenComma {
		p.advance()
		if p.current.Type == TokenWord || p.current.Type == TokenString {
			parts = append(parts, p.current.Value)
			p.advance()
		} else {
			parts = append(parts, "")
		}
	}
	return strings.Join(parts, ",")
}

// parseValues parses value (',' value)* after key:
func (p *Parser) parseValues(key string) ([]string, error) {
	var values []string
	for {
		if p.current.Type != TokenWord && p.current.Type != TokenString {
			return nil, fmt.Errorf("expected value after '%s:' but got %v at offset %d", key, p.current.Type, p.current.Pos)
		}
		values = append(values, p.current.Value)
		p.advance()

		if p.current.Type != TokenComma {
			return values, nil
		}
		p.advance()
	}
}

func (p *Parser) apply(key Token, values []string) error {
	switch strings.ToLower(key.Value) {
	case "level", "levels", "lvl":
		for _, v := range values {
			p.filter.Levels = append(p.filter.Levels, strings.ToUpper(v))
		}
		return nil

	case "before", "after":
		if len(values) != 1 {
			return fmt.Errorf("%s takes a single timestamp", key.Value)
		}
		ts, err := ParseTimestamp(values[0])
		if err != nil {
			return fmt.Errorf("%s: %w", key.Value, err)
		}
		if strings.EqualFold(key.Value, "before") {
			p.filter.BeforeTimestamp = &ts
		} else {
			p.filter.AfterTimestamp = &ts
		}
		return nil

	case "count", "limit":
		if len(values) != 1 {
			return fmt.Errorf("%s takes a single number", key.Value)
		}
		n, err := strconv.Atoi(values[0])
		if err != nil {
			return fmt.Errorf("%s: invalid number %q", key.Value, values[0])
		}
		p.filter.Count = n
		return nil

	case "text", "msg", "message":
		p.text = append(p.text, strings.Join(values, ","))
		return nil

	default:
		return fmt.Errorf("unknown key %q at offset %d", key.Value, key.Pos)
	}
}

// ParseTimestamp accepts unix milliseconds or an RFC 3339 time.
func ParseTimestamp(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return t.UnixMilli(), nil
}
