package engine

import (
	"slices"
	"strconv"
	"strings"

	"github.com/coffersTech/logwindow/internal/model"
)

// PredicateKind tags the variant held by a Predicate.
type PredicateKind uint8

const (
	PredicateLevel PredicateKind = iota + 1
	PredicateBefore
	PredicateAfter
	PredicateText
	PredicateAnd
)

func (k PredicateKind) String() string {
	switch k {
	case PredicateLevel:
		return "Level"
	case PredicateBefore:
		return "Before"
	case PredicateAfter:
		return "After"
	case PredicateText:
		return "Text"
	case PredicateAnd:
		return "And"
	default:
		return "Unknown"
	}
}

// Predicate is a boolean test over a LogEvent. Only the fields for its
// Kind are set. A nil *Predicate matches every event.
type Predicate struct {
	Kind      PredicateKind
	Levels    map[string]struct{} // Level
	Timestamp int64               // Before, After
	Text      string              // Text
	Terms     []*Predicate        // And
}

// Compose builds the predicate for filter. It returns nil when the filter
// sets no criteria. Atoms are combined in the order level, before, after,
// text so cheaper checks run first.
func Compose(filter *model.LogFilter) *Predicate {
	if filter == nil {
		return nil
	}

	var terms []*Predicate
	if levels := filter.LevelsSet(); len(levels) > 0 {
		terms = append(terms, &Predicate{Kind: PredicateLevel, Levels: levels})
	}
	if filter.BeforeTimestamp != nil {
		terms = append(terms, &Predicate{Kind: PredicateBefore, Timestamp: *filter.BeforeTimestamp})
	}
	if filter.AfterTimestamp != nil {
		terms = append(terms, &Predicate{Kind: PredicateAfter, Timestamp: *filter.AfterTimestamp})
	}
	if filter.MatchesText != "" {
		terms = append(terms, &Predicate{Kind: PredicateText, Text: filter.MatchesText})
	}

	switch len(terms) {
	case 0:
		return nil
	case 1:
		return terms[0]
	default:
		return &Predicate{Kind: PredicateAnd, Terms: terms}
	}
}

// Matches reports whether e satisfies p.
func (p *Predicate) Matches(e *model.LogEvent) bool {
	if p == nil {
		return true
	}

	switch p.Kind {
	case PredicateLevel:
		if e.Level == "" {
			return false
		}
		_, ok := p.Levels[e.Level]
		return ok
	case PredicateBefore:
		return e.Timestamp < p.Timestamp
	case PredicateAfter:
		return e.Timestamp > p.Timestamp
	case PredicateText:
		return matchesText(p.Text, e)
	case PredicateAnd:
		for _, term := range p.Terms {
			if !term.Matches(e) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// matchesText is a case-sensitive substring search over the event's text
// fields, its exception lines and its rendered properties.
func matchesText(text string, e *model.LogEvent) bool {
	for _, s := range [...]string{e.ClassName, e.Message, e.Logger, e.Thread} {
		if strings.Contains(s, text) {
			return true
		}
	}
	for _, line := range e.Exception {
		if strings.Contains(line, text) {
			return true
		}
	}
	if e.Properties != nil && strings.Contains(e.PropertiesString(), text) {
		return true
	}
	return false
}

func (p *Predicate) String() string {
	if p == nil {
		return "<all>"
	}

	switch p.Kind {
	case PredicateLevel:
		levels := make([]string, 0, len(p.Levels))
		for l := range p.Levels {
			levels = append(levels, l)
		}
		slices.Sort(levels)
		return "Level[" + strings.Join(levels, ",") + "]"
	case PredicateBefore, PredicateAfter:
		return p.Kind.String() + "(" + strconv.FormatInt(p.Timestamp, 10) + ")"
	case PredicateText:
		return "Text(" + strconv.Quote(p.Text) + ")"
	case PredicateAnd:
		parts := make([]string, len(p.Terms))
		for i, term := range p.Terms {
			parts[i] = term.String()
		}
		return "AndPredicate[" + strings.Join(parts, ", ") + "]"
	default:
		return p.Kind.String()
	}
}
