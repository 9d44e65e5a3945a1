// Package selector parses and evaluates JMS message selectors, the SQL92
// conditional expression subset used to filter messages by header fields
// and properties.
package selector

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// ErrInvalid is the cause of every error returned by Parse.
var ErrInvalid = errors.New("invalid message selector")

// Resolver supplies identifier values during evaluation. Values may be
// bool, string or any Go integer or float type; anything else is treated as
// NULL.
type Resolver interface {
	Lookup(name string) (interface{}, bool)
}

// MapResolver resolves identifiers from a plain map.
type MapResolver map[string]interface{}

func (m MapResolver) Lookup(name string) (interface{}, bool) {
	v, ok := m[name]
	return v, ok
}

// Selector is a compiled message selector. A nil *Selector matches every
// message.
type Selector struct {
	src   string
	expr  *Expression
	likes map[*Like]*regexp.Regexp
}

// Parse compiles the selector text. Blank text yields a nil Selector.
func Parse(text string) (*Selector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	expr, err := parser.ParseString("", text)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalid, "%q: %v", text, err)
	}
	s := &Selector{src: text, expr: expr, likes: map[*Like]*regexp.Regexp{}}
	if err := s.compileExpr(expr); err != nil {
		return nil, errors.Wrapf(ErrInvalid, "%q: %v", text, err)
	}
	return s, nil
}

func (s *Selector) String() string {
	if s == nil {
		return ""
	}
	return s.src
}

// Matches reports whether the selector evaluates to TRUE. NULL and FALSE
// both reject the message.
func (s *Selector) Matches(r Resolver) bool {
	if s == nil {
		return true
	}
	return s.evalExpr(s.expr, r) == triTrue
}

func (s *Selector) compileExpr(e *Expression) error {
	for _, a := range e.Or {
		for _, n := range a.And {
			if err := s.compileNot(n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Selector) compileNot(n *NotExpr) error {
	if n.Not != nil {
		return s.compileNot(n.Not)
	}
	p := n.Pred
	if err := s.compileSum(p.Left); err != nil {
		return err
	}
	if p.Tail == nil {
		return nil
	}
	switch {
	case p.Tail.Compare != nil:
		return s.compileSum(p.Tail.Compare.Right)
	case p.Tail.Range != nil && p.Tail.Range.Between != nil:
		if err := s.compileSum(p.Tail.Range.Between.Low); err != nil {
			return err
		}
		return s.compileSum(p.Tail.Range.Between.High)
	case p.Tail.Range != nil && p.Tail.Range.Like != nil:
		re, err := likePattern(p.Tail.Range.Like)
		if err != nil {
			return err
		}
		s.likes[p.Tail.Range.Like] = re
	}
	return nil
}

func (s *Selector) compileSum(sum *Sum) error {
	products := []*Product{sum.Left}
	for _, op := range sum.Ops {
		products = append(products, op.Right)
	}
	for _, p := range products {
		unaries := []*Unary{p.Left}
		for _, op := range p.Ops {
			unaries = append(unaries, op.Right)
		}
		for _, u := range unaries {
			if u.Value.Sub != nil {
				if err := s.compileExpr(u.Value.Sub); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// likePattern translates a LIKE pattern into an anchored regular expression.
// '%' matches any sequence and '_' any single character.
func likePattern(l *Like) (*regexp.Regexp, error) {
	var escape rune = -1
	if l.Escape != nil {
		if utf8.RuneCountInString(*l.Escape) != 1 {
			return nil, errors.Errorf("ESCAPE must be a single character, got %q", *l.Escape)
		}
		escape, _ = utf8.DecodeRuneInString(*l.Escape)
	}

	var b strings.Builder
	b.WriteString("(?s)^")
	escaped := false
	for _, r := range l.Pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == escape:
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		return nil, errors.Errorf("pattern %q ends with the escape character", l.Pattern)
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
