package selector

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var selectorLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Keyword", Pattern: `(?i)\b(AND|OR|NOT|BETWEEN|LIKE|IN|IS|NULL|ESCAPE|TRUE|FALSE)\b`},
	{Name: "Ident", Pattern: `[a-zA-Z_$][a-zA-Z0-9_$.]*`},
	{Name: "Float", Pattern: `\d+\.\d*([eE][-+]?\d+)?|\.\d+([eE][-+]?\d+)?|\d+[eE][-+]?\d+`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "Operator", Pattern: `<>|<=|>=|[-+*/(),=<>]`},
})

var parser = participle.MustBuild[Expression](
	participle.Lexer(selectorLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Keyword"),
	participle.Map(unquote, "String"),
	participle.UseLookahead(4),
)

// unquote strips the surrounding quotes of a string literal and collapses
// doubled quotes.
func unquote(tok lexer.Token) (lexer.Token, error) {
	tok.Value = strings.ReplaceAll(tok.Value[1:len(tok.Value)-1], "''", "'")
	return tok, nil
}

// Expression is the root of a parsed selector: a disjunction of terms.
type Expression struct {
	Or []*AndExpr `parser:"@@ ( 'OR' @@ )*"`
}

type AndExpr struct {
	And []*NotExpr `parser:"@@ ( 'AND' @@ )*"`
}

type NotExpr struct {
	Not  *NotExpr   `parser:"  'NOT' @@"`
	Pred *Predicate `parser:"| @@"`
}

type Predicate struct {
	Left *Sum      `parser:"@@"`
	Tail *PredTail `parser:"@@?"`
}

type PredTail struct {
	Compare *Compare `parser:"  @@"`
	IsNull  *IsNull  `parser:"| @@"`
	Range   *Range   `parser:"| @@"`
}

type Compare struct {
	Op    string `parser:"@( '<>' | '<=' | '>=' | '=' | '<' | '>' )"`
	Right *Sum   `parser:"@@"`
}

type IsNull struct {
	Not bool `parser:"'IS' @'NOT'? 'NULL'"`
}

// Range covers the predicates that accept a leading NOT after the operand.
type Range struct {
	Not     bool     `parser:"@'NOT'?"`
	Between *Between `parser:"(  @@"`
	In      *In      `parser:" | @@"`
	Like    *Like    `parser:" | @@ )"`
}

type Between struct {
	Low  *Sum `parser:"'BETWEEN' @@"`
	High *Sum `parser:"'AND' @@"`
}

type In struct {
	Values []string `parser:"'IN' '(' @String ( ',' @String )* ')'"`
}

type Like struct {
	Pattern string  `parser:"'LIKE' @String"`
	Escape  *string `parser:"( 'ESCAPE' @String )?"`
}

type Sum struct {
	Left *Product `parser:"@@"`
	Ops  []*SumOp `parser:"@@*"`
}

type SumOp struct {
	Op    string   `parser:"@( '+' | '-' )"`
	Right *Product `parser:"@@"`
}

type Product struct {
	Left *Unary       `parser:"@@"`
	Ops  []*ProductOp `parser:"@@*"`
}

type ProductOp struct {
	Op    string `parser:"@( '*' | '/' )"`
	Right *Unary `parser:"@@"`
}

type Unary struct {
	Sign  string   `parser:"@( '-' | '+' )?"`
	Value *Primary `parser:"@@"`
}

type Primary struct {
	Float  *float64    `parser:"  @Float"`
	Int    *int64      `parser:"| @Int"`
	String *string     `parser:"| @String"`
	Bool   *Boolean    `parser:"| @( 'TRUE' | 'FALSE' )"`
	Null   bool        `parser:"| @'NULL'"`
	Ident  *string     `parser:"| @Ident"`
	Sub    *Expression `parser:"| '(' @@ ')'"`
}

// Boolean captures the TRUE and FALSE literals in any case.
type Boolean bool

func (b *Boolean) Capture(values []string) error {
	*b = Boolean(strings.EqualFold(values[0], "TRUE"))
	return nil
}
