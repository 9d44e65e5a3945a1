package selector

// tri is a value in SQL three-valued logic.
type tri int8

const (
	triUnknown tri = iota
	triFalse
	triTrue
)

func triOf(b bool) tri {
	if b {
		return triTrue
	}
	return triFalse
}

func (t tri) not() tri {
	switch t {
	case triTrue:
		return triFalse
	case triFalse:
		return triTrue
	}
	return triUnknown
}

func (s *Selector) evalExpr(e *Expression, r Resolver) tri {
	result := triFalse
	for _, a := range e.Or {
		switch s.evalAnd(a, r) {
		case triTrue:
			return triTrue
		case triUnknown:
			result = triUnknown
		}
	}
	return result
}

func (s *Selector) evalAnd(a *AndExpr, r Resolver) tri {
	result := triTrue
	for _, n := range a.And {
		switch s.evalNot(n, r) {
		case triFalse:
			return triFalse
		case triUnknown:
			result = triUnknown
		}
	}
	return result
}

func (s *Selector) evalNot(n *NotExpr, r Resolver) tri {
	if n.Not != nil {
		return s.evalNot(n.Not, r).not()
	}
	return s.evalPredicate(n.Pred, r)
}

func (s *Selector) evalPredicate(p *Predicate, r Resolver) tri {
	left := s.evalSum(p.Left, r)
	if p.Tail == nil {
		if b, ok := left.(bool); ok {
			return triOf(b)
		}
		return triUnknown
	}

	t := p.Tail
	switch {
	case t.Compare != nil:
		return compare(t.Compare.Op, left, s.evalSum(t.Compare.Right, r))

	case t.IsNull != nil:
		return triOf((left == nil) != t.IsNull.Not)

	case t.Range.Between != nil:
		low := s.evalSum(t.Range.Between.Low, r)
		high := s.evalSum(t.Range.Between.High, r)
		res := and(compare(">=", left, low), compare("<=", left, high))
		if t.Range.Not {
			return res.not()
		}
		return res

	case t.Range.In != nil:
		str, ok := left.(string)
		if !ok {
			return triUnknown
		}
		res := triFalse
		for _, v := range t.Range.In.Values {
			if v == str {
				res = triTrue
				break
			}
		}
		if t.Range.Not {
			return res.not()
		}
		return res

	case t.Range.Like != nil:
		str, ok := left.(string)
		if !ok {
			return triUnknown
		}
		res := triOf(s.likes[t.Range.Like].MatchString(str))
		if t.Range.Not {
			return res.not()
		}
		return res
	}
	return triUnknown
}

func and(a, b tri) tri {
	if a == triFalse || b == triFalse {
		return triFalse
	}
	if a == triUnknown || b == triUnknown {
		return triUnknown
	}
	return triTrue
}

// compare applies a comparison operator. NULL operands give UNKNOWN;
// operands of unlike types compare FALSE.
func compare(op string, a, b interface{}) tri {
	if a == nil || b == nil {
		return triUnknown
	}

	if x, y, ok := numericPair(a, b); ok {
		switch op {
		case "=":
			return triOf(x == y)
		case "<>":
			return triOf(x != y)
		case "<":
			return triOf(x < y)
		case "<=":
			return triOf(x <= y)
		case ">":
			return triOf(x > y)
		case ">=":
			return triOf(x >= y)
		}
		return triUnknown
	}

	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return triFalse
		}
		return equality(op, x == y)
	case bool:
		y, ok := b.(bool)
		if !ok {
			return triFalse
		}
		return equality(op, x == y)
	}
	return triFalse
}

func equality(op string, eq bool) tri {
	switch op {
	case "=":
		return triOf(eq)
	case "<>":
		return triOf(!eq)
	}
	return triFalse
}

func numericPair(a, b interface{}) (float64, float64, bool) {
	x, ok := toFloat(a)
	if !ok {
		return 0, 0, false
	}
	y, ok := toFloat(b)
	if !ok {
		return 0, 0, false
	}
	return x, y, true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func (s *Selector) evalSum(sum *Sum, r Resolver) interface{} {
	acc := s.evalProduct(sum.Left, r)
	for _, op := range sum.Ops {
		acc = arith(op.Op, acc, s.evalProduct(op.Right, r))
	}
	return acc
}

func (s *Selector) evalProduct(p *Product, r Resolver) interface{} {
	acc := s.evalUnary(p.Left, r)
	for _, op := range p.Ops {
		acc = arith(op.Op, acc, s.evalUnary(op.Right, r))
	}
	return acc
}

func (s *Selector) evalUnary(u *Unary, r Resolver) interface{} {
	v := s.evalPrimary(u.Value, r)
	if u.Sign != "-" {
		return v
	}
	switch n := v.(type) {
	case int64:
		return -n
	case float64:
		return -n
	}
	return nil
}

func (s *Selector) evalPrimary(p *Primary, r Resolver) interface{} {
	switch {
	case p.Float != nil:
		return *p.Float
	case p.Int != nil:
		return *p.Int
	case p.String != nil:
		return *p.String
	case p.Bool != nil:
		return bool(*p.Bool)
	case p.Null:
		return nil
	case p.Ident != nil:
		v, ok := r.Lookup(*p.Ident)
		if !ok {
			return nil
		}
		return normalize(v)
	case p.Sub != nil:
		return s.evalSub(p.Sub, r)
	}
	return nil
}

// evalSub yields the arithmetic value of a parenthesised operand, or the
// boolean value of a parenthesised condition.
func (s *Selector) evalSub(e *Expression, r Resolver) interface{} {
	if len(e.Or) == 1 && len(e.Or[0].And) == 1 {
		n := e.Or[0].And[0]
		if n.Not == nil && n.Pred.Tail == nil {
			return s.evalSum(n.Pred.Left, r)
		}
	}
	switch s.evalExpr(e, r) {
	case triTrue:
		return true
	case triFalse:
		return false
	}
	return nil
}

func arith(op string, a, b interface{}) interface{} {
	if x, ok := a.(int64); ok {
		if y, ok := b.(int64); ok {
			switch op {
			case "+":
				return x + y
			case "-":
				return x - y
			case "*":
				return x * y
			case "/":
				if y == 0 {
					return nil
				}
				return x / y
			}
		}
	}

	x, y, ok := numericPair(a, b)
	if !ok {
		return nil
	}
	switch op {
	case "+":
		return x + y
	case "-":
		return x - y
	case "*":
		return x * y
	case "/":
		if y == 0 {
			return nil
		}
		return x / y
	}
	return nil
}

// normalize widens resolver values to int64, float64, string or bool.
func normalize(v interface{}) interface{} {
	switch n := v.(type) {
	case bool, string, int64, float64:
		return n
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case float32:
		return float64(n)
	}
	return nil
}
