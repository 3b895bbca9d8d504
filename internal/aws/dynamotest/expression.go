package dynamotest

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

type evaluator struct {
	names  map[string]string
	values map[string]types.AttributeValue
}

// check evaluates an optional condition against the current item and returns a
// ConditionalCheckFailedException when it does not hold.
func (e evaluator) check(expr *string, current item, onFailure types.ReturnValuesOnConditionCheckFailure) error {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return nil
	}
	ok, err := e.condition(*expr, current)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	ccf := &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
	if onFailure == types.ReturnValuesOnConditionCheckFailureAllOld && current != nil {
		ccf.Item = clone(current)
	}
	return ccf
}

func (e evaluator) condition(expr string, it item) (bool, error) {
	for _, disjunct := range strings.Split(expr, " OR ") {
		all := true
		for _, term := range strings.Split(disjunct, " AND ") {
			ok, err := e.term(strings.TrimSpace(term), it)
			if err != nil {
				return false, err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			return true, nil
		}
	}
	return false, nil
}

func (e evaluator) term(term string, it item) (bool, error) {
	if inner, ok := call(term, "attribute_exists"); ok {
		_, exists := it[e.name(inner)]
		return exists, nil
	}
	if inner, ok := call(term, "attribute_not_exists"); ok {
		_, exists := it[e.name(inner)]
		return !exists, nil
	}

	parts := strings.Fields(term)
	if len(parts) != 3 {
		return false, fmt.Errorf("unsupported condition term %q", term)
	}
	right, ok := e.values[parts[2]]
	if !ok {
		return false, fmt.Errorf("missing expression value %s", parts[2])
	}
	left, ok := it[e.name(parts[0])]
	if !ok {
		return false, nil
	}

	c, comparable := compare(left, right)
	switch parts[1] {
	case "=":
		return comparable && c == 0, nil
	case "<>":
		return !comparable || c != 0, nil
	case "<":
		return comparable && c < 0, nil
	case "<=":
		return comparable && c <= 0, nil
	case ">":
		return comparable && c > 0, nil
	case ">=":
		return comparable && c >= 0, nil
	}
	return false, fmt.Errorf("unsupported operator %q", parts[1])
}

func (e evaluator) update(expr string, it item) (item, error) {
	expr = strings.TrimSpace(expr)
	rest, ok := strings.CutPrefix(expr, "SET ")
	if !ok {
		return nil, fmt.Errorf("unsupported update expression %q", expr)
	}
	next := clone(it)
	for _, assignment := range splitTopLevel(rest) {
		lhs, rhs, found := strings.Cut(assignment, "=")
		if !found {
			return nil, fmt.Errorf("malformed assignment %q", assignment)
		}
		// right-hand sides read the item as it was before the update
		v, err := e.operand(strings.TrimSpace(rhs), it)
		if err != nil {
			return nil, err
		}
		next[e.name(strings.TrimSpace(lhs))] = v
	}
	return next, nil
}

func (e evaluator) operand(s string, it item) (types.AttributeValue, error) {
	if l, r, ok := cutTopLevel(s, " + "); ok {
		return e.arith(l, r, it, decimal.Decimal.Add)
	}
	if l, r, ok := cutTopLevel(s, " - "); ok {
		return e.arith(l, r, it, decimal.Decimal.Sub)
	}
	if inner, ok := call(s, "if_not_exists"); ok {
		args := splitTopLevel(inner)
		if len(args) != 2 {
			return nil, fmt.Errorf("if_not_exists takes two arguments: %q", s)
		}
		if v, exists := it[e.name(strings.TrimSpace(args[0]))]; exists {
			return v, nil
		}
		return e.operand(strings.TrimSpace(args[1]), it)
	}
	if strings.HasPrefix(s, ":") {
		v, ok := e.values[s]
		if !ok {
			return nil, fmt.Errorf("missing expression value %s", s)
		}
		return v, nil
	}
	v, ok := it[e.name(s)]
	if !ok {
		return nil, fmt.Errorf("the provided expression refers to an attribute that does not exist in the item: %s", s)
	}
	return v, nil
}

func (e evaluator) arith(l, r string, it item, op func(decimal.Decimal, decimal.Decimal) decimal.Decimal) (types.AttributeValue, error) {
	lv, err := e.operand(strings.TrimSpace(l), it)
	if err != nil {
		return nil, err
	}
	rv, err := e.operand(strings.TrimSpace(r), it)
	if err != nil {
		return nil, err
	}
	ln, lok := number(lv)
	rn, rok := number(rv)
	if !lok || !rok {
		return nil, fmt.Errorf("an operand in the update expression has an incorrect data type")
	}
	return &types.AttributeValueMemberN{Value: op(ln, rn).String()}, nil
}

func (e evaluator) name(tok string) string {
	if strings.HasPrefix(tok, "#") {
		return e.names[tok]
	}
	return tok
}

func compare(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberN:
		bn, ok := number(b)
		if !ok {
			return 0, false
		}
		an, _ := number(av)
		return an.Cmp(bn), true
	case *types.AttributeValueMemberS:
		bs, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bs.Value), true
	case *types.AttributeValueMemberBOOL:
		bb, ok := b.(*types.AttributeValueMemberBOOL)
		if !ok {
			return 0, false
		}
		if av.Value == bb.Value {
			return 0, true
		}
		return 1, true
	}
	return 0, false
}

func number(av types.AttributeValue) (decimal.Decimal, bool) {
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(n.Value)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// call matches fn(inner) and returns inner.
func call(s, fn string) (string, bool) {
	if !strings.HasPrefix(s, fn+"(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	return s[len(fn)+1 : len(s)-1], true
}

func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

func cutTopLevel(s, sep string) (string, string, bool) {
	depth := 0
	for i := 0; i+len(sep) <= len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && s[i:i+len(sep)] == sep {
			return s[:i], s[i+len(sep):], true
		}
	}
	return "", "", false
}

func strPtr(s string) *string { return &s }
