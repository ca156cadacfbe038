package rules

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	errMixedOperands = errors.New("cannot order a number against a string")
	errNotNumeric    = errors.New("between needs a numeric value")
	errBadRange      = errors.New("malformed range")
)

// operand is a response value or comparison target after numeric coercion.
type operand struct {
	num   float64
	str   string
	isNum bool
}

func number(f float64) operand { return operand{num: f, isNum: true} }
func text(s string) operand    { return operand{str: s} }
func missing() operand         { return number(math.NaN()) }

func (o operand) isNull() bool {
	return (o.isNum && math.IsNaN(o.num)) || (!o.isNum && o.str == "")
}

// parseNumber accepts what a spreadsheet user would call a number,
// surrounding whitespace included. Overflow saturates to infinity.
func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
			return f, true
		}
		return 0, false
	}
	return f, true
}

// contentOperand coerces a response's content: blank is missing, numbers
// become numeric, anything else stays text.
func contentOperand(content string) operand {
	if content == "" {
		return missing()
	}
	if f, ok := parseNumber(content); ok {
		return number(f)
	}
	return text(content)
}

// targetOperand coerces a condition's comparison value against an already
// coerced response value. The target only becomes numeric when the value
// is. An empty target is a missing value and compares like NaN.
func targetOperand(raw string, value operand) operand {
	if raw == "" {
		return missing()
	}
	if value.isNum {
		if f, ok := parseNumber(raw); ok {
			return number(f)
		}
	}
	return text(raw)
}

func equal(a, b operand) bool {
	switch {
	case a.isNum && b.isNum:
		return a.num == b.num
	case !a.isNum && !b.isNum:
		return a.str == b.str
	default:
		return false
	}
}

// order returns -1, 0 or 1, and ok=false when either side is NaN.
func order(a, b operand) (cmp int, ok bool, err error) {
	switch {
	case a.isNum && b.isNum:
		if math.IsNaN(a.num) || math.IsNaN(b.num) {
			return 0, false, nil
		}
		switch {
		case a.num < b.num:
			return -1, true, nil
		case a.num > b.num:
			return 1, true, nil
		}
		return 0, true, nil
	case !a.isNum && !b.isNum:
		return strings.Compare(a.str, b.str), true, nil
	default:
		return 0, false, errMixedOperands
	}
}

// apply evaluates op on (value, target). Errors mean "no match" to the caller.
func apply(op Operator, value, target operand, rawTarget string) (bool, error) {
	switch op {
	case OpEqual:
		return equal(value, target), nil
	case OpNotEqual:
		return !equal(value, target), nil
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		cmp, ok, err := order(value, target)
		if err != nil || !ok {
			return false, err
		}
		switch op {
		case OpLess:
			return cmp < 0, nil
		case OpLessEqual:
			return cmp <= 0, nil
		case OpGreater:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case OpContains, OpNotContains:
		if value.isNum || target.isNum {
			return false, nil
		}
		found := strings.Contains(value.str, target.str)
		if op == OpContains {
			return found, nil
		}
		return !found, nil
	case OpEmpty:
		return value.isNull(), nil
	case OpNotEmpty:
		return !value.isNull(), nil
	case OpBetween:
		if !value.isNum {
			return false, errNotNumeric
		}
		r, err := ParseRange(rawTarget)
		if err != nil {
			return false, err
		}
		return r.Contains(value.num), nil
	default:
		return false, fmt.Errorf("operator %s cannot be applied", op)
	}
}

// Range is a numeric interval with independently open or closed bounds,
// written [lo,hi], (lo,hi), [lo,hi) or (lo,hi].
type Range struct {
	Lo, Hi                   float64
	LoInclusive, HiInclusive bool
}

// ParseRange parses bracket notation.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Range{}, fmt.Errorf("%w: %q", errBadRange, s)
	}
	first, last := s[0], s[len(s)-1]
	if (first != '[' && first != '(') || (last != ']' && last != ')') {
		return Range{}, fmt.Errorf("%w: %q needs [ or ( and ] or )", errBadRange, s)
	}
	bounds := strings.Split(s[1:len(s)-1], ",")
	if len(bounds) != 2 {
		return Range{}, fmt.Errorf("%w: %q needs exactly two bounds", errBadRange, s)
	}
	lo, ok := parseNumber(bounds[0])
	if !ok {
		return Range{}, fmt.Errorf("%w: lower bound %q", errBadRange, bounds[0])
	}
	hi, ok := parseNumber(bounds[1])
	if !ok {
		return Range{}, fmt.Errorf("%w: upper bound %q", errBadRange, bounds[1])
	}
	return Range{Lo: lo, Hi: hi, LoInclusive: first == '[', HiInclusive: last == ']'}, nil
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	okLo := v > r.Lo
	if r.LoInclusive {
		okLo = v >= r.Lo
	}
	okHi := v < r.Hi
	if r.HiInclusive {
		okHi = v <= r.Hi
	}
	return okLo && okHi
}

// Between reports whether value lies in the bracket-notation range.
// A malformed range never contains anything.
func Between(value float64, rng string) bool {
	r, err := ParseRange(rng)
	if err != nil {
		return false
	}
	return r.Contains(value)
}
