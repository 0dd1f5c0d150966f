package query

import (
	"fmt"
	"math"
	"strings"
)

// compare compares two values using the given operator
func compare(left interface{}, operator Operator, right interface{}) (bool, error) {
	// Handle nil values
	if left == nil || right == nil {
		if operator == OpEqual {
			return left == right, nil
		}
		if operator == OpNotEqual {
			return left != right, nil
		}
		return false, nil
	}

	leftNum, leftIsNum := toFloat64(left)
	rightNum, rightIsNum := toFloat64(right)
	if leftIsNum && rightIsNum {
		return compareNumbers(leftNum, operator, rightNum), nil
	}

	leftStr, leftIsStr := left.(string)
	rightStr, rightIsStr := right.(string)
	if leftIsStr && rightIsStr {
		return compareStrings(leftStr, operator, rightStr), nil
	}

	leftBool, leftIsBool := left.(bool)
	rightBool, rightIsBool := right.(bool)
	if leftIsBool && rightIsBool {
		return compareBools(leftBool, operator, rightBool)
	}

	return false, fmt.Errorf("cannot compare %T with %T", left, right)
}

// toFloat64 converts a value to float64 if possible
func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

// compareNumbers compares two numbers with a relative epsilon for equality
func compareNumbers(left float64, operator Operator, right float64) bool {
	const epsilon = 1e-9
	threshold := epsilon * math.Max(1.0, math.Max(math.Abs(left), math.Abs(right)))
	equal := math.Abs(left-right) < threshold

	switch operator {
	case OpEqual:
		return equal
	case OpNotEqual:
		return !equal
	case OpLess:
		return left < right && !equal
	case OpGreater:
		return left > right && !equal
	case OpLessEqual:
		return left < right || equal
	case OpGreaterEqual:
		return left > right || equal
	default:
		return false
	}
}

// compareStrings compares two strings (case-sensitive)
func compareStrings(left string, operator Operator, right string) bool {
	switch operator {
	case OpEqual:
		return left == right
	case OpNotEqual:
		return left != right
	case OpLess:
		return left < right
	case OpGreater:
		return left > right
	case OpLessEqual:
		return left <= right
	case OpGreaterEqual:
		return left >= right
	default:
		return false
	}
}

func compareBools(left bool, operator Operator, right bool) (bool, error) {
	switch operator {
	case OpEqual:
		return left == right, nil
	case OpNotEqual:
		return left != right, nil
	default:
		return false, fmt.Errorf("operator %s is not defined for booleans", operator)
	}
}

// compareValues orders two values: -1 if a < b, 0 if equal, +1 if a > b.
// Nil sorts before everything; values of unrelated types compare equal.
func compareValues(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	aNum, aIsNum := toFloat64(a)
	bNum, bIsNum := toFloat64(b)
	if aIsNum && bIsNum {
		switch {
		case aNum < bNum:
			return -1
		case aNum > bNum:
			return 1
		default:
			return 0
		}
	}

	aStr, aIsStr := a.(string)
	bStr, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return strings.Compare(aStr, bStr)
	}

	aBool, aIsBool := a.(bool)
	bBool, bIsBool := b.(bool)
	if aIsBool && bIsBool {
		switch {
		case !aBool && bBool:
			return -1
		case aBool && !bBool:
			return 1
		}
	}

	return 0
}

// valueKey renders a value for hashing in DISTINCT and GROUP BY. %#v keeps
// int64(1) and "1" apart.
func valueKey(v interface{}) string {
	return fmt.Sprintf("%#v", v)
}

// matchLikePattern matches a string against a SQL LIKE pattern.
// % matches any sequence of characters, _ matches exactly one character and
// a backslash makes the next pattern character literal.
func matchLikePattern(str, pattern string) bool {
	s := []rune(str)
	p := []rune(pattern)

	si, pi := 0, 0
	star, mark := -1, 0
	for si < len(s) {
		if pi < len(p) {
			switch c := p[pi]; {
			case c == '%':
				star, mark = pi, si
				pi++
				continue
			case c == '\\' && pi+1 < len(p):
				if p[pi+1] == s[si] {
					si++
					pi += 2
					continue
				}
			case c == '_' || c == s[si]:
				si++
				pi++
				continue
			}
		}

		// Mismatch: let the last % absorb one more character.
		if star < 0 {
			return false
		}
		pi = star + 1
		mark++
		si = mark
	}

	for pi < len(p) && p[pi] == '%' {
		pi++
	}
	return pi == len(p)
}
