package query

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Validation limits.
const (
	// DefaultMaxQueryLength is the longest query string accepted by default
	DefaultMaxQueryLength = 1000

	// MaxExpressionDepth is the maximum nesting depth for expressions
	MaxExpressionDepth = 100
)

// DefaultForbiddenKeywords are rejected anywhere outside quoted text.
var DefaultForbiddenKeywords = []string{
	"drop", "delete", "insert", "update", "create", "alter", "truncate",
	"exec", "execute", "union", "script", "javascript", "eval", "system",
}

var (
	// ErrEmptyQuery is returned for a blank query string
	ErrEmptyQuery = errors.New("query is empty")

	// ErrQueryTooLong is returned when the query exceeds the configured length
	ErrQueryTooLong = errors.New("query too long")

	// ErrForbiddenKeyword is returned when the query contains a forbidden keyword
	ErrForbiddenKeyword = errors.New("query contains forbidden keyword")

	// ErrExpressionTooDeep is returned when expression nesting exceeds limit
	ErrExpressionTooDeep = errors.New("expression nesting too deep")

	// ErrSyntax is returned when the query cannot be parsed
	ErrSyntax = errors.New("syntax error")

	// ErrUnsupported is returned for valid SQL outside the supported subset
	ErrUnsupported = errors.New("unsupported query")

	// ErrUnknownColumn is returned when a query references a missing column
	ErrUnknownColumn = errors.New("unknown column")

	// ErrInvalidPage is returned by Paginate for out of range arguments
	ErrInvalidPage = errors.New("invalid page")
)

// IsInvalid reports whether err was caused by the query text rather than by
// the data or the system.
func IsInvalid(err error) bool {
	for _, target := range []error{
		ErrEmptyQuery, ErrQueryTooLong, ErrForbiddenKeyword, ErrExpressionTooDeep,
		ErrSyntax, ErrUnsupported, ErrUnknownColumn, ErrInvalidPage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Validator screens raw query strings before they are parsed.
type Validator struct {
	MaxLength int
	Forbidden []string
}

// NewValidator returns a validator with the default keyword list. A
// non-positive maxLength selects DefaultMaxQueryLength.
func NewValidator(maxLength int) *Validator {
	if maxLength <= 0 {
		maxLength = DefaultMaxQueryLength
	}
	return &Validator{MaxLength: maxLength, Forbidden: DefaultForbiddenKeywords}
}

// Validate checks q with the default validator.
func Validate(q string) error {
	return NewValidator(DefaultMaxQueryLength).Validate(q)
}

// Validate rejects empty and overlong queries and queries containing a
// forbidden keyword as a whole word outside quoted text.
func (v *Validator) Validate(q string) error {
	if strings.TrimSpace(q) == "" {
		return ErrEmptyQuery
	}
	if len(q) > v.MaxLength {
		return fmt.Errorf("%w: %d chars (max %d)", ErrQueryTooLong, len(q), v.MaxLength)
	}

	forbidden := make(map[string]bool, len(v.Forbidden))
	for _, k := range v.Forbidden {
		forbidden[strings.ToLower(k)] = true
	}
	for _, word := range bareWords(q) {
		if forbidden[strings.ToLower(word)] {
			return fmt.Errorf("%w: %s", ErrForbiddenKeyword, strings.ToLower(word))
		}
	}
	return nil
}

// bareWords splits q into identifier-like words, skipping text inside
// single quotes and double quotes. Doubled quotes inside a quoted run are
// treated as escapes.
func bareWords(q string) []string {
	var (
		words []string
		word  strings.Builder
		quote rune
	)
	flush := func() {
		if word.Len() > 0 {
			words = append(words, word.String())
			word.Reset()
		}
	}

	runes := []rune(q)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if quote != 0 {
			if r == quote {
				if i+1 < len(runes) && runes[i+1] == quote {
					i++
					continue
				}
				quote = 0
			}
			continue
		}

		switch {
		case r == '\'' || r == '"':
			flush()
			quote = r
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return words
}

// ExpressionDepthCounter tracks expression nesting depth
type ExpressionDepthCounter struct {
	depth    int
	maxDepth int
}

// NewExpressionDepthCounter creates a new depth counter
func NewExpressionDepthCounter() *ExpressionDepthCounter {
	return &ExpressionDepthCounter{depth: 0, maxDepth: MaxExpressionDepth}
}

// Enter increments depth and returns error if limit exceeded
func (c *ExpressionDepthCounter) Enter() error {
	c.depth++
	if c.depth > c.maxDepth {
		return fmt.Errorf("%w: %d (max %d)", ErrExpressionTooDeep, c.depth, c.maxDepth)
	}
	return nil
}

// Exit decrements depth
func (c *ExpressionDepthCounter) Exit() {
	c.depth--
}
