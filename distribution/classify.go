package distribution

import "github.com/vegasq/dataview/table"

// Kind is the treatment a column receives, and the "type" field of its
// distribution.
type Kind string

const (
	Categorical Kind = "categorical"
	Numeric     Kind = "numeric"
)

// Classify maps a declared column type to the summary kind. The boolean is
// false for types that are not summarised at all.
func Classify(t table.ColumnType) (Kind, bool) {
	switch t {
	case table.String, table.Boolean:
		return Categorical, true
	case table.Integer, table.Float:
		return Numeric, true
	default:
		return "", false
	}
}
