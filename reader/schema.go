package reader

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
	"github.com/shopspring/decimal"

	"github.com/vegasq/dataview/table"
)

// SchemaInfo represents metadata about a single column in a Parquet file.
type SchemaInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	DataType     string `json:"data_type"`
	PhysicalType string `json:"physical_type"`
	LogicalType  string `json:"logical_type"`
	Required     bool   `json:"required"`
	Optional     bool   `json:"optional"`
	Repeated     bool   `json:"repeated"`
}

// ExtractSchemaInfo extracts schema information from a Parquet file.
//
// Returns a slice of SchemaInfo containing metadata about each leaf column
// including name, type information, and whether the field is
// required/optional/repeated.
//
// For nested types, field names use dot notation (e.g., "address.street").
func ExtractSchemaInfo(path string) ([]SchemaInfo, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer func() { _ = r.Close() }()

	return r.SchemaInfo(), nil
}

// SchemaInfo describes every leaf column of the file in schema order.
func (r *Reader) SchemaInfo() []SchemaInfo {
	var infos []SchemaInfo
	for _, field := range r.Schema().Fields() {
		infos = append(infos, extractFieldInfo(field, "", false)...)
	}
	return infos
}

// extractFieldInfo recursively extracts schema information from a field,
// tracking whether any parent field is repeated.
func extractFieldInfo(field parquet.Field, prefix string, parentRepeated bool) []SchemaInfo {
	fieldName := field.Name()
	if prefix != "" {
		fieldName = prefix + "." + fieldName
	}
	isRepeated := parentRepeated || field.Repeated()

	if children := field.Fields(); len(children) > 0 {
		var infos []SchemaInfo
		for _, child := range children {
			infos = append(infos, extractFieldInfo(child, fieldName, isRepeated)...)
		}
		return infos
	}

	dataType := columnType(field)
	if isRepeated {
		dataType = table.Unknown
	}

	return []SchemaInfo{{
		Name:         fieldName,
		Type:         getUserFriendlyType(field),
		DataType:     dataType.String(),
		PhysicalType: getPhysicalType(field),
		LogicalType:  getLogicalType(field),
		Required:     field.Required(),
		Optional:     field.Optional(),
		Repeated:     isRepeated,
	}}
}

// leaf is one physical column of the file.
type leaf struct {
	name     string
	typ      table.ColumnType
	repeated bool
	convert  func(parquet.Value) interface{}
}

// leaves returns the leaf columns indexed by parquet column index.
func (r *Reader) leaves() []leaf {
	schema := r.Schema()
	paths := schema.Columns()

	leaves := make([]leaf, len(paths))
	for _, path := range paths {
		col, ok := schema.Lookup(path...)
		if !ok {
			continue
		}
		l := leaf{
			name:     strings.Join(path, "."),
			typ:      columnType(col.Node),
			repeated: col.MaxRepetitionLevel > 0,
			convert:  converter(col.Node),
		}
		if l.repeated {
			l.typ = table.Unknown
		}
		leaves[col.ColumnIndex] = l
	}
	return leaves
}

// columnType maps a parquet leaf to the column type used for summaries.
func columnType(node parquet.Node) table.ColumnType {
	typ := node.Type()
	if typ == nil {
		return table.Unknown
	}

	if lt := typ.LogicalType(); lt != nil {
		switch {
		case lt.UTF8 != nil, lt.Enum != nil:
			return table.String
		case lt.Integer != nil:
			return table.Integer
		case lt.Decimal != nil, lt.Date != nil, lt.Time != nil, lt.Timestamp != nil,
			lt.UUID != nil, lt.Json != nil, lt.Bson != nil:
			return table.Unknown
		}
	}

	switch typ.Kind() {
	case parquet.Boolean:
		return table.Boolean
	case parquet.Int32, parquet.Int64:
		return table.Integer
	case parquet.Float, parquet.Double:
		return table.Float
	default:
		return table.Unknown
	}
}

// converter returns the function turning parquet values of the leaf into
// Go values.
func converter(node parquet.Node) func(parquet.Value) interface{} {
	typ := node.Type()
	if typ == nil {
		return plainValue
	}

	lt := typ.LogicalType()
	switch {
	case lt == nil:
		return plainValue
	case lt.Decimal != nil:
		scale := lt.Decimal.Scale
		return func(v parquet.Value) interface{} { return decimalValue(v, scale) }
	case lt.Date != nil:
		return func(v parquet.Value) interface{} {
			return time.Unix(int64(v.Int32())*86400, 0).UTC().Format("2006-01-02")
		}
	case lt.Timestamp != nil:
		unit := lt.Timestamp.Unit
		utc := lt.Timestamp.IsAdjustedToUTC
		return func(v parquet.Value) interface{} { return timestampValue(v.Int64(), unit, utc) }
	case lt.Integer != nil && !lt.Integer.IsSigned:
		return func(v parquet.Value) interface{} {
			if v.Kind() == parquet.Int32 {
				return uint32(v.Int32())
			}
			return uint64(v.Int64())
		}
	case lt.UUID != nil:
		return func(v parquet.Value) interface{} { return fmt.Sprintf("%x", v.ByteArray()) }
	default:
		return plainValue
	}
}

// plainValue converts a parquet.Value by physical kind.
func plainValue(v parquet.Value) interface{} {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return v.Int32()
	case parquet.Int64:
		return v.Int64()
	case parquet.Int96:
		return fmt.Sprint(v.Int96())
	case parquet.Float:
		return v.Float()
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return nil
	}
}

// decimalValue renders a DECIMAL value exactly. Byte array decimals hold a
// big-endian two's complement unscaled integer.
func decimalValue(v parquet.Value, scale int32) interface{} {
	var d decimal.Decimal
	switch v.Kind() {
	case parquet.Int32:
		d = decimal.New(int64(v.Int32()), -scale)
	case parquet.Int64:
		d = decimal.New(v.Int64(), -scale)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		d = decimal.NewFromBigInt(twosComplement(v.ByteArray()), -scale)
	default:
		return plainValue(v)
	}
	return d.StringFixed(scale)
}

func twosComplement(b []byte) *big.Int {
	n := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}
	return n
}

func timestampValue(n int64, unit format.TimeUnit, utc bool) string {
	var t time.Time
	switch {
	case unit.Millis != nil:
		t = time.UnixMilli(n)
	case unit.Micros != nil:
		t = time.UnixMicro(n)
	default:
		t = time.Unix(0, n)
	}
	t = t.UTC()
	if utc {
		return t.Format(time.RFC3339Nano)
	}
	return t.Format("2006-01-02T15:04:05.999999999")
}

// getPhysicalType returns the physical type name of a Parquet field.
func getPhysicalType(node parquet.Node) string {
	if node.Type() == nil {
		return "GROUP"
	}

	switch node.Type().Kind() {
	case parquet.Boolean:
		return "BOOLEAN"
	case parquet.Int32:
		return "INT32"
	case parquet.Int64:
		return "INT64"
	case parquet.Int96:
		return "INT96"
	case parquet.Float:
		return "FLOAT"
	case parquet.Double:
		return "DOUBLE"
	case parquet.ByteArray:
		return "BYTE_ARRAY"
	case parquet.FixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	default:
		return "UNKNOWN"
	}
}

// getLogicalType returns the logical type name of a Parquet field.
func getLogicalType(node parquet.Node) string {
	if node.Type() == nil {
		return ""
	}
	lt := node.Type().LogicalType()
	if lt == nil {
		return ""
	}
	return lt.String()
}

// getUserFriendlyType returns a user-friendly type name for a Parquet field.
//
// Logical types take precedence over physical types, so a BYTE_ARRAY
// annotated as a string is reported as STRING.
func getUserFriendlyType(node parquet.Node) string {
	if node.Type() == nil {
		return "GROUP"
	}

	if lt := node.Type().LogicalType(); lt != nil {
		switch {
		case lt.UTF8 != nil:
			return "STRING"
		case lt.Enum != nil:
			return "ENUM"
		case lt.UUID != nil:
			return "UUID"
		case lt.Date != nil:
			return "DATE"
		case lt.Time != nil:
			return "TIME"
		case lt.Timestamp != nil:
			return "TIMESTAMP"
		case lt.Decimal != nil:
			return "DECIMAL"
		case lt.Json != nil:
			return "JSON"
		case lt.Bson != nil:
			return "BSON"
		}
	}

	switch node.Type().Kind() {
	case parquet.Boolean:
		return "BOOLEAN"
	case parquet.Int32:
		return "INT32"
	case parquet.Int64:
		return "INT64"
	case parquet.Int96:
		return "INT96"
	case parquet.Float:
		return "FLOAT32"
	case parquet.Double:
		return "FLOAT64"
	case parquet.ByteArray:
		return "BYTE_ARRAY"
	case parquet.FixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	default:
		return "UNKNOWN"
	}
}
