package model

import (
	"math"
	"strings"
)

// DataType is the platform-independent type every native column type
// normalizes into. Unmapped native types normalize to TypeUnknown.
type DataType string

const (
	TypeString   DataType = "string"
	TypeInteger  DataType = "integer"
	TypeDecimal  DataType = "decimal"
	TypeFloat    DataType = "float"
	TypeBoolean  DataType = "boolean"
	TypeDate     DataType = "date"
	TypeDateTime DataType = "datetime"
	TypeTime     DataType = "time"
	TypeBinary   DataType = "binary"
	TypeVariant  DataType = "variant"
	TypeArray    DataType = "array"
	TypeObject   DataType = "object"
	TypeUnknown  DataType = "unknown"
)

var warehouseTypes = map[string]DataType{
	"VARCHAR":                     TypeString,
	"CHAR":                        TypeString,
	"CHARACTER":                   TypeString,
	"CHARACTER VARYING":           TypeString,
	"STRING":                      TypeString,
	"TEXT":                        TypeString,
	"NUMBER":                      TypeDecimal,
	"DECIMAL":                     TypeDecimal,
	"NUMERIC":                     TypeDecimal,
	"INT":                         TypeInteger,
	"INTEGER":                     TypeInteger,
	"BIGINT":                      TypeInteger,
	"SMALLINT":                    TypeInteger,
	"TINYINT":                     TypeInteger,
	"BYTEINT":                     TypeInteger,
	"INT2":                        TypeInteger,
	"INT4":                        TypeInteger,
	"INT8":                        TypeInteger,
	"SERIAL":                      TypeInteger,
	"BIGSERIAL":                   TypeInteger,
	"FLOAT":                       TypeFloat,
	"FLOAT4":                      TypeFloat,
	"FLOAT8":                      TypeFloat,
	"DOUBLE":                      TypeFloat,
	"DOUBLE PRECISION":            TypeFloat,
	"REAL":                        TypeFloat,
	"BOOLEAN":                     TypeBoolean,
	"BOOL":                        TypeBoolean,
	"DATE":                        TypeDate,
	"DATETIME":                    TypeDateTime,
	"TIMESTAMP":                   TypeDateTime,
	"TIMESTAMPTZ":                 TypeDateTime,
	"TIMESTAMP_LTZ":               TypeDateTime,
	"TIMESTAMP_NTZ":               TypeDateTime,
	"TIMESTAMP_TZ":                TypeDateTime,
	"TIMESTAMP WITH TIME ZONE":    TypeDateTime,
	"TIMESTAMP WITHOUT TIME ZONE": TypeDateTime,
	"TIME":                        TypeTime,
	"TIMETZ":                      TypeTime,
	"BINARY":                      TypeBinary,
	"VARBINARY":                   TypeBinary,
	"BYTEA":                       TypeBinary,
	"VARIANT":                     TypeVariant,
	"JSON":                        TypeVariant,
	"JSONB":                       TypeVariant,
	"ARRAY":                       TypeArray,
	"OBJECT":                      TypeObject,
}

var modelTypes = map[string]DataType{
	"string":         TypeString,
	"text":           TypeString,
	"int64":          TypeInteger,
	"int32":          TypeInteger,
	"integer":        TypeInteger,
	"decimal":        TypeDecimal,
	"double":         TypeFloat,
	"float":          TypeFloat,
	"boolean":        TypeBoolean,
	"bool":           TypeBoolean,
	"date":           TypeDate,
	"datetime":       TypeDateTime,
	"datetimeoffset": TypeDateTime,
	"time":           TypeTime,
	"binary":         TypeBinary,
}

// DataTypeFromWarehouse normalizes a warehouse-native type name.
// Parameterized types such as VARCHAR(255) or NUMERIC(10,2) are matched on
// the base token before the parenthesis.
func DataTypeFromWarehouse(native string) DataType {
	base := strings.ToUpper(strings.TrimSpace(native))
	if i := strings.Index(base, "("); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	if t, ok := warehouseTypes[base]; ok {
		return t
	}
	return TypeUnknown
}

// DataTypeFromModel normalizes a semantic-model-native type name.
func DataTypeFromModel(native string) DataType {
	base := strings.ToLower(strings.TrimSpace(native))
	if i := strings.Index(base, "("); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	if t, ok := modelTypes[base]; ok {
		return t
	}
	return TypeUnknown
}

// ToWarehouse returns the DDL-ready warehouse column type. Semi-structured
// and unknown types land in JSONB so no value is ever unrepresentable.
func (t DataType) ToWarehouse() string {
	switch t {
	case TypeString:
		return "VARCHAR"
	case TypeInteger:
		return "INTEGER"
	case TypeDecimal:
		return "NUMERIC"
	case TypeFloat:
		return "DOUBLE PRECISION"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeDate:
		return "DATE"
	case TypeDateTime:
		return "TIMESTAMP"
	case TypeTime:
		return "TIME"
	case TypeBinary:
		return "BYTEA"
	default:
		return "JSONB"
	}
}

// ToModel returns the semantic-model type name. The model side has no pure
// date type, so dates become DateTime; semi-structured and unknown types
// become String.
func (t DataType) ToModel() string {
	switch t {
	case TypeString:
		return "String"
	case TypeInteger:
		return "Int64"
	case TypeDecimal:
		return "Decimal"
	case TypeFloat:
		return "Double"
	case TypeBoolean:
		return "Boolean"
	case TypeDate, TypeDateTime:
		return "DateTime"
	case TypeTime:
		return "Time"
	case TypeBinary:
		return "Binary"
	default:
		return "String"
	}
}

// InferDataType guesses a type from a sampled value, typically one decoded
// from JSON. Whole-valued numbers count as integers because JSON decoding
// erases the int/float distinction.
func InferDataType(value any) DataType {
	switch v := value.(type) {
	case bool:
		return TypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInteger
	case float32:
		if float64(v) == math.Trunc(float64(v)) {
			return TypeInteger
		}
		return TypeFloat
	case float64:
		if v == math.Trunc(v) {
			return TypeInteger
		}
		return TypeFloat
	case []any:
		return TypeObject
	case map[string]any:
		return TypeObject
	default:
		return TypeString
	}
}
