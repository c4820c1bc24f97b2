package lakehouse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"semasync/model"
)

// firstCommit holds the initial metaData entry with the table schema. Later
// commits only matter for data, so version zero is enough for structure.
const firstCommit = "_delta_log/00000000000000000000.json"

type commitEntry struct {
	MetaData *commitMetaData `json:"metaData"`
}

type commitMetaData struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	SchemaString     string   `json:"schemaString"`
	PartitionColumns []string `json:"partitionColumns"`
}

type schemaDoc struct {
	Type   string        `json:"type"`
	Fields []schemaField `json:"fields"`
}

// schemaField keeps Type raw because Spark writes primitives as JSON strings
// and struct/array/map types as nested objects.
type schemaField struct {
	Name     string          `json:"name"`
	Type     json.RawMessage `json:"type"`
	Nullable *bool           `json:"nullable"`
	Metadata fieldMetadata   `json:"metadata"`
}

type fieldMetadata struct {
	Comment string `json:"comment"`
}

// tableSchema is what a parsed commit log yields for one Delta table.
type tableSchema struct {
	Description      string
	Columns          []model.Column
	PartitionColumns []string
}

// parseCommitLog scans the newline-delimited JSON actions of a Delta commit
// and decodes the schema out of the first metaData entry it finds.
func parseCommitLog(data []byte) (*tableSchema, error) {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry commitEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry.MetaData == nil || entry.MetaData.SchemaString == "" {
			continue
		}

		var doc schemaDoc
		if err := json.Unmarshal([]byte(entry.MetaData.SchemaString), &doc); err != nil {
			return nil, fmt.Errorf("parsing schema document: %w", err)
		}

		schema := &tableSchema{
			Description:      entry.MetaData.Description,
			PartitionColumns: entry.MetaData.PartitionColumns,
			Columns:          make([]model.Column, 0, len(doc.Fields)),
		}
		for _, f := range doc.Fields {
			if f.Name == "" {
				continue
			}
			native, normalized := sparkType(f.Type)
			nullable := true
			if f.Nullable != nil {
				nullable = *f.Nullable
			}
			schema.Columns = append(schema.Columns, model.Column{
				Name:           f.Name,
				DataType:       native,
				NormalizedType: normalized,
				IsNullable:     nullable,
				Description:    f.Metadata.Comment,
			})
		}
		return schema, nil
	}
	return nil, errors.New("no metaData entry in commit log")
}

// sparkType maps a Spark SQL type to the shared vocabulary, keeping the raw
// spelling around as the native type.
func sparkType(raw json.RawMessage) (string, model.DataType) {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		// Nested object means struct, array or map.
		return "struct", model.TypeObject
	}

	base := strings.ToLower(name)
	if i := strings.Index(base, "("); i > 0 {
		base = base[:i]
	}
	switch base {
	case "string", "varchar", "char":
		return name, model.TypeString
	case "long", "bigint", "integer", "int", "short", "smallint", "byte", "tinyint":
		return name, model.TypeInteger
	case "double", "float":
		return name, model.TypeFloat
	case "decimal":
		return name, model.TypeDecimal
	case "boolean":
		return name, model.TypeBoolean
	case "date":
		return name, model.TypeDate
	case "timestamp", "timestamp_ntz":
		return name, model.TypeDateTime
	case "binary":
		return name, model.TypeBinary
	default:
		return name, model.TypeString
	}
}
