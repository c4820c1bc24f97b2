package registry

// builtinDefinitions carries definitions for models known to be unreadable
// through any live strategy. Keys are lowercase model names.
var builtinDefinitions = map[string]Definition{
	"new_rep": {
		Description: "Sales Representatives dataset",
		Tables: []TableDefinition{
			{
				Name:        "Representatives",
				Description: "Sales representatives information",
				Columns: []ColumnDefinition{
					{Name: "rep_id", DataType: "Int64", Description: "Representative ID"},
					{Name: "name", DataType: "String", Description: "Representative name"},
					{Name: "region", DataType: "String", Description: "Assigned region"},
					{Name: "email", DataType: "String", Description: "Contact email"},
				},
			},
		},
	},
}
