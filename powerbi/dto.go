package powerbi

import "semasync/model"

// Wire shapes for the v1.0 REST API. Field names follow the service's JSON.

// Workspace is a workspace catalog entry.
type Workspace struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	IsOnDedicatedCapacity bool   `json:"isOnDedicatedCapacity,omitempty"`
}

// Dataset is a dataset catalog entry. AddRowsAPIEnabled distinguishes push
// datasets (writable table definitions) from import datasets.
type Dataset struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	ConfiguredBy      string `json:"configuredBy,omitempty"`
	DefaultMode       string `json:"defaultMode,omitempty"`
	AddRowsAPIEnabled bool   `json:"addRowsAPIEnabled,omitempty"`
	IsRefreshable     bool   `json:"isRefreshable,omitempty"`
	WebURL            string `json:"webUrl,omitempty"`
}

// DatasetType labels how the dataset stores data, for model metadata.
func (d Dataset) DatasetType() string {
	if d.AddRowsAPIEnabled {
		return "push"
	}
	return "import"
}

// Table is a dataset table definition as the schema API returns and accepts
// it.
type Table struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsHidden    bool      `json:"isHidden,omitempty"`
	Columns     []Column  `json:"columns"`
	Measures    []Measure `json:"measures,omitempty"`
}

// Column is a table column on the wire. IsNullable is a pointer because the
// API omits it; absence means nullable.
type Column struct {
	Name         string `json:"name"`
	DataType     string `json:"dataType"`
	IsNullable   *bool  `json:"isNullable,omitempty"`
	Description  string `json:"description,omitempty"`
	IsHidden     bool   `json:"isHidden,omitempty"`
	FormatString string `json:"formatString,omitempty"`
}

// Measure is a table-scoped measure definition on the wire.
type Measure struct {
	Name         string `json:"name"`
	Expression   string `json:"expression"`
	Description  string `json:"description,omitempty"`
	FormatString string `json:"formatString,omitempty"`
	IsHidden     bool   `json:"isHidden,omitempty"`
}

type datasetList struct {
	Value []Dataset `json:"value"`
}

type tableList struct {
	Value []Table `json:"value"`
}

type createDatasetRequest struct {
	Name        string  `json:"name"`
	DefaultMode string  `json:"defaultMode"`
	Tables      []Table `json:"tables"`
}

type queryRequest struct {
	Queries            []querySpec        `json:"queries"`
	SerializerSettings serializerSettings `json:"serializerSettings"`
}

type querySpec struct {
	Query string `json:"query"`
}

type serializerSettings struct {
	IncludeNulls bool `json:"includeNulls"`
}

type queryResponse struct {
	Results []queryResult `json:"results"`
}

type queryResult struct {
	Tables []queryRowSet `json:"tables"`
}

type queryRowSet struct {
	Rows []map[string]any `json:"rows"`
}

func (t Table) toModel() model.Table {
	cols := make([]model.Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		cols = append(cols, c.toModel())
	}
	return model.Table{
		Name:        t.Name,
		Description: t.Description,
		IsHidden:    t.IsHidden,
		Columns:     cols,
	}
}

func (c Column) toModel() model.Column {
	col := model.Column{
		Name:         c.Name,
		DataType:     c.DataType,
		IsNullable:   true,
		Description:  c.Description,
		IsHidden:     c.IsHidden,
		FormatString: c.FormatString,
	}
	if col.DataType == "" {
		col.DataType = "String"
	}
	if c.IsNullable != nil {
		col.IsNullable = *c.IsNullable
	}
	col.Normalize()
	return col
}

func tableFromModel(t model.Table) Table {
	cols := make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		cols = append(cols, columnFromModel(c))
	}
	return Table{
		Name:        t.Name,
		Description: t.Description,
		IsHidden:    t.IsHidden,
		Columns:     cols,
	}
}

// columnFromModel canonicalizes the data type into the service's vocabulary;
// columns that came from the warehouse carry native types like VARCHAR(255)
// that the schema API would reject.
func columnFromModel(c model.Column) Column {
	c.Normalize()
	return Column{
		Name:         c.Name,
		DataType:     c.NormalizedType.ToModel(),
		Description:  c.Description,
		IsHidden:     c.IsHidden,
		FormatString: c.FormatString,
	}
}
