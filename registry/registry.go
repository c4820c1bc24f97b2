package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"semasync/errs"
	"semasync/logger"
	"semasync/model"
)

// Definition is a manually maintained schema for one model, used when no
// live extraction strategy can read it.
type Definition struct {
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Tables      []TableDefinition `yaml:"tables" json:"tables"`
}

type TableDefinition struct {
	Name        string             `yaml:"name" json:"name"`
	Description string             `yaml:"description,omitempty" json:"description,omitempty"`
	IsHidden    bool               `yaml:"isHidden,omitempty" json:"isHidden,omitempty"`
	Columns     []ColumnDefinition `yaml:"columns" json:"columns"`
}

type ColumnDefinition struct {
	Name         string `yaml:"name" json:"name"`
	DataType     string `yaml:"dataType,omitempty" json:"dataType,omitempty"`
	IsNullable   *bool  `yaml:"isNullable,omitempty" json:"isNullable,omitempty"`
	Description  string `yaml:"description,omitempty" json:"description,omitempty"`
	IsHidden     bool   `yaml:"isHidden,omitempty" json:"isHidden,omitempty"`
	FormatString string `yaml:"formatString,omitempty" json:"formatString,omitempty"`
}

type namedDefinition struct {
	name string
	def  Definition
}

// Registry resolves manual model definitions. File-based definitions from
// the registry directory override built-in ones of the same name; all
// lookups are case-insensitive.
type Registry struct {
	dir  string
	log  *logger.Logger
	defs map[string]namedDefinition
}

// New loads every *.yaml, *.yml and *.json definition from dir. A missing
// directory is not an error; a file that fails to parse is logged and
// skipped.
func New(dir string, log *logger.Logger) (*Registry, error) {
	if log == nil {
		log = logger.Nop()
	}
	r := &Registry{
		dir:  dir,
		log:  log,
		defs: make(map[string]namedDefinition),
	}
	if dir == "" {
		return r, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return r, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading registry directory: %w", err)
	}
	if err := r.loadFiles(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) loadFiles() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading registry directory: %w", err)
	}

	r.log.Info("loading registry definitions", "dir", r.dir)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}

		path := filepath.Join(r.dir, entry.Name())
		def, err := readDefinitionFile(path, ext)
		if err != nil {
			r.log.Warn("skipping registry file", "file", entry.Name(), "error", err)
			continue
		}

		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		r.defs[strings.ToLower(name)] = namedDefinition{name: name, def: def}
		r.log.Info("loaded registry definition", "model", name, "file", entry.Name())
	}
	return nil
}

func readDefinitionFile(path, ext string) (Definition, error) {
	var def Definition
	data, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("reading definition file: %w", err)
	}
	if ext == ".json" {
		if err := json.Unmarshal(data, &def); err != nil {
			return def, fmt.Errorf("unmarshalling JSON: %w", err)
		}
		return def, nil
	}
	if err := yaml.Unmarshal(data, &def); err != nil {
		return def, fmt.Errorf("unmarshalling YAML: %w", err)
	}
	return def, nil
}

// HasDefinition reports whether a manual definition exists for the model,
// from either source.
func (r *Registry) HasDefinition(modelName string) bool {
	key := strings.ToLower(modelName)
	if _, ok := r.defs[key]; ok {
		return true
	}
	_, ok := builtinDefinitions[key]
	return ok
}

// GetDefinition returns the definition for modelName, preferring a
// file-based entry over a built-in one.
func (r *Registry) GetDefinition(modelName string) (Definition, bool) {
	key := strings.ToLower(modelName)
	if nd, ok := r.defs[key]; ok {
		return nd.def, true
	}
	def, ok := builtinDefinitions[key]
	return def, ok
}

// GetTables converts the model's manual definition into schema tables.
// Returns nil when no definition exists.
func (r *Registry) GetTables(modelName string) []model.Table {
	def, ok := r.GetDefinition(modelName)
	if !ok {
		r.log.Warn("no manual definition found", "model", modelName)
		return nil
	}

	tables := make([]model.Table, 0, len(def.Tables))
	for _, td := range def.Tables {
		if td.Name == "" {
			continue
		}
		t := model.Table{
			Name:        td.Name,
			Description: td.Description,
			IsHidden:    td.IsHidden,
		}
		for _, cd := range td.Columns {
			if cd.Name == "" {
				continue
			}
			dataType := cd.DataType
			if dataType == "" {
				dataType = "String"
			}
			nullable := true
			if cd.IsNullable != nil {
				nullable = *cd.IsNullable
			}
			col := model.Column{
				Name:         cd.Name,
				DataType:     dataType,
				IsNullable:   nullable,
				Description:  cd.Description,
				IsHidden:     cd.IsHidden,
				FormatString: cd.FormatString,
			}
			col.Normalize()
			t.Columns = append(t.Columns, col)
		}
		tables = append(tables, t)
	}
	return tables
}

// GetDescription returns the model-level description from the manual
// definition, or an empty string.
func (r *Registry) GetDescription(modelName string) string {
	def, ok := r.GetDefinition(modelName)
	if !ok {
		return ""
	}
	return def.Description
}

// SaveDefinition adds or replaces the definition for modelName. With a
// registry directory configured the definition is written to
// <dir>/<modelName>.yaml; otherwise it lives in memory for the life of
// the process. Saved definitions override built-ins either way.
func (r *Registry) SaveDefinition(modelName string, def Definition) error {
	if modelName == "" {
		return &errs.ValidationError{Field: "modelName", Value: "must not be empty"}
	}

	if r.dir != "" {
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			return fmt.Errorf("creating registry directory: %w", err)
		}
		data, err := yaml.Marshal(def)
		if err != nil {
			return fmt.Errorf("marshalling definition: %w", err)
		}
		path := filepath.Join(r.dir, modelName+".yaml")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing definition file: %w", err)
		}
		r.log.Info("saved registry definition", "model", modelName, "file", path)
	} else {
		r.log.Info("saved in-memory registry definition", "model", modelName)
	}

	r.defs[strings.ToLower(modelName)] = namedDefinition{name: modelName, def: def}
	return nil
}

// Names lists every model with a definition, sorted, with file-based
// names shadowing built-ins of the same name.
func (r *Registry) Names() []string {
	seen := make(map[string]string, len(r.defs)+len(builtinDefinitions))
	for key := range builtinDefinitions {
		seen[key] = key
	}
	for key, nd := range r.defs {
		seen[key] = nd.name
	}

	names := make([]string, 0, len(seen))
	for _, name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
