package schema

import "slices"

// Schema is the engine-neutral result of analyzing one connection
type Schema struct {
	ConnectionID string `json:"connection_id" yaml:"connection_id"`
	Engine       Engine `json:"engine" yaml:"engine"`
	// Tables keeps the order in which tables were requested
	Tables          []Table             `json:"tables" yaml:"tables"`
	Relationships   []Relationship      `json:"relationships" yaml:"relationships"`
	DependencyGraph map[string][]string `json:"dependency_graph" yaml:"dependency_graph"`
	CreationOrder   []string            `json:"creation_order" yaml:"creation_order"`
	// DeferredEdges lists dependencies the creation order could not honor because of cycles
	DeferredEdges []DependencyEdge `json:"deferred_edges,omitempty" yaml:"deferred_edges,omitempty"`
}

// Table looks up a table by name
func (s *Schema) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// TableNames returns table names in schema order
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// RelationshipsOf returns the relationships owned by a table
func (s *Schema) RelationshipsOf(table string) []Relationship {
	var out []Relationship
	for _, r := range s.Relationships {
		if r.OwnerTable == table {
			out = append(out, r)
		}
	}
	return out
}

// DependencyEdge is a foreign-key dependency from Table onto DependsOn
type DependencyEdge struct {
	Table     string `json:"table" yaml:"table"`
	DependsOn string `json:"depends_on" yaml:"depends_on"`
}

// Table represents a database table
type Table struct {
	Name           string         `json:"name" yaml:"name"`
	Columns        []Column       `json:"columns" yaml:"columns"`
	PrimaryKey     *PrimaryKey    `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	Indexes        []Index        `json:"indexes" yaml:"indexes"`
	ForeignKeys    []ForeignKey   `json:"foreign_keys" yaml:"foreign_keys"`
	Constraints    []Constraint   `json:"constraints" yaml:"constraints"`
	Metadata       EngineMetadata `json:"metadata" yaml:"metadata"`
	HasTimestamps  bool           `json:"has_timestamps" yaml:"has_timestamps"`
	HasSoftDeletes bool           `json:"has_soft_deletes" yaml:"has_soft_deletes"`
}

// Column returns the named column
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// HasColumn reports whether the table has a column with the given name
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// ColumnNames returns column names in ordinal order
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// IsUnique reports whether the exact column set is covered by a unique index
// or by the primary key. Column order is ignored.
func (t *Table) IsUnique(columns ...string) bool {
	if len(columns) == 0 {
		return false
	}
	if t.PrimaryKey != nil && sameSet(t.PrimaryKey.Columns, columns) {
		return true
	}
	for _, idx := range t.Indexes {
		if (idx.Unique || idx.Primary) && sameSet(idx.Columns, columns) {
			return true
		}
	}
	return false
}

// IsPrimaryKeyColumn reports whether the column is part of the primary key
func (t *Table) IsPrimaryKeyColumn(name string) bool {
	return t.PrimaryKey != nil && slices.Contains(t.PrimaryKey.Columns, name)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, v := range b {
		if !slices.Contains(a, v) {
			return false
		}
	}
	return true
}

// Column represents a table column
type Column struct {
	Name          string       `json:"name" yaml:"name"`
	NativeType    string       `json:"native_type" yaml:"native_type"`
	SemanticType  SemanticType `json:"semantic_type" yaml:"semantic_type"`
	Length        int          `json:"length" yaml:"length"`
	Precision     int          `json:"precision" yaml:"precision"`
	Scale         int          `json:"scale" yaml:"scale"`
	Nullable      bool         `json:"nullable" yaml:"nullable"`
	DefaultValue  *string      `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	AutoIncrement bool         `json:"auto_increment" yaml:"auto_increment"`
	Unsigned      bool         `json:"unsigned" yaml:"unsigned"`
	EnumValues    []string     `json:"enum_values,omitempty" yaml:"enum_values,omitempty"`
	Comment       string       `json:"comment,omitempty" yaml:"comment,omitempty"`

	// Hints for downstream generators
	CastHint       string `json:"cast_hint" yaml:"cast_hint"`
	ValidationHint string `json:"validation_hint" yaml:"validation_hint"`
	FakeHint       string `json:"fake_hint" yaml:"fake_hint"`
}

// PrimaryKey represents a primary key constraint
type PrimaryKey struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
}

// Index represents a database index
type Index struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
	Unique  bool     `json:"unique" yaml:"unique"`
	Primary bool     `json:"primary" yaml:"primary"`
}

// ForeignKey is one column of a foreign key constraint. Composite
// constraints produce one ForeignKey per column sharing Name.
type ForeignKey struct {
	Name          string            `json:"name" yaml:"name"`
	Column        string            `json:"column" yaml:"column"`
	ForeignTable  string            `json:"foreign_table" yaml:"foreign_table"`
	ForeignColumn string            `json:"foreign_column" yaml:"foreign_column"`
	OnUpdate      ReferentialAction `json:"on_update" yaml:"on_update"`
	OnDelete      ReferentialAction `json:"on_delete" yaml:"on_delete"`
	// Position is the 1-based column position within the constraint
	Position int `json:"position" yaml:"position"`
}

// IsSelfReference reports whether the key points back at its own table
func (fk ForeignKey) IsSelfReference(table string) bool {
	return fk.ForeignTable == table
}

// Constraint represents a named table constraint
type Constraint struct {
	Name       string         `json:"name" yaml:"name"`
	Kind       ConstraintKind `json:"kind" yaml:"kind"`
	Columns    []string       `json:"columns,omitempty" yaml:"columns,omitempty"`
	Definition string         `json:"definition,omitempty" yaml:"definition,omitempty"`
}

// EngineMetadata holds optional, engine-dependent table facts
type EngineMetadata struct {
	Engine        Engine    `json:"engine" yaml:"engine"`
	Schema        string    `json:"schema,omitempty" yaml:"schema,omitempty"`
	StorageEngine string    `json:"storage_engine,omitempty" yaml:"storage_engine,omitempty"`
	Charset       string    `json:"charset,omitempty" yaml:"charset,omitempty"`
	Collation     string    `json:"collation,omitempty" yaml:"collation,omitempty"`
	Comment       string    `json:"comment,omitempty" yaml:"comment,omitempty"`
	Partitioned   bool      `json:"partitioned,omitempty" yaml:"partitioned,omitempty"`
	Triggers      []Trigger `json:"triggers,omitempty" yaml:"triggers,omitempty"`
}

// Trigger describes a trigger attached to a table
type Trigger struct {
	Name   string `json:"name" yaml:"name"`
	Timing string `json:"timing" yaml:"timing"`
	Event  string `json:"event" yaml:"event"`
}

// Relationship is an inferred application-level association. Kind selects
// which of the optional Pivot and Morph parts are populated.
type Relationship struct {
	Kind         RelationKind `json:"kind" yaml:"kind"`
	Name         string       `json:"name" yaml:"name"`
	OwnerTable   string       `json:"owner_table" yaml:"owner_table"`
	RelatedTable string       `json:"related_table" yaml:"related_table"`
	// ForeignKey is the referencing column on the child side
	ForeignKey string `json:"foreign_key,omitempty" yaml:"foreign_key,omitempty"`
	// LocalKey is the referenced column on the parent side
	LocalKey string            `json:"local_key,omitempty" yaml:"local_key,omitempty"`
	Nullable bool              `json:"nullable" yaml:"nullable"`
	OnDelete ReferentialAction `json:"on_delete" yaml:"on_delete"`
	Pivot    *Pivot            `json:"pivot,omitempty" yaml:"pivot,omitempty"`
	Morph    *Morph            `json:"morph,omitempty" yaml:"morph,omitempty"`
}

// Pivot carries join-table details for BelongsToMany
type Pivot struct {
	Table           string   `json:"table" yaml:"table"`
	ForeignPivotKey string   `json:"foreign_pivot_key" yaml:"foreign_pivot_key"`
	RelatedPivotKey string   `json:"related_pivot_key" yaml:"related_pivot_key"`
	Columns         []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	Timestamps      bool     `json:"timestamps" yaml:"timestamps"`
}

// Morph carries discriminator details for polymorphic relationships
type Morph struct {
	Name       string `json:"name" yaml:"name"`
	TypeColumn string `json:"type_column" yaml:"type_column"`
	IDColumn   string `json:"id_column" yaml:"id_column"`
}
