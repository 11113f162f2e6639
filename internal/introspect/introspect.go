// Package introspect turns raw adapter rows into schema.Table values
package introspect

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tordrt/relschema/internal/db"
	"github.com/tordrt/relschema/internal/schema"
	"github.com/tordrt/relschema/internal/typemap"
)

// Introspector builds one table at a time from a single adapter. It holds no
// state besides the adapter and is safe for concurrent use.
type Introspector struct {
	adapter db.Adapter
}

// New creates an introspector over an adapter
func New(adapter db.Adapter) *Introspector {
	return &Introspector{adapter: adapter}
}

// Introspect reads every catalog fact for a table. Any adapter failure is
// wrapped in a *schema.IntrospectionError and no partial table is returned.
func (i *Introspector) Introspect(ctx context.Context, table string) (*schema.Table, error) {
	t, err := i.introspect(ctx, table)
	if err != nil {
		return nil, &schema.IntrospectionError{Table: table, Err: err}
	}
	return t, nil
}

func (i *Introspector) introspect(ctx context.Context, name string) (*schema.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	engine := i.adapter.Engine()
	table := &schema.Table{Name: name}

	// Extract columns
	rawColumns, err := i.adapter.GetColumns(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	for _, raw := range rawColumns {
		table.Columns = append(table.Columns, BuildColumn(engine, raw))
	}

	// Extract primary key
	pk, err := i.adapter.GetPrimaryKey(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract primary key: %w", err)
	}
	if pk != nil && len(pk.Columns) > 0 {
		table.PrimaryKey = &schema.PrimaryKey{Name: pk.Name, Columns: pk.Columns}
	}

	// Extract indexes
	rawIndexes, err := i.adapter.GetIndexes(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}
	table.Indexes = buildIndexes(table.PrimaryKey, rawIndexes)

	// Extract foreign keys
	rawFKs, err := i.adapter.GetForeignKeys(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	for _, raw := range rawFKs {
		table.ForeignKeys = append(table.ForeignKeys, buildForeignKey(raw))
	}

	// Extract constraints, deriving them when the engine has no catalog for them
	rawConstraints, err := i.adapter.GetConstraints(ctx, name)
	switch {
	case schema.IsUnsupported(err):
		table.Constraints = deriveConstraints(table)
	case err != nil:
		return nil, fmt.Errorf("failed to extract constraints: %w", err)
	default:
		table.Constraints = buildConstraints(rawConstraints)
	}

	// Extract engine metadata
	meta, err := i.adapter.GetTableMetadata(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract table metadata: %w", err)
	}
	table.Metadata = buildMetadata(engine, meta)

	table.HasTimestamps = hasTimestamps(table)
	table.HasSoftDeletes = hasSoftDeletes(table)

	return table, nil
}

// BuildColumn maps a raw column through the type table and refines the
// generator hints with the column's own facts
func BuildColumn(engine schema.Engine, raw db.RawColumn) schema.Column {
	m := typemap.MapType(engine, raw.NativeType)

	col := schema.Column{
		Name:          raw.Name,
		NativeType:    raw.NativeType,
		SemanticType:  m.Type,
		Length:        raw.Length,
		Precision:     raw.Precision,
		Scale:         raw.Scale,
		Nullable:      raw.Nullable,
		DefaultValue:  raw.Default,
		AutoIncrement: raw.AutoIncrement,
		Unsigned:      typemap.IsUnsigned(raw.NativeType),
		Comment:       raw.Comment,
	}

	switch {
	case len(raw.EnumValues) > 0:
		col.EnumValues = raw.EnumValues
	case m.Type == schema.TypeEnum:
		col.EnumValues = typemap.ParseEnumValues(raw.NativeType)
	}
	if len(col.EnumValues) > 0 && col.SemanticType != schema.TypeEnum {
		col.SemanticType = schema.TypeEnum
		m = typemap.For(schema.TypeEnum)
	}

	// Declared parameters fill in what the catalog did not report
	if col.Length == 0 && col.Precision == 0 {
		params := typemap.Params(raw.NativeType)
		switch {
		case len(params) == 0:
		case col.SemanticType == schema.TypeString || col.SemanticType == schema.TypeBinary:
			col.Length = params[0]
		case col.SemanticType == schema.TypeDecimal || col.SemanticType == schema.TypeDouble || col.SemanticType == schema.TypeFloat:
			col.Precision = params[0]
			if len(params) > 1 {
				col.Scale = params[1]
			}
		}
	}

	col.CastHint = castHint(col, m)
	col.ValidationHint = validationHint(col, m)
	col.FakeHint = m.Fake
	return col
}

func castHint(col schema.Column, m typemap.Mapping) string {
	if col.SemanticType == schema.TypeDecimal && col.Precision > 0 {
		return "decimal:" + strconv.Itoa(col.Scale)
	}
	return m.Cast
}

func validationHint(col schema.Column, m typemap.Mapping) string {
	var rules []string
	if col.Nullable {
		rules = append(rules, "nullable")
	}
	rules = append(rules, m.Validation)

	switch {
	case col.SemanticType == schema.TypeEnum && len(col.EnumValues) > 0:
		rules = append(rules, "in:"+strings.Join(col.EnumValues, ","))
	case col.SemanticType == schema.TypeString && col.Length > 0:
		rules = append(rules, "max:"+strconv.Itoa(col.Length))
	}
	return strings.Join(rules, "|")
}

func buildIndexes(pk *schema.PrimaryKey, raw []db.RawIndex) []schema.Index {
	indexes := make([]schema.Index, 0, len(raw)+1)
	hasPrimary := false
	for _, r := range raw {
		if r.Primary {
			hasPrimary = true
		}
		indexes = append(indexes, schema.Index{
			Name:    r.Name,
			Columns: r.Columns,
			Unique:  r.Unique || r.Primary,
			Primary: r.Primary,
		})
	}

	// Rowid tables and some catalogs expose no index backing the primary key
	if pk != nil && !hasPrimary {
		name := pk.Name
		if name == "" {
			name = "primary"
		}
		indexes = append([]schema.Index{{Name: name, Columns: pk.Columns, Unique: true, Primary: true}}, indexes...)
	}
	return indexes
}

func buildForeignKey(raw db.RawForeignKey) schema.ForeignKey {
	position := raw.Position
	if position == 0 {
		position = 1
	}
	return schema.ForeignKey{
		Name:          raw.Name,
		Column:        raw.Column,
		ForeignTable:  raw.ForeignTable,
		ForeignColumn: raw.ForeignColumn,
		OnUpdate:      schema.ParseReferentialAction(raw.OnUpdate),
		OnDelete:      schema.ParseReferentialAction(raw.OnDelete),
		Position:      position,
	}
}

func buildConstraints(raw []db.RawConstraint) []schema.Constraint {
	var constraints []schema.Constraint
	for _, r := range raw {
		kind, ok := schema.ParseConstraintKind(r.Kind)
		if !ok {
			continue
		}
		constraints = append(constraints, schema.Constraint{
			Name:       r.Name,
			Kind:       kind,
			Columns:    r.Columns,
			Definition: r.Definition,
		})
	}
	return constraints
}

// deriveConstraints rebuilds named constraints from keys and unique indexes
func deriveConstraints(t *schema.Table) []schema.Constraint {
	var constraints []schema.Constraint
	if t.PrimaryKey != nil {
		constraints = append(constraints, schema.Constraint{
			Name:    t.PrimaryKey.Name,
			Kind:    schema.ConstraintPrimaryKey,
			Columns: t.PrimaryKey.Columns,
		})
	}

	byName := make(map[string]int)
	for _, fk := range t.ForeignKeys {
		if i, ok := byName[fk.Name]; ok {
			constraints[i].Columns = append(constraints[i].Columns, fk.Column)
			continue
		}
		byName[fk.Name] = len(constraints)
		constraints = append(constraints, schema.Constraint{
			Name:    fk.Name,
			Kind:    schema.ConstraintForeignKey,
			Columns: []string{fk.Column},
		})
	}

	for _, idx := range t.Indexes {
		if idx.Unique && !idx.Primary {
			constraints = append(constraints, schema.Constraint{
				Name:    idx.Name,
				Kind:    schema.ConstraintUnique,
				Columns: idx.Columns,
			})
		}
	}
	return constraints
}

func buildMetadata(engine schema.Engine, raw *db.RawMetadata) schema.EngineMetadata {
	meta := schema.EngineMetadata{Engine: engine}
	if raw == nil {
		return meta
	}
	meta.Schema = raw.Schema
	meta.StorageEngine = raw.StorageEngine
	meta.Charset = raw.Charset
	meta.Collation = raw.Collation
	meta.Comment = raw.Comment
	meta.Partitioned = raw.Partitioned
	for _, trg := range raw.Triggers {
		meta.Triggers = append(meta.Triggers, schema.Trigger{Name: trg.Name, Timing: trg.Timing, Event: trg.Event})
	}
	return meta
}

func hasTimestamps(t *schema.Table) bool {
	created, ok := t.Column("created_at")
	if !ok || !created.SemanticType.IsDateTime() {
		return false
	}
	updated, ok := t.Column("updated_at")
	return ok && updated.SemanticType.IsDateTime()
}

func hasSoftDeletes(t *schema.Table) bool {
	deleted, ok := t.Column("deleted_at")
	return ok && deleted.Nullable
}
