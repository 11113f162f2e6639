package relations

import (
	"slices"

	"github.com/tordrt/relschema/internal/schema"
)

// pivot records the two keys of a join table in declaration order
type pivot struct {
	first, second schema.ForeignKey
	columns       []string
}

var timestampColumns = []string{"created_at", "updated_at"}

// detectPivots classifies join tables. A pivot has exactly two foreign key
// constraints, both resolved to tables other than itself, and no columns
// beyond its keys and timestamps unless the key pair is unique, in which case
// the extra columns are pivot data. Tables referenced by others are entities.
func (a *analysis) detectPivots() map[string]pivot {
	referenced := make(map[string]bool)
	for i := range a.tables {
		for _, fk := range a.resolved(&a.tables[i]) {
			if fk.ForeignTable != a.tables[i].Name {
				referenced[fk.ForeignTable] = true
			}
		}
	}

	pivots := make(map[string]pivot)
	for i := range a.tables {
		t := &a.tables[i]
		if referenced[t.Name] {
			continue
		}
		if p, ok := a.asPivot(t); ok {
			pivots[t.Name] = p
		}
	}
	return pivots
}

func (a *analysis) asPivot(t *schema.Table) (pivot, bool) {
	constraints := make(map[string]bool)
	for _, fk := range t.ForeignKeys {
		constraints[fk.Name] = true
	}
	fks := a.resolved(t)
	if len(constraints) != 2 || len(fks) != 2 {
		return pivot{}, false
	}
	for _, fk := range fks {
		if fk.ForeignTable == t.Name {
			return pivot{}, false
		}
	}

	var extra []string
	for _, col := range t.Columns {
		switch {
		case slices.ContainsFunc(t.ForeignKeys, func(fk schema.ForeignKey) bool { return fk.Column == col.Name }):
		case slices.Contains(timestampColumns, col.Name):
		case t.IsPrimaryKeyColumn(col.Name):
		default:
			extra = append(extra, col.Name)
		}
	}
	if len(extra) > 0 && !t.IsUnique(fks[0].Column, fks[1].Column) {
		return pivot{}, false
	}

	return pivot{first: fks[0], second: fks[1], columns: extra}, true
}

// pivotRelations emits BelongsToMany on both sides of a join table, or once
// when both keys reference the same table
func (a *analysis) pivotRelations(t *schema.Table, p pivot) []schema.Relationship {
	out := []schema.Relationship{a.belongsToMany(t, p.first, p.second, p.columns)}
	if p.first.ForeignTable != p.second.ForeignTable {
		out = append(out, a.belongsToMany(t, p.second, p.first, p.columns))
	}
	return out
}

func (a *analysis) belongsToMany(t *schema.Table, local, related schema.ForeignKey, columns []string) schema.Relationship {
	name := stripKey(related.Column)
	if name == related.Column {
		name = related.ForeignTable
	}
	return schema.Relationship{
		Kind:         schema.BelongsToMany,
		Name:         a.in.Plural(name),
		OwnerTable:   local.ForeignTable,
		RelatedTable: related.ForeignTable,
		LocalKey:     local.ForeignColumn,
		OnDelete:     local.OnDelete,
		Pivot: &schema.Pivot{
			Table:           t.Name,
			ForeignPivotKey: local.Column,
			RelatedPivotKey: related.Column,
			Columns:         slices.Clone(columns),
			Timestamps:      t.HasTimestamps,
		},
	}
}
