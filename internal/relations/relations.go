// Package relations infers application-level relationships from foreign keys
// and naming conventions across a fully introspected table set.
package relations

import (
	"cmp"
	"slices"

	"github.com/tordrt/relschema/internal/inflect"
	"github.com/tordrt/relschema/internal/schema"
)

// Options tunes inference. The zero value uses English inflection.
type Options struct {
	Inflector inflect.Inflector
}

// analysis holds the lookups shared by every inference step
type analysis struct {
	tables []schema.Table
	order  map[string]int
	pivots map[string]pivot
	in     inflect.Inflector
}

// Analyze infers every relationship between the given tables. Foreign keys
// whose target is outside the set are ignored. The result is ordered by owner
// (input order), kind, key column, related table and name.
func Analyze(tables []schema.Table, opts Options) []schema.Relationship {
	a := &analysis{
		tables: tables,
		order:  make(map[string]int, len(tables)),
		in:     opts.Inflector,
	}
	if a.in == nil {
		a.in = inflect.Default()
	}
	for i, t := range tables {
		if _, ok := a.order[t.Name]; !ok {
			a.order[t.Name] = i
		}
	}
	a.pivots = a.detectPivots()

	var out []schema.Relationship
	for i := range tables {
		t := &tables[i]
		if _, ok := a.pivots[t.Name]; ok {
			continue
		}
		out = append(out, a.foreignKeyRelations(t)...)
	}
	for i := range tables {
		out = append(out, a.morphRelations(&tables[i])...)
	}
	for i := range tables {
		if p, ok := a.pivots[tables[i].Name]; ok {
			out = append(out, a.pivotRelations(&tables[i], p)...)
		}
	}

	a.sort(out)
	return out
}

// resolved returns the first-column foreign keys that point into the table set.
// Composite constraints contribute one relationship through their first column.
func (a *analysis) resolved(t *schema.Table) []schema.ForeignKey {
	var fks []schema.ForeignKey
	for _, fk := range t.ForeignKeys {
		if fk.Position > 1 {
			continue
		}
		if _, ok := a.order[fk.ForeignTable]; !ok {
			continue
		}
		fks = append(fks, fk)
	}
	return fks
}

func (a *analysis) table(name string) *schema.Table {
	i, ok := a.order[name]
	if !ok {
		return nil
	}
	return &a.tables[i]
}

// foreignKeyRelations emits each BelongsTo on t together with its mirror on the parent
func (a *analysis) foreignKeyRelations(t *schema.Table) []schema.Relationship {
	fks := a.resolved(t)
	if len(fks) == 0 {
		return nil
	}
	names := belongsToNames(t, fks)

	// References from t to the same parent need distinct reverse names
	perParent := make(map[string]int)
	for _, fk := range fks {
		perParent[fk.ForeignTable]++
	}

	out := make([]schema.Relationship, 0, 2*len(fks))
	for i, fk := range fks {
		nullable := false
		if col, ok := t.Column(fk.Column); ok {
			nullable = col.Nullable
		}

		out = append(out, schema.Relationship{
			Kind:         schema.BelongsTo,
			Name:         names[i],
			OwnerTable:   t.Name,
			RelatedTable: fk.ForeignTable,
			ForeignKey:   fk.Column,
			LocalKey:     fk.ForeignColumn,
			Nullable:     nullable,
			OnDelete:     fk.OnDelete,
		})

		kind := schema.HasMany
		if t.IsUnique(fk.Column) {
			kind = schema.HasOne
		}
		out = append(out, schema.Relationship{
			Kind:         kind,
			Name:         a.reverseName(t.Name, fk, kind, perParent[fk.ForeignTable] > 1),
			OwnerTable:   fk.ForeignTable,
			RelatedTable: t.Name,
			ForeignKey:   fk.Column,
			LocalKey:     fk.ForeignColumn,
			Nullable:     nullable,
			OnDelete:     fk.OnDelete,
		})
	}
	return out
}

func (a *analysis) sort(rels []schema.Relationship) {
	slices.SortStableFunc(rels, func(x, y schema.Relationship) int {
		return cmp.Or(
			cmp.Compare(a.order[x.OwnerTable], a.order[y.OwnerTable]),
			cmp.Compare(x.Kind, y.Kind),
			cmp.Compare(keyColumn(x), keyColumn(y)),
			cmp.Compare(x.RelatedTable, y.RelatedTable),
			cmp.Compare(x.Name, y.Name),
		)
	})
}

// keyColumn is the column a relationship is keyed by on its child side
func keyColumn(r schema.Relationship) string {
	switch {
	case r.Pivot != nil:
		return r.Pivot.RelatedPivotKey
	case r.Morph != nil:
		return r.Morph.IDColumn
	}
	return r.ForeignKey
}
