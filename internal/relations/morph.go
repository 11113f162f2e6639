package relations

import (
	"strings"

	"github.com/tordrt/relschema/internal/inflect"
	"github.com/tordrt/relschema/internal/schema"
)

// morphPairs finds {name}_type + {name}_id column pairs in column order.
// Pairs whose id column is a resolved foreign key are real BelongsTo keys.
func (a *analysis) morphPairs(t *schema.Table) []schema.Morph {
	keyed := make(map[string]bool)
	for _, fk := range a.resolved(t) {
		keyed[fk.Column] = true
	}

	var pairs []schema.Morph
	for _, col := range t.Columns {
		name, ok := strings.CutSuffix(col.Name, "_type")
		if !ok || name == "" {
			continue
		}
		id := name + "_id"
		if !t.HasColumn(id) || keyed[id] {
			continue
		}
		pairs = append(pairs, schema.Morph{Name: name, TypeColumn: col.Name, IDColumn: id})
	}
	return pairs
}

// morphRelations emits MorphTo on t and best-effort MorphOne/MorphMany
// back-references on tables whose name matches the morph name
func (a *analysis) morphRelations(t *schema.Table) []schema.Relationship {
	var out []schema.Relationship
	for _, m := range a.morphPairs(t) {
		nullable := false
		if col, ok := t.Column(m.IDColumn); ok {
			nullable = col.Nullable
		}
		morph := m
		out = append(out, schema.Relationship{
			Kind:       schema.MorphTo,
			Name:       m.Name,
			OwnerTable: t.Name,
			ForeignKey: m.IDColumn,
			Nullable:   nullable,
			Morph:      &morph,
		})

		kind := schema.MorphMany
		name := a.in.Plural(t.Name)
		if t.IsUnique(m.TypeColumn, m.IDColumn) {
			kind = schema.MorphOne
			name = a.in.Singular(t.Name)
		}

		for i := range a.tables {
			target := &a.tables[i]
			if target.Name == t.Name || !morphMatches(a.in, m.Name, target.Name) {
				continue
			}
			back := m
			out = append(out, schema.Relationship{
				Kind:         kind,
				Name:         name,
				OwnerTable:   target.Name,
				RelatedTable: t.Name,
				ForeignKey:   m.IDColumn,
				LocalKey:     localKey(target),
				Nullable:     nullable,
				Morph:        &back,
			})
		}
	}
	return out
}

// morphMatches compares a morph name with a table name in singular or plural
// form, also trying the stem of "-able" names ("commentable" -> "comment")
func morphMatches(in inflect.Inflector, morph, table string) bool {
	if inflect.Same(in, morph, table) {
		return true
	}
	stem, ok := strings.CutSuffix(morph, "able")
	if !ok || stem == "" {
		return false
	}
	if inflect.Same(in, stem, table) {
		return true
	}
	// taggable -> tagg -> tag
	if n := len(stem); n > 1 && stem[n-1] == stem[n-2] {
		return inflect.Same(in, stem[:n-1], table)
	}
	return false
}

// localKey is the single primary key column, or "id" by convention
func localKey(t *schema.Table) string {
	if t.PrimaryKey != nil && len(t.PrimaryKey.Columns) == 1 {
		return t.PrimaryKey.Columns[0]
	}
	return "id"
}
