package relations

import (
	"strings"

	"github.com/tordrt/relschema/internal/schema"
)

// stripKey removes the conventional key suffix: "user_id" -> "user", "authorId" -> "author"
func stripKey(column string) string {
	switch {
	case len(column) > 3 && strings.HasSuffix(strings.ToLower(column), "_id"):
		return column[:len(column)-3]
	case len(column) > 2 && strings.HasSuffix(column, "Id"):
		return column[:len(column)-2]
	}
	return column
}

// belongsToNames derives one name per foreign key. A stripped name that is
// shared by two keys or shadows a real column falls back to the raw column.
func belongsToNames(t *schema.Table, fks []schema.ForeignKey) []string {
	counts := make(map[string]int, len(fks))
	for _, fk := range fks {
		counts[stripKey(fk.Column)]++
	}

	names := make([]string, len(fks))
	for i, fk := range fks {
		name := stripKey(fk.Column)
		if name == fk.Column || counts[name] > 1 || t.HasColumn(name) {
			name = fk.Column
		}
		names[i] = name
	}
	return names
}

// reverseName names the HasOne/HasMany side on the parent: the child table in
// singular or plural form, prefixed by the key when the child points at the
// parent more than once or at itself.
func (a *analysis) reverseName(child string, fk schema.ForeignKey, kind schema.RelationKind, shared bool) string {
	base := a.in.Plural(child)
	if kind == schema.HasOne {
		base = a.in.Singular(child)
	}

	stem := stripKey(fk.Column)
	if fk.ForeignTable == child {
		if strings.EqualFold(stem, "parent") {
			if kind == schema.HasOne {
				return "child"
			}
			return "children"
		}
		shared = true
	}
	if !shared {
		return base
	}
	return stem + "_" + base
}
