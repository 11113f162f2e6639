package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tordrt/relschema/internal/schema"
)

// TableFormatter renders boxed tables, one per schema table, followed by
// the relationship list
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// Format writes the schema as boxed tables
func (f *TableFormatter) Format(s *schema.Schema) error {
	for i := range s.Tables {
		f.renderColumns(&s.Tables[i])
		_, _ = fmt.Fprintln(f.writer)
	}

	if len(s.Relationships) > 0 {
		t := f.newWriter()
		t.SetTitle("Relationships")
		t.AppendHeader(table.Row{"Owner", "Name", "Kind", "Related", "Keys"})
		for _, r := range s.Relationships {
			t.AppendRow(table.Row{r.OwnerTable, r.Name, r.Kind.String(), r.RelatedTable, relationshipKeys(r)})
		}
		t.Render()
		_, _ = fmt.Fprintln(f.writer)
	}

	if len(s.CreationOrder) > 0 {
		renderOrder(f.writer, s)
	}
	return nil
}

func (f *TableFormatter) newWriter() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.writer)
	t.SetStyle(table.StyleLight)
	return t
}

func (f *TableFormatter) renderColumns(tbl *schema.Table) {
	t := f.newWriter()
	t.SetTitle(tbl.Name)
	t.AppendHeader(table.Row{"Column", "Type", "Native", "Null", "Default", "Key", "Cast", "Validation"})
	for _, col := range tbl.Columns {
		t.AppendRow(table.Row{
			col.Name,
			col.SemanticType.String(),
			col.NativeType,
			yesNo(col.Nullable),
			defaultValue(col.DefaultValue),
			columnKey(tbl, col.Name),
			col.CastHint,
			col.ValidationHint,
		})
	}
	t.Render()
}

// renderOrder prints the numbered creation order and any deferred edges
func renderOrder(w io.Writer, s *schema.Schema) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Creation order")
	t.AppendHeader(table.Row{"#", "Table", "Depends on"})
	for i, name := range s.CreationOrder {
		t.AppendRow(table.Row{i + 1, name, strings.Join(s.DependencyGraph[name], ", ")})
	}
	t.Render()

	for _, e := range s.DeferredEdges {
		_, _ = fmt.Fprintf(w, "deferred: %s\n", describeEdge(e))
	}
}

func relationshipKeys(r schema.Relationship) string {
	switch {
	case r.Pivot != nil:
		return fmt.Sprintf("%s(%s, %s)", r.Pivot.Table, r.Pivot.ForeignPivotKey, r.Pivot.RelatedPivotKey)
	case r.Morph != nil:
		return fmt.Sprintf("%s, %s", r.Morph.TypeColumn, r.Morph.IDColumn)
	case r.Kind == schema.BelongsTo:
		return fmt.Sprintf("%s → %s", r.ForeignKey, r.LocalKey)
	default:
		return fmt.Sprintf("%s → %s", r.LocalKey, r.ForeignKey)
	}
}

func columnKey(t *schema.Table, name string) string {
	var keys []string
	if t.IsPrimaryKeyColumn(name) {
		keys = append(keys, "PK")
	}
	for _, fk := range t.ForeignKeys {
		if fk.Column == name {
			keys = append(keys, "FK")
			break
		}
	}
	if t.IsUnique(name) && !t.IsPrimaryKeyColumn(name) {
		keys = append(keys, "UQ")
	}
	return strings.Join(keys, ",")
}

func defaultValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
