package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/relschema/internal/schema"
)

// MarkdownFormatter formats schema as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the schema in markdown format
func (f *MarkdownFormatter) Format(s *schema.Schema) error {
	_, _ = fmt.Fprintln(f.writer, "# Database Schema")
	_, _ = fmt.Fprintln(f.writer)
	if s.ConnectionID != "" {
		_, _ = fmt.Fprintf(f.writer, "Source: `%s` (%s)\n\n", s.ConnectionID, s.Engine)
	}

	for i := range s.Tables {
		table := &s.Tables[i]
		f.FormatTable(table, s.RelationshipsOf(table.Name))
	}

	if len(s.CreationOrder) > 0 {
		f.formatOrder(s)
	}
	return nil
}

// FormatTable formats a single table with the relationships it owns
// (exported for use by multifile formatter)
func (f *MarkdownFormatter) FormatTable(table *schema.Table, rels []schema.Relationship) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", table.Name)
	if traits := tableTraits(table); len(traits) > 0 {
		_, _ = fmt.Fprintf(f.writer, "_%s_\n\n", strings.Join(traits, ", "))
	}

	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)
	for _, col := range table.Columns {
		flags := columnFlags(table, col)
		if table.IsPrimaryKeyColumn(col.Name) {
			flags = append([]string{"PK"}, flags...)
		}
		if len(flags) > 0 {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, %s\n", col.Name, columnType(col), strings.Join(flags, ", "))
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", col.Name, columnType(col))
		}
	}
	_, _ = fmt.Fprintln(f.writer)

	if len(rels) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Relationships")
		_, _ = fmt.Fprintln(f.writer)
		for _, rel := range rels {
			_, _ = fmt.Fprintf(f.writer, "- %s\n", describeRelationship(rel))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Indexes")
		_, _ = fmt.Fprintln(f.writer)
		for _, idx := range table.Indexes {
			switch {
			case idx.Primary:
				_, _ = fmt.Fprintf(f.writer, "- %s on (%s), primary\n", idx.Name, strings.Join(idx.Columns, ", "))
			case idx.Unique:
				_, _ = fmt.Fprintf(f.writer, "- %s on (%s), unique\n", idx.Name, strings.Join(idx.Columns, ", "))
			default:
				_, _ = fmt.Fprintf(f.writer, "- %s on (%s)\n", idx.Name, strings.Join(idx.Columns, ", "))
			}
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}

func (f *MarkdownFormatter) formatOrder(s *schema.Schema) {
	_, _ = fmt.Fprintln(f.writer, "## Creation Order")
	_, _ = fmt.Fprintln(f.writer)
	for i, name := range s.CreationOrder {
		_, _ = fmt.Fprintf(f.writer, "%d. %s\n", i+1, name)
	}
	_, _ = fmt.Fprintln(f.writer)

	if len(s.DeferredEdges) > 0 {
		_, _ = fmt.Fprintln(f.writer, "Deferred foreign keys (cycle):")
		_, _ = fmt.Fprintln(f.writer)
		for _, e := range s.DeferredEdges {
			_, _ = fmt.Fprintf(f.writer, "- %s\n", describeEdge(e))
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}
