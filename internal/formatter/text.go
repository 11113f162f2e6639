package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/relschema/internal/schema"
)

// TextFormatter formats schema as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the schema in compact text format
func (f *TextFormatter) Format(s *schema.Schema) error {
	for i := range s.Tables {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}
		table := &s.Tables[i]
		f.formatTable(table, s.RelationshipsOf(table.Name))
	}

	if len(s.CreationOrder) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		f.formatOrder(s)
	}
	return nil
}

func (f *TextFormatter) formatTable(table *schema.Table, rels []schema.Relationship) {
	// Table header with primary key
	header := "TABLE " + table.Name
	if table.PrimaryKey != nil {
		header += fmt.Sprintf(" (PK: %s)", strings.Join(table.PrimaryKey.Columns, ", "))
	}
	if traits := tableTraits(table); len(traits) > 0 {
		header += " [" + strings.Join(traits, ", ") + "]"
	}
	_, _ = fmt.Fprintln(f.writer, header)

	for _, col := range table.Columns {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", f.formatColumn(table, col))
	}

	if len(rels) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  RELATIONSHIPS:")
		for _, rel := range rels {
			_, _ = fmt.Fprintf(f.writer, "    %s\n", describeRelationship(rel))
		}
	}

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  INDEXES:")
		for _, idx := range table.Indexes {
			kind := ""
			switch {
			case idx.Primary:
				kind = " PRIMARY"
			case idx.Unique:
				kind = " UNIQUE"
			}
			_, _ = fmt.Fprintf(f.writer, "    %s (%s)%s\n", idx.Name, strings.Join(idx.Columns, ", "), kind)
		}
	}
}

func (f *TextFormatter) formatColumn(table *schema.Table, col schema.Column) string {
	parts := []string{col.Name + ":", columnType(col)}
	parts = append(parts, columnFlags(table, col)...)
	if col.Comment != "" {
		parts = append(parts, "-- "+col.Comment)
	}
	return strings.Join(parts, " ")
}

func (f *TextFormatter) formatOrder(s *schema.Schema) {
	_, _ = fmt.Fprintf(f.writer, "CREATION ORDER: %s\n", strings.Join(s.CreationOrder, ", "))
	if len(s.DeferredEdges) > 0 {
		edges := make([]string, 0, len(s.DeferredEdges))
		for _, e := range s.DeferredEdges {
			edges = append(edges, describeEdge(e))
		}
		_, _ = fmt.Fprintf(f.writer, "DEFERRED: %s\n", strings.Join(edges, ", "))
	}
}
