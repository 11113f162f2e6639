package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tordrt/relschema/internal/schema"
)

// Order is the creation-order view of a schema
type Order struct {
	CreationOrder []string                `json:"creation_order" yaml:"creation_order"`
	DeferredEdges []schema.DependencyEdge `json:"deferred_edges" yaml:"deferred_edges"`
	// Cycle is one dependency cycle as a closed path, empty when the graph is acyclic
	Cycle []string `json:"cycle,omitempty" yaml:"cycle,omitempty"`
}

// WriteOrder renders the creation order in the given format
func WriteOrder(w io.Writer, format string, s *schema.Schema, cycle []string) error {
	o := Order{
		CreationOrder: s.CreationOrder,
		DeferredEdges: s.DeferredEdges,
		Cycle:         cycle,
	}
	if o.DeferredEdges == nil {
		o.DeferredEdges = []schema.DependencyEdge{}
	}

	switch strings.ToLower(format) {
	case FormatJSON:
		return encodeJSON(w, o)
	case FormatYAML, "yml":
		return encodeYAML(w, o)
	case FormatTable:
		renderOrder(w, s)
	case FormatMarkdown, "md":
		NewMarkdownFormatter(w).formatOrder(s)
	case FormatText, "":
		for i, name := range s.CreationOrder {
			_, _ = fmt.Fprintf(w, "%d. %s\n", i+1, name)
		}
		for _, e := range s.DeferredEdges {
			_, _ = fmt.Fprintf(w, "deferred: %s\n", describeEdge(e))
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}

	if len(cycle) > 0 {
		_, _ = fmt.Fprintf(w, "cycle: %s\n", strings.Join(cycle, " → "))
	}
	return nil
}

// WriteTableList renders a list of table names in the given format
func WriteTableList(w io.Writer, format string, names []string) error {
	if names == nil {
		names = []string{}
	}

	switch strings.ToLower(format) {
	case FormatJSON:
		return encodeJSON(w, names)
	case FormatYAML, "yml":
		return encodeYAML(w, names)
	case FormatTable:
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"#", "Table"})
		for i, name := range names {
			t.AppendRow(table.Row{i + 1, name})
		}
		t.Render()
		_, _ = fmt.Fprintf(w, "(%d tables)\n", len(names))
	case FormatMarkdown, "md":
		for _, name := range names {
			_, _ = fmt.Fprintf(w, "- %s\n", name)
		}
	case FormatText, "":
		for _, name := range names {
			_, _ = fmt.Fprintln(w, name)
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
	return nil
}
