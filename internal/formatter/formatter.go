// Package formatter renders an analyzed schema for people and for tools
package formatter

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/relschema/internal/schema"
)

// Output formats
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatTable    = "table"
)

// Formats lists every format New accepts
var Formats = []string{FormatText, FormatMarkdown, FormatJSON, FormatYAML, FormatTable}

// ErrUnknownFormat is returned for a format name New does not know
var ErrUnknownFormat = errors.New("unknown output format")

// Formatter writes a whole schema
type Formatter interface {
	Format(s *schema.Schema) error
}

// New returns the formatter for a format name. "md" is accepted for markdown.
func New(format string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(format) {
	case FormatText, "":
		return NewTextFormatter(w), nil
	case FormatMarkdown, "md":
		return NewMarkdownFormatter(w), nil
	case FormatJSON:
		return NewJSONFormatter(w), nil
	case FormatYAML, "yml":
		return NewYAMLFormatter(w), nil
	case FormatTable:
		return NewTableFormatter(w), nil
	}
	return nil, fmt.Errorf("%w %q (use %s)", ErrUnknownFormat, format, strings.Join(Formats, ", "))
}

// describeRelationship renders one relationship on a single line, e.g.
// "user: belongsTo users (user_id → users.id)"
func describeRelationship(r schema.Relationship) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", r.Name, r.Kind)

	switch r.Kind {
	case schema.BelongsTo:
		fmt.Fprintf(&b, " %s (%s → %s.%s)", r.RelatedTable, r.ForeignKey, r.RelatedTable, r.LocalKey)
	case schema.HasOne, schema.HasMany:
		fmt.Fprintf(&b, " %s (%s.%s → %s)", r.RelatedTable, r.RelatedTable, r.ForeignKey, r.LocalKey)
	case schema.BelongsToMany:
		fmt.Fprintf(&b, " %s", r.RelatedTable)
		if p := r.Pivot; p != nil {
			fmt.Fprintf(&b, " via %s (%s, %s)", p.Table, p.ForeignPivotKey, p.RelatedPivotKey)
			if len(p.Columns) > 0 {
				fmt.Fprintf(&b, " with %s", strings.Join(p.Columns, ", "))
			}
			if p.Timestamps {
				b.WriteString(" timestamps")
			}
		}
	case schema.MorphTo:
		if m := r.Morph; m != nil {
			fmt.Fprintf(&b, " (%s, %s)", m.TypeColumn, m.IDColumn)
		}
	case schema.MorphOne, schema.MorphMany:
		fmt.Fprintf(&b, " %s", r.RelatedTable)
		if m := r.Morph; m != nil {
			fmt.Fprintf(&b, " as %s", m.Name)
		}
	}

	if r.Nullable {
		b.WriteString(" NULLABLE")
	}
	if r.OnDelete != schema.Restrict {
		fmt.Fprintf(&b, " ON DELETE %s", r.OnDelete)
	}
	return b.String()
}

// columnFlags lists the constraint words shown after a column type
func columnFlags(table *schema.Table, col schema.Column) []string {
	var flags []string
	if table.IsUnique(col.Name) && !table.IsPrimaryKeyColumn(col.Name) {
		flags = append(flags, "UNIQUE")
	}
	if !col.Nullable {
		flags = append(flags, "NOT NULL")
	}
	if col.DefaultValue != nil {
		flags = append(flags, "DEFAULT "+*col.DefaultValue)
	}
	if col.AutoIncrement {
		flags = append(flags, "AUTO_INCREMENT")
	}
	return flags
}

// columnType renders "semantic (native)" plus enum labels
func columnType(col schema.Column) string {
	s := fmt.Sprintf("%s (%s)", col.SemanticType, col.NativeType)
	if len(col.EnumValues) > 0 {
		s += " [" + strings.Join(col.EnumValues, "|") + "]"
	}
	return s
}

func tableTraits(table *schema.Table) []string {
	var traits []string
	if table.HasTimestamps {
		traits = append(traits, "timestamps")
	}
	if table.HasSoftDeletes {
		traits = append(traits, "soft deletes")
	}
	return traits
}

func describeEdge(e schema.DependencyEdge) string {
	return fmt.Sprintf("%s → %s", e.Table, e.DependsOn)
}
