package formatter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tordrt/relschema/internal/schema"
)

// MultiFileFormatter writes schema to multiple files in a directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	if format == "md" {
		format = FormatMarkdown
	}
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes an overview file plus one file per table
func (f *MultiFileFormatter) Format(s *schema.Schema) error {
	if f.OutputFormat != FormatText && f.OutputFormat != FormatMarkdown {
		return fmt.Errorf("%w %q for multi-file output (use text or markdown)", ErrUnknownFormat, f.OutputFormat)
	}

	// Create output directory if it doesn't exist
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeFile("_overview", func(w io.Writer) { f.writeOverview(w, s) }); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for i := range s.Tables {
		table := &s.Tables[i]
		rels := s.RelationshipsOf(table.Name)
		write := func(w io.Writer) {
			if f.OutputFormat == FormatMarkdown {
				NewMarkdownFormatter(w).FormatTable(table, rels)
				return
			}
			NewTextFormatter(w).formatTable(table, rels)
		}
		if err := f.writeFile(fileName(table.Name), write); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", table.Name, err)
		}
	}
	return nil
}

func (f *MultiFileFormatter) writeFile(name string, write func(w io.Writer)) error {
	file, err := os.Create(filepath.Join(f.OutputDir, name+f.getFileExtension()))
	if err != nil {
		return err
	}
	write(file)
	return file.Close()
}

func (f *MultiFileFormatter) writeOverview(w io.Writer, s *schema.Schema) {
	sorted := slices.Clone(s.Tables)
	slices.SortFunc(sorted, func(a, b schema.Table) int { return strings.Compare(a.Name, b.Name) })

	if f.OutputFormat == FormatMarkdown {
		_, _ = fmt.Fprintf(w, "# Schema Overview\n\n")
		_, _ = fmt.Fprintf(w, "Each table has a corresponding file: `<table_name>%s`\n\n", f.getFileExtension())
		_, _ = fmt.Fprintf(w, "## Tables\n\n")
		for _, table := range sorted {
			_, _ = fmt.Fprintf(w, "- **%s**", table.Name)
			if refs := references(s, table.Name); len(refs) > 0 {
				_, _ = fmt.Fprintf(w, " (references: %s)", strings.Join(refs, ", "))
			}
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintln(w)
		NewMarkdownFormatter(w).formatOrder(s)
		return
	}

	_, _ = fmt.Fprintf(w, "SCHEMA OVERVIEW\n")
	_, _ = fmt.Fprintf(w, "Each table has a file: <table_name>%s\n\n", f.getFileExtension())
	for _, table := range sorted {
		_, _ = fmt.Fprint(w, table.Name)
		if refs := references(s, table.Name); len(refs) > 0 {
			_, _ = fmt.Fprintf(w, " (references: %s)", strings.Join(refs, ","))
		}
		_, _ = fmt.Fprintln(w)
	}
	_, _ = fmt.Fprintln(w)
	NewTextFormatter(w).formatOrder(s)
}

// references lists the tables a table points at through its foreign keys
func references(s *schema.Schema, table string) []string {
	var targets []string
	for _, r := range s.RelationshipsOf(table) {
		if r.Kind == schema.BelongsTo && !slices.Contains(targets, r.RelatedTable) {
			targets = append(targets, r.RelatedTable)
		}
	}
	return targets
}

// fileName keeps schema-qualified names on one path level
func fileName(table string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(table)
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}
