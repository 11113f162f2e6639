// Package db holds one catalog adapter per supported engine. Adapters return
// raw, engine-neutral rows; semantic typing happens in the introspector.
package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/tordrt/relschema/internal/schema"
)

// Adapter reads catalog facts for one connection
type Adapter interface {
	Engine() schema.Engine
	Ping(ctx context.Context) error
	ListTables(ctx context.Context) ([]string, error)
	// GetColumns returns a *schema.TableNotFoundError when the table has no columns in the catalog
	GetColumns(ctx context.Context, table string) ([]RawColumn, error)
	// GetPrimaryKey returns nil for keyless tables
	GetPrimaryKey(ctx context.Context, table string) (*RawPrimaryKey, error)
	GetIndexes(ctx context.Context, table string) ([]RawIndex, error)
	GetForeignKeys(ctx context.Context, table string) ([]RawForeignKey, error)
	// GetConstraints may return a *schema.UnsupportedFeatureError
	GetConstraints(ctx context.Context, table string) ([]RawConstraint, error)
	GetTableMetadata(ctx context.Context, table string) (*RawMetadata, error)
}

// RawColumn is a column as the catalog reports it
type RawColumn struct {
	Name          string
	NativeType    string
	Nullable      bool
	Default       *string
	AutoIncrement bool
	Length        int
	Precision     int
	Scale         int
	Comment       string
	// EnumValues is only filled by catalogs that store labels apart from the type
	EnumValues []string
}

// RawPrimaryKey lists primary key columns in key order
type RawPrimaryKey struct {
	Name    string
	Columns []string
}

// RawIndex is one index with its columns in key order
type RawIndex struct {
	Name    string
	Columns []string
	Unique  bool
	Primary bool
}

// RawForeignKey is one column of a foreign key constraint. Actions keep the
// engine's own spelling. ForeignTable is qualified as schema.table when the
// target lives outside the adapter's schema.
type RawForeignKey struct {
	Name          string
	Column        string
	ForeignTable  string
	ForeignColumn string
	OnUpdate      string
	OnDelete      string
	Position      int
}

// RawConstraint is a named constraint; Kind keeps the catalog spelling
type RawConstraint struct {
	Name       string
	Kind       string
	Columns    []string
	Definition string
}

// RawMetadata holds optional table-level facts
type RawMetadata struct {
	Schema        string
	StorageEngine string
	Charset       string
	Collation     string
	Comment       string
	Partitioned   bool
	Triggers      []RawTrigger
}

// RawTrigger is a trigger attached to a table
type RawTrigger struct {
	Name   string
	Timing string
	Event  string
}

// catalog wraps the *sql.DB shared by every adapter and turns driver
// failures into connection errors
type catalog struct {
	db     *sql.DB
	engine schema.Engine
}

func (c catalog) fail(op string, err error) error {
	return &schema.ConnectionError{Engine: c.engine, Op: op, Err: err}
}

func (c catalog) ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return c.fail("ping", err)
	}
	return nil
}

// list runs a single-column query
func (c catalog) list(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, c.fail(op, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, c.fail(op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, c.fail(op, err)
	}
	return out, nil
}

// splitQualified splits "schema.table" and falls back to def for bare names
func splitQualified(name, def string) (string, string) {
	if i := strings.LastIndex(name, "."); i > 0 && i < len(name)-1 {
		return name[:i], name[i+1:]
	}
	return def, name
}

// qualify returns table unchanged when it lives in the current schema
func qualify(current, foreignSchema, table string) string {
	if foreignSchema == "" || foreignSchema == current {
		return table
	}
	return foreignSchema + "." + table
}

// splitList splits an aggregated column list, dropping empty items
func splitList(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullInt(ni sql.NullInt64) int {
	if !ni.Valid {
		return 0
	}
	return int(ni.Int64)
}
