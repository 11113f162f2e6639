package db

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/tordrt/relschema/internal/schema"
)

var triggerClause = regexp.MustCompile(`(?is)\bTRIGGER\b.*?\b(BEFORE|AFTER|INSTEAD\s+OF)?\s*\b(INSERT|UPDATE|DELETE)\b`)

// SQLiteAdapter reads PRAGMA table-valued functions and sqlite_master
type SQLiteAdapter struct {
	catalog
}

// NewSQLiteAdapter creates an adapter over any SQLite driver
func NewSQLiteAdapter(db *sql.DB) *SQLiteAdapter {
	return &SQLiteAdapter{catalog: catalog{db: db, engine: schema.EngineSQLite}}
}

func (a *SQLiteAdapter) Engine() schema.Engine { return schema.EngineSQLite }

func (a *SQLiteAdapter) Ping(ctx context.Context) error { return a.ping(ctx) }

// ListTables returns user tables, skipping SQLite's internal ones
func (a *SQLiteAdapter) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`
	return a.list(ctx, "list tables", query)
}

type sqliteColumn struct {
	name     string
	declared string
	notNull  bool
	dflt     sql.NullString
	pk       int
}

func (a *SQLiteAdapter) tableInfo(ctx context.Context, table string) ([]sqliteColumn, error) {
	query := `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`

	rows, err := a.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, a.fail("table info", err)
	}
	defer rows.Close()

	var columns []sqliteColumn
	for rows.Next() {
		var col sqliteColumn
		if err := rows.Scan(&col.name, &col.declared, &col.notNull, &col.dflt, &col.pk); err != nil {
			return nil, a.fail("table info", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("table info", err)
	}
	return columns, nil
}

// GetColumns returns columns in declaration order. A lone INTEGER primary key
// aliases the rowid and is reported as auto-incrementing.
func (a *SQLiteAdapter) GetColumns(ctx context.Context, table string) ([]RawColumn, error) {
	info, err := a.tableInfo(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(info) == 0 {
		return nil, &schema.TableNotFoundError{Engine: schema.EngineSQLite, Table: table}
	}

	pkCount := 0
	for _, c := range info {
		if c.pk > 0 {
			pkCount++
		}
	}

	columns := make([]RawColumn, 0, len(info))
	for _, c := range info {
		columns = append(columns, RawColumn{
			Name:       c.name,
			NativeType: c.declared,
			// SQLite allows NULL in non-INTEGER primary keys unless declared NOT NULL
			Nullable:      !c.notNull && c.pk == 0,
			Default:       nullString(c.dflt),
			AutoIncrement: pkCount == 1 && c.pk > 0 && strings.EqualFold(strings.TrimSpace(c.declared), "integer"),
		})
	}
	return columns, nil
}

// GetPrimaryKey returns primary key columns ordered by their key position
func (a *SQLiteAdapter) GetPrimaryKey(ctx context.Context, table string) (*RawPrimaryKey, error) {
	info, err := a.tableInfo(ctx, table)
	if err != nil {
		return nil, err
	}

	keyed := slices.DeleteFunc(info, func(c sqliteColumn) bool { return c.pk == 0 })
	if len(keyed) == 0 {
		return nil, nil
	}
	slices.SortStableFunc(keyed, func(x, y sqliteColumn) int { return cmp.Compare(x.pk, y.pk) })

	pk := &RawPrimaryKey{Name: "primary"}
	for _, c := range keyed {
		pk.Columns = append(pk.Columns, c.name)
	}
	return pk, nil
}

// GetIndexes returns explicit and automatic indexes; rowid tables have no primary index
func (a *SQLiteAdapter) GetIndexes(ctx context.Context, table string) ([]RawIndex, error) {
	query := `SELECT name, "unique", origin FROM pragma_index_list(?)`

	rows, err := a.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, a.fail("indexes", err)
	}

	var indexes []RawIndex
	for rows.Next() {
		var idx RawIndex
		var origin string
		if err := rows.Scan(&idx.Name, &idx.Unique, &origin); err != nil {
			rows.Close()
			return nil, a.fail("indexes", err)
		}
		idx.Primary = origin == "pk"
		indexes = append(indexes, idx)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, a.fail("indexes", err)
	}
	rows.Close()

	for i := range indexes {
		columns, err := a.indexColumns(ctx, indexes[i].Name)
		if err != nil {
			return nil, err
		}
		indexes[i].Columns = columns
	}

	// Expression-only indexes carry no named columns
	indexes = slices.DeleteFunc(indexes, func(idx RawIndex) bool { return len(idx.Columns) == 0 })
	slices.SortStableFunc(indexes, func(x, y RawIndex) int {
		if x.Primary != y.Primary {
			if x.Primary {
				return -1
			}
			return 1
		}
		return cmp.Compare(x.Name, y.Name)
	})
	return indexes, nil
}

func (a *SQLiteAdapter) indexColumns(ctx context.Context, index string) ([]string, error) {
	query := `SELECT name FROM pragma_index_info(?) ORDER BY seqno`

	rows, err := a.db.QueryContext(ctx, query, index)
	if err != nil {
		return nil, a.fail("index columns", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, a.fail("index columns", err)
		}
		if name.Valid {
			columns = append(columns, name.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("index columns", err)
	}
	return columns, nil
}

// GetForeignKeys reads pragma_foreign_key_list. SQLite constraints are
// unnamed, so names are synthesized from the first column. A missing target
// column means the parent's primary key.
func (a *SQLiteAdapter) GetForeignKeys(ctx context.Context, table string) ([]RawForeignKey, error) {
	query := `
		SELECT id, seq, "table", "from", "to", on_update, on_delete
		FROM pragma_foreign_key_list(?)
		ORDER BY id DESC, seq
	`

	rows, err := a.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, a.fail("foreign keys", err)
	}

	type fkRow struct {
		id, seq int
		fk      RawForeignKey
		to      sql.NullString
	}
	var raw []fkRow
	for rows.Next() {
		var r fkRow
		if err := rows.Scan(&r.id, &r.seq, &r.fk.ForeignTable, &r.fk.Column, &r.to, &r.fk.OnUpdate, &r.fk.OnDelete); err != nil {
			rows.Close()
			return nil, a.fail("foreign keys", err)
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, a.fail("foreign keys", err)
	}
	rows.Close()

	names := make(map[int]string)
	parentKeys := make(map[string][]string)
	fks := make([]RawForeignKey, 0, len(raw))
	for _, r := range raw {
		if _, ok := names[r.id]; !ok {
			names[r.id] = fmt.Sprintf("%s_%s_foreign", table, r.fk.Column)
		}
		fk := r.fk
		fk.Name = names[r.id]
		fk.Position = r.seq + 1
		fk.ForeignColumn = r.to.String

		if !r.to.Valid || r.to.String == "" {
			keys, ok := parentKeys[fk.ForeignTable]
			if !ok {
				pk, err := a.GetPrimaryKey(ctx, fk.ForeignTable)
				if err != nil {
					return nil, err
				}
				if pk != nil {
					keys = pk.Columns
				}
				parentKeys[fk.ForeignTable] = keys
			}
			if r.seq < len(keys) {
				fk.ForeignColumn = keys[r.seq]
			}
		}
		fks = append(fks, fk)
	}
	return fks, nil
}

// GetConstraints is not backed by a catalog on SQLite
func (a *SQLiteAdapter) GetConstraints(ctx context.Context, table string) ([]RawConstraint, error) {
	return nil, &schema.UnsupportedFeatureError{Engine: schema.EngineSQLite, Feature: "constraint"}
}

// GetTableMetadata returns the database encoding and the table's triggers
func (a *SQLiteAdapter) GetTableMetadata(ctx context.Context, table string) (*RawMetadata, error) {
	var count int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
	if err != nil {
		return nil, a.fail("table metadata", err)
	}
	if count == 0 {
		return nil, &schema.TableNotFoundError{Engine: schema.EngineSQLite, Table: table}
	}

	meta := &RawMetadata{Schema: "main"}
	if err := a.db.QueryRowContext(ctx, "PRAGMA encoding").Scan(&meta.Charset); err != nil {
		return nil, a.fail("encoding", err)
	}

	query := `
		SELECT name, COALESCE(sql, '')
		FROM sqlite_master
		WHERE type = 'trigger' AND tbl_name = ?
		ORDER BY name
	`
	rows, err := a.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, a.fail("triggers", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, ddl string
		if err := rows.Scan(&name, &ddl); err != nil {
			return nil, a.fail("triggers", err)
		}
		meta.Triggers = append(meta.Triggers, parseSQLiteTrigger(name, ddl))
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("triggers", err)
	}
	return meta, nil
}

// parseSQLiteTrigger reads timing and event from CREATE TRIGGER text.
// SQLite defaults to BEFORE when no timing is given.
func parseSQLiteTrigger(name, ddl string) RawTrigger {
	trg := RawTrigger{Name: name, Timing: "BEFORE"}
	m := triggerClause.FindStringSubmatch(ddl)
	if m == nil {
		return trg
	}
	if m[1] != "" {
		trg.Timing = strings.ToUpper(strings.Join(strings.Fields(m[1]), " "))
	}
	trg.Event = strings.ToUpper(m[2])
	return trg
}
