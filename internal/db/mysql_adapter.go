package db

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/hashicorp/go-version"

	"github.com/tordrt/relschema/internal/schema"
)

var (
	// CHECK constraints are only recorded in information_schema from these releases on
	mysqlCheckSince   = version.Must(version.NewVersion("8.0.16"))
	mariadbCheckSince = version.Must(version.NewVersion("10.2.1"))

	leadingVersion = regexp.MustCompile(`^\d+(\.\d+)*`)
)

// MySQLAdapter reads information_schema on MySQL and MariaDB
type MySQLAdapter struct {
	catalog
	schemaName string

	versionMu sync.Mutex
	resolved  bool
	checks    bool
}

// NewMySQLAdapter creates an adapter bound to one database
func NewMySQLAdapter(db *sql.DB, schemaName string) *MySQLAdapter {
	return &MySQLAdapter{
		catalog:    catalog{db: db, engine: schema.EngineMySQL},
		schemaName: schemaName,
	}
}

func (a *MySQLAdapter) Engine() schema.Engine { return schema.EngineMySQL }

func (a *MySQLAdapter) Ping(ctx context.Context) error { return a.ping(ctx) }

// ListTables returns the base tables of the database
func (a *MySQLAdapter) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	return a.list(ctx, "list tables", query, a.schemaName)
}

// GetColumns returns columns in ordinal order. Enum values stay inside the
// native type and are parsed by the type mapper.
func (a *MySQLAdapter) GetColumns(ctx context.Context, table string) ([]RawColumn, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT
			c.column_name,
			c.column_type,
			c.is_nullable,
			c.column_default,
			c.extra,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			c.column_comment
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := a.db.QueryContext(ctx, query, schemaName, name)
	if err != nil {
		return nil, a.fail("columns", err)
	}
	defer rows.Close()

	var columns []RawColumn
	for rows.Next() {
		var (
			col                       RawColumn
			nullable, extra           string
			defaultVal, comment       sql.NullString
			charLen, precision, scale sql.NullInt64
		)
		if err := rows.Scan(&col.Name, &col.NativeType, &nullable, &defaultVal, &extra,
			&charLen, &precision, &scale, &comment); err != nil {
			return nil, a.fail("columns", err)
		}

		col.Nullable = nullable == "YES"
		col.Default = nullString(defaultVal)
		col.AutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		col.Length = nullInt(charLen)
		col.Precision = nullInt(precision)
		col.Scale = nullInt(scale)
		col.Comment = comment.String

		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("columns", err)
	}

	if len(columns) == 0 {
		return nil, &schema.TableNotFoundError{Engine: schema.EngineMySQL, Table: table}
	}
	return columns, nil
}

// GetPrimaryKey returns the PRIMARY constraint columns in key order
func (a *MySQLAdapter) GetPrimaryKey(ctx context.Context, table string) (*RawPrimaryKey, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
			AND table_name = ?
			AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`

	columns, err := a.list(ctx, "primary key", query, schemaName, name)
	if err != nil || len(columns) == 0 {
		return nil, err
	}
	return &RawPrimaryKey{Name: "PRIMARY", Columns: columns}, nil
}

// GetIndexes returns every index including PRIMARY
func (a *MySQLAdapter) GetIndexes(ctx context.Context, table string) ([]RawIndex, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT
			s.index_name,
			s.non_unique = 0 AS is_unique,
			GROUP_CONCAT(s.column_name ORDER BY s.seq_in_index) AS column_names
		FROM information_schema.statistics s
		WHERE s.table_schema = ?
			AND s.table_name = ?
		GROUP BY s.index_name, s.non_unique
		ORDER BY s.index_name = 'PRIMARY' DESC, s.index_name
	`

	rows, err := a.db.QueryContext(ctx, query, schemaName, name)
	if err != nil {
		return nil, a.fail("indexes", err)
	}
	defer rows.Close()

	var indexes []RawIndex
	for rows.Next() {
		var idx RawIndex
		var isUnique int
		var columnNames sql.NullString

		if err := rows.Scan(&idx.Name, &isUnique, &columnNames); err != nil {
			return nil, a.fail("indexes", err)
		}

		idx.Unique = isUnique == 1
		idx.Primary = idx.Name == "PRIMARY"
		idx.Columns = splitList(columnNames.String, ",")

		indexes = append(indexes, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("indexes", err)
	}
	return indexes, nil
}

// GetForeignKeys joins key_column_usage with referential_constraints for the actions
func (a *MySQLAdapter) GetForeignKeys(ctx context.Context, table string) ([]RawForeignKey, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT
			kcu.constraint_name,
			kcu.column_name,
			kcu.referenced_table_schema,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.update_rule,
			rc.delete_rule,
			kcu.ordinal_position
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = kcu.constraint_schema
			AND rc.constraint_name = kcu.constraint_name
			AND rc.table_name = kcu.table_name
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`

	rows, err := a.db.QueryContext(ctx, query, schemaName, name)
	if err != nil {
		return nil, a.fail("foreign keys", err)
	}
	defer rows.Close()

	var fks []RawForeignKey
	for rows.Next() {
		var fk RawForeignKey
		var foreignSchema sql.NullString
		if err := rows.Scan(&fk.Name, &fk.Column, &foreignSchema, &fk.ForeignTable, &fk.ForeignColumn,
			&fk.OnUpdate, &fk.OnDelete, &fk.Position); err != nil {
			return nil, a.fail("foreign keys", err)
		}
		fk.ForeignTable = qualify(schemaName, foreignSchema.String, fk.ForeignTable)
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("foreign keys", err)
	}
	return fks, nil
}

// GetConstraints reads table_constraints, adding CHECK bodies when the server records them
func (a *MySQLAdapter) GetConstraints(ctx context.Context, table string) ([]RawConstraint, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT
			tc.constraint_name,
			tc.constraint_type,
			COALESCE(GROUP_CONCAT(kcu.column_name ORDER BY kcu.ordinal_position), '')
		FROM information_schema.table_constraints tc
		LEFT JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_schema = tc.constraint_schema
			AND kcu.constraint_name = tc.constraint_name
			AND kcu.table_name = tc.table_name
		WHERE tc.table_schema = ? AND tc.table_name = ?
		GROUP BY tc.constraint_name, tc.constraint_type
		ORDER BY tc.constraint_name
	`

	rows, err := a.db.QueryContext(ctx, query, schemaName, name)
	if err != nil {
		return nil, a.fail("constraints", err)
	}
	defer rows.Close()

	var constraints []RawConstraint
	for rows.Next() {
		var c RawConstraint
		var columns string
		if err := rows.Scan(&c.Name, &c.Kind, &columns); err != nil {
			return nil, a.fail("constraints", err)
		}
		c.Columns = splitList(columns, ",")
		constraints = append(constraints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("constraints", err)
	}
	rows.Close()

	checks, err := a.supportsCheckConstraints(ctx)
	if err != nil {
		return nil, err
	}
	if !checks {
		return constraints, nil
	}

	definitions, err := a.checkClauses(ctx, schemaName, name)
	if err != nil {
		return nil, err
	}
	for i := range constraints {
		if def, ok := definitions[constraints[i].Name]; ok {
			constraints[i].Definition = def
		}
	}
	return constraints, nil
}

func (a *MySQLAdapter) checkClauses(ctx context.Context, schemaName, table string) (map[string]string, error) {
	query := `
		SELECT cc.constraint_name, cc.check_clause
		FROM information_schema.check_constraints cc
		JOIN information_schema.table_constraints tc
			ON tc.constraint_schema = cc.constraint_schema
			AND tc.constraint_name = cc.constraint_name
		WHERE tc.table_schema = ?
			AND tc.table_name = ?
			AND tc.constraint_type = 'CHECK'
	`

	rows, err := a.db.QueryContext(ctx, query, schemaName, table)
	if err != nil {
		return nil, a.fail("check constraints", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, clause string
		if err := rows.Scan(&name, &clause); err != nil {
			return nil, a.fail("check constraints", err)
		}
		out[name] = clause
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("check constraints", err)
	}
	return out, nil
}

// supportsCheckConstraints resolves the server version once per adapter.
// A failed lookup is not remembered, so the next call asks again.
func (a *MySQLAdapter) supportsCheckConstraints(ctx context.Context) (bool, error) {
	a.versionMu.Lock()
	defer a.versionMu.Unlock()

	if a.resolved {
		return a.checks, nil
	}

	var raw string
	if err := a.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&raw); err != nil {
		return false, a.fail("server version", err)
	}
	a.checks = checkConstraintsSupported(raw)
	a.resolved = true
	return a.checks, nil
}

// checkConstraintsSupported parses strings such as "8.0.35" or
// "10.6.12-MariaDB-1:10.6.12+maria~ubu2004"
func checkConstraintsSupported(raw string) bool {
	v, err := version.NewVersion(leadingVersion.FindString(raw))
	if err != nil {
		return false
	}
	if strings.Contains(strings.ToLower(raw), "mariadb") {
		return v.GreaterThanOrEqual(mariadbCheckSince)
	}
	return v.GreaterThanOrEqual(mysqlCheckSince)
}

// GetTableMetadata reads storage engine, charset, collation, comment, partitions and triggers
func (a *MySQLAdapter) GetTableMetadata(ctx context.Context, table string) (*RawMetadata, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT
			COALESCE(t.engine, ''),
			COALESCE(ccsa.character_set_name, ''),
			COALESCE(t.table_collation, ''),
			COALESCE(t.table_comment, ''),
			(
				SELECT COUNT(*)
				FROM information_schema.partitions p
				WHERE p.table_schema = t.table_schema
					AND p.table_name = t.table_name
					AND p.partition_name IS NOT NULL
			) AS partition_count
		FROM information_schema.tables t
		LEFT JOIN information_schema.collation_character_set_applicability ccsa
			ON ccsa.collation_name = t.table_collation
		WHERE t.table_schema = ? AND t.table_name = ?
	`

	meta := &RawMetadata{Schema: schemaName}
	var partitions int
	err := a.db.QueryRowContext(ctx, query, schemaName, name).
		Scan(&meta.StorageEngine, &meta.Charset, &meta.Collation, &meta.Comment, &partitions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &schema.TableNotFoundError{Engine: schema.EngineMySQL, Table: table}
	}
	if err != nil {
		return nil, a.fail("table metadata", err)
	}
	meta.Partitioned = partitions > 0

	triggerQuery := `
		SELECT trigger_name, action_timing, event_manipulation
		FROM information_schema.triggers
		WHERE event_object_schema = ? AND event_object_table = ?
		ORDER BY trigger_name
	`
	rows, err := a.db.QueryContext(ctx, triggerQuery, schemaName, name)
	if err != nil {
		return nil, a.fail("triggers", err)
	}
	defer rows.Close()

	for rows.Next() {
		var trg RawTrigger
		if err := rows.Scan(&trg.Name, &trg.Timing, &trg.Event); err != nil {
			return nil, a.fail("triggers", err)
		}
		meta.Triggers = append(meta.Triggers, trg)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("triggers", err)
	}
	return meta, nil
}
