package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tordrt/relschema/internal/schema"
)

const (
	varcharType = "varchar"
	// enumSeparator joins pg_enum labels; labels may contain commas
	enumSeparator = "\x1f"
)

// PostgresAdapter reads the PostgreSQL system catalogs
type PostgresAdapter struct {
	catalog
	schemaName string
}

// NewPostgresAdapter creates an adapter bound to one schema, "public" by default
func NewPostgresAdapter(db *sql.DB, schemaName string) *PostgresAdapter {
	if schemaName == "" {
		schemaName = "public"
	}
	return &PostgresAdapter{
		catalog:    catalog{db: db, engine: schema.EnginePostgres},
		schemaName: schemaName,
	}
}

func (a *PostgresAdapter) Engine() schema.Engine { return schema.EnginePostgres }

func (a *PostgresAdapter) Ping(ctx context.Context) error { return a.ping(ctx) }

// ListTables returns the base tables of the schema
func (a *PostgresAdapter) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	return a.list(ctx, "list tables", query, a.schemaName)
}

// normalizePostgresType maps verbose SQL type names to commonly-used PostgreSQL equivalents
func normalizePostgresType(dataType, udtName string, charMaxLength, precision, scale sql.NullInt64) string {
	switch dataType {
	case "timestamp with time zone":
		return "timestamptz"
	case "timestamp without time zone":
		return "timestamp"
	case "time with time zone":
		return "timetz"
	case "time without time zone":
		return "time"
	case "character varying":
		if charMaxLength.Valid {
			return fmt.Sprintf("varchar(%d)", charMaxLength.Int64)
		}
		return varcharType
	case "character":
		if charMaxLength.Valid {
			return fmt.Sprintf("char(%d)", charMaxLength.Int64)
		}
		return "char"
	case "numeric":
		if precision.Valid {
			return fmt.Sprintf("numeric(%d,%d)", precision.Int64, scale.Int64)
		}
		return "numeric"
	case "ARRAY":
		// udt_name has underscore prefix for arrays (e.g., "_text" for text[], "_int4" for integer[])
		if len(udtName) > 0 && udtName[0] == '_' {
			return normalizeUdtName(udtName[1:]) + "[]"
		}
		return "array"
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}

// normalizeUdtName converts PostgreSQL internal type names to more readable forms
func normalizeUdtName(udtName string) string {
	switch udtName {
	case "int4":
		return "integer"
	case "int8":
		return "bigint"
	case "int2":
		return "smallint"
	case "float4":
		return "real"
	case "float8":
		return "double precision"
	case "bool":
		return "boolean"
	default:
		return udtName
	}
}

// GetColumns returns columns in ordinal order, with enum labels for user-defined enum types
func (a *PostgresAdapter) GetColumns(ctx context.Context, table string) ([]RawColumn, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.udt_name,
			c.is_nullable,
			c.column_default,
			c.is_identity,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position::int),
			(
				SELECT string_agg(e.enumlabel, chr(31) ORDER BY e.enumsortorder)
				FROM pg_type t
				JOIN pg_enum e ON e.enumtypid = t.oid
				JOIN pg_namespace n ON n.oid = t.typnamespace
				WHERE t.typname = c.udt_name AND n.nspname = c.udt_schema
			) AS enum_labels
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
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
			col                         RawColumn
			dataType, udtName, nullable string
			isIdentity                  sql.NullString
			defaultVal, comment, labels sql.NullString
			charLen, precision, scale   sql.NullInt64
		)
		if err := rows.Scan(&col.Name, &dataType, &udtName, &nullable, &defaultVal, &isIdentity,
			&charLen, &precision, &scale, &comment, &labels); err != nil {
			return nil, a.fail("columns", err)
		}

		col.NativeType = normalizePostgresType(dataType, udtName, charLen, precision, scale)
		col.Nullable = nullable == "YES"
		col.Default = nullString(defaultVal)
		col.AutoIncrement = isIdentity.String == "YES" || strings.HasPrefix(defaultVal.String, "nextval(")
		col.Length = nullInt(charLen)
		if dataType == "numeric" {
			col.Precision = nullInt(precision)
			col.Scale = nullInt(scale)
		}
		col.Comment = comment.String
		if labels.Valid {
			col.EnumValues = strings.Split(labels.String, enumSeparator)
		}

		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("columns", err)
	}

	if len(columns) == 0 {
		return nil, &schema.TableNotFoundError{Engine: schema.EnginePostgres, Table: table}
	}
	return columns, nil
}

// GetPrimaryKey returns the primary key columns in key order
func (a *PostgresAdapter) GetPrimaryKey(ctx context.Context, table string) (*RawPrimaryKey, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT tc.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
			AND kcu.table_name = tc.table_name
		WHERE tc.table_schema = $1
			AND tc.table_name = $2
			AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position
	`

	rows, err := a.db.QueryContext(ctx, query, schemaName, name)
	if err != nil {
		return nil, a.fail("primary key", err)
	}
	defer rows.Close()

	var pk *RawPrimaryKey
	for rows.Next() {
		var constraintName, column string
		if err := rows.Scan(&constraintName, &column); err != nil {
			return nil, a.fail("primary key", err)
		}
		if pk == nil {
			pk = &RawPrimaryKey{Name: constraintName}
		}
		pk.Columns = append(pk.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("primary key", err)
	}
	return pk, nil
}

// GetIndexes returns every index including the primary one
func (a *PostgresAdapter) GetIndexes(ctx context.Context, table string) ([]RawIndex, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT
			i.relname AS index_name,
			ix.indisunique AS is_unique,
			ix.indisprimary AS is_primary,
			array_to_string(array_agg(a.attname ORDER BY array_position(ix.indkey, a.attnum)), ',') AS column_names
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE t.relkind IN ('r', 'p')
			AND n.nspname = $1
			AND t.relname = $2
		GROUP BY i.relname, ix.indisunique, ix.indisprimary
		ORDER BY ix.indisprimary DESC, i.relname
	`

	rows, err := a.db.QueryContext(ctx, query, schemaName, name)
	if err != nil {
		return nil, a.fail("indexes", err)
	}
	defer rows.Close()

	var indexes []RawIndex
	for rows.Next() {
		var idx RawIndex
		var columnNames string
		if err := rows.Scan(&idx.Name, &idx.Unique, &idx.Primary, &columnNames); err != nil {
			return nil, a.fail("indexes", err)
		}
		idx.Columns = splitList(columnNames, ",")
		indexes = append(indexes, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("indexes", err)
	}
	return indexes, nil
}

// GetForeignKeys returns one row per constrained column, composite keys in key order
func (a *PostgresAdapter) GetForeignKeys(ctx context.Context, table string) ([]RawForeignKey, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT
			con.conname,
			a.attname,
			fn.nspname,
			ft.relname,
			fa.attname,
			CASE con.confupdtype
				WHEN 'c' THEN 'CASCADE' WHEN 'n' THEN 'SET NULL' WHEN 'a' THEN 'NO ACTION'
				WHEN 'd' THEN 'SET DEFAULT' ELSE 'RESTRICT' END,
			CASE con.confdeltype
				WHEN 'c' THEN 'CASCADE' WHEN 'n' THEN 'SET NULL' WHEN 'a' THEN 'NO ACTION'
				WHEN 'd' THEN 'SET DEFAULT' ELSE 'RESTRICT' END,
			k.ord
		FROM pg_constraint con
		JOIN pg_class t ON t.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_class ft ON ft.oid = con.confrelid
		JOIN pg_namespace fn ON fn.oid = ft.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, fattnum, ord)
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		JOIN pg_attribute fa ON fa.attrelid = con.confrelid AND fa.attnum = k.fattnum
		WHERE con.contype = 'f'
			AND n.nspname = $1
			AND t.relname = $2
		ORDER BY con.conname, k.ord
	`

	rows, err := a.db.QueryContext(ctx, query, schemaName, name)
	if err != nil {
		return nil, a.fail("foreign keys", err)
	}
	defer rows.Close()

	var fks []RawForeignKey
	for rows.Next() {
		var fk RawForeignKey
		var foreignSchema string
		if err := rows.Scan(&fk.Name, &fk.Column, &foreignSchema, &fk.ForeignTable, &fk.ForeignColumn,
			&fk.OnUpdate, &fk.OnDelete, &fk.Position); err != nil {
			return nil, a.fail("foreign keys", err)
		}
		fk.ForeignTable = qualify(schemaName, foreignSchema, fk.ForeignTable)
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("foreign keys", err)
	}
	return fks, nil
}

// GetConstraints returns primary, foreign, unique and check constraints
func (a *PostgresAdapter) GetConstraints(ctx context.Context, table string) ([]RawConstraint, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT
			con.conname,
			con.contype::text,
			pg_get_constraintdef(con.oid),
			COALESCE((
				SELECT string_agg(a.attname, ',' ORDER BY k.ord)
				FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
			), '')
		FROM pg_constraint con
		JOIN pg_class t ON t.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE n.nspname = $1
			AND t.relname = $2
			AND con.contype IN ('p', 'f', 'u', 'c')
		ORDER BY con.conname
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
		if err := rows.Scan(&c.Name, &c.Kind, &c.Definition, &columns); err != nil {
			return nil, a.fail("constraints", err)
		}
		c.Columns = splitList(columns, ",")
		constraints = append(constraints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("constraints", err)
	}
	return constraints, nil
}

// GetTableMetadata returns comment, encoding, collation, partitioning and triggers
func (a *PostgresAdapter) GetTableMetadata(ctx context.Context, table string) (*RawMetadata, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT
			COALESCE(obj_description(t.oid, 'pg_class'), ''),
			t.relkind = 'p',
			pg_encoding_to_char(d.encoding),
			d.datcollate
		FROM pg_class t
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_database d ON d.datname = current_database()
		WHERE n.nspname = $1 AND t.relname = $2
	`

	meta := &RawMetadata{Schema: schemaName}
	err := a.db.QueryRowContext(ctx, query, schemaName, name).
		Scan(&meta.Comment, &meta.Partitioned, &meta.Charset, &meta.Collation)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &schema.TableNotFoundError{Engine: schema.EnginePostgres, Table: table}
	}
	if err != nil {
		return nil, a.fail("table metadata", err)
	}

	triggerQuery := `
		SELECT trigger_name, action_timing, event_manipulation
		FROM information_schema.triggers
		WHERE event_object_schema = $1 AND event_object_table = $2
		ORDER BY trigger_name, event_manipulation
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
