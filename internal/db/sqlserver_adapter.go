package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tordrt/relschema/internal/schema"
)

// SQLServerAdapter reads the sys.* catalog views
type SQLServerAdapter struct {
	catalog
	schemaName string
}

// NewSQLServerAdapter creates an adapter bound to one schema, "dbo" by default
func NewSQLServerAdapter(db *sql.DB, schemaName string) *SQLServerAdapter {
	if schemaName == "" {
		schemaName = "dbo"
	}
	return &SQLServerAdapter{
		catalog:    catalog{db: db, engine: schema.EngineSQLServer},
		schemaName: schemaName,
	}
}

func (a *SQLServerAdapter) Engine() schema.Engine { return schema.EngineSQLServer }

func (a *SQLServerAdapter) Ping(ctx context.Context) error { return a.ping(ctx) }

// ListTables returns user tables of the schema
func (a *SQLServerAdapter) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT t.name
		FROM sys.tables t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE s.name = @p1 AND t.is_ms_shipped = 0
		ORDER BY t.name
	`
	return a.list(ctx, "list tables", query, a.schemaName)
}

// sqlServerType rebuilds the declared type from sys.types and sys.columns.
// max_length is in bytes, so national types are halved; -1 means (max).
func sqlServerType(typeName string, maxLength, precision, scale int) (native string, length int) {
	switch strings.ToLower(typeName) {
	case "nvarchar", "nchar":
		if maxLength == -1 {
			return typeName + "(max)", 0
		}
		return fmt.Sprintf("%s(%d)", typeName, maxLength/2), maxLength / 2
	case "varchar", "char", "varbinary", "binary":
		if maxLength == -1 {
			return typeName + "(max)", 0
		}
		return fmt.Sprintf("%s(%d)", typeName, maxLength), maxLength
	case "decimal", "numeric":
		return fmt.Sprintf("%s(%d,%d)", typeName, precision, scale), 0
	}
	return typeName, 0
}

// GetColumns returns columns in column_id order with MS_Description comments
func (a *SQLServerAdapter) GetColumns(ctx context.Context, table string) ([]RawColumn, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT
			c.name,
			ty.name,
			c.max_length,
			c.precision,
			c.scale,
			c.is_nullable,
			c.is_identity,
			OBJECT_DEFINITION(c.default_object_id),
			CAST(ep.value AS nvarchar(4000))
		FROM sys.columns c
		JOIN sys.tables t ON t.object_id = c.object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = c.object_id
			AND ep.minor_id = c.column_id
			AND ep.name = 'MS_Description'
		WHERE s.name = @p1 AND t.name = @p2
		ORDER BY c.column_id
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
			typeName                    string
			maxLength, precision, scale int
			defaultVal, comment         sql.NullString
		)
		if err := rows.Scan(&col.Name, &typeName, &maxLength, &precision, &scale,
			&col.Nullable, &col.AutoIncrement, &defaultVal, &comment); err != nil {
			return nil, a.fail("columns", err)
		}

		col.NativeType, col.Length = sqlServerType(typeName, maxLength, precision, scale)
		switch strings.ToLower(typeName) {
		case "decimal", "numeric":
			col.Precision = precision
			col.Scale = scale
		}
		col.Default = nullString(defaultVal)
		col.Comment = comment.String

		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("columns", err)
	}

	if len(columns) == 0 {
		return nil, &schema.TableNotFoundError{Engine: schema.EngineSQLServer, Table: table}
	}
	return columns, nil
}

// GetPrimaryKey returns the PK constraint columns in key order
func (a *SQLServerAdapter) GetPrimaryKey(ctx context.Context, table string) (*RawPrimaryKey, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT kc.name, c.name
		FROM sys.key_constraints kc
		JOIN sys.tables t ON t.object_id = kc.parent_object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.index_columns ic ON ic.object_id = kc.parent_object_id AND ic.index_id = kc.unique_index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		WHERE kc.type = 'PK' AND s.name = @p1 AND t.name = @p2
		ORDER BY ic.key_ordinal
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

// GetIndexes groups sys.index_columns rows by index, skipping included columns
func (a *SQLServerAdapter) GetIndexes(ctx context.Context, table string) ([]RawIndex, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT i.name, i.is_unique, i.is_primary_key, c.name
		FROM sys.indexes i
		JOIN sys.tables t ON t.object_id = i.object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		WHERE s.name = @p1
			AND t.name = @p2
			AND i.name IS NOT NULL
			AND ic.is_included_column = 0
		ORDER BY i.is_primary_key DESC, i.name, ic.key_ordinal
	`

	rows, err := a.db.QueryContext(ctx, query, schemaName, name)
	if err != nil {
		return nil, a.fail("indexes", err)
	}
	defer rows.Close()

	var indexes []RawIndex
	for rows.Next() {
		var indexName, column string
		var unique, primary bool
		if err := rows.Scan(&indexName, &unique, &primary, &column); err != nil {
			return nil, a.fail("indexes", err)
		}
		if n := len(indexes); n > 0 && indexes[n-1].Name == indexName {
			indexes[n-1].Columns = append(indexes[n-1].Columns, column)
			continue
		}
		indexes = append(indexes, RawIndex{Name: indexName, Columns: []string{column}, Unique: unique, Primary: primary})
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("indexes", err)
	}
	return indexes, nil
}

// GetForeignKeys reads sys.foreign_keys; actions come back as NO_ACTION, SET_NULL, ...
func (a *SQLServerAdapter) GetForeignKeys(ctx context.Context, table string) ([]RawForeignKey, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT
			fk.name,
			pc.name,
			rs.name,
			rt.name,
			rc.name,
			fk.update_referential_action_desc,
			fk.delete_referential_action_desc,
			fkc.constraint_column_id
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.tables t ON t.object_id = fk.parent_object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.columns pc ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id
		JOIN sys.tables rt ON rt.object_id = fk.referenced_object_id
		JOIN sys.schemas rs ON rs.schema_id = rt.schema_id
		JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
		WHERE s.name = @p1 AND t.name = @p2
		ORDER BY fk.name, fkc.constraint_column_id
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

// GetConstraints merges key, foreign key and check constraints
func (a *SQLServerAdapter) GetConstraints(ctx context.Context, table string) ([]RawConstraint, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT kc.name, kc.type_desc, ''
		FROM sys.key_constraints kc
		WHERE kc.parent_object_id = OBJECT_ID(QUOTENAME(@p1) + '.' + QUOTENAME(@p2))
		UNION ALL
		SELECT fk.name, 'FOREIGN_KEY_CONSTRAINT', ''
		FROM sys.foreign_keys fk
		WHERE fk.parent_object_id = OBJECT_ID(QUOTENAME(@p1) + '.' + QUOTENAME(@p2))
		UNION ALL
		SELECT cc.name, cc.type_desc, cc.definition
		FROM sys.check_constraints cc
		WHERE cc.parent_object_id = OBJECT_ID(QUOTENAME(@p1) + '.' + QUOTENAME(@p2))
		ORDER BY 1
	`

	rows, err := a.db.QueryContext(ctx, query, schemaName, name)
	if err != nil {
		return nil, a.fail("constraints", err)
	}
	defer rows.Close()

	var constraints []RawConstraint
	for rows.Next() {
		var c RawConstraint
		if err := rows.Scan(&c.Name, &c.Kind, &c.Definition); err != nil {
			return nil, a.fail("constraints", err)
		}
		constraints = append(constraints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, a.fail("constraints", err)
	}
	return constraints, nil
}

// GetTableMetadata returns comment, database collation, partitioning and triggers
func (a *SQLServerAdapter) GetTableMetadata(ctx context.Context, table string) (*RawMetadata, error) {
	schemaName, name := splitQualified(table, a.schemaName)
	query := `
		SELECT
			CAST(ep.value AS nvarchar(4000)),
			CAST(DATABASEPROPERTYEX(DB_NAME(), 'Collation') AS nvarchar(128)),
			CASE WHEN EXISTS (
				SELECT 1 FROM sys.partitions p
				WHERE p.object_id = t.object_id AND p.index_id IN (0, 1) AND p.partition_number > 1
			) THEN 1 ELSE 0 END
		FROM sys.tables t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = t.object_id
			AND ep.minor_id = 0
			AND ep.name = 'MS_Description'
		WHERE s.name = @p1 AND t.name = @p2
	`

	meta := &RawMetadata{Schema: schemaName}
	var comment, collation sql.NullString
	err := a.db.QueryRowContext(ctx, query, schemaName, name).Scan(&comment, &collation, &meta.Partitioned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &schema.TableNotFoundError{Engine: schema.EngineSQLServer, Table: table}
	}
	if err != nil {
		return nil, a.fail("table metadata", err)
	}
	meta.Comment = comment.String
	meta.Collation = collation.String

	triggerQuery := `
		SELECT
			tr.name,
			CASE WHEN tr.is_instead_of_trigger = 1 THEN 'INSTEAD OF' ELSE 'AFTER' END,
			te.type_desc
		FROM sys.triggers tr
		JOIN sys.trigger_events te ON te.object_id = tr.object_id
		WHERE tr.parent_id = OBJECT_ID(QUOTENAME(@p1) + '.' + QUOTENAME(@p2))
		ORDER BY tr.name, te.type_desc
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
