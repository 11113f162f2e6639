package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/relschema/internal/schema"
)

func newPostgresMock(t *testing.T) (*PostgresAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresAdapter(db, ""), mock
}

func TestNormalizePostgresType(t *testing.T) {
	valid := func(n int64) sql.NullInt64 { return sql.NullInt64{Int64: n, Valid: true} }
	none := sql.NullInt64{}

	tests := []struct {
		dataType, udtName   string
		length, prec, scale sql.NullInt64
		want                string
	}{
		{"character varying", "varchar", valid(255), none, none, "varchar(255)"},
		{"character varying", "varchar", none, none, none, "varchar"},
		{"character", "bpchar", valid(2), none, none, "char(2)"},
		{"timestamp without time zone", "timestamp", none, none, none, "timestamp"},
		{"timestamp with time zone", "timestamptz", none, none, none, "timestamptz"},
		{"numeric", "numeric", none, valid(10), valid(2), "numeric(10,2)"},
		{"ARRAY", "_int4", none, none, none, "integer[]"},
		{"ARRAY", "_text", none, none, none, "text[]"},
		{"USER-DEFINED", "post_status", none, none, none, "post_status"},
		{"integer", "int4", none, valid(32), valid(0), "integer"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePostgresType(tt.dataType, tt.udtName, tt.length, tt.prec, tt.scale))
		})
	}
}

func TestPostgresAdapter_GetColumns(t *testing.T) {
	a, mock := newPostgresMock(t)

	mock.ExpectQuery("FROM information_schema.columns c").
		WithArgs("public", "posts").
		WillReturnRows(sqlmock.NewRows([]string{
			"column_name", "data_type", "udt_name", "is_nullable", "column_default", "is_identity",
			"character_maximum_length", "numeric_precision", "numeric_scale", "comment", "enum_labels",
		}).
			AddRow("id", "bigint", "int8", "NO", "nextval('posts_id_seq'::regclass)", "NO", nil, int64(64), int64(0), nil, nil).
			AddRow("status", "USER-DEFINED", "post_status", "NO", "'draft'::post_status", "NO", nil, nil, nil, nil, "draft\x1fin review, maybe\x1fpublished").
			AddRow("price", "numeric", "numeric", "YES", nil, "NO", nil, int64(8), int64(2), "list price", nil).
			AddRow("uuid", "uuid", "uuid", "NO", nil, "YES", nil, nil, nil, nil, nil))

	columns, err := a.GetColumns(context.Background(), "posts")
	require.NoError(t, err)
	require.Len(t, columns, 4)

	assert.True(t, columns[0].AutoIncrement, "serial default")
	assert.Equal(t, 0, columns[0].Precision, "integer precision is not reported")

	assert.Equal(t, "post_status", columns[1].NativeType)
	assert.Equal(t, []string{"draft", "in review, maybe", "published"}, columns[1].EnumValues)

	assert.Equal(t, "numeric(8,2)", columns[2].NativeType)
	assert.Equal(t, 8, columns[2].Precision)
	assert.Equal(t, 2, columns[2].Scale)
	assert.Equal(t, "list price", columns[2].Comment)

	assert.True(t, columns[3].AutoIncrement, "identity column")
}

func TestPostgresAdapter_SchemaQualifiedTable(t *testing.T) {
	a, mock := newPostgresMock(t)

	mock.ExpectQuery("FROM information_schema.table_constraints tc").
		WithArgs("billing", "invoices").
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "column_name"}).
			AddRow("invoices_pkey", "tenant_id").
			AddRow("invoices_pkey", "number"))

	pk, err := a.GetPrimaryKey(context.Background(), "billing.invoices")
	require.NoError(t, err)
	assert.Equal(t, &RawPrimaryKey{Name: "invoices_pkey", Columns: []string{"tenant_id", "number"}}, pk)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdapter_GetForeignKeys(t *testing.T) {
	a, mock := newPostgresMock(t)

	mock.ExpectQuery("FROM pg_constraint con").
		WithArgs("public", "line_items").
		WillReturnRows(sqlmock.NewRows([]string{"conname", "attname", "nspname", "relname", "fattname", "upd", "del", "ord"}).
			AddRow("line_items_invoice_fk", "tenant_id", "billing", "invoices", "tenant_id", "NO ACTION", "CASCADE", int64(1)).
			AddRow("line_items_invoice_fk", "invoice_number", "billing", "invoices", "number", "NO ACTION", "CASCADE", int64(2)).
			AddRow("line_items_product_id_fkey", "product_id", "public", "products", "id", "NO ACTION", "SET NULL", int64(1)))

	fks, err := a.GetForeignKeys(context.Background(), "line_items")
	require.NoError(t, err)
	require.Len(t, fks, 3)

	assert.Equal(t, "billing.invoices", fks[0].ForeignTable)
	assert.Equal(t, 2, fks[1].Position)
	assert.Equal(t, "products", fks[2].ForeignTable)
	assert.Equal(t, "SET NULL", fks[2].OnDelete)
}

func TestPostgresAdapter_GetTableMetadata(t *testing.T) {
	a, mock := newPostgresMock(t)

	mock.ExpectQuery("FROM pg_class t").
		WithArgs("public", "events").
		WillReturnRows(sqlmock.NewRows([]string{"comment", "partitioned", "encoding", "collate"}).
			AddRow("event log", true, "UTF8", "en_US.UTF-8"))
	mock.ExpectQuery("FROM information_schema.triggers").
		WithArgs("public", "events").
		WillReturnRows(sqlmock.NewRows([]string{"trigger_name", "action_timing", "event_manipulation"}))

	meta, err := a.GetTableMetadata(context.Background(), "events")
	require.NoError(t, err)
	assert.True(t, meta.Partitioned)
	assert.Equal(t, "UTF8", meta.Charset)
	assert.Equal(t, "public", meta.Schema)
	assert.Empty(t, meta.Triggers)

	mock.ExpectQuery("FROM pg_class t").
		WillReturnRows(sqlmock.NewRows([]string{"comment", "partitioned", "encoding", "collate"}))
	_, err = a.GetTableMetadata(context.Background(), "ghost")
	assert.True(t, schema.IsTableNotFound(err))
}
