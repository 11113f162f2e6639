package relschema

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/tordrt/relschema/internal/schema"
)

var dbCounter atomic.Uint64

func openShop(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:relschema%d?mode=memory&cache=shared", dbCounter.Add(1))
	conn, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY,
			username VARCHAR(50) NOT NULL UNIQUE
		);
		CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id),
			total DECIMAL(10,2) NOT NULL,
			created_at DATETIME,
			updated_at DATETIME
		);
		CREATE TABLE products (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		);
		CREATE TABLE order_items (
			order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id INTEGER NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL,
			PRIMARY KEY (order_id, product_id)
		);
		CREATE TABLE migrations (
			id INTEGER PRIMARY KEY,
			migration TEXT
		);
	`)
	require.NoError(t, err)
	return conn
}

func relationshipNames(s *Schema, owner string) []string {
	var names []string
	for _, r := range s.RelationshipsOf(owner) {
		names = append(names, r.Kind.String()+" "+r.Name)
	}
	return names
}

func TestAnalyzeDB(t *testing.T) {
	ctx := context.Background()
	s, err := AnalyzeDB(ctx, openShop(t), schema.EngineSQLite, &Options{
		IgnoreTables: []string{"migrations"},
	})
	require.NoError(t, err)

	assert.Equal(t, "sqlite", s.ConnectionID)
	assert.Equal(t, []string{"order_items", "orders", "products", "users"}, s.TableNames())

	// every table comes after the tables it references
	require.ElementsMatch(t, s.TableNames(), s.CreationOrder)
	for table, deps := range s.DependencyGraph {
		for _, dep := range deps {
			assert.Less(t, slices.Index(s.CreationOrder, dep), slices.Index(s.CreationOrder, table), "%s before %s", dep, table)
		}
	}
	assert.Empty(t, s.DeferredEdges)

	assert.Equal(t, []string{"belongsTo user", "belongsToMany products"}, relationshipNames(s, "orders"))
	assert.Equal(t, []string{"hasMany orders"}, relationshipNames(s, "users"))
	assert.Equal(t, []string{"belongsToMany orders"}, relationshipNames(s, "products"))
	assert.Empty(t, relationshipNames(s, "order_items"), "pivot tables own no relationships")

	products := s.RelationshipsOf("orders")[1]
	require.NotNil(t, products.Pivot)
	assert.Equal(t, "order_items", products.Pivot.Table)
	assert.Equal(t, []string{"quantity"}, products.Pivot.Columns)

	orders, ok := s.Table("orders")
	require.True(t, ok)
	assert.True(t, orders.HasTimestamps)
	total, ok := orders.Column("total")
	require.True(t, ok)
	assert.Equal(t, schema.TypeDecimal, total.SemanticType)
	assert.Equal(t, "decimal:2", total.CastHint)
}

func TestAnalyzeDBExplicitTables(t *testing.T) {
	s, err := AnalyzeDB(context.Background(), openShop(t), schema.EngineSQLite, &Options{
		Tables:       []string{"users", "orders", "migrations"},
		IgnoreTables: []string{"migrations"},
		ConnectionID: "shop",
	})
	require.NoError(t, err)

	assert.Equal(t, "shop", s.ConnectionID)
	assert.Equal(t, []string{"users", "orders"}, s.TableNames())
	assert.Equal(t, []string{"users", "orders"}, s.CreationOrder)
}

func TestAnalyzeDBSharedCache(t *testing.T) {
	ctx := context.Background()
	conn := openShop(t)
	c := NewCache(0, time.Minute)

	_, err := AnalyzeDB(ctx, conn, schema.EngineSQLite, &Options{Tables: []string{"users"}, Cache: c})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	// served from the cache even after the table is gone
	_, err = conn.Exec("DROP TABLE order_items; DROP TABLE orders; DROP TABLE users")
	require.NoError(t, err)
	s, err := AnalyzeDB(ctx, conn, schema.EngineSQLite, &Options{Tables: []string{"users"}, Cache: c})
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, s.TableNames())
}

func TestAnalyzeDBCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := AnalyzeDB(ctx, openShop(t), schema.EngineSQLite, &Options{Tables: []string{"users"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListTablesDB(t *testing.T) {
	tables, err := ListTablesDB(context.Background(), openShop(t), schema.EngineSQLite, &Options{
		IgnoreTables: []string{"migrations", "order_items"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "products", "users"}, tables)
}

func TestAnalyzeURLErrors(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want error
	}{
		{name: "empty", url: "", want: schema.ErrInvalidURL},
		{name: "unknown scheme", url: "invalid://test.db", want: schema.ErrUnsupportedEngine},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analyze(context.Background(), tt.url, nil)
			assert.ErrorIs(t, err, tt.want)

			_, err = ListTables(context.Background(), tt.url, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFormatSchema(t *testing.T) {
	s, err := AnalyzeDB(context.Background(), openShop(t), schema.EngineSQLite, &Options{
		Tables: []string{"users", "orders"},
	})
	require.NoError(t, err)

	t.Run("writer", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatSchema(s, &OutputOptions{Writer: &buf}))
		assert.Contains(t, buf.String(), "TABLE users (PK: id)")
		assert.Contains(t, buf.String(), "username")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatSchema(s, &OutputOptions{Writer: &buf, Format: "json"}))
		assert.Contains(t, buf.String(), `"creation_order"`)
	})

	t.Run("directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, FormatSchema(s, &OutputOptions{OutputDir: dir, Format: "markdown"}))

		content, err := os.ReadFile(filepath.Join(dir, "users.md"))
		require.NoError(t, err)
		assert.Contains(t, string(content), "username")
		assert.FileExists(t, filepath.Join(dir, "orders.md"))
		assert.FileExists(t, filepath.Join(dir, "_overview.md"))
	})

	t.Run("unknown format", func(t *testing.T) {
		err := FormatSchema(s, &OutputOptions{Writer: &bytes.Buffer{}, Format: "xml"})
		assert.Error(t, err)
	})
}
