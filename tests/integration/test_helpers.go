//go:build integration
// +build integration

package integration

import (
	"os"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/relschema/internal/schema"
)

// shopTables is the fixture every live database is seeded with
var shopTables = []string{"users", "products", "orders", "order_items"}

// envOr returns the environment variable or a default
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// verifyTablesExist checks that all expected tables are present in the schema
func verifyTablesExist(t *testing.T, s *schema.Schema, expectedTables []string) {
	t.Helper()
	assert.Subset(t, s.TableNames(), expectedTables)
}

// verifyColumns checks that expected columns exist in a table
func verifyColumns(t *testing.T, table *schema.Table, expectedColumns []string) {
	t.Helper()
	for _, name := range expectedColumns {
		assert.True(t, table.HasColumn(name), "column %s.%s", table.Name, name)
	}
}

// verifyPrimaryKey checks that a table has the expected primary key
func verifyPrimaryKey(t *testing.T, table *schema.Table, expectedPK []string) {
	t.Helper()
	require.NotNil(t, table.PrimaryKey, "primary key of %s", table.Name)
	assert.Equal(t, expectedPK, table.PrimaryKey.Columns)
}

// verifyUnique checks that a column is covered by a unique index
func verifyUnique(t *testing.T, s *schema.Schema, tableName, columnName string) {
	t.Helper()
	table := findTable(t, s, tableName)
	assert.True(t, table.IsUnique(columnName), "%s.%s should be unique", tableName, columnName)
}

// verifyEnumValues checks the values an enum column accepts
func verifyEnumValues(t *testing.T, s *schema.Schema, tableName, columnName string, expected []string) {
	t.Helper()
	table := findTable(t, s, tableName)
	col, ok := table.Column(columnName)
	require.True(t, ok, "column %s.%s", tableName, columnName)
	assert.Equal(t, schema.TypeEnum, col.SemanticType)
	assert.Equal(t, expected, col.EnumValues)
}

// verifyForeignKey checks that a foreign key exists
func verifyForeignKey(t *testing.T, s *schema.Schema, tableName, column, targetTable string) {
	t.Helper()
	table := findTable(t, s, tableName)
	for _, fk := range table.ForeignKeys {
		if fk.Column == column && fk.ForeignTable == targetTable {
			return
		}
	}
	t.Errorf("Expected foreign key %s.%s -> %s not found", tableName, column, targetTable)
}

// verifyRelationship checks that owner has a relationship of kind to related
func verifyRelationship(t *testing.T, s *schema.Schema, owner string, kind schema.RelationKind, related string) {
	t.Helper()
	for _, r := range s.RelationshipsOf(owner) {
		if r.Kind == kind && r.RelatedTable == related {
			return
		}
	}
	t.Errorf("Expected %s %s %s not found in %v", owner, kind, related, s.RelationshipsOf(owner))
}

// verifyIndex checks that an index exists with the expected columns
func verifyIndex(t *testing.T, s *schema.Schema, tableName, indexName string, expectedColumns []string) {
	t.Helper()
	table := findTable(t, s, tableName)
	for _, idx := range table.Indexes {
		if idx.Name == indexName {
			assert.Equal(t, expectedColumns, idx.Columns, "index %s", indexName)
			return
		}
	}
	t.Errorf("Expected index %s on %s table not found", indexName, tableName)
}

// verifyCreationOrder checks that every table follows the tables it references
func verifyCreationOrder(t *testing.T, s *schema.Schema) {
	t.Helper()
	require.ElementsMatch(t, s.TableNames(), s.CreationOrder)
	if len(s.DeferredEdges) > 0 {
		return
	}
	for table, deps := range s.DependencyGraph {
		for _, dep := range deps {
			assert.Less(t, slices.Index(s.CreationOrder, dep), slices.Index(s.CreationOrder, table), "%s before %s", dep, table)
		}
	}
}

// findTable looks a table up or stops the test
func findTable(t *testing.T, s *schema.Schema, tableName string) *schema.Table {
	t.Helper()
	table, ok := s.Table(tableName)
	require.True(t, ok, "table %s", tableName)
	return table
}

// verifyShop runs the checks shared by every engine seeded with the shop fixture
func verifyShop(t *testing.T, s *schema.Schema) {
	t.Helper()

	verifyTablesExist(t, s, shopTables)

	users := findTable(t, s, "users")
	verifyPrimaryKey(t, users, []string{"id"})
	verifyColumns(t, users, []string{"id", "username", "email", "status", "created_at"})

	verifyForeignKey(t, s, "orders", "user_id", "users")
	verifyRelationship(t, s, "orders", schema.BelongsTo, "users")
	verifyRelationship(t, s, "users", schema.HasMany, "orders")
	verifyCreationOrder(t, s)
}
