//go:build integration
// +build integration

package integration

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/relschema"
	"github.com/tordrt/relschema/internal/schema"
)

func TestSQLServerExtraction(t *testing.T) {
	url := os.Getenv("SQLSERVER_TEST_URL")
	if url == "" {
		t.Skip("SQLSERVER_TEST_URL not set")
	}

	s, err := relschema.Analyze(context.Background(), url, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.EngineSQLServer, s.Engine)

	verifyShop(t, s)
	assert.Equal(t, "dbo", findTable(t, s, "users").Metadata.Schema)
}
