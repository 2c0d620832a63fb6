package scorer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCategories(t *testing.T) {
	table := DefaultCategories()
	assert.Equal(t, []string{"economics", "executive-summary", "npv", "irr", "capex", "resources", "reserves"}, table.Names())
}

func TestParseCategories(t *testing.T) {
	table, err := ParseCategories([]byte(`
categories:
  - name: npv
    pattern: 'net\s+present\s+value'
  - name: lithium
    pattern: 'spodumene|lithium\s+carbonate'
`))
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.True(t, table[1].Pattern.MatchString("LITHIUM   CARBONATE equivalent"))
	assert.Equal(t, 2, Score("Net Present Value of the spodumene project", table))
}

func TestParseCategories_Errors(t *testing.T) {
	_, err := ParseCategories([]byte("categories: []"))
	assert.Error(t, err)

	_, err = ParseCategories([]byte(`
categories:
  - name: a
    pattern: '('
`))
	assert.ErrorContains(t, err, `category "a"`)

	_, err = ParseCategories([]byte(`
categories:
  - name: a
    pattern: x
  - name: a
    pattern: y
`))
	assert.ErrorContains(t, err, "duplicate")

	_, err = ParseCategories([]byte(`
categories:
  - name: a
`))
	assert.ErrorContains(t, err, "pattern is required")
}

func TestLoadCategories(t *testing.T) {
	table, err := LoadCategories("")
	require.NoError(t, err)
	assert.Len(t, table, 7)

	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - name: opex\n    pattern: 'operating\\s+costs?'\n"), 0o600))
	table, err = LoadCategories(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"opex"}, table.Names())

	_, err = LoadCategories(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
