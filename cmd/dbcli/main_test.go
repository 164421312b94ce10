package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/elasticity/store"
)

func createDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "processed_data.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Store,Price,Revenue\nStoreA,10,600\nStoreB,12,650\n"), 0o644))

	dbPath := filepath.Join(dir, "elasticity.duckdb")
	ctx := context.Background()
	db, err := store.Open(ctx, store.Options{Path: dbPath, Persist: true})
	require.NoError(t, err)
	_, err = db.LoadCSV(ctx, store.DefaultTable, csvPath)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return dbPath
}

func TestMissingDatabase(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--db", filepath.Join(t.TempDir(), "none.duckdb"), "--list-tables"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Database not found")
}

func TestListSampleInfo(t *testing.T) {
	dbPath := createDB(t)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--db", dbPath, "--list-tables", "--sample", store.DefaultTable, "--rows", "1", "--info", store.DefaultTable,
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "1. elasticity_data")
	assert.Contains(t, out, "Sample data from 'elasticity_data'")
	assert.Contains(t, out, "StoreA")
	assert.NotContains(t, out, "StoreB")
	assert.Contains(t, out, "Column information for 'elasticity_data'")
	assert.Contains(t, out, "Revenue")
}

func TestUnknownTable(t *testing.T) {
	dbPath := createDB(t)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--db", dbPath, "--sample", "nope"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Error accessing table")
}

func TestUsageWithoutAction(t *testing.T) {
	dbPath := createDB(t)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--db", dbPath}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "-list-tables")
}
