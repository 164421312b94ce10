package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/elasticity/pkg/errors"
)

const salesCSV = `Store,Price,Revenue,Month
StoreA,10.5,600.5,7
StoreB,12.5,650.5,7
StoreA,10.5,720.5,8
StoreC,15.5,450.5,1
`

func openLoaded(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	path := filepath.Join(t.TempDir(), "processed_data.csv")
	require.NoError(t, os.WriteFile(path, []byte(salesCSV), 0o644))
	n, err := s.LoadCSV(ctx, DefaultTable, path)
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	return s
}

func TestLoadCSVAndListTables(t *testing.T) {
	s := openLoaded(t)
	tables, err := s.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultTable}, tables)
}

func TestLoadCSVIsIdempotent(t *testing.T) {
	s := openLoaded(t)
	path := filepath.Join(t.TempDir(), "more.csv")
	require.NoError(t, os.WriteFile(path, []byte(salesCSV), 0o644))

	n, err := s.LoadCSV(context.Background(), DefaultTable, path)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestLoadCSVErrors(t *testing.T) {
	s, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.LoadCSV(context.Background(), "t", filepath.Join(t.TempDir(), "none.csv"))
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = s.LoadCSV(context.Background(), `x"; DROP TABLE y; --`, "whatever.csv")
	assert.True(t, errors.Is(err, errors.ErrInvalidValue))
}

func TestSampleAndInfo(t *testing.T) {
	s := openLoaded(t)
	ctx := context.Background()

	rows, err := s.Sample(ctx, DefaultTable, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Store", "Price", "Revenue", "Month"}, rows.Columns)
	assert.Equal(t, 2, rows.Len())

	_, err = s.Sample(ctx, DefaultTable, 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidValue))

	info, err := s.Info(ctx, DefaultTable)
	require.NoError(t, err)
	assert.Contains(t, info.Columns, "name")
	assert.Contains(t, info.Columns, "type")
	assert.Equal(t, 4, info.Len())
}

func TestMissingTable(t *testing.T) {
	s := openLoaded(t)
	ctx := context.Background()

	_, err := s.Sample(ctx, "nope", 5)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	_, err = s.Info(ctx, "nope")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	_, err = s.Count(ctx, "nope")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSalesSummaryByStore(t *testing.T) {
	s := openLoaded(t)
	rows, err := s.SalesSummaryByStore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"store_id", "avg_price", "total_sales"}, rows.Columns)
	require.Equal(t, 3, rows.Len())

	first := rows.Records()[0]
	assert.Equal(t, "StoreA", first["store_id"])
	assert.Equal(t, "10.5", first["avg_price"])
	assert.Equal(t, "1321", first["total_sales"])
}

func TestPriceRevenueCurve(t *testing.T) {
	s := openLoaded(t)
	ctx := context.Background()

	all, err := s.PriceRevenueCurve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"price", "revenue"}, all.Columns)
	assert.Equal(t, 3, all.Len())
	assert.Equal(t, "10.5", all.Values[0][0])

	one, err := s.PriceRevenueCurve(ctx, "StoreB")
	require.NoError(t, err)
	require.Equal(t, 1, one.Len())
	assert.Equal(t, []string{"12.5", "650.5"}, one.Values[0])

	injected, err := s.PriceRevenueCurve(ctx, "x' OR '1'='1")
	require.NoError(t, err)
	assert.Equal(t, 0, injected.Len())
}

func TestFeatureOverview(t *testing.T) {
	s := openLoaded(t)
	rows, err := s.FeatureOverview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, rows.Len())
}

func TestOpenMustExist(t *testing.T) {
	_, err := Open(context.Background(), Options{
		Path:      filepath.Join(t.TempDir(), "missing.duckdb"),
		Persist:   true,
		MustExist: true,
	})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestOpenPersistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "elasticity.duckdb")
	s, err := Open(context.Background(), Options{Path: path, Persist: true})
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "NULL", format(nil))
	assert.Equal(t, "1.25", format(1.25))
	assert.Equal(t, "7", format(int32(7)))
	assert.Equal(t, "abc", format([]byte("abc")))
}

func TestRender(t *testing.T) {
	var sb strings.Builder
	Rows{Columns: []string{"store_id", "total_sales"}, Values: [][]string{{"StoreA", "1321"}}}.Render(&sb)
	out := sb.String()
	assert.Contains(t, out, "store_id")
	assert.Contains(t, out, "StoreA")
	assert.Contains(t, out, "1321")
}
