package evaluate

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/elasticity/frame"
	"github.com/ezoic/elasticity/pkg/errors"
)

const testCSV = `Price,Store,Month
10,StoreA,7
12,StoreB,7
8,StoreA,8
15,StoreC,1
11,StoreA,7
`

var (
	actual    = frame.Series{Name: "Revenue", Values: []float64{600, 650, 720, 450, 570}}
	predicted = frame.Series{Name: "Predicted", Values: []float64{610, 640, 700, 470, 560}}
)

func testTable(t *testing.T, csv string) frame.Table {
	t.Helper()
	tbl, err := frame.ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return tbl
}

func TestNoFilterUsesAllRows(t *testing.T) {
	ev := New(DefaultOptions())
	tbl := testTable(t, testCSV)

	for _, f := range []Filter{{}, {Store: All, Month: All}} {
		res, err := ev.Evaluate(tbl, actual, predicted, f)
		require.NoError(t, err)
		assert.Equal(t, 5, res.Rows)
		assert.Empty(t, res.Applied)
	}
}

func TestFilterColumnsAbsent(t *testing.T) {
	ev := New(DefaultOptions())
	tbl := testTable(t, "Price\n1\n2\n3\n4\n5\n")

	res, err := ev.Evaluate(tbl, actual, predicted, Filter{Store: "StoreA", Month: "7"})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Rows)
	assert.Nil(t, FilterOptions(tbl, "Store"))
}

func TestStoreFilterIgnoresMonthAll(t *testing.T) {
	ev := New(DefaultOptions())
	tbl := testTable(t, testCSV)

	res, err := ev.Evaluate(tbl, actual, predicted, Filter{Store: "StoreA", Month: All})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, []string{"Store=StoreA"}, res.Applied)

	stores, err := res.Table.Records("Store")
	require.NoError(t, err)
	assert.Equal(t, []string{"StoreA", "StoreA", "StoreA"}, stores)
	assert.Equal(t, []float64{600, 720, 570}, res.Actual)
	assert.Equal(t, []float64{610, 700, 560}, res.Predicted)
}

func TestFiltersCombineWithAnd(t *testing.T) {
	ev := New(DefaultOptions())
	tbl := testTable(t, testCSV)

	res, err := ev.Evaluate(tbl, actual, predicted, Filter{Store: "StoreA", Month: "7"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, []float64{600, 570}, res.Actual)
}

func TestEmptySelection(t *testing.T) {
	ev := New(DefaultOptions())
	tbl := testTable(t, testCSV)

	res, err := ev.Evaluate(tbl, actual, predicted, Filter{Store: "StoreC", Month: "7"})
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEmptySelection))

	var empty *errors.EmptySelectionError
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, []string{"Store=StoreC", "Month=7"}, empty.Filters)
}

func TestPerfectPrediction(t *testing.T) {
	ev := New(DefaultOptions())
	tbl := testTable(t, testCSV)

	res, err := ev.Evaluate(tbl, actual, actual, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Metrics.R2)
	assert.Equal(t, 0.0, res.Metrics.RMSE)
	assert.Equal(t, 0.0, res.Metrics.MSE)
}

func TestRMSEIsSqrtMSE(t *testing.T) {
	ev := New(DefaultOptions())
	res, err := ev.Evaluate(testTable(t, testCSV), actual, predicted, Filter{Month: "7"})
	require.NoError(t, err)
	assert.Equal(t, math.Sqrt(res.Metrics.MSE), res.Metrics.RMSE)
}

func TestLengthMismatch(t *testing.T) {
	ev := New(DefaultOptions())
	short := frame.Series{Values: []float64{1, 2}}

	_, err := ev.Evaluate(testTable(t, testCSV), short, predicted, Filter{})
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))
	_, err = ev.Evaluate(testTable(t, testCSV), actual, short, Filter{})
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))
}

func TestFilterOptions(t *testing.T) {
	ev := New(DefaultOptions())
	stores, months := ev.FilterOptions(testTable(t, testCSV))
	assert.Equal(t, []string{All, "StoreA", "StoreB", "StoreC"}, stores)
	assert.Equal(t, []string{All, "1", "7", "8"}, months)
}

func TestJoinedCSVRoundTrip(t *testing.T) {
	tbl := testTable(t, testCSV)
	pred := frame.Series{Values: []float64{610.123456, 640.5, 700.25, 470, 560.75}}

	joined, err := Joined(tbl, actual, pred)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, joined.WriteCSV(&buf))

	back := testTable(t, buf.String())
	gotActual, err := back.Floats(ActualColumn)
	require.NoError(t, err)
	gotPred, err := back.Floats(PredictedColumn)
	require.NoError(t, err)
	assert.InDeltaSlice(t, actual.Values, gotActual, 1e-6)
	assert.InDeltaSlice(t, pred.Values, gotPred, 1e-6)
}

func TestJoinedCSVKeepsFullPrecision(t *testing.T) {
	tbl := testTable(t, "Price\n1\n2\n")
	values := frame.Series{Values: []float64{0.00000012, 123456.123456789}}

	joined, err := Joined(tbl, values, values)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, joined.WriteCSV(&buf))
	assert.Equal(t, "Price,Actual,Predicted\n1,0.00000012,0.00000012\n2,123456.123456789,123456.123456789\n", buf.String())

	back := testTable(t, buf.String())
	got, err := back.Floats(PredictedColumn)
	require.NoError(t, err)
	assert.Equal(t, values.Values, got)
}

func TestFloatMonthColumn(t *testing.T) {
	ev := New(DefaultOptions())
	tbl := testTable(t, "Store,Month\nStoreA,7.0\nStoreB,8.0\nStoreA,7.5\n")
	y := frame.Series{Values: []float64{1, 2, 3}}

	_, months := ev.FilterOptions(tbl)
	assert.Equal(t, []string{All, "7", "7.5", "8"}, months)

	for _, month := range []string{"7", "7.0"} {
		res, err := ev.Evaluate(tbl, y, y, Filter{Month: month})
		require.NoError(t, err, month)
		assert.Equal(t, 1, res.Rows, month)
		assert.Equal(t, []string{"Month=" + month}, res.Applied)
	}

	res, err := ev.Evaluate(tbl, y, y, Filter{Store: "StoreA", Month: "7.5"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
}
