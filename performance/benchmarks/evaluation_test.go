package benchmarks

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/ezoic/elasticity/evaluate"
	"github.com/ezoic/elasticity/frame"
	"github.com/ezoic/elasticity/sklearn/ensemble"
	"github.com/ezoic/elasticity/sklearn/pipeline"
)

var features = []string{"Price", "DayOfWeek", "Store", "Promotion", "Holiday"}

func salesTable(b *testing.B, n int) (frame.Table, frame.Series) {
	b.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	var sb strings.Builder
	sb.WriteString("Price,DayOfWeek,Store,Promotion,Holiday,Month\n")
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		price := 5 + rng.Float64()*10
		promo := rng.IntN(2)
		store := rng.IntN(20)
		y[i] = 900 - 35*price + 120*float64(promo) + 5*float64(store) + rng.NormFloat64()*15
		fmt.Fprintf(&sb, "%.2f,%d,Store%02d,%d,%d,%d\n", price, rng.IntN(7)+1, store, promo, rng.IntN(10)/9, rng.IntN(12)+1)
	}
	t, err := frame.ReadCSV(strings.NewReader(sb.String()))
	if err != nil {
		b.Fatal(err)
	}
	return t, frame.Series{Name: "Revenue", Values: y}
}

// BenchmarkForestFit measures concurrent forest training.
func BenchmarkForestFit(b *testing.B) {
	for _, n := range []int{1_000, 10_000} {
		b.Run(fmt.Sprintf("rows_%d", n), func(b *testing.B) {
			t, y := salesTable(b, n)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				rf := ensemble.NewRandomForestRegressor(
					ensemble.WithNEstimators(20),
					ensemble.WithMaxDepth(10),
					ensemble.WithRandomState(int64(i)),
				)
				if _, err := pipeline.Fit(ensemble.Name, rf, t, features, y); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkPredict measures pipeline prediction including categorical encoding.
func BenchmarkPredict(b *testing.B) {
	t, y := salesTable(b, 10_000)
	rf := ensemble.NewRandomForestRegressor(ensemble.WithNEstimators(20), ensemble.WithMaxDepth(10), ensemble.WithRandomState(1))
	p, err := pipeline.Fit(ensemble.Name, rf, t, features, y)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Predict(t); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEvaluate measures filtering and metric computation per request.
func BenchmarkEvaluate(b *testing.B) {
	filters := map[string]evaluate.Filter{
		"all":         {},
		"store":       {Store: "Store03", Month: evaluate.All},
		"store_month": {Store: "Store03", Month: "7"},
	}
	for _, n := range []int{10_000, 100_000} {
		t, y := salesTable(b, n)
		ev := evaluate.New(evaluate.DefaultOptions())
		for name, f := range filters {
			b.Run(fmt.Sprintf("rows_%d/%s", n, name), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, err := ev.Evaluate(t, y, y, f); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
