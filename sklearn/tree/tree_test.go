package tree

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/elasticity/pkg/errors"
)

// step data: revenue depends on price only
func stepData() (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(8, 2, []float64{
		1, 5,
		2, 3,
		3, 8,
		4, 1,
		5, 7,
		6, 2,
		7, 6,
		8, 4,
	})
	y := mat.NewVecDense(8, []float64{10, 10, 10, 10, 20, 20, 20, 20})
	return X, y
}

func TestDecisionTreeRegressor_FitPredict(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor(WithRandomState(42))
	require.NoError(t, dt.Fit(X, y))
	assert.True(t, dt.IsFitted())

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		assert.Equal(t, y.AtVec(i), pred.At(i, 0), "row %d", i)
	}

	assert.Equal(t, 3, dt.NodeCount())
	assert.Equal(t, 1, dt.GetDepth())
	assert.Equal(t, 2, dt.GetNLeaves())
	assert.Equal(t, 0, dt.nodes.Feature[0])
	assert.Equal(t, 4.5, dt.nodes.Threshold[0])

	imp := dt.FeatureImportances()
	require.Len(t, imp, 2)
	assert.InDelta(t, 1.0, imp[0], 1e-12)
	assert.InDelta(t, 0.0, imp[1], 1e-12)
}

func TestDecisionTreeRegressor_MaxDepth(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewVecDense(4, []float64{1, 2, 3, 4})

	dt := NewDecisionTreeRegressor(WithMaxDepth(1))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1, dt.GetDepth())

	pred, err := dt.Predict(mat.NewDense(2, 1, []float64{1, 4}))
	require.NoError(t, err)
	assert.Equal(t, 1.5, pred.At(0, 0))
	assert.Equal(t, 3.5, pred.At(1, 0))
}

func TestDecisionTreeRegressor_MinSamplesLeaf(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewVecDense(4, []float64{0, 0, 0, 100})

	dt := NewDecisionTreeRegressor(WithMinSamplesLeaf(2))
	require.NoError(t, dt.Fit(X, y))
	for i, c := range dt.nodes.NNodeSamples {
		if dt.nodes.ChildrenLeft[i] == Leaf {
			assert.GreaterOrEqual(t, c, 2)
		}
	}
}

func TestDecisionTreeRegressor_Errors(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	_, err := dt.Predict(mat.NewDense(1, 1, []float64{1}))
	assert.True(t, errors.Is(err, errors.ErrNotFitted))

	err = dt.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewVecDense(3, []float64{1, 2, 3}))
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))

	X, y := stepData()
	require.NoError(t, dt.Fit(X, y))
	_, err = dt.Predict(mat.NewDense(1, 3, []float64{1, 2, 3}))
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))
}

func TestParamsRoundTrip(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor(WithRandomState(1))
	require.NoError(t, dt.Fit(X, y))

	p, err := dt.Params()
	require.NoError(t, err)
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded Params
	require.NoError(t, json.Unmarshal(raw, &decoded))
	restored, err := FromParams(decoded)
	require.NoError(t, err)

	want, err := dt.Predict(X)
	require.NoError(t, err)
	got, err := restored.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
	assert.Equal(t, dt.FeatureImportances(), restored.FeatureImportances())
}

func TestFromParamsSKLearnLayout(t *testing.T) {
	// as exported from sklearn: root splits feature 1 at 0.5
	p := Params{
		NFeatures:     2,
		ChildrenLeft:  []int{1, -1, -1},
		ChildrenRight: []int{2, -1, -1},
		Feature:       []int{1, -2, -2},
		Threshold:     []float64{0.5, -2, -2},
		Value:         []float64{15, 10, 20},
		Impurity:      []float64{25, 0, 0},
		NNodeSamples:  []int{4, 2, 2},
	}
	dt, err := FromParams(p)
	require.NoError(t, err)

	pred, err := dt.Predict(mat.NewDense(2, 2, []float64{9, 0, 9, 1}))
	require.NoError(t, err)
	assert.Equal(t, 10.0, pred.At(0, 0))
	assert.Equal(t, 20.0, pred.At(1, 0))
	assert.Equal(t, []float64{0, 1}, dt.FeatureImportances())
}

func TestFromParamsRejectsMalformed(t *testing.T) {
	base := func() Params {
		return Params{
			NFeatures:     1,
			ChildrenLeft:  []int{1, -1, -1},
			ChildrenRight: []int{2, -1, -1},
			Feature:       []int{0, -2, -2},
			Threshold:     []float64{0.5, -2, -2},
			Value:         []float64{1, 0, 2},
		}
	}

	cycle := base()
	cycle.ChildrenLeft[0] = 0
	oneChild := base()
	oneChild.ChildrenRight[0] = -1
	badFeature := base()
	badFeature.Feature[0] = 3
	short := base()
	short.Value = short.Value[:2]

	for name, p := range map[string]Params{
		"cycle": cycle, "one child": oneChild, "bad feature": badFeature, "short": short,
		"empty": {NFeatures: 1},
	} {
		_, err := FromParams(p)
		assert.Error(t, err, name)
	}
}

func TestParamsAcceptNestedValue(t *testing.T) {
	// tree_.value of a single-output regressor has shape (n_nodes, 1, 1)
	raw := `{"n_features":2,"children_left":[1,-1,-1],"children_right":[2,-1,-1],
		"feature":[1,-2,-2],"threshold":[0.5,-2,-2],"value":[[[15.0]],[[10.0]],[[20.0]]]}`

	var p Params
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	assert.Equal(t, NodeValues{15, 10, 20}, p.Value)

	dt, err := FromParams(p)
	require.NoError(t, err)
	pred, err := dt.Predict(mat.NewDense(1, 2, []float64{0, 1}))
	require.NoError(t, err)
	assert.Equal(t, 20.0, pred.At(0, 0))

	var flat Params
	require.NoError(t, json.Unmarshal([]byte(`{"value":[1.5,2]}`), &flat))
	assert.Equal(t, NodeValues{1.5, 2}, flat.Value)

	var multi Params
	err = json.Unmarshal([]byte(`{"value":[[[1.0,2.0]]]}`), &multi)
	assert.True(t, errors.Is(err, errors.ErrInvalidValue))
}
