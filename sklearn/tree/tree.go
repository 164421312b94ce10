// Package tree implements CART regression trees.
//
// A fitted tree is stored in the flat, array-of-nodes layout scikit-learn exposes as
// DecisionTreeRegressor.tree_: node i splits on Feature[i] at Threshold[i], samples
// with x <= threshold go to ChildrenLeft[i], the rest to ChildrenRight[i], and leaves
// have both children set to Leaf. The arrays of an exported tree_ load as they are;
// value may be given flat or in scikit-learn's (n_nodes, 1, 1) nesting.
package tree

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/elasticity/core/model"
	"github.com/ezoic/elasticity/pkg/errors"
)

// Name identifies DecisionTreeRegressor in model artifacts.
const Name = "DecisionTreeRegressor"

const (
	// Leaf marks a missing child in ChildrenLeft/ChildrenRight.
	Leaf = -1
	// Undefined is the feature index stored for leaves.
	Undefined = -2
)

// impurities below this are treated as pure nodes
const pureTolerance = 1e-12

// Params is the fitted tree in scikit-learn's tree_ layout. Value holds one
// prediction per node. Impurity and NNodeSamples are optional and, when present, are
// used to derive feature importances.
type Params struct {
	NFeatures          int        `json:"n_features"`
	ChildrenLeft       []int      `json:"children_left"`
	ChildrenRight      []int      `json:"children_right"`
	Feature            []int      `json:"feature"`
	Threshold          []float64  `json:"threshold"`
	Value              NodeValues `json:"value"`
	Impurity           []float64  `json:"impurity,omitempty"`
	NNodeSamples       []int      `json:"n_node_samples,omitempty"`
	FeatureImportances []float64  `json:"feature_importances,omitempty"`
}

// NodeValues holds one prediction per node.
type NodeValues []float64

// UnmarshalJSON accepts a flat array or one nested single-output array per node, as
// in tree_.value.
func (v *NodeValues) UnmarshalJSON(data []byte) error {
	var nodes []json.RawMessage
	if err := json.Unmarshal(data, &nodes); err != nil {
		return err
	}
	out := make(NodeValues, len(nodes))
	for i, raw := range nodes {
		for raw = bytes.TrimSpace(raw); len(raw) > 0 && raw[0] == '['; raw = bytes.TrimSpace(raw) {
			var inner []json.RawMessage
			if err := json.Unmarshal(raw, &inner); err != nil {
				return err
			}
			if len(inner) != 1 {
				return errors.NewValueError("tree.NodeValues", "only single-output trees are supported")
			}
			raw = inner[0]
		}
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			return err
		}
	}
	*v = out
	return nil
}

// DecisionTreeRegressor is a regression tree using the squared error criterion.
type DecisionTreeRegressor struct {
	state *model.StateManager

	// Hyperparameters
	maxDepth        int   // 0 = unlimited
	minSamplesSplit int   // minimum samples to split a node
	minSamplesLeaf  int   // minimum samples in a leaf
	maxFeatures     int   // features considered per split, 0 = all
	randomState     int64 // negative = time seeded

	nodes               Params
	featureImportances_ []float64
	rng                 *rand.Rand
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// NewDecisionTreeRegressor creates an unfitted tree.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		state:           model.NewStateManager(),
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// WithMaxDepth sets the maximum tree depth.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeRegressor) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets minimum samples to split.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeRegressor) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets minimum samples in leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeRegressor) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many randomly chosen features each split considers.
func WithMaxFeatures(n int) Option {
	return func(dt *DecisionTreeRegressor) { dt.maxFeatures = n }
}

// WithRandomState sets the random seed.
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeRegressor) { dt.randomState = seed }
}

// FromParams restores a fitted tree.
func FromParams(p Params) (*DecisionTreeRegressor, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	dt := NewDecisionTreeRegressor()
	dt.nodes = p
	dt.featureImportances_ = p.importances()
	dt.state.SetFitted()
	dt.state.SetDimensions(p.NFeatures, 0)
	return dt, nil
}

func (p Params) validate() error {
	const op = "DecisionTreeRegressor.FromParams"
	n := len(p.ChildrenLeft)
	if n == 0 {
		return errors.NewValueError(op, "tree has no nodes")
	}
	if p.NFeatures <= 0 {
		return errors.NewValueError(op, "n_features must be positive")
	}
	for _, l := range []int{len(p.ChildrenRight), len(p.Feature), len(p.Threshold), len(p.Value)} {
		if l != n {
			return errors.NewDimensionError(op, n, l, 0)
		}
	}
	for i := 0; i < n; i++ {
		left, right := p.ChildrenLeft[i], p.ChildrenRight[i]
		if (left == Leaf) != (right == Leaf) {
			return errors.NewValueError(op, "node has exactly one child")
		}
		if left == Leaf {
			continue
		}
		// children always follow their parent in depth-first order
		if left <= i || right <= i || left >= n || right >= n {
			return errors.NewValueError(op, "child index out of range")
		}
		if p.Feature[i] < 0 || p.Feature[i] >= p.NFeatures {
			return errors.NewValueError(op, "split feature out of range")
		}
	}
	if p.FeatureImportances != nil && len(p.FeatureImportances) != p.NFeatures {
		return errors.NewDimensionError(op, p.NFeatures, len(p.FeatureImportances), 0)
	}
	return nil
}

// importances returns the stored importances, or derives them from node impurities.
func (p Params) importances() []float64 {
	if p.FeatureImportances != nil {
		return append([]float64(nil), p.FeatureImportances...)
	}
	n := len(p.ChildrenLeft)
	if len(p.Impurity) != n || len(p.NNodeSamples) != n {
		return nil
	}

	imp := make([]float64, p.NFeatures)
	for i := 0; i < n; i++ {
		left, right := p.ChildrenLeft[i], p.ChildrenRight[i]
		if left == Leaf {
			continue
		}
		imp[p.Feature[i]] += float64(p.NNodeSamples[i])*p.Impurity[i] -
			float64(p.NNodeSamples[left])*p.Impurity[left] -
			float64(p.NNodeSamples[right])*p.Impurity[right]
	}
	normalize(imp)
	return imp
}

// Fit trains the tree on X (n_samples, n_features) and the column vector y.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")
	nSamples, _ := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("DecisionTreeRegressor.Fit", "y must be a column vector")
	}

	rows := make([]int, nSamples)
	for i := range rows {
		rows[i] = i
	}
	return dt.FitRows(X, model.ColumnToSlice(y), rows)
}

// FitRows trains the tree on the given rows of X, which may repeat, as in a
// bootstrap sample.
func (dt *DecisionTreeRegressor) FitRows(X mat.Matrix, y []float64, rows []int) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.FitRows")
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 || len(rows) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(y) != nSamples {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", nSamples, len(y), 0)
	}

	seed := dt.randomState
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	dt.rng = rand.New(rand.NewSource(seed))

	dt.nodes = Params{NFeatures: nFeatures}
	dt.featureImportances_ = make([]float64, nFeatures)

	b := &builder{dt: dt, X: X, y: y}
	b.build(append([]int(nil), rows...), 0)

	dt.nodes.FeatureImportances = nil
	normalize(dt.featureImportances_)

	dt.state.SetFitted()
	dt.state.SetDimensions(nFeatures, len(rows))
	return nil
}

type builder struct {
	dt *DecisionTreeRegressor
	X  mat.Matrix
	y  []float64
}

// build appends the subtree for rows and returns its node index.
func (b *builder) build(rows []int, depth int) int {
	dt := b.dt
	mean, impurity := b.stats(rows)

	id := len(dt.nodes.ChildrenLeft)
	dt.nodes.ChildrenLeft = append(dt.nodes.ChildrenLeft, Leaf)
	dt.nodes.ChildrenRight = append(dt.nodes.ChildrenRight, Leaf)
	dt.nodes.Feature = append(dt.nodes.Feature, Undefined)
	dt.nodes.Threshold = append(dt.nodes.Threshold, Undefined)
	dt.nodes.Value = append(dt.nodes.Value, mean)
	dt.nodes.Impurity = append(dt.nodes.Impurity, impurity)
	dt.nodes.NNodeSamples = append(dt.nodes.NNodeSamples, len(rows))

	if dt.shouldStop(len(rows), impurity, depth) {
		return id
	}

	feature, threshold, decrease := b.findBestSplit(rows, impurity)
	if feature < 0 {
		return id
	}

	var left, right []int
	for _, r := range rows {
		if b.X.At(r, feature) <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	dt.featureImportances_[feature] += decrease * float64(len(rows))
	dt.nodes.Feature[id] = feature
	dt.nodes.Threshold[id] = threshold

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	dt.nodes.ChildrenLeft[id] = l
	dt.nodes.ChildrenRight[id] = r
	return id
}

func (dt *DecisionTreeRegressor) shouldStop(nSamples int, impurity float64, depth int) bool {
	if dt.maxDepth > 0 && depth >= dt.maxDepth {
		return true
	}
	if nSamples < dt.minSamplesSplit || nSamples < 2*dt.minSamplesLeaf {
		return true
	}
	return impurity <= pureTolerance
}

// stats returns the mean and the mean squared deviation of y over rows.
func (b *builder) stats(rows []int) (mean, impurity float64) {
	for _, r := range rows {
		mean += b.y[r]
	}
	mean /= float64(len(rows))
	for _, r := range rows {
		d := b.y[r] - mean
		impurity += d * d
	}
	return mean, impurity / float64(len(rows))
}

// candidateFeatures returns the features to consider for one split.
func (b *builder) candidateFeatures() []int {
	_, nFeatures := b.X.Dims()
	k := b.dt.maxFeatures
	if k <= 0 || k >= nFeatures {
		all := make([]int, nFeatures)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.dt.rng.Perm(nFeatures)[:k]
}

// findBestSplit scans every threshold of every candidate feature, using prefix sums
// of y and y² to evaluate the weighted child variance in one pass per feature.
func (b *builder) findBestSplit(rows []int, parentImpurity float64) (int, float64, float64) {
	n := len(rows)
	minLeaf := b.dt.minSamplesLeaf
	bestFeature, bestThreshold, bestDecrease := -1, 0.0, 0.0

	sorted := make([]int, n)
	for _, feature := range b.candidateFeatures() {
		copy(sorted, rows)
		sort.Slice(sorted, func(i, j int) bool {
			return b.X.At(sorted[i], feature) < b.X.At(sorted[j], feature)
		})

		var totalSum, totalSq float64
		for _, r := range sorted {
			totalSum += b.y[r]
			totalSq += b.y[r] * b.y[r]
		}

		var leftSum, leftSq float64
		for i := 0; i < n-1; i++ {
			v := b.y[sorted[i]]
			leftSum += v
			leftSq += v * v

			nLeft := i + 1
			nRight := n - nLeft
			if nLeft < minLeaf || nRight < minLeaf {
				continue
			}
			lo, hi := b.X.At(sorted[i], feature), b.X.At(sorted[i+1], feature)
			if lo == hi {
				continue
			}

			rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
			leftSSE := leftSq - leftSum*leftSum/float64(nLeft)
			rightSSE := rightSq - rightSum*rightSum/float64(nRight)
			decrease := parentImpurity - (leftSSE+rightSSE)/float64(n)

			if decrease > bestDecrease+pureTolerance {
				bestFeature = feature
				bestThreshold = lo + (hi-lo)/2
				bestDecrease = decrease
			}
		}
	}
	return bestFeature, bestThreshold, bestDecrease
}

func normalize(v []float64) {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	if sum > 0 {
		for i := range v {
			v[i] /= sum
		}
	}
}

// Predict returns an (n_samples, 1) matrix with the leaf value of each row.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Predict")
	if !dt.state.IsFitted() {
		return nil, errors.NewNotFittedError(Name, "Predict")
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != dt.nodes.NFeatures {
		return nil, errors.NewDimensionError("DecisionTreeRegressor.Predict", dt.nodes.NFeatures, nFeatures, 1)
	}

	predictions := mat.NewVecDense(nSamples, nil)
	for i := 0; i < nSamples; i++ {
		predictions.SetVec(i, dt.predictRow(X, i))
	}
	return predictions, nil
}

func (dt *DecisionTreeRegressor) predictRow(X mat.Matrix, row int) float64 {
	t := &dt.nodes
	node := 0
	for t.ChildrenLeft[node] != Leaf {
		if X.At(row, t.Feature[node]) <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// Params exports the fitted tree.
func (dt *DecisionTreeRegressor) Params() (Params, error) {
	if !dt.state.IsFitted() {
		return Params{}, errors.NewNotFittedError(Name, "Params")
	}
	p := dt.nodes
	p.FeatureImportances = dt.FeatureImportances()
	return p, nil
}

// FeatureImportances returns the normalized total impurity decrease per feature,
// or nil when the tree was loaded without impurity data.
func (dt *DecisionTreeRegressor) FeatureImportances() []float64 {
	if dt.featureImportances_ == nil {
		return nil
	}
	return append([]float64(nil), dt.featureImportances_...)
}

// IsFitted returns whether the tree has been fitted or loaded.
func (dt *DecisionTreeRegressor) IsFitted() bool { return dt.state.IsFitted() }

// NodeCount returns the number of nodes.
func (dt *DecisionTreeRegressor) NodeCount() int { return len(dt.nodes.ChildrenLeft) }

// GetDepth returns the depth of the tree; a single leaf has depth 0.
func (dt *DecisionTreeRegressor) GetDepth() int {
	if dt.NodeCount() == 0 {
		return 0
	}
	var depth func(node int) int
	depth = func(node int) int {
		if dt.nodes.ChildrenLeft[node] == Leaf {
			return 0
		}
		return 1 + max(depth(dt.nodes.ChildrenLeft[node]), depth(dt.nodes.ChildrenRight[node]))
	}
	return depth(0)
}

// GetNLeaves returns the number of leaf nodes.
func (dt *DecisionTreeRegressor) GetNLeaves() int {
	n := 0
	for _, c := range dt.nodes.ChildrenLeft {
		if c == Leaf {
			n++
		}
	}
	return n
}
