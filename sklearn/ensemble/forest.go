// Package ensemble implements bagged tree ensembles.
package ensemble

import (
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/elasticity/core/model"
	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/pkg/log"
	"github.com/ezoic/elasticity/sklearn/tree"
)

// Name identifies RandomForestRegressor in model artifacts.
const Name = "RandomForestRegressor"

// Params is a fitted forest: one tree per estimator plus the forest-level importances.
type Params struct {
	NFeatures          int           `json:"n_features"`
	Estimators         []tree.Params `json:"estimators"`
	FeatureImportances []float64     `json:"feature_importances,omitempty"`
}

// RandomForestRegressor averages the predictions of regression trees fitted on
// bootstrap samples.
type RandomForestRegressor struct {
	state *model.StateManager

	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 = all features
	Bootstrap       bool
	RandomState     int64
	NJobs           int // concurrent tree fits, 0 = GOMAXPROCS

	Trees               []*tree.DecisionTreeRegressor
	featureImportances_ []float64
	nFeatures           int
	logger              log.Logger
}

// Option configures a RandomForestRegressor.
type Option func(*RandomForestRegressor)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option { return func(rf *RandomForestRegressor) { rf.NEstimators = n } }

// WithMaxDepth limits the depth of every tree.
func WithMaxDepth(d int) Option { return func(rf *RandomForestRegressor) { rf.MaxDepth = d } }

// WithMinSamplesLeaf sets the minimum samples per leaf of every tree.
func WithMinSamplesLeaf(n int) Option { return func(rf *RandomForestRegressor) { rf.MinSamplesLeaf = n } }

// WithMaxFeatures sets the features considered per split.
func WithMaxFeatures(n int) Option { return func(rf *RandomForestRegressor) { rf.MaxFeatures = n } }

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(b bool) Option { return func(rf *RandomForestRegressor) { rf.Bootstrap = b } }

// WithRandomState sets the base seed; tree i is seeded with seed+i.
func WithRandomState(seed int64) Option { return func(rf *RandomForestRegressor) { rf.RandomState = seed } }

// WithNJobs bounds the number of trees fitted at once.
func WithNJobs(n int) Option { return func(rf *RandomForestRegressor) { rf.NJobs = n } }

// NewRandomForestRegressor creates an unfitted forest.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		state:           model.NewStateManager(),
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     time.Now().UnixNano(),
		logger:          log.GetLoggerWithName("ensemble").With(log.ModelNameKey, Name),
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// FromParams restores a fitted forest.
func FromParams(p Params) (*RandomForestRegressor, error) {
	if len(p.Estimators) == 0 {
		return nil, errors.NewValueError("RandomForestRegressor.FromParams", "forest has no estimators")
	}
	if p.FeatureImportances != nil && len(p.FeatureImportances) != p.NFeatures {
		return nil, errors.NewDimensionError("RandomForestRegressor.FromParams", p.NFeatures, len(p.FeatureImportances), 0)
	}

	rf := NewRandomForestRegressor()
	rf.NEstimators = len(p.Estimators)
	rf.nFeatures = p.NFeatures
	rf.Trees = make([]*tree.DecisionTreeRegressor, len(p.Estimators))
	for i, tp := range p.Estimators {
		if tp.NFeatures != p.NFeatures {
			return nil, errors.NewDimensionError("RandomForestRegressor.FromParams", p.NFeatures, tp.NFeatures, 1)
		}
		t, err := tree.FromParams(tp)
		if err != nil {
			return nil, errors.Wrapf(err, "estimator %d", i)
		}
		rf.Trees[i] = t
	}

	if p.FeatureImportances != nil {
		rf.featureImportances_ = append([]float64(nil), p.FeatureImportances...)
	} else {
		rf.featureImportances_ = rf.averageImportances()
	}
	rf.state.SetFitted()
	rf.state.SetDimensions(p.NFeatures, 0)
	return rf, nil
}

// Fit trains NEstimators trees concurrently, at most NJobs at a time.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")
	startTime := time.Now()

	n, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if n == 0 || nFeatures == 0 {
		return errors.NewModelError("RandomForestRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != n {
		return errors.NewDimensionError("RandomForestRegressor.Fit", n, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("RandomForestRegressor.Fit", "y must be a column vector")
	}
	if rf.NEstimators <= 0 {
		return errors.NewValueError("RandomForestRegressor.Fit", "n_estimators must be positive")
	}

	rf.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, n,
		log.FeaturesKey, nFeatures,
		"estimators", rf.NEstimators,
	)

	target := model.ColumnToSlice(y)
	trees := make([]*tree.DecisionTreeRegressor, rf.NEstimators)

	jobs := rf.NJobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(jobs)

	for i := 0; i < rf.NEstimators; i++ {
		idx := i
		g.Go(func() error {
			seed := rf.RandomState + int64(idx)
			treeRand := rand.New(rand.NewSource(seed))

			// index-based bootstrap sample
			sample := make([]int, n)
			for j := range sample {
				if rf.Bootstrap {
					sample[j] = treeRand.Intn(n)
				} else {
					sample[j] = j
				}
			}

			t := tree.NewDecisionTreeRegressor(
				tree.WithMaxDepth(rf.MaxDepth),
				tree.WithMinSamplesSplit(rf.MinSamplesSplit),
				tree.WithMinSamplesLeaf(rf.MinSamplesLeaf),
				tree.WithMaxFeatures(rf.MaxFeatures),
				tree.WithRandomState(seed),
			)
			if err := t.FitRows(X, target, sample); err != nil {
				return errors.Wrapf(err, "fit estimator %d", idx)
			}
			trees[idx] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rf.Trees = trees
	rf.nFeatures = nFeatures
	rf.featureImportances_ = rf.averageImportances()
	rf.state.SetFitted()
	rf.state.SetDimensions(nFeatures, n)

	rf.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
	)
	return nil
}

// averageImportances returns the mean of the tree importances, renormalized, or nil
// if any tree has none.
func (rf *RandomForestRegressor) averageImportances() []float64 {
	out := make([]float64, rf.nFeatures)
	for _, t := range rf.Trees {
		imp := t.FeatureImportances()
		if len(imp) != rf.nFeatures {
			return nil
		}
		for j, v := range imp {
			out[j] += v
		}
	}

	var sum float64
	for _, v := range out {
		sum += v
	}
	if sum > 0 {
		for j := range out {
			out[j] /= sum
		}
	}
	return out
}

// Predict returns the mean prediction of all trees as an (n_samples, 1) matrix.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Predict")
	if !rf.state.IsFitted() {
		return nil, errors.NewNotFittedError(Name, "Predict")
	}
	n, c := X.Dims()
	if c != rf.nFeatures {
		return nil, errors.NewDimensionError("RandomForestRegressor.Predict", rf.nFeatures, c, 1)
	}

	sum := mat.NewVecDense(n, nil)
	for _, t := range rf.Trees {
		p, err := t.Predict(X)
		if err != nil {
			return nil, err
		}
		sum.AddVec(sum, p.(mat.Vector))
	}
	sum.ScaleVec(1/float64(len(rf.Trees)), sum)
	return sum, nil
}

// FeatureImportances returns the forest-level importances, one per feature.
func (rf *RandomForestRegressor) FeatureImportances() []float64 {
	if rf.featureImportances_ == nil {
		return nil
	}
	return append([]float64(nil), rf.featureImportances_...)
}

// Params exports the fitted forest.
func (rf *RandomForestRegressor) Params() (Params, error) {
	if !rf.state.IsFitted() {
		return Params{}, errors.NewNotFittedError(Name, "Params")
	}
	p := Params{
		NFeatures:          rf.nFeatures,
		Estimators:         make([]tree.Params, len(rf.Trees)),
		FeatureImportances: rf.FeatureImportances(),
	}
	for i, t := range rf.Trees {
		tp, err := t.Params()
		if err != nil {
			return Params{}, err
		}
		p.Estimators[i] = tp
	}
	return p, nil
}

// IsFitted returns whether the forest has been fitted or loaded.
func (rf *RandomForestRegressor) IsFitted() bool { return rf.state.IsFitted() }
