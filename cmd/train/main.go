// Command train fits a revenue model on a processed CSV and writes the model artifact
// together with the held-out X_test.csv and y_test.csv read by the dashboard.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ezoic/elasticity/config"
	"github.com/ezoic/elasticity/frame"
	"github.com/ezoic/elasticity/linear"
	"github.com/ezoic/elasticity/metrics"
	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/pkg/log"
	"github.com/ezoic/elasticity/sklearn/ensemble"
	"github.com/ezoic/elasticity/sklearn/model_selection"
	"github.com/ezoic/elasticity/sklearn/pipeline"
	"github.com/ezoic/elasticity/sklearn/tree"
)

type options struct {
	Data      string
	Estimator string
	Features  []string
	Target    string
	ModelOut  string
	TestOut   string // directory for X_test.csv and y_test.csv
	TestSize  float64
	Seed      int64
	Trees     int
	MaxDepth  int
	Jobs      int
	Folds     int // cross-validation folds on the training rows; < 2 disables
}

func main() {
	cfgFile := flag.String("config", "", "YAML configuration file")
	data := flag.String("data", "", "Training CSV (default: configured processed data)")
	est := flag.String("model", "forest", "Estimator: linear, tree or forest")
	testSize := flag.Float64("test-size", 0.2, "Fraction of rows held out")
	seed := flag.Int64("seed", 42, "Random seed")
	trees := flag.Int("n-estimators", 100, "Number of trees in the forest")
	depth := flag.Int("max-depth", 0, "Maximum tree depth, 0 for unlimited")
	jobs := flag.Int("n-jobs", 0, "Trees fitted concurrently, 0 for GOMAXPROCS")
	folds := flag.Int("cv", 0, "Report k-fold cross-validated R² on the training rows")
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{File: *cfgFile, EnvFile: ".env"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	cfg.SetupLogging()

	opts := options{
		Data:      cfg.Data.Processed,
		Estimator: *est,
		Features:  cfg.Model.Features,
		Target:    cfg.Model.Target,
		ModelOut:  cfg.Model.Path,
		TestOut:   filepath.Dir(cfg.Data.Features),
		TestSize:  *testSize,
		Seed:      *seed,
		Trees:     *trees,
		MaxDepth:  *depth,
		Jobs:      *jobs,
		Folds:     *folds,
	}
	if *data != "" {
		opts.Data = *data
	}

	report, err := train(opts)
	if err != nil {
		log.LogError(err, "Training failed")
		os.Exit(1)
	}
	fmt.Printf("Test R²: %.4f  RMSE: %.2f  MSE: %.2f\n", report.R2, report.RMSE, report.MSE)
	fmt.Printf("Model written to %s\n", opts.ModelOut)
}

func newEstimator(opts options) (string, pipeline.Estimator, error) {
	switch strings.ToLower(opts.Estimator) {
	case "linear":
		return linear.Name, linear.NewLinearRegression(), nil
	case "tree":
		return tree.Name, tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(opts.MaxDepth),
			tree.WithRandomState(opts.Seed),
		), nil
	case "forest":
		return ensemble.Name, ensemble.NewRandomForestRegressor(
			ensemble.WithNEstimators(opts.Trees),
			ensemble.WithMaxDepth(opts.MaxDepth),
			ensemble.WithRandomState(opts.Seed),
			ensemble.WithNJobs(opts.Jobs),
		), nil
	default:
		return "", nil, errors.NewValueError("train", "unknown estimator "+opts.Estimator)
	}
}

func train(opts options) (metrics.Report, error) {
	logger := log.GetLoggerWithName("train")
	start := time.Now()

	name, est, err := newEstimator(opts)
	if err != nil {
		return metrics.Report{}, err
	}

	f, err := os.Open(opts.Data)
	if err != nil {
		if os.IsNotExist(err) {
			return metrics.Report{}, errors.NewNotFoundError("train", opts.Data)
		}
		return metrics.Report{}, errors.Wrapf(err, "open %s", opts.Data)
	}
	data, err := frame.ReadCSV(f)
	_ = f.Close()
	if err != nil {
		return metrics.Report{}, err
	}
	target, err := data.Floats(opts.Target)
	if err != nil {
		return metrics.Report{}, err
	}

	trainRows, testRows, err := model_selection.TrainTestSplit(data.Nrow(), opts.TestSize, opts.Seed)
	if err != nil {
		return metrics.Report{}, err
	}
	trainSet, err := data.Subset(trainRows)
	if err != nil {
		return metrics.Report{}, err
	}
	testSet, err := data.Subset(testRows)
	if err != nil {
		return metrics.Report{}, err
	}
	yTrain, err := frame.Series{Name: opts.Target, Values: target}.Pick(trainRows)
	if err != nil {
		return metrics.Report{}, err
	}
	yTest, err := frame.Series{Name: opts.Target, Values: target}.Pick(testRows)
	if err != nil {
		return metrics.Report{}, err
	}

	if opts.Folds > 1 {
		cv, err := crossValidate(opts, trainSet, yTrain)
		if err != nil {
			return metrics.Report{}, err
		}
		logger.Info("Cross-validation complete", "folds", opts.Folds, "mean_r2", cv)
	}

	p, err := pipeline.Fit(name, est, trainSet, opts.Features, yTrain)
	if err != nil {
		return metrics.Report{}, err
	}

	// The test features keep every non-target column so the dashboard can filter on
	// columns the model does not use.
	xTest := testSet.Drop(opts.Target)
	pred, err := p.Predict(xTest)
	if err != nil {
		return metrics.Report{}, err
	}
	report, err := metrics.Evaluate(yTest.Values, pred.Values)
	if err != nil {
		return metrics.Report{}, err
	}

	if err := writeOutputs(opts, p, xTest, yTest); err != nil {
		return metrics.Report{}, err
	}
	logger.Info("Model trained",
		log.ModelNameKey, name,
		log.SamplesKey, len(trainRows),
		log.FeaturesKey, len(opts.Features),
		"test_rows", len(testRows),
		"r2", report.R2,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return report, nil
}

// crossValidate returns the mean R² over opts.Folds folds of data.
func crossValidate(opts options, data frame.Table, target frame.Series) (float64, error) {
	folds, err := model_selection.KFold(data.Nrow(), opts.Folds, opts.Seed)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i, held := range folds {
		var rest []int
		for j, fold := range folds {
			if j != i {
				rest = append(rest, fold...)
			}
		}
		name, est, err := newEstimator(opts)
		if err != nil {
			return 0, err
		}
		fitX, err := data.Subset(rest)
		if err != nil {
			return 0, err
		}
		fitY, err := target.Pick(rest)
		if err != nil {
			return 0, err
		}
		p, err := pipeline.Fit(name, est, fitX, opts.Features, fitY)
		if err != nil {
			return 0, errors.Wrapf(err, "fold %d", i)
		}
		evalX, err := data.Subset(held)
		if err != nil {
			return 0, err
		}
		evalY, err := target.Pick(held)
		if err != nil {
			return 0, err
		}
		pred, err := p.Predict(evalX)
		if err != nil {
			return 0, err
		}
		report, err := metrics.Evaluate(evalY.Values, pred.Values)
		if err != nil {
			return 0, err
		}
		sum += report.R2
	}
	return sum / float64(len(folds)), nil
}

func writeOutputs(opts options, p *pipeline.Pipeline, xTest frame.Table, yTest frame.Series) error {
	var artifact bytes.Buffer
	if err := p.WriteArtifact(&artifact); err != nil {
		return err
	}
	labels, err := frame.FromColumns([]string{yTest.Name}, [][]float64{yTest.Values})
	if err != nil {
		return err
	}
	var xBuf, yBuf bytes.Buffer
	if err := xTest.WriteCSV(&xBuf); err != nil {
		return err
	}
	if err := labels.WriteCSV(&yBuf); err != nil {
		return err
	}

	for path, body := range map[string][]byte{
		opts.ModelOut:                            artifact.Bytes(),
		filepath.Join(opts.TestOut, "X_test.csv"): xBuf.Bytes(),
		filepath.Join(opts.TestOut, "y_test.csv"): yBuf.Bytes(),
	} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errors.Wrapf(err, "create directory for %s", path)
		}
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
	}
	return nil
}
