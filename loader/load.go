package loader

import (
	"context"
	"time"

	"github.com/ezoic/elasticity/frame"
	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/pkg/log"
	"github.com/ezoic/elasticity/sklearn/pipeline"
)

// LoadTable reads a feature table from a CSV with a header row.
func LoadTable(ctx context.Context, src Source, path string) (frame.Table, error) {
	start := time.Now()
	rc, err := src.Open(ctx, path)
	if err != nil {
		return frame.Table{}, err
	}
	defer func() { _ = rc.Close() }()

	t, err := frame.ReadCSV(rc)
	if err != nil {
		return frame.Table{}, errors.NewDeserializationError("LoadTable", path, err)
	}

	log.GetLoggerWithName("loader").Info("Table loaded",
		log.OperationKey, log.OperationLoad,
		log.PathKey, path,
		log.RowsKey, t.Nrow(),
		log.FeaturesKey, len(t.Names()),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return t, nil
}

// LoadSeries reads one numeric column from a CSV. An empty column selects the
// first column.
func LoadSeries(ctx context.Context, src Source, path, column string) (frame.Series, error) {
	rc, err := src.Open(ctx, path)
	if err != nil {
		return frame.Series{}, err
	}
	defer func() { _ = rc.Close() }()

	s, err := frame.ReadSeries(rc, column)
	if err != nil {
		return frame.Series{}, errors.NewDeserializationError("LoadSeries", path, err)
	}

	log.GetLoggerWithName("loader").Info("Series loaded",
		log.OperationKey, log.OperationLoad,
		log.PathKey, path,
		log.RowsKey, s.Len(),
	)
	return s, nil
}

// LoadPipeline reads a trained model artifact.
func LoadPipeline(ctx context.Context, src Source, path string) (*pipeline.Pipeline, error) {
	rc, err := src.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	p, err := pipeline.ReadArtifact(rc)
	if err != nil {
		if errors.Is(err, errors.ErrDeserialization) {
			return nil, errors.Wrapf(err, "load model %s", path)
		}
		return nil, errors.NewDeserializationError("LoadPipeline", path, err)
	}

	log.GetLoggerWithName("loader").Info("Model loaded",
		log.OperationKey, log.OperationLoad,
		log.PathKey, path,
		log.ModelNameKey, p.Name,
		log.FeaturesKey, len(p.FeatureNames),
	)
	return p, nil
}
