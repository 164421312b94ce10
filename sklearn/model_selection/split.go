// Package model_selection splits data sets for training and evaluation.
package model_selection

import (
	"math"
	"math/rand"
	"sort"

	"github.com/ezoic/elasticity/pkg/errors"
)

// TrainTestSplit shuffles the row positions 0..n-1 with the given seed and returns
// the train and test rows, each sorted ascending. The test set has
// ceil(testSize*n) rows; both sets are non-empty.
func TrainTestSplit(n int, testSize float64, seed int64) (train, test []int, err error) {
	if n < 2 {
		return nil, nil, errors.NewValueError("TrainTestSplit", "need at least two rows")
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValueError("TrainTestSplit", "test size must be in (0, 1)")
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		nTest = n - 1
	}

	indices := rand.New(rand.NewSource(seed)).Perm(n)
	test = append(test, indices[:nTest]...)
	train = append(train, indices[nTest:]...)
	sort.Ints(test)
	sort.Ints(train)
	return train, test, nil
}

// KFold returns k folds of shuffled row positions.
func KFold(n, k int, seed int64) ([][]int, error) {
	if k < 2 || k > n {
		return nil, errors.NewValueError("KFold", "k must be between 2 and the number of rows")
	}
	indices := rand.New(rand.NewSource(seed)).Perm(n)
	folds := make([][]int, k)
	for i, idx := range indices {
		folds[i%k] = append(folds[i%k], idx)
	}
	return folds, nil
}
