package errors_test

import (
	"errors"
	"fmt"

	elErrors "github.com/ezoic/elasticity/pkg/errors"
)

// Example_classification shows how callers classify a wrapped failure.
func Example_classification() {
	err := fmt.Errorf("render dashboard: %w",
		elErrors.NewNotFoundError("LoadTable", "data/test/X_test.csv"))

	if errors.Is(err, elErrors.ErrNotFound) {
		fmt.Println("missing input")
	}

	var nf *elErrors.NotFoundError
	if errors.As(err, &nf) {
		fmt.Println(nf.Resource)
	}

	// Output: missing input
	// data/test/X_test.csv
}

// Example_customErrorTypes extracts detail from a typed error.
func Example_customErrorTypes() {
	dimErr := elErrors.NewDimensionError("Evaluate", 5, 3, 0)
	wrappedErr := fmt.Errorf("evaluation failed: %w", dimErr)

	var dimensionErr *elErrors.DimensionError
	if errors.As(wrappedErr, &dimensionErr) {
		fmt.Printf("Dimension error: expected %d, got %d\n",
			dimensionErr.Expected, dimensionErr.Got)
	}

	// Output: Dimension error: expected 5, got 3
}

// Example_emptySelection prints the signal returned for a filter with no rows.
func Example_emptySelection() {
	err := elErrors.NewEmptySelectionError("Store=StoreZ", "Month=7")
	fmt.Println(err)
	fmt.Println(errors.Is(err, elErrors.ErrEmptySelection))

	// Output: elasticity: no data available for this selection (Store=StoreZ, Month=7)
	// true
}

// Example_errorChaining prints a wrapped model error.
func Example_errorChaining() {
	baseErr := elErrors.NewModelError("LinearRegression.Fit", "rank deficient design",
		elErrors.ErrSingularMatrix)
	opErr := fmt.Errorf("train elasticity model: %w", baseErr)

	fmt.Printf("Error: %v\n", opErr)

	// Output: Error: train elasticity model: elasticity: LinearRegression.Fit: rank deficient design: singular matrix
}
