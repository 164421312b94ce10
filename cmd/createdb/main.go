// Command createdb builds the elasticity DuckDB database from the processed CSV, and
// optionally registers the raw train and store files next to it.
//
//	createdb --csv data/processed/processed_data.csv
//	createdb --raw --train data/raw/train.csv --store data/raw/store.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/ezoic/elasticity/config"
	"github.com/ezoic/elasticity/pkg/log"
	"github.com/ezoic/elasticity/store"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("createdb", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgFile  = fs.String("config", "", "YAML configuration file")
		dbPath   = fs.String("db", "", "Database file (default from configuration)")
		csvPath  = fs.String("csv", "", "Processed CSV to load (default from configuration)")
		raw      = fs.Bool("raw", false, "Also load the raw train and store CSVs as train_df and store_df")
		rawTrain = fs.String("train", "", "Raw train CSV (default from configuration)")
		rawStore = fs.String("store", "", "Raw store CSV (default from configuration)")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(config.LoadOptions{File: *cfgFile, EnvFile: ".env"})
	if err != nil {
		fmt.Fprintln(stderr, color.RedString("Configuration error: %v", err))
		return 1
	}
	cfg.SetupLogging()
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *csvPath != "" {
		cfg.Data.Processed = *csvPath
	}
	if *rawTrain != "" {
		cfg.Data.RawTrain = *rawTrain
	}
	if *rawStore != "" {
		cfg.Data.RawStore = *rawStore
	}

	if err := create(ctx, cfg, *raw, stdout); err != nil {
		log.LogError(err, "Database creation failed")
		fmt.Fprintln(stderr, color.RedString("Error: %v", err))
		return 1
	}
	fmt.Fprintln(stdout, color.GreenString("Database creation complete!"))
	return 0
}

func create(ctx context.Context, cfg *config.Config, raw bool, w io.Writer) error {
	fmt.Fprintf(w, "Creating DuckDB database at %s...\n", cfg.Database.Path)
	db, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintf(w, "Creating '%s' table from %s...\n", cfg.Database.Table, cfg.Data.Processed)
	n, err := db.LoadCSV(ctx, cfg.Database.Table, cfg.Data.Processed)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, color.GreenString("Successfully imported %d rows into DuckDB", n))

	if raw {
		for _, src := range []struct{ table, path string }{
			{"train_df", cfg.Data.RawTrain},
			{"store_df", cfg.Data.RawStore},
		} {
			n, err := db.LoadCSV(ctx, src.table, src.path)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, color.GreenString("Registered %s with %d rows", src.table, n))
		}
	}

	sample, err := db.Sample(ctx, cfg.Database.Table, 5)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, color.CyanString("\nSample data from DuckDB:"))
	sample.Render(w)
	return nil
}
