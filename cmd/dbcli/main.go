// Command dbcli inspects the elasticity DuckDB database.
//
//	dbcli --list-tables
//	dbcli --sample elasticity_data --rows 10
//	dbcli --info elasticity_data
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/ezoic/elasticity/config"
	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/store"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dbcli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		listTables = fs.Bool("list-tables", false, "List all tables")
		sample     = fs.String("sample", "", "Show sample rows from a table")
		info       = fs.String("info", "", "Show table column information")
		rows       = fs.Int("rows", 5, "Number of sample rows to display")
		dbPath     = fs.String("db", "", "Database file (default from configuration)")
		cfgFile    = fs.String("config", "", "YAML configuration file")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(config.LoadOptions{File: *cfgFile, EnvFile: ".env"})
	if err != nil {
		fmt.Fprintln(stderr, color.RedString("Configuration error: %v", err))
		return 1
	}
	opts := cfg.StoreOptions()
	if *dbPath != "" {
		opts.Path = *dbPath
	}
	opts.MustExist = true

	db, err := store.Open(ctx, opts)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			fmt.Fprintln(stderr, color.RedString("Database not found at %s. Please create it first.", opts.Path))
		} else {
			fmt.Fprintln(stderr, color.RedString("Error opening database: %v", err))
		}
		return 1
	}
	defer db.Close()

	if !*listTables && *sample == "" && *info == "" {
		fs.SetOutput(stdout)
		fs.Usage()
		return 0
	}

	status := 0
	if *listTables {
		if err := printTables(ctx, db, stdout); err != nil {
			fmt.Fprintln(stderr, color.RedString("Error listing tables: %v", err))
			status = 1
		}
	}
	if *sample != "" {
		r, err := db.Sample(ctx, *sample, *rows)
		if err != nil {
			fmt.Fprintln(stderr, color.RedString("Error accessing table: %v", err))
			status = 1
		} else {
			fmt.Fprintln(stdout, color.CyanString("\nSample data from '%s':", *sample))
			r.Render(stdout)
		}
	}
	if *info != "" {
		r, err := db.Info(ctx, *info)
		if err != nil {
			fmt.Fprintln(stderr, color.RedString("Error getting table info: %v", err))
			status = 1
		} else {
			fmt.Fprintln(stdout, color.CyanString("\nColumn information for '%s':", *info))
			r.Render(stdout)
		}
	}
	return status
}

func printTables(ctx context.Context, db *store.Store, w io.Writer) error {
	tables, err := db.ListTables(ctx)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		fmt.Fprintln(w, color.YellowString("No tables found in the database."))
		return nil
	}
	fmt.Fprintln(w, color.GreenString("Tables in the database:"))
	for i, t := range tables {
		fmt.Fprintf(w, "%d. %s\n", i+1, t)
	}
	return nil
}
