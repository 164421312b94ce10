// Package store wraps the embedded DuckDB database that holds the processed sales
// data. It bulk-loads CSV files, answers the canned aggregation queries shown on the
// dashboard and backs the database CLI.
//
// Table names are validated identifiers and are always quoted. User-supplied values
// are bound as query parameters.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/pkg/log"
)

const driverName = "duckdb"

// Options configure Open.
type Options struct {
	// Path is the database file. It is ignored when Persist is false.
	Path string
	// Persist opens the file database; otherwise the database lives in memory.
	Persist bool
	// MustExist fails with a NotFound error instead of creating a missing file.
	MustExist bool
	// Table is the table the canned queries read.
	Table string
	// Columns names the columns the canned queries aggregate.
	Columns SalesColumns
}

// SalesColumns are the column names of the sales table.
type SalesColumns struct {
	Store string
	Price string
	Sales string
}

// DefaultSalesColumns match the processed elasticity data set.
func DefaultSalesColumns() SalesColumns {
	return SalesColumns{Store: "Store", Price: "Price", Sales: "Revenue"}
}

// DefaultTable is the table created from the processed CSV.
const DefaultTable = "elasticity_data"

// Store is an open DuckDB database. It is safe for concurrent use.
type Store struct {
	db      *sql.DB
	path    string
	table   string
	columns SalesColumns
	logger  log.Logger
}

// Open opens or creates the database described by opts.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dsn := ""
	if opts.Persist {
		if opts.Path == "" {
			return nil, errors.NewValidationError("Path", "required for a persistent database", opts.Path)
		}
		if _, err := os.Stat(opts.Path); err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, "stat %s", opts.Path)
			}
			if opts.MustExist {
				return nil, errors.NewNotFoundError("store.Open", opts.Path)
			}
			if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
				return nil, errors.Wrapf(err, "create directory for %s", opts.Path)
			}
		}
		dsn = opts.Path
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open duckdb")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "connect duckdb")
	}

	s := &Store{
		db:      db,
		path:    dsn,
		table:   opts.Table,
		columns: opts.Columns,
		logger:  log.GetLoggerWithName("store"),
	}
	if s.table == "" {
		s.table = DefaultTable
	}
	if s.columns == (SalesColumns{}) {
		s.columns = DefaultSalesColumns()
	}
	if dsn == "" {
		s.logger.Debug("Opened in-memory database")
	} else {
		s.logger.Debug("Opened database", log.PathKey, dsn)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file, or "" for an in-memory database.
func (s *Store) Path() string { return s.path }

// Table returns the table the canned queries read.
func (s *Store) Table() string { return s.table }

var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteIdent validates name and returns it as a quoted SQL identifier.
func quoteIdent(name string) (string, error) {
	if !identifierRE.MatchString(name) {
		return "", errors.NewValueError("store", "invalid identifier "+strings.TrimSpace(name))
	}
	return `"` + name + `"`, nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// LoadCSV creates table from the CSV at csvPath unless it already exists and returns
// its row count.
func (s *Store) LoadCSV(ctx context.Context, table, csvPath string) (int64, error) {
	ident, err := quoteIdent(table)
	if err != nil {
		return 0, err
	}
	if _, err := os.Stat(csvPath); err != nil {
		if os.IsNotExist(err) {
			return 0, errors.NewNotFoundError("store.LoadCSV", csvPath)
		}
		return 0, errors.Wrapf(err, "stat %s", csvPath)
	}

	start := time.Now()
	query := "CREATE TABLE IF NOT EXISTS " + ident + " AS SELECT * FROM read_csv_auto(" + quoteLiteral(csvPath) + ")"
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return 0, errors.NewDeserializationError("store.LoadCSV", csvPath, err)
	}

	n, err := s.Count(ctx, table)
	if err != nil {
		return 0, err
	}
	s.logger.Info("CSV loaded",
		log.OperationKey, log.OperationLoad,
		log.TableKey, table,
		log.PathKey, csvPath,
		log.RowsKey, n,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return n, nil
}

// ListTables returns the names of the tables in the main schema, sorted.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' ORDER BY table_name")
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scan table name")
		}
		names = append(names, name)
	}
	return names, errors.Wrap(rows.Err(), "list tables")
}

// exists returns a NotFound error when table is absent.
func (s *Store) exists(ctx context.Context, op, table string) (string, error) {
	ident, err := quoteIdent(table)
	if err != nil {
		return "", err
	}
	var n int
	err = s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM information_schema.tables WHERE table_schema = 'main' AND table_name = ?", table).Scan(&n)
	if err != nil {
		return "", errors.Wrapf(err, "look up table %s", table)
	}
	if n == 0 {
		return "", errors.NewNotFoundError(op, "table "+table)
	}
	return ident, nil
}

// Count returns the number of rows in table.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	ident, err := s.exists(ctx, "store.Count", table)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM "+ident).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count %s", table)
	}
	return n, nil
}
