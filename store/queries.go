package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/pkg/log"
)

// Rows is a query result rendered as text.
type Rows struct {
	Columns []string   `json:"columns"`
	Values  [][]string `json:"rows"`
}

// Len returns the number of rows.
func (r Rows) Len() int { return len(r.Values) }

// Records returns one column-to-value map per row.
func (r Rows) Records() []map[string]string {
	out := make([]map[string]string, len(r.Values))
	for i, row := range r.Values {
		m := make(map[string]string, len(r.Columns))
		for j, c := range r.Columns {
			m[c] = row[j]
		}
		out[i] = m
	}
	return out
}

// Sample returns the first n rows of table.
func (s *Store) Sample(ctx context.Context, table string, n int) (Rows, error) {
	if n <= 0 {
		return Rows{}, errors.NewValueError("store.Sample", "row count must be positive")
	}
	ident, err := s.exists(ctx, "store.Sample", table)
	if err != nil {
		return Rows{}, err
	}
	return s.query(ctx, "sample", fmt.Sprintf("SELECT * FROM %s LIMIT %d", ident, n))
}

// Info describes the columns of table: cid, name, type, notnull, dflt_value and pk.
func (s *Store) Info(ctx context.Context, table string) (Rows, error) {
	if _, err := s.exists(ctx, "store.Info", table); err != nil {
		return Rows{}, err
	}
	// table passed exists() validation, so it is a plain identifier.
	return s.query(ctx, "info", "PRAGMA table_info("+quoteLiteral(table)+")")
}

// SalesSummaryByStore returns the average price and total sales per store, largest
// total first.
func (s *Store) SalesSummaryByStore(ctx context.Context) (Rows, error) {
	c, err := s.sales(ctx, "store.SalesSummaryByStore")
	if err != nil {
		return Rows{}, err
	}
	q := fmt.Sprintf(`SELECT %s AS store_id, ROUND(AVG(%s), 2) AS avg_price, SUM(%s) AS total_sales
FROM %s GROUP BY %s ORDER BY total_sales DESC`, c.store, c.price, c.sales, c.table, c.store)
	return s.query(ctx, "sales_summary", q)
}

// PriceRevenueCurve returns total revenue per price point, ordered by price. An empty
// storeID covers every store.
func (s *Store) PriceRevenueCurve(ctx context.Context, storeID string) (Rows, error) {
	c, err := s.sales(ctx, "store.PriceRevenueCurve")
	if err != nil {
		return Rows{}, err
	}
	q := fmt.Sprintf("SELECT %s AS price, SUM(%s) AS revenue FROM %s", c.price, c.sales, c.table)
	var args []any
	if storeID != "" {
		q += fmt.Sprintf(" WHERE CAST(%s AS VARCHAR) = ?", c.store)
		args = append(args, storeID)
	}
	q += fmt.Sprintf(" GROUP BY %s ORDER BY %s", c.price, c.price)
	return s.query(ctx, "price_revenue", q, args...)
}

// FeatureOverview previews the first ten rows of the sales table.
func (s *Store) FeatureOverview(ctx context.Context) (Rows, error) {
	return s.Sample(ctx, s.table, 10)
}

type salesIdents struct {
	table, store, price, sales string
}

func (s *Store) sales(ctx context.Context, op string) (salesIdents, error) {
	table, err := s.exists(ctx, op, s.table)
	if err != nil {
		return salesIdents{}, err
	}
	out := salesIdents{table: table}
	for _, p := range []struct {
		dst  *string
		name string
	}{
		{&out.store, s.columns.Store},
		{&out.price, s.columns.Price},
		{&out.sales, s.columns.Sales},
	} {
		if *p.dst, err = quoteIdent(p.name); err != nil {
			return salesIdents{}, err
		}
	}
	return out, nil
}

func (s *Store) query(ctx context.Context, name, q string, args ...any) (Rows, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return Rows{}, errors.Wrapf(err, "query %s", name)
	}
	defer rows.Close()

	out, err := scan(rows)
	if err != nil {
		return Rows{}, errors.Wrapf(err, "query %s", name)
	}
	s.logger.Debug("Query executed",
		log.OperationKey, log.OperationQuery,
		"query", name,
		log.RowsKey, out.Len(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return out, nil
}

func scan(rows *sql.Rows) (Rows, error) {
	columns, err := rows.Columns()
	if err != nil {
		return Rows{}, err
	}
	out := Rows{Columns: columns, Values: [][]string{}}
	for rows.Next() {
		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Rows{}, err
		}
		row := make([]string, len(cells))
		for i, v := range cells {
			row[i] = format(v)
		}
		out.Values = append(out.Values, row)
	}
	return out, rows.Err()
}

func format(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case duckdb.Decimal:
		return strconv.FormatFloat(x.Float64(), 'f', -1, 64)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
