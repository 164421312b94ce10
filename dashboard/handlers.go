package dashboard

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ezoic/elasticity/charts"
	"github.com/ezoic/elasticity/evaluate"
	"github.com/ezoic/elasticity/metrics"
	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/pkg/log"
	"github.com/ezoic/elasticity/sklearn/pipeline"
	"github.com/ezoic/elasticity/store"
)

// statusFor maps an evaluation or query error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrEmptySelection),
		errors.Is(err, errors.ErrNotAvailable),
		errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrInvalidValue):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", err, log.RequestIDKey, c.GetString(requestIDKey))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func bindFilter(c *gin.Context) (evaluate.Filter, error) {
	var f evaluate.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		return f, errors.NewValueError("filter", err.Error())
	}
	return f, nil
}

// selection loads the assets and evaluates the request's filter. It writes the error
// response itself and reports false on failure.
func (s *Server) selection(c *gin.Context) (*evaluate.Result, bool) {
	f, err := bindFilter(c)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return nil, false
	}
	a, err := s.assets(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return nil, false
	}
	res, err := s.eval.Evaluate(a.Features, a.Labels, a.Predictions, f)
	if err != nil {
		s.fail(c, statusFor(err), err)
		return nil, false
	}
	return res, true
}

type metricsResponse struct {
	Overall   metrics.Report  `json:"overall"`
	Filtered  *metrics.Report `json:"filtered"`
	Rows      int             `json:"rows"`
	TotalRows int             `json:"total_rows"`
	Filters   []string        `json:"filters"`
	Empty     bool            `json:"empty"`
}

// metrics answers the overall metrics and those of the requested selection. An empty
// selection is a normal answer with empty set and no filtered metrics.
func (s *Server) metrics(c *gin.Context) {
	f, err := bindFilter(c)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	a, err := s.assets(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	overall, err := s.eval.Evaluate(a.Features, a.Labels, a.Predictions, evaluate.Filter{})
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}

	resp := metricsResponse{Overall: overall.Metrics, TotalRows: overall.Rows, Filters: []string{}}
	filtered, err := s.eval.Evaluate(a.Features, a.Labels, a.Predictions, f)
	switch {
	case errors.Is(err, errors.ErrEmptySelection):
		resp.Empty = true
		var empty *errors.EmptySelectionError
		if errors.As(err, &empty) {
			resp.Filters = empty.Filters
		}
	case err != nil:
		s.fail(c, statusFor(err), err)
		return
	default:
		resp.Filtered = &filtered.Metrics
		resp.Rows = filtered.Rows
		resp.Filters = append(resp.Filters, filtered.Applied...)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) filters(c *gin.Context) {
	a, err := s.assets(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	stores, months := s.eval.FilterOptions(a.Features)
	c.JSON(http.StatusOK, gin.H{"stores": stores, "months": months})
}

func (s *Server) topN(c *gin.Context) (int, error) {
	raw := c.Query("top")
	if raw == "" {
		return s.opts.TopFeatures, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.NewValueError("top", "must be a positive integer")
	}
	return n, nil
}

func (s *Server) rankedImportances(c *gin.Context) ([]pipeline.Importance, bool) {
	n, err := s.topN(c)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return nil, false
	}
	a, err := s.assets(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return nil, false
	}
	imps, err := a.Model.FeatureImportances()
	if err != nil {
		s.fail(c, statusFor(err), err)
		return nil, false
	}
	return charts.TopN(imps, n), true
}

// importances answers the global feature importances of the model. Filters do not
// apply.
func (s *Server) importances(c *gin.Context) {
	imps, ok := s.rankedImportances(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"scope": "global", "importances": imps})
}

func (s *Server) scatterChart(c *gin.Context) {
	res, ok := s.selection(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := charts.ActualVsPredicted(&buf, res.Actual, res.Predicted, s.opts.PlotSize); err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) importanceChart(c *gin.Context) {
	imps, ok := s.rankedImportances(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := charts.FeatureImportances(&buf, imps, 0, s.opts.PlotSize); err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// download streams the joined feature, Actual and Predicted table of the selection.
func (s *Server) download(c *gin.Context) {
	res, ok := s.selection(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := res.Table.WriteCSV(&buf); err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="predictions.csv"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

func (s *Server) query(c *gin.Context, run func(*store.Store) (store.Rows, error)) {
	if s.db == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return
	}
	rows, err := run(s.db)
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": rows.Columns, "rows": rows.Records()})
}

func (s *Server) salesSummary(c *gin.Context) {
	s.query(c, func(db *store.Store) (store.Rows, error) {
		return db.SalesSummaryByStore(c.Request.Context())
	})
}

func (s *Server) priceRevenue(c *gin.Context) {
	storeID := c.Query("store")
	if storeID == evaluate.All {
		storeID = ""
	}
	s.query(c, func(db *store.Store) (store.Rows, error) {
		return db.PriceRevenueCurve(c.Request.Context(), storeID)
	})
}

func (s *Server) reload(c *gin.Context) {
	s.Reload()
	c.JSON(http.StatusOK, gin.H{"reloaded": true})
}

func filterQuery(f evaluate.Filter) string {
	v := url.Values{}
	if f.Store != "" {
		v.Set("store", f.Store)
	}
	if f.Month != "" {
		v.Set("month", f.Month)
	}
	return v.Encode()
}
