package dashboard

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ezoic/elasticity/charts"
	"github.com/ezoic/elasticity/evaluate"
	"github.com/ezoic/elasticity/metrics"
	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/sklearn/pipeline"
)

var printer = message.NewPrinter(language.English)

// money formats v as dollars with thousands separators.
func money(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

func score(v float64) string {
	return printer.Sprintf("%.4f", v)
}

var templateFuncs = template.FuncMap{
	"money": money,
	"score": score,
}

type option struct {
	Value    string
	Selected bool
}

func options(values []string, selected string) []option {
	out := make([]option, len(values))
	for i, v := range values {
		out[i] = option{Value: v, Selected: v == selected || (selected == "" && v == evaluate.All)}
	}
	return out
}

type indexPage struct {
	Title        string
	Description  string
	SidebarTitle string

	Overall   metrics.Report
	TotalRows int

	Stores []option
	Months []option

	Filtered     *metrics.Report
	FilteredRows int
	Applied      []string
	Empty        bool

	// Query repeats the filter for chart and download links.
	Query template.URL

	ShowImportances   bool
	Importances       []pipeline.Importance
	ImportanceMessage string
}

type errorPage struct {
	Title   string
	Message string
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	s.logger.Error("Page render failed", err)
	c.HTML(status, "error.html", errorPage{Title: s.opts.Title, Message: err.Error()})
}

// index renders the dashboard page. Any load or evaluation failure replaces the
// whole page with the error message.
func (s *Server) index(c *gin.Context) {
	f, err := bindFilter(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	a, err := s.assets(c.Request.Context())
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	overall, err := s.eval.Evaluate(a.Features, a.Labels, a.Predictions, evaluate.Filter{})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	stores, months := s.eval.FilterOptions(a.Features)
	page := indexPage{
		Title:        s.opts.Title,
		Description:  s.opts.Description,
		SidebarTitle: s.opts.SidebarTitle,
		Overall:      overall.Metrics,
		TotalRows:    overall.Rows,
		Stores:       options(stores, f.Store),
		Months:       options(months, f.Month),
		Query:        template.URL(filterQuery(f)),
	}

	filtered, err := s.eval.Evaluate(a.Features, a.Labels, a.Predictions, f)
	switch {
	case errors.Is(err, errors.ErrEmptySelection):
		page.Empty = true
	case err != nil:
		s.renderError(c, http.StatusInternalServerError, err)
		return
	default:
		page.Filtered = &filtered.Metrics
		page.FilteredRows = filtered.Rows
		page.Applied = filtered.Applied
	}

	if c.Query("importances") == "on" {
		page.ShowImportances = true
		imps, err := a.Model.FeatureImportances()
		switch {
		case errors.Is(err, errors.ErrNotAvailable):
			page.ImportanceMessage = "Feature importances are not available for this model."
		case err != nil:
			s.renderError(c, http.StatusInternalServerError, err)
			return
		default:
			page.Importances = charts.TopN(imps, s.opts.TopFeatures)
		}
	}

	c.HTML(http.StatusOK, "index.html", page)
}
