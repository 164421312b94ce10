// Package dashboard serves the model-evaluation dashboard over HTTP.
//
// Each request loads the evaluation assets (or reads them from the cache), evaluates
// the requested store/month selection synchronously and renders the result. A load
// failure stops the render: the page shows the failure and nothing else.
//
// Feature importances always describe the whole trained model. Store and month
// filters change the metrics and charts only.
package dashboard

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gonum.org/v1/plot/vg"

	"github.com/ezoic/elasticity/charts"
	"github.com/ezoic/elasticity/config"
	"github.com/ezoic/elasticity/evaluate"
	"github.com/ezoic/elasticity/loader"
	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/pkg/log"
	"github.com/ezoic/elasticity/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options configure a Server.
type Options struct {
	Title        string
	Description  string
	SidebarTitle string

	Paths       loader.Paths
	Evaluate    evaluate.Options
	TopFeatures int
	PlotSize    charts.Size
	// Cache keeps loaded assets until a reload request.
	Cache bool
}

// OptionsFromConfig maps the application configuration to server options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Title:        cfg.App.Title,
		Description:  cfg.App.Description,
		SidebarTitle: cfg.App.SidebarTitle,
		Paths:        cfg.LoaderPaths(),
		Evaluate:     cfg.EvaluateOptions(),
		TopFeatures:  cfg.Server.TopFeatures,
		PlotSize:     charts.Size{Width: pixels(cfg.App.PlotWidth), Height: pixels(cfg.App.PlotHeight)},
		Cache:        cfg.Server.Cache,
	}
}

// pixels converts a pixel count at the PNG renderer's 96 dpi to a plot length.
func pixels(n int) vg.Length {
	return vg.Length(n) * vg.Inch / 96
}

// Server is the dashboard HTTP handler.
type Server struct {
	opts   Options
	src    loader.Source
	db     *store.Store
	eval   *evaluate.Evaluator
	cache  *loader.Cache[*loader.Assets]
	engine *gin.Engine
	logger log.Logger
}

// New creates a Server reading assets from src. db may be nil, in which case the
// database endpoints answer 503.
func New(opts Options, src loader.Source, db *store.Store) *Server {
	if opts.TopFeatures <= 0 {
		opts.TopFeatures = 10
	}
	s := &Server{
		opts:   opts,
		src:    src,
		db:     db,
		eval:   evaluate.New(opts.Evaluate),
		cache:  loader.NewCache[*loader.Assets](),
		logger: log.GetLoggerWithName("dashboard"),
	}
	s.engine = s.router()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), accessLog(s.logger), recovery(s.logger))

	tmpl := template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html"))
	r.SetHTMLTemplate(tmpl)

	r.GET("/", s.index)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api/v1")
	{
		api.GET("/metrics", s.metrics)
		api.GET("/filters", s.filters)
		api.GET("/importances", s.importances)
		api.GET("/sales-summary", s.salesSummary)
		api.GET("/price-revenue", s.priceRevenue)
		api.POST("/reload", s.reload)
	}

	r.GET("/charts/actual-vs-predicted.png", s.scatterChart)
	r.GET("/charts/feature-importances.png", s.importanceChart)
	r.GET("/download/predictions.csv", s.download)
	return r
}

// assets returns the loaded inputs, loading them once when caching is enabled.
func (s *Server) assets(ctx context.Context) (*loader.Assets, error) {
	load := func() (*loader.Assets, error) {
		a, err := loader.LoadAssets(ctx, s.src, s.opts.Paths)
		if err != nil {
			s.logger.Error("Asset load failed", err, log.OperationKey, log.OperationLoad)
			return nil, errors.Wrap(err, "Failed to load model or data")
		}
		return a, nil
	}
	if !s.opts.Cache {
		return load()
	}
	p := s.opts.Paths
	return s.cache.Get(strings.Join([]string{p.Features, p.Labels, p.LabelColumn, p.Model}, "|"), load)
}

// Reload drops cached assets so the next request loads them again.
func (s *Server) Reload() {
	s.cache.Reset()
	s.logger.Info("Asset cache cleared")
}
