package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/expvar"
	"github.com/gin-gonic/gin"
	"github.com/johbar/ocr-language-service/internal/feedback"
	"github.com/johbar/ocr-language-service/internal/geoip"
	"github.com/johbar/ocr-language-service/internal/metrics"
	"github.com/johbar/ocr-language-service/internal/pipeline"
	"github.com/johbar/ocr-language-service/internal/txt2img"
	sloggin "github.com/samber/slog-gin"
	"github.com/segmentio/ksuid"
)

const requestIdHeader = "X-Request-Id"

// Server exposes the OCR pipeline and the auxiliary features over HTTP and NATS.
type Server struct {
	pipeline  *pipeline.Pipeline
	tokens    pipeline.Tokens
	geo       *geoip.Client
	relay     *feedback.Relay
	images    *txt2img.Client
	metrics   *metrics.Metrics
	log       *slog.Logger
	maxUpload int64
}

// Options holds the collaborators of a Server. Nil collaborators disable their routes.
type Options struct {
	Tokens        pipeline.Tokens
	Geo           *geoip.Client
	Relay         *feedback.Relay
	Images        *txt2img.Client
	Metrics       *metrics.Metrics
	MaxUploadSize int64
}

func New(p *pipeline.Pipeline, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Tokens == (pipeline.Tokens{}) {
		opts.Tokens = pipeline.DefaultTokens
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 20 << 20
	}
	return &Server{
		pipeline:  p,
		tokens:    opts.Tokens,
		geo:       opts.Geo,
		relay:     opts.Relay,
		images:    opts.Images,
		metrics:   opts.Metrics,
		log:       logger,
		maxUpload: opts.MaxUploadSize,
	}
}

// Router returns the gin engine serving all routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(sloggin.New(s.log), gin.Recovery(), requestId())
	if s.metrics != nil {
		router.Use(s.metrics.Middleware())
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	router.POST("/ocr", s.Ocr)
	router.GET("/languages", s.Languages)
	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/debug/vars", expvar.Handler())

	if s.images != nil {
		router.POST("/txt2img", s.Txt2Img)
	}
	if s.relay != nil {
		submit := router.Group("/submit")
		if s.geo != nil {
			submit.Use(s.geo.Middleware())
		}
		submit.POST("", s.Submit)
	}
	return router
}

// requestId tags every request with a sortable unique id.
func requestId() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIdHeader)
		if id == "" {
			id = ksuid.New().String()
		}
		c.Header(requestIdHeader, id)
		sloggin.AddCustomAttributes(c, slog.String("requestId", id))
		c.Next()
	}
}
