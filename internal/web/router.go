package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Skufu/GlucoRisk/internal/logger"
	"github.com/Skufu/GlucoRisk/internal/metrics"
	"github.com/Skufu/GlucoRisk/internal/prediction"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const requestIDHeader = "X-Request-ID"

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// NewRouter wires pages, the JSON API and the operational endpoints. db may
// be nil when the database is disabled.
func NewRouter(svc *prediction.Service, db HealthChecker, m *metrics.Metrics, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		requestID(),
		requestLogger(log),
		gin.Recovery(),
		limitBodySize(1<<20), // 1MB max body
		cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", requestIDHeader},
			MaxAge:       12 * time.Hour,
		}),
	)

	router.SetHTMLTemplate(mustParseTemplates())

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	router.StaticFS("/static", http.FS(static))

	h := &handler{svc: svc, log: log}

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/manual")
	})
	router.GET("/manual", h.manualForm)
	router.POST("/manual", h.manualSubmit)
	router.GET("/lookup", h.lookupForm)
	router.POST("/lookup", h.lookupSubmit)

	api := router.Group("/api")
	{
		api.POST("/predict", h.apiPredict)
		api.GET("/patients/:id/prediction", h.apiLookup)
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "ok", "model": "loaded", "db": "disabled"}

		if !svc.ModelReady() {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["model"] = "missing"
		}

		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := db.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body["db"] = fmt.Sprintf("unhealthy: %v", err)
			} else {
				body["db"] = "ok"
			}
		}

		c.JSON(status, body)
	})

	router.GET("/metrics", gin.WrapH(m.Handler()))

	return router
}

func mustParseTemplates() *template.Template {
	funcs := template.FuncMap{
		"num": func(v float64) string {
			return strconv.FormatFloat(v, 'f', -1, 64)
		},
	}
	return template.Must(template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl"))
}

// requestID propagates X-Request-ID, minting one when the client sent none.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithContext(c.Request.Context()).Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
