package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/GlucoRisk/internal/classifier"
	"github.com/Skufu/GlucoRisk/internal/config"
	"github.com/Skufu/GlucoRisk/internal/logger"
	"github.com/Skufu/GlucoRisk/internal/metrics"
	"github.com/Skufu/GlucoRisk/internal/prediction"
	"github.com/Skufu/GlucoRisk/internal/store"
	"github.com/Skufu/GlucoRisk/internal/web"
)

type app struct {
	router *gin.Engine
	svc    *prediction.Service
	store  *store.Store
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "text").Error("config error", "error", err)
		os.Exit(1)
	}

	gin.SetMode(cfg.GinMode)
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	a := newApp(context.Background(), cfg, log)
	if a.store != nil {
		defer a.store.Close()
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server listening", "addr", server.Addr, "model_ready", a.svc.ModelReady(), "lookup_enabled", a.svc.LookupEnabled())
	waitForShutdown(server, log)
}

// newApp performs the one-time startup work: the classifier artifact is
// loaded and the pool opened here, then handed to the handlers. Neither
// failure stops the process; the affected mode reports itself unavailable.
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) *app {
	m := metrics.New()

	var model classifier.Classifier
	loaded, err := classifier.Load(cfg.ModelPath)
	if err != nil {
		log.Error("classifier artifact could not be loaded, prediction disabled", "path", cfg.ModelPath, "error", err)
	} else {
		model = loaded
		log.Info("classifier loaded", "path", cfg.ModelPath)
	}

	a := &app{}
	var (
		source prediction.PatientSource
		health web.HealthChecker
	)
	if cfg.Database.Enabled {
		st, err := store.Connect(ctx, cfg.Database, log)
		if err != nil {
			log.Error("database setup failed, lookup disabled", "error", err)
			health = failedDB{err: err}
		} else {
			a.store = st
			source = st
			health = st
		}
	}

	a.svc = prediction.NewService(model, source, m, log)
	a.router = web.NewRouter(a.svc, health, m, log)
	return a
}

// failedDB keeps /readyz failing when the database is configured but could
// not be set up.
type failedDB struct {
	err error
}

func (f failedDB) Ping(context.Context) error {
	return fmt.Errorf("database setup failed: %w", f.err)
}

func waitForShutdown(server *http.Server, log *logger.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
