package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netweave/config"
	"netweave/internal/configsvc"
	"netweave/internal/db"
	"netweave/internal/designsvc"
	"netweave/internal/health"
	"netweave/internal/logs"
	"netweave/internal/metrics"
	"netweave/internal/middleware"
	"netweave/internal/models"
	"netweave/internal/notify"
	"netweave/internal/store"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type App struct {
	cfg        *config.Config
	Router     *mux.Router
	httpServer *http.Server

	db     *gorm.DB
	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	d, err := db.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	a.db = d

	if err := a.db.AutoMigrate(
		// configuration templates and instances
		&models.ConfigurationTemplate{},
		&models.TemplateVariable{},
		&models.GeneratedConfiguration{},
		&models.Deployment{},

		// designs and version history
		&models.NetworkDesign{},
		&models.DesignVersion{},
	); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	if err := metrics.Init(); err != nil {
		logs.Logger.Warnf("metrics init: %v", err)
	}

	// Cache collaborator is optional; without redis the services hit the
	// database directly.
	var kv store.KV
	if a.cfg.Redis.Addr != "" {
		kv = store.NewRedisKV(redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		}))
	}

	notifier := notify.New(a.cfg.Notify.WebhookURL)

	a.Router = mux.NewRouter()
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.LoggerMW)
	a.Router.Use(metrics.HTTPMiddleware)
	a.Router.Use(middleware.Auth(a.cfg.Auth.JWTSecret, "/healthz", "/readyz", "/metrics"))

	health.RegisterRoutesWithDB(a.Router, a.db)
	a.Router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	cfgRepo := configsvc.NewRepo(a.db)
	cfgHTTP := configsvc.NewHTTP(configsvc.NewService(cfgRepo, notifier))
	cfgHTTP.RegisterRoutes(a.Router)

	dsgRepo := designsvc.NewRepo(a.db)
	dsgHTTP := designsvc.NewHTTP(designsvc.NewService(dsgRepo, kv, a.cfg.Redis.TTL, notifier))
	dsgHTTP.RegisterRoutes(a.Router)

	a.Router.Walk(func(rt *mux.Route, r *mux.Router, ancestors []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		if path != "" && len(methods) > 0 {
			logs.Logger.Debugf("route: %-6v %s", methods, path)
		}
		return nil
	})
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return ErrNotInitialized
	}
	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigs; a.cancel() }()

	a.httpServer = &http.Server{
		Addr:         bind,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.httpServer.Shutdown(ctx)
	return nil
}

var ErrNotInitialized = &initError{"server not initialized (call Initialize(cfg) first)"}

type initError struct{ s string }

func (e *initError) Error() string { return e.s }
