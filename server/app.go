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

	"flint/config"
	"flint/internal/activity"
	"flint/internal/db"
	"flint/internal/fleet"
	"flint/internal/health"
	"flint/internal/logs"
	"flint/internal/middleware"
	"flint/internal/models"
	"flint/internal/ota"
	"flint/internal/stats"
	"flint/internal/statuscfg"

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

	// 1) Логи
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	// 2) БД
	if drv := a.cfg.Database.Driver; drv != "" {
		d, err := db.Open(drv, a.cfg.Database.DSN)
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		a.db = d
	}

	// ---- DB migrations (only if DB is connected) ----
	if a.db != nil {
		// 1) одноразовая починка старых форм агрегатов
		if err := db.MigrateLegacyStatsShapes(a.db); err != nil {
			logs.Logger.Warnf("legacy stats migration: %v", err)
		}

		// 2) AutoMigrate всех доменных моделей
		if err := a.db.AutoMigrate(
			// fleet
			&models.Device{},
			&models.Project{},

			// status configuration
			&models.StatusConfig{},
			&models.StatusCode{},

			// ota core
			&models.Unit{},
			&models.Attempt{},
			&models.DailyStats{},
			&models.StatsRecord{},

			// activity log
			&models.ActivityEntry{},
		); err != nil {
			logs.Logger.Errorf("automigrate: %v", err)
		}
	}

	// 3) Зона календарного дня агрегатов
	loc := time.Local
	if tz := a.cfg.Stats.Timezone; tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			logs.Logger.Warnf("stats.timezone %q: %v (using server local)", tz, err)
		}
	}

	// 4) Роутер + middleware
	a.Router = mux.NewRouter()
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.LoggerMW)

	a.RegisterWebUI("/ui/")

	if a.db != nil {
		health.RegisterRoutesWithDB(a.Router, a.db)
	} else {
		health.RegisterRoutes(a.Router)
	}

	// 5) Доменные сервисы и их HTTP-ручки
	if a.db != nil {
		act := activity.NewSink(a.db)
		fleetRepo := fleet.NewRepo(a.db)
		cfgRepo := statuscfg.NewRepo(a.db)
		statsRepo := stats.NewRepo(a.db)

		recorder := ota.NewRecorder(a.db)
		aggregator := ota.NewAggregator(a.db, loc)
		ingest := ota.NewService(fleetRepo, cfgRepo, recorder, aggregator, act, a.cfg.Ingest.MaxRetries)

		fleet.NewHTTP(fleetRepo, cfgRepo, act).RegisterRoutes(a.Router)
		statuscfg.NewHTTP(cfgRepo).RegisterRoutes(a.Router)
		ota.NewHTTP(ingest).RegisterRoutes(a.Router)
		stats.NewHTTP(statsRepo, fleetRepo, loc).RegisterRoutes(a.Router)
	}

	a.Router.Walk(func(rt *mux.Route, r *mux.Router, ancestors []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		log.Printf("route: %-6v %s", methods, path)
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
		log.Printf("HTTP listening on %s", bind)
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
