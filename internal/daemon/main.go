// Package daemon assembles the database, the remote clients, and the web
// service into a runnable unit.
package daemon

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/config"
	"github.com/recodex/sis-binding/internal/db/dsn"
	"github.com/recodex/sis-binding/internal/db/models"
	"github.com/recodex/sis-binding/internal/recodex"
	"github.com/recodex/sis-binding/internal/sis"
	"github.com/recodex/sis-binding/internal/web"
	"github.com/recodex/sis-binding/internal/web/handler"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
}

// Start starts the daemon's web service and blocks until shutdown.
func (d *Daemon) Start() error {
	addr := fmt.Sprintf(":%d", d.cfg.Webserver.Port)

	go func() {
		if err := d.webService.Start(addr); err != nil {
			log.Fatal().Err(err).Msg("web service failed")
		}
	}()

	d.webService.WaitShutdown()

	return nil
}

// Dialector selects the gorm driver for the configured engine.
func Dialector(cfg *config.Config) gorm.Dialector {
	switch cfg.DB.GormEngine {
	case "postgres":
		return gormpostgres.Open(dsn.Create(cfg))
	case "sqlite":
		return sqlite.Open(dsn.Create(cfg))
	default:
		return gormmysql.Open(dsn.Create(cfg))
	}
}

// Migrate creates or updates the schema of all cached entities.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.SisUser{},
		&models.Term{},
		&models.Course{},
		&models.ScheduleEvent{},
		&models.Affiliation{},
		&models.UserChangelog{},
	)
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	db, err := gorm.Open(Dialector(cfg), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	if cfg.DevMode {
		db = db.Debug()

		log.Warn().Msg("dev mode enabled: verbose sql logging")
	}

	if err = Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	clients := &handler.Clients{
		Recodex: recodex.New(cfg.Recodex),
		Sis:     sis.New(cfg.Sis),
	}

	return &Daemon{
		cfg:        cfg,
		webService: web.New(cfg, db, clients),
	}
}
