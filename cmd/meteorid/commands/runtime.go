package commands

import (
	"database/sql"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aphelion-labs/meteorid/cache"
	"github.com/aphelion-labs/meteorid/config"
	"github.com/aphelion-labs/meteorid/dataset"
	"github.com/aphelion-labs/meteorid/db"
	"github.com/aphelion-labs/meteorid/errors"
	"github.com/aphelion-labs/meteorid/logger"
	"github.com/aphelion-labs/meteorid/refresh"
	"github.com/aphelion-labs/meteorid/source"
)

// appRuntime bundles the wired refresh pipeline for a command invocation.
type appRuntime struct {
	cfg        *config.Config
	holder     *dataset.Holder
	controller *refresh.Controller
	journal    *refresh.Journal
	database   *sql.DB
	log        *zap.SugaredLogger
}

// loadConfig resolves configuration honoring the --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// buildRuntime wires source, store, normalizer, journal database and
// controller from configuration. Callers must Close when done.
func buildRuntime(cmd *cobra.Command) (*appRuntime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	log := logger.Logger

	src, err := source.NewClient(source.Config{
		BaseURL:           cfg.Source.URL,
		PageSize:          cfg.Source.PageSize,
		Timeout:           time.Duration(cfg.Source.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
	}, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create source client")
	}

	binning := dataset.Binning(cfg.Dataset.Binning)
	store := cache.NewStore(cfg.Cache.Path, binning, log)
	normalizer := dataset.NewNormalizer(dataset.NormalizeOptions{
		RequireYear: cfg.Dataset.RequireYear,
		Binning:     binning,
	}, log)

	database, err := db.Open(cfg.Database.Path, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open journal database")
	}
	if err := db.Migrate(database, log); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "failed to migrate journal database")
	}
	journal := refresh.NewJournal(database)

	holder := &dataset.Holder{}
	controller := refresh.NewController(src, store, normalizer, holder, journal, log)

	return &appRuntime{
		cfg:        cfg,
		holder:     holder,
		controller: controller,
		journal:    journal,
		database:   database,
		log:        log,
	}, nil
}

// Close releases runtime resources.
func (rt *appRuntime) Close() {
	if rt.database != nil {
		rt.database.Close()
	}
}
