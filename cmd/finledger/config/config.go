// Package config assembles the service's components from CLI settings.
package config

import (
	"fmt"

	"finance-ledger-service/internal/importer"
	"finance-ledger-service/internal/ingest"
	"finance-ledger-service/internal/matcher"
	"finance-ledger-service/internal/recurrence"
	"finance-ledger-service/internal/review"
	"finance-ledger-service/internal/staging"
	"finance-ledger-service/internal/store"
	"finance-ledger-service/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// App bundles the wired-up services behind one handle so commands share a
// single database connection
type App struct {
	Store    *store.Store
	Importer *importer.Service
	Review   *review.Service
	Runner   *recurrence.Processor
	Manager  *recurrence.Manager
	Logger   logger.Logger
}

// BuildApp wires the full service graph from viper settings
func BuildApp() (*App, error) {
	log := logger.GetGlobalLogger()

	st, err := store.Open(viper.GetString("db"), log)
	if err != nil {
		return nil, err
	}

	fileStore, err := ingest.NewLocalFileStore(viper.GetString("storage-dir"))
	if err != nil {
		st.Close()
		return nil, err
	}

	ingestor, err := ingest.NewIngestor(CreateIngestConfig(), fileStore, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	engine, err := matcher.NewEngine(CreateMatchConfig(), st, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	projector := staging.NewProjector(st, log)

	importSvc, err := importer.NewService(st, ingestor, projector, engine, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &App{
		Store:    st,
		Importer: importSvc,
		Review:   review.NewService(st, log),
		Runner:   recurrence.NewProcessor(st, log),
		Manager:  recurrence.NewManager(st, log),
		Logger:   log,
	}, nil
}

// Close releases the app's resources
func (a *App) Close() error {
	return a.Store.Close()
}

// CreateIngestConfig creates the statement ingestion configuration with CLI
// overrides applied
func CreateIngestConfig() *ingest.IngestConfig {
	config := ingest.DefaultIngestConfig()

	if d := viper.GetString("delimiter"); d != "" {
		config.Delimiter = rune(d[0])
	}
	if max := viper.GetInt64("max-file-size"); max > 0 {
		config.MaxFileSizeBytes = max
	}

	return config
}

// CreateMatchConfig creates the duplicate-detection configuration with CLI
// overrides applied
func CreateMatchConfig() *matcher.MatchConfig {
	config := matcher.DefaultMatchConfig()

	if viper.IsSet("date-window") {
		config.DateWindowDays = viper.GetInt("date-window")
	}
	if viper.IsSet("amount-tolerance") {
		config.AmountTolerance = decimal.NewFromFloat(viper.GetFloat64("amount-tolerance"))
	}
	if viper.IsSet("max-candidates") {
		config.MaxCandidates = viper.GetInt("max-candidates")
	}

	return config
}

// ValidateConfig validates the assembled configurations before use
func ValidateConfig(ingestConfig *ingest.IngestConfig, matchConfig *matcher.MatchConfig) error {
	if err := ingestConfig.Validate(); err != nil {
		return fmt.Errorf("invalid ingest config: %w", err)
	}
	if err := matchConfig.Validate(); err != nil {
		return fmt.Errorf("invalid match config: %w", err)
	}
	return nil
}
