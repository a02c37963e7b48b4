// Command ledgerkit wires the ingestion engine together and drives one
// import run per invocation: resolve an account, pull every configured
// stream through the Provider Manager, map it through the processor, and
// persist canonical transactions. All input comes from the environment so
// it can run unattended from cron or a worker queue, matching the
// dashboard-mode shape the original tool used for non-interactive runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/arcsign/ledgerkit/internal/account"
	"github.com/arcsign/ledgerkit/internal/adapter"
	"github.com/arcsign/ledgerkit/internal/adapter/evmchain"
	"github.com/arcsign/ledgerkit/internal/adapter/exchangeapi"
	"github.com/arcsign/ledgerkit/internal/adapter/exchangecsv"
	"github.com/arcsign/ledgerkit/internal/canonicalstore"
	"github.com/arcsign/ledgerkit/internal/config"
	"github.com/arcsign/ledgerkit/internal/health"
	"github.com/arcsign/ledgerkit/internal/importer"
	"github.com/arcsign/ledgerkit/internal/logging"
	"github.com/arcsign/ledgerkit/internal/metrics"
	"github.com/arcsign/ledgerkit/internal/model"
	"github.com/arcsign/ledgerkit/internal/orchestrator"
	"github.com/arcsign/ledgerkit/internal/processor"
	"github.com/arcsign/ledgerkit/internal/provider"
	"github.com/arcsign/ledgerkit/internal/rawstore"
	"github.com/arcsign/ledgerkit/internal/session"
	"github.com/arcsign/ledgerkit/internal/sqlstore"
)

const Version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		handleRun()
	case "version":
		fmt.Printf("ledgerkit v%s\n", Version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("ledgerkit - transaction ingestion and normalization engine")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ledgerkit run       Run one import for the account described by the environment")
	fmt.Println("  ledgerkit version   Show version information")
	fmt.Println("  ledgerkit help      Show this help message")
	fmt.Println()
	fmt.Println("Environment (see internal/config for engine tunables):")
	fmt.Println("  LEDGER_SOURCE        source name: exchange-csv | exchange-api | blockchain")
	fmt.Println("  LEDGER_IDENTIFIER    account identifier (address, account id, file path key)")
	fmt.Println("  LEDGER_USER_ID       optional owning user id")
	fmt.Println("  LEDGER_ACCOUNT_TYPE  exchange-csv | exchange-api | blockchain")
	fmt.Println("  EXCHANGECSV_FILE     path to a CSV export (exchange-csv source)")
	fmt.Println("  EXCHANGEAPI_BASE_URL, EXCHANGEAPI_KEY (exchange-api source)")
	fmt.Println("  EVMCHAIN_ENDPOINT, EVMCHAIN_CHAIN_ID (blockchain source)")
}

// handleRun builds every component, registers the three reference
// adapters and mappers, resolves the account named by the environment,
// and drives a single orchestrator.Run to completion.
func handleRun() {
	cfg := config.Load()
	logger := logging.NewComponentLogger("main")

	source := os.Getenv("LEDGER_SOURCE")
	if source == "" {
		logger.Error().Msg("LEDGER_SOURCE is required")
		os.Exit(1)
	}
	identifier := os.Getenv("LEDGER_IDENTIFIER")
	if identifier == "" {
		logger.Error().Msg("LEDGER_IDENTIFIER is required")
		os.Exit(1)
	}

	var userID *string
	if v := os.Getenv("LEDGER_USER_ID"); v != "" {
		userID = &v
	}
	accountType := model.AccountType(os.Getenv("LEDGER_ACCOUNT_TYPE"))
	if accountType == "" {
		accountType = inferAccountType(source)
	}

	accountStore, sessionStore, rawStore, canonicalStore, closeDB := openStores(cfg, logger)
	if closeDB != nil {
		defer closeDB()
	}

	sessions := session.New(sessionStore)
	accounts := account.New(accountStore, sessions)

	gate := health.New(cfg.BreakerFailureThreshold, cfg.BreakerCoolDown, logger.With("component", "health"))
	registry := provider.NewRegistry()
	registerAdapters(registry)

	pm := provider.New(registry, gate, cfg.ProviderCacheTTL, logger.With("component", "provider"))
	imp := importer.New(pm, logger.With("component", "importer"))

	mappers := processor.NewRegistry()
	registerMappers(mappers)
	proc := processor.New(mappers, logger.With("component", "processor"))

	orch := orchestrator.New(accounts, sessions, imp, rawStore, proc, canonicalStore, logger.With("component", "orchestrator"))

	collector := metrics.NewCollector(logger.With("component", "metrics"))
	accounts.SetAddressCheckedHook(collector.RecordGapScanAddressChecked)
	gate.SetFailureHook(collector.RecordProviderFailure)
	gate.SetStateChangeHook(collector.SetCircuitState)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector.StartServer(ctx, cfg.MetricsPort)

	req := orchestrator.Request{
		Identity: model.IdentityTuple{
			UserID:      userID,
			AccountType: accountType,
			SourceName:  source,
			Identifier:  identifier,
		},
		Source:  source,
		Streams: buildStreams(source),
	}

	started := time.Now()
	sess, err := orch.Run(ctx, req)
	collector.RecordSessionFinalized(string(sess.Status))
	collector.RecordRowsImported(sess.TransactionsImported)
	collector.RecordRowsSkipped(sess.TransactionsSkipped)
	collector.ObserveStreamDuration(time.Since(started))

	if err != nil {
		logger.Error().Err(err).Msg("import run failed")
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(sess, "", "  ")
	fmt.Println(string(out))

	if sess.Status == model.SessionFailed {
		os.Exit(1)
	}
}

func inferAccountType(source string) model.AccountType {
	switch source {
	case "exchange-csv":
		return model.AccountTypeExchangeCSV
	case "exchange-api":
		return model.AccountTypeExchangeAPI
	default:
		return model.AccountTypeBlockchain
	}
}

// openStores wires either the Postgres-backed stores (when DATABASE_DSN is
// set) or their in-memory counterparts for a quick local run, matching the
// "no USB device found" fallback style of the original tool's storage
// detection.
func openStores(cfg *config.Engine, logger *logging.ComponentLogger) (account.Store, session.Store, rawstore.Store, canonicalstore.Store, func() error) {
	if cfg.DatabaseDSN == "" {
		logger.Info().Msg("DATABASE_DSN unset, running against in-memory stores")
		return account.NewMemoryStore(), session.NewMemoryStore(), rawstore.NewMemoryStore(), canonicalstore.NewMemoryStore(), nil
	}

	db, err := sqlstore.Open(cfg.DatabaseDSN)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open database")
		os.Exit(1)
	}
	return account.NewPostgresStore(db), session.NewPostgresStore(db), rawstore.NewPostgresStore(db), canonicalstore.NewPostgresStore(db), db.Close
}

func registerAdapters(registry *provider.Registry) {
	if path := os.Getenv("EXCHANGECSV_FILE"); path != "" {
		a := exchangecsv.New(exchangecsv.Config{
			DisplayName: "primary",
			FilePath:    path,
			VenueName:   os.Getenv("EXCHANGECSV_VENUE"),
		})
		_ = registry.Register(a, 0)
	}

	if baseURL := os.Getenv("EXCHANGEAPI_BASE_URL"); baseURL != "" {
		a := exchangeapi.New(exchangeapi.Config{
			DisplayName:       "primary",
			BaseURL:           baseURL,
			APIKey:            os.Getenv("EXCHANGEAPI_KEY"),
			RequestsPerSecond: getEnvAsFloat("EXCHANGEAPI_RPS", 5),
		})
		_ = registry.Register(a, 0)
	}

	if endpoint := os.Getenv("EVMCHAIN_ENDPOINT"); endpoint != "" {
		a := evmchain.New(evmchain.Config{
			DisplayName:       os.Getenv("EVMCHAIN_CHAIN_ID"),
			Endpoint:          endpoint,
			ChainID:           os.Getenv("EVMCHAIN_CHAIN_ID"),
			ReplayWindow:      6,
			RequestsPerSecond: getEnvAsFloat("EVMCHAIN_RPS", 10),
			Burst:             5,
		})
		_ = registry.Register(a, 0)
	}
}

func registerMappers(mappers *processor.Registry) {
	mappers.Register("exchange-csv", "exchangecsv:primary", processor.NewExchangeCSVMapper())
	mappers.Register("exchange-api", "exchangeapi:primary", processor.NewExchangeAPIMapper())
	mappers.Register("blockchain", "evmchain:"+os.Getenv("EVMCHAIN_CHAIN_ID"), processor.NewEVMChainMapper())
}

// buildStreams maps a source name to the PM operations the orchestrator
// drives for it: a normal and a token transaction stream for
// "blockchain", and one address-transactions stream for any other source.
func buildStreams(source string) []orchestrator.Stream {
	switch source {
	case "blockchain":
		return []orchestrator.Stream{
			{Op: adapter.Operation{Type: adapter.OpGetAddressTransactions, TransactionType: adapter.TxHintNormal}},
			{Op: adapter.Operation{Type: adapter.OpGetAddressTransactions, TransactionType: adapter.TxHintToken}},
		}
	default:
		return []orchestrator.Stream{
			{Op: adapter.Operation{Type: adapter.OpGetAddressTransactions}},
		}
	}
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return defaultValue
}
