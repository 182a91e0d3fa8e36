package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"contribook/audit"
	"contribook/config"
	"contribook/events"
	"contribook/jsonrpc"
	"contribook/logx"
	"contribook/monitoring"
	"contribook/reputation"
	"contribook/security"
	"contribook/store"
	"contribook/verification"
)

var (
	configPath  string
	scoringPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the contribution ledger service",
	Run: func(cmd *cobra.Command, args []string) {
		runService(configPath, scoringPath)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "config/contribook.yml", "Path to the service config file")
	serveCmd.Flags().StringVar(&scoringPath, "scoring", "", "Path to an optional scoring weights .ini file")
}

// stack bundles the wired service components
type stack struct {
	cfg         *config.ServiceConfig
	ledger      *store.GenericLedgerStore
	engine      *reputation.Engine
	coordinator *verification.Coordinator
	auditor     *audit.Auditor
	sealer      *security.Sealer
	bus         *events.EventBus
}

// buildStack loads configuration and wires stores, engine, coordinator and
// auditor together. Shared by serve and the offline subcommands.
func buildStack(configPath, scoringPath string, withBus bool) (*stack, error) {
	cfg, err := config.LoadServiceConfig(configPath)
	if err != nil {
		return nil, err
	}

	weights := reputation.DefaultWeights()
	if scoringPath != "" {
		scoringCfg, err := config.LoadScoringConfig(scoringPath)
		if err != nil {
			return nil, err
		}
		weights = config.ConvertScoringWeights(scoringCfg)
	}

	storeCfg := &store.StoreConfig{
		Backend:             store.BackendType(cfg.Storage.Backend),
		Directory:           cfg.Storage.Directory,
		RedisAddr:           cfg.Storage.RedisAddr,
		VerificationBackend: store.VerificationBackendType(cfg.Storage.VerificationBackend),
		PostgresDSN:         cfg.Storage.PostgresDSN,
	}
	ledger, contribs, verifications, scores, err := store.CreateStores(storeCfg)
	if err != nil {
		return nil, err
	}

	var sealer *security.Sealer
	if cfg.MasterKey != "" {
		sealer, err = security.NewSealer(cfg.MasterKey)
		if err != nil {
			ledger.MustClose()
			return nil, err
		}
	}

	var bus *events.EventBus
	if withBus {
		bus = events.NewEventBus()
	}

	engine := reputation.NewEngine(ledger, verifications, scores, weights)
	coordinator := verification.NewCoordinator(ledger, contribs, verifications, engine, bus, cfg.AppendRetries)
	auditor := audit.NewAuditor(ledger)

	return &stack{
		cfg:         cfg,
		ledger:      ledger,
		engine:      engine,
		coordinator: coordinator,
		auditor:     auditor,
		sealer:      sealer,
		bus:         bus,
	}, nil
}

func runService(configPath, scoringPath string) {
	monitoring.InitMetrics()

	st, err := buildStack(configPath, scoringPath, true)
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}
	defer st.ledger.MustClose()

	server := jsonrpc.NewServer(
		st.cfg.ListenAddr,
		st.coordinator,
		st.engine,
		st.ledger,
		st.auditor,
		st.sealer,
		st.cfg.FilesDir,
	)
	if corsCfg, ok := jsonrpc.CORSFromEnv(); ok {
		server.SetCORSConfig(corsCfg)
	}
	server.Start()

	logx.Info("SERVE", "Ledger service started on ", st.cfg.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logx.Info("SERVE", "Received signal ", sig.String(), ", shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logx.Error("SERVE", "Shutdown error: ", err)
	}
}
