package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rocket-mimo/internal/allocation"
	"rocket-mimo/internal/api"
	"rocket-mimo/internal/chain"
	"rocket-mimo/internal/config"
	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/events"
	"rocket-mimo/internal/factory"
	"rocket-mimo/internal/lens"
	"rocket-mimo/internal/points"
	"rocket-mimo/internal/scheduler"
	"rocket-mimo/internal/storage"
	chstore "rocket-mimo/internal/storage/clickhouse"
	"rocket-mimo/internal/storage/memory"
	"rocket-mimo/internal/storage/migrations"
	pgstore "rocket-mimo/internal/storage/postgres"
	"rocket-mimo/internal/token"
	"rocket-mimo/internal/verification"
)

// devNFTAddress hosts the in-memory collection when dev mode runs without
// a configured nft_address.
var devNFTAddress = common.HexToAddress("0x0000000000000000000000000000000000000f70")

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, phase watcher and event pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}

	f := cmd.Flags()
	f.String("http-addr", ":8080", "HTTP listen address")
	f.Bool("use-memory", false, "use in-memory storage instead of PostgreSQL/ClickHouse")
	f.String("rabbitmq-url", "", "RabbitMQ URL; events are published when set")
	f.Int64("chain-id", domain.NetworkIotexTestnet.ChainID, "chain id of the target network")
	f.String("rpc-endpoint", "", "JSON-RPC endpoint for on-chain NFT and points reads")
	f.Bool("dev-mode", false, "enable /dev routes and in-memory NFT/points ledgers")
	mustBind(v, f, "http_addr", "http-addr")
	mustBind(v, f, "use_memory", "use-memory")
	mustBind(v, f, "rabbitmq_url", "rabbitmq-url")
	mustBind(v, f, "chain_id", "chain-id")
	mustBind(v, f, "rpc_endpoint", "rpc-endpoint")
	mustBind(v, f, "dev_mode", "dev-mode")
	return cmd
}

// allStores holds the storage implementations.
type allStores struct {
	launchEvents storage.LaunchEventStore
	balances     storage.BalanceStore
	eventLog     storage.EventLogStore
}

// createStores opens PostgreSQL and ClickHouse, applying migrations first.
// The event log is what launch events are restored from, so it is never
// kept in memory next to persistent balances.
func createStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*allStores, func(), error) {
	if cfg.UseMemory {
		return &allStores{
			launchEvents: memory.NewLaunchEventStore(),
			balances:     memory.NewBalanceStore(),
			eventLog:     memory.NewEventLogStore(),
		}, func() {}, nil
	}

	if err := migrations.RunPostgresMigrations(cfg.PostgresDSN); err != nil {
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	logger.Info("persistent stores ready")

	stores := &allStores{
		launchEvents: pgstore.NewLaunchEventStore(pool),
		balances:     pgstore.NewBalanceStore(pool),
		eventLog:     chstore.NewEventLogStore(chConn),
	}
	cleanup := func() {
		_ = chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// ledgers resolves the NFT collection and points ledgers. Dev mode (or a
// missing RPC endpoint) uses in-memory ledgers the /dev routes can mutate.
type ledgers struct {
	nftAddr common.Address
	nft     *token.Collection // dev only
	points  *points.Registry  // dev only
	nfts    factory.NFTResolver
	resolve func(ctx context.Context, addr common.Address) (allocation.PointsSource, error)
}

func resolveLedgers(ctx context.Context, cfg *config.Config, network domain.NetworkConfig, logger *zap.Logger) (*ledgers, error) {
	nftAddr := config.Addr(cfg.NFTAddress)

	if cfg.DevMode || network.RPCEndpoint == "" {
		if nftAddr == (common.Address{}) {
			nftAddr = devNFTAddress
		}
		l := &ledgers{
			nftAddr: nftAddr,
			nft:     token.NewCollection(nftAddr),
			points:  points.NewRegistry(),
		}
		l.nfts = func(context.Context, common.Address) (token.BalanceReader, error) { return l.nft, nil }
		// in-memory ledgers do not survive a restart; one referenced by a
		// restored launch event comes back empty, owned by the factory owner
		owner := config.Addr(cfg.Factory.Owner)
		l.resolve = func(_ context.Context, addr common.Address) (allocation.PointsSource, error) {
			return l.points.Deploy(addr, owner), nil
		}
		logger.Info("using in-memory nft and points ledgers", zap.String("nft", nftAddr.Hex()))
		return l, nil
	}

	client := chain.NewClient(network.RPCEndpoint, chain.WithTimeout(10*time.Second))
	id, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("query chain id from %s: %w", network.RPCEndpoint, err)
	}
	if id != network.ChainID {
		return nil, fmt.Errorf("rpc endpoint reports chain %d, configured %d", id, network.ChainID)
	}
	logger.Info("connected to chain", zap.Int64("chain_id", id), zap.String("endpoint", network.RPCEndpoint))

	// the wrapped asset must be a deployed ERC-20 on this network
	weth := chain.NewERC20(client, network.WETH)
	supply, err := weth.TotalSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("read wrapped asset %s: %w", network.WETH.Hex(), err)
	}
	collector := config.Addr(cfg.Factory.PenaltyCollector)
	held, err := weth.BalanceOf(ctx, collector)
	if err != nil {
		return nil, fmt.Errorf("read wrapped asset %s: %w", network.WETH.Hex(), err)
	}
	logger.Info("wrapped asset ready",
		zap.String("weth", network.WETH.Hex()),
		zap.String("total_supply", domain.FormatEther(supply)),
		zap.String("collector", collector.Hex()),
		zap.String("collector_balance", domain.FormatEther(held)))

	return &ledgers{
		nftAddr: nftAddr,
		nfts: func(_ context.Context, addr common.Address) (token.BalanceReader, error) {
			return chain.NewNFTCollection(client, addr), nil
		},
		resolve: func(_ context.Context, addr common.Address) (allocation.PointsSource, error) {
			return chain.NewPointsLedger(client, addr), nil
		},
	}, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	network, err := cfg.Network()
	if err != nil {
		return err
	}
	logger.Info("starting rocketd",
		zap.String("network", network.Name),
		zap.Int64("chain_id", network.ChainID),
		zap.Bool("use_memory", cfg.UseMemory),
		zap.Bool("dev_mode", cfg.DevMode))

	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	l, err := resolveLedgers(ctx, cfg, network, logger)
	if err != nil {
		return err
	}

	// event pipeline
	hub := events.NewHub(nil, logger)
	defer hub.Close()

	sinks := []events.Sink{
		events.NewRecorder(stores.eventLog, stores.balances),
		events.MetricsSink{},
		hub,
	}
	if cfg.RabbitMQURL != "" {
		conn, err := events.DialAMQP(ctx, cfg.RabbitMQURL, 5, 2*time.Second, logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		pub, err := events.NewAMQPPublisher(conn, cfg.RabbitMQQueue, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}
	dispatcher := events.NewDispatcher(events.DispatcherConfig{
		Buffer: cfg.Dispatcher.Buffer,
		Logger: logger,
	}, sinks...)

	// factory
	tokens := token.NewMemoryRegistry()
	tokens.GetOrCreate(network.WETH, "WETH")

	f := factory.New(factory.Options{
		Address:     config.Addr(cfg.Factory.Address),
		Owner:       config.Addr(cfg.Factory.Owner),
		Tokens:      tokens,
		NFTs:        l.nfts,
		Points:      l.resolve,
		Composition: allocation.Composition(cfg.Composition),
		Store:       stores.launchEvents,
		Log:         stores.eventLog,
		Sink:        dispatcher,
		Logger:      logger,
	})
	if err := f.Initialize(ctx, f.Owner(), factory.Infrastructure{
		Prototype:        config.Addr(cfg.Factory.Prototype),
		Schedule:         cfg.DomainSchedule(),
		WETH:             network.WETH,
		PenaltyCollector: config.Addr(cfg.Factory.PenaltyCollector),
		AMMFactory:       network.AMMFactory,
		NFT:              l.nftAddr,
	}); err != nil {
		return fmt.Errorf("initialize factory: %w", err)
	}
	restored, err := f.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore launch events: %w", err)
	}
	logger.Info("factory ready", zap.Int("restored_launch_events", restored))

	watcher, err := scheduler.NewPhaseWatcher(f, scheduler.WatcherConfig{
		Spec:         cfg.PhaseCheckSpec,
		AutoFinalize: cfg.AutoFinalize,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	server := api.New(api.Options{
		Factory:  f,
		Lens:     lens.New(f).WithHistory(stores.eventLog),
		Stream:   hub,
		Verifier: verification.NewReplayVerifier(stores.eventLog, stores.balances).WithRegistry(stores.launchEvents),
		DevMode:  cfg.DevMode,
		Tokens:   tokens,
		NFT:      l.nft,
		Points:   l.points,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return server.Run(gctx, cfg.HTTPAddr) })

	err = g.Wait()
	logger.Info("shutdown complete", zap.Error(err))
	return err
}
