package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bramblenode/bramble/internal/config"
	"github.com/bramblenode/bramble/internal/importer"
	"github.com/bramblenode/bramble/internal/rpc"
	"github.com/bramblenode/bramble/internal/sealer"
	"github.com/bramblenode/bramble/internal/store"
	"github.com/bramblenode/bramble/internal/syncwait"
	"github.com/bramblenode/bramble/internal/txpool"
	"github.com/bramblenode/bramble/pkg/db/pebble"
	"github.com/bramblenode/bramble/pkg/log"
	"github.com/bramblenode/bramble/pkg/network/blockfeed"
)

const shutdownGrace = 5 * time.Second

func main() {
	configPath := pflag.String("config", "", "path to YAML config file")
	dataDir := pflag.String("data-dir", "", "database directory (empty for in-memory)")
	rpcAddr := pflag.String("rpc-addr", "", "JSON-RPC listen address")
	feedAddr := pflag.String("feed-addr", "", "block feed listen address (empty to disable)")
	syncTimeout := pflag.Duration("sync-wait-timeout", 0, "eth_sendRawTransactionSync wait duration")
	devSealer := pflag.Bool("dev-sealer", true, "produce blocks locally from the pool")
	logLevel := pflag.String("log-level", "", "log level (trace, debug, info, warn, error)")
	pflag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			stderrFatal("load config: " + err.Error())
		}
		cfg = loaded
	}
	// Flags override the file
	if pflag.CommandLine.Changed("data-dir") {
		cfg.DataDir = *dataDir
	}
	if pflag.CommandLine.Changed("rpc-addr") {
		cfg.RPCListenAddr = *rpcAddr
	}
	if pflag.CommandLine.Changed("feed-addr") {
		cfg.FeedListenAddr = *feedAddr
	}
	if pflag.CommandLine.Changed("sync-wait-timeout") {
		cfg.SyncWaitTimeout = config.Duration(*syncTimeout)
	}
	if pflag.CommandLine.Changed("dev-sealer") {
		cfg.DevSealer = *devSealer
	}
	if pflag.CommandLine.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		stderrFatal("invalid config: " + err.Error())
	}

	level, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		stderrFatal("invalid log level: " + err.Error())
	}
	logType := log.ConsoleLogger
	if cfg.LogFormat == "json" {
		logType = log.JSONLogger
	}
	log.Init(log.Options{LogLevel: level, Type: logType})

	if err := run(cfg); err != nil {
		log.Root.Fatal().Err(err).Msg("node failed")
	}
}

func run(cfg config.Config) error {
	var (
		kvStore *pebble.KVStore
		err     error
	)
	if cfg.DataDir == "" {
		log.Root.Warn().Msg("no data directory configured, using in-memory store")
		kvStore, err = pebble.NewKVStore()
	} else {
		kvStore, err = pebble.NewPersistentKVStore(cfg.DataDir)
	}
	if err != nil {
		return err
	}
	defer kvStore.Close()

	chain := store.NewChain(kvStore)
	receipts := store.NewReceipts(kvStore)
	im := importer.New(chain, receipts)
	pool := txpool.New(chain)

	registry := syncwait.NewRegistry(receipts)
	coordinator := syncwait.NewCoordinator(pool, registry, cfg.SyncWaitTimeout.Std())
	bridge := syncwait.NewBridge(registry, im)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go bridge.Run(ctx)

	if cfg.DevSealer {
		go sealer.New(pool, chain, im, cfg.SealInterval.Std()).Run(ctx)
	}

	var feed *blockfeed.Listener
	if cfg.FeedListenAddr != "" {
		feed = blockfeed.NewListener(cfg.FeedListenAddr, im)
		if err := feed.Start(); err != nil {
			return err
		}
	}

	server := rpc.NewServer(cfg.RPCListenAddr)
	rpc.NewEthAPI(pool, receipts, chain, coordinator).RegisterMethods(server)
	if err := server.Start(); err != nil {
		return err
	}

	log.Root.Info().
		Dur("sync_wait_timeout", cfg.SyncWaitTimeout.Std()).
		Bool("dev_sealer", cfg.DevSealer).
		Msg("bramble node started")

	<-ctx.Done()
	log.Root.Info().Msg("shutting down")

	// Stop accepting requests first; in-flight sync waits resolve via
	// timeout once the bridge stops.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Root.Error().Err(err).Msg("stop rpc server")
	}
	if feed != nil {
		if err := feed.Stop(); err != nil {
			log.Root.Error().Err(err).Msg("stop block feed")
		}
	}
	return nil
}

func stderrFatal(msg string) {
	os.Stderr.WriteString(msg + "\n")
	os.Exit(1)
}
