package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tokenbrowser/ethgateway/pkg/config"
	"github.com/tokenbrowser/ethgateway/pkg/gateway"
	"github.com/tokenbrowser/ethgateway/pkg/gateway/cache"
	"github.com/tokenbrowser/ethgateway/pkg/gateway/chain"
	"github.com/tokenbrowser/ethgateway/pkg/gateway/ledger"
	"github.com/tokenbrowser/ethgateway/pkg/services/metrics"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewCommands returns the server command of the gateway CLI.
func NewCommands() []cli.Command {
	return []cli.Command{{
		Name:   "server",
		Usage:  "start the wallet gateway server",
		Action: startGateway,
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "config-file, c",
				Usage: "path to the gateway configuration file",
			},
			cli.BoolFlag{
				Name:  "debug, d",
				Usage: "enable debug logging (overrides configuration)",
			},
		},
	}}
}

// handleLoggingParams reads logging parameters. If a user selected
// debug level -- function enables it.
func handleLoggingParams(debug bool, cfg config.ApplicationConfiguration) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if len(cfg.LogLevel) > 0 {
		var err error
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil
	return cc.Build()
}

func startGateway(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config-file"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, err := handleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = log.Sync() }()

	gwCfg := cfg.GatewayConfiguration

	startCtx, cancel := context.WithTimeout(context.Background(), gwCfg.RequestTimeout)
	defer cancel()

	node, err := chain.Dial(startCtx, gwCfg.ChainRPC, log)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("could not connect to the ethereum node: %w", err), 1)
	}
	defer node.Close()

	ldgr, err := ledger.Open(startCtx, gwCfg.DatabaseURL, log)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("could not open the ledger database: %w", err), 1)
	}
	defer ldgr.Close()
	if err := ldgr.EnsureSchema(startCtx); err != nil {
		return cli.NewExitError(fmt.Errorf("could not initialize the ledger schema: %w", err), 1)
	}

	nonceCache, err := cache.New(startCtx, gwCfg.CacheURL)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("could not connect to the nonce cache: %w", err), 1)
	}
	defer nonceCache.Close()

	errChan := make(chan error)
	srv := gateway.New(gwCfg, node, nonceCache, ldgr, nil, log, errChan)

	prometheus := metrics.NewPrometheusService(cfg.ApplicationConfiguration.Prometheus, log)
	pprof := metrics.NewPprofService(cfg.ApplicationConfiguration.Pprof, log)

	go srv.Start()
	go prometheus.Start()
	go pprof.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var shutdownErr error
Main:
	for {
		select {
		case err := <-errChan:
			shutdownErr = fmt.Errorf("server error: %w", err)
			break Main
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.Stringer("name", sig))
			break Main
		}
	}

	srv.Shutdown()
	prometheus.ShutDown()
	pprof.ShutDown()

	if shutdownErr != nil {
		return cli.NewExitError(shutdownErr, 1)
	}
	return nil
}
