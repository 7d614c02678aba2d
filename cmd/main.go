package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/cwrk-planet/session-hub/config"
	"github.com/cwrk-planet/session-hub/internal/session"
	grpcx "github.com/cwrk-planet/session-hub/internal/transport/grpc"
	httpx "github.com/cwrk-planet/session-hub/internal/transport/http"
	"github.com/cwrk-planet/session-hub/internal/transport/ws"
	"github.com/cwrk-planet/session-hub/pkg/logger"
)

var version = "dev"

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:    "session-hub",
		Usage:   "real-time session hub for multi-room chat",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd.String("config"))
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "session-hub:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	// 1) config
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2) logger
	log := logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	log.Info("starting session-hub",
		slog.String("http_addr", cfg.HTTP.Addr),
		slog.String("grpc_addr", cfg.GRPC.Addr))

	// 3) hub and websocket transport
	transport := ws.NewHub(log)
	hub := session.NewHub(transport,
		session.WithLogger(log),
		session.WithEventBuffer(cfg.Hub.EventBuffer))
	wsSrv := ws.NewServer(transport, hub, ws.Options{
		MaxMessageSize: cfg.WS.MaxMessageSize,
		SendBuffer:     cfg.WS.SendBuffer,
		WriteWait:      cfg.WS.WriteWait,
		PongWait:       cfg.WS.PongWait,
		PingPeriod:     cfg.WS.PingPeriod,
		RatePerSecond:  cfg.WS.RateLimit.PerSecond,
		RateBurst:      cfg.WS.RateLimit.Burst,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	// 4) http
	router := httpx.NewRouter(httpx.Deps{
		Hub:            hub,
		WS:             wsSrv.HandleWS,
		WSPath:         cfg.WS.Path,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})
	httpSrv := httpx.NewServer(httpx.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}, router)

	// 5) run everything until a signal or the first failure
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error {
		err := httpSrv.Run(gctx)
		// hijacked sockets outlive http.Server.Shutdown
		transport.CloseAll()
		return err
	})
	if cfg.GRPC.Addr != "" {
		grpcSrv := grpcx.NewServer(cfg.GRPC.Addr)
		g.Go(func() error { return grpcSrv.Run(gctx) })
		g.Go(func() error {
			grpcSrv.Watch(gctx, hub.Started(), hub.Done())
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("session-hub stopped with error", slog.Any("err", err))
		return err
	}
	log.Info("session-hub stopped")
	return nil
}
