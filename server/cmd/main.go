package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"robohost/server"
	"robohost/server/config"
	"robohost/server/engine"
	"robohost/server/handler"
	"robohost/server/host"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml, toml or json config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	arena, err := engine.New(cfg.EngineConfig(logger))
	if err != nil {
		slog.Error("failed to create arena", "err", err)
		os.Exit(1)
	}
	if err := arena.Start(ctx); err != nil {
		slog.Error("failed to start arena", "err", err)
		os.Exit(1)
	}
	started := time.Now()

	accept := handler.NewAcceptHandler(arena, cfg.EndpointOptions(logger), cfg.Server.ReadLimit)
	s := server.NewServer(cfg.ListenAddr(), server.Route(accept, arena.Over()))

	go func() {
		if err := s.Serve(); err != nil {
			slog.Error("http server error", "err", err)
			stop()
		}
	}()
	slog.InfoContext(ctx, "engine listening", "addr", cfg.ListenAddr(), "seats", arena.Config().Seats, "rounds", arena.Config().Rounds)

	select {
	case <-ctx.Done():
		slog.Info("shutdown initiated")
	case <-arena.Over():
		results := arena.Results()
		for _, r := range results {
			slog.Info("standing", "rank", r.Rank, "robot", r.TeamLeaderName, "score", r.Score, "firsts", r.Firsts)
		}
		if cfg.ResultsDB != "" {
			id, err := host.RecordResults(context.WithoutCancel(ctx), cfg.ResultsDB, started, arena.Config().Rounds, "", results)
			if err != nil {
				slog.Error("failed to record results", "err", err)
			} else {
				slog.Info("results recorded", "battle_id", id.String(), "db", cfg.ResultsDB)
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		if err := s.Close(); err != nil {
			slog.Error("forced close failed", "error", err)
		}
	}
	if err := arena.Stop(shutdownCtx); err != nil {
		slog.Error("failed to stop arena", "err", err)
	}
	slog.Info("server shutdown complete")
}
