package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"robohost/server/config"
	"robohost/server/host"
	"robohost/server/recorder"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml, toml or json config file")
	inspect := flag.String("inspect", "", "summarize a recording instead of running a battle")
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

	if *inspect != "" {
		if err := summarize(*inspect); err != nil {
			slog.Error("failed to read recording", "path", *inspect, "err", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("starting robots", "count", len(cfg.Robots), "engine", engineName(cfg))
	report, err := host.New(cfg, logger).Run(ctx)
	if err != nil {
		slog.Error("battle failed", "err", err)
		os.Exit(1)
	}
	for _, r := range report.Results {
		slog.Info("standing", "rank", r.Rank, "robot", r.TeamLeaderName, "score", r.Score,
			"survival", r.Survival, "bullet_damage", r.BulletDamage, "firsts", r.Firsts)
	}
	if report.Recording != "" {
		slog.Info("recording written", "path", report.Recording)
	}
	if cfg.ResultsDB != "" {
		slog.Info("results recorded", "battle_id", report.BattleID.String(), "db", cfg.ResultsDB)
	}
}

func engineName(cfg config.Config) string {
	if cfg.EngineURL == "" {
		return "loopback"
	}
	return cfg.EngineURL
}

func summarize(path string) error {
	r, err := recorder.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	summaries, err := recorder.Summarize(r)
	for _, s := range summaries {
		attrs := []any{"session", s.Session.String(), "robot", s.Name, "rounds", s.Rounds,
			"ticks", s.Ticks, "waits", s.Waits, "events", s.Events}
		if s.LastStatus != nil {
			attrs = append(attrs, "energy", s.LastStatus.Energy)
		}
		slog.Info("session", attrs...)
	}
	return err
}
