package host

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/segmentio/ksuid"
	"golang.org/x/sync/errgroup"

	adapterwebsocket "robohost/server/adapter/websocket"
	"robohost/server/config"
	"robohost/server/domain"
	"robohost/server/engine"
	"robohost/server/proxy"
	"robohost/server/recorder"
	"robohost/server/repository"
	"robohost/server/robots"
)

var ErrNoRobots = errors.New("host: no robots configured")

// Report は対戦1回分の結果
type Report struct {
	BattleID  ksuid.KSUID
	Recording string
	Results   []domain.BattleResults
}

// seat はロボット1体が使うエンジンの口
type seat interface {
	domain.Engine
	Leave(ctx context.Context) error
}

type contestant struct {
	robot   proxy.Robot
	seat    seat
	session domain.SessionID
	close   func() error
}

// Host は設定されたロボットをプロキシに載せて対戦させる。
// EngineURLがあればリモートのエンジンに接続し、なければ同じプロセスにアリーナを立てる
type Host struct {
	cfg    config.Config
	logger *slog.Logger
}

func New(cfg config.Config, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{cfg: cfg, logger: logger}
}

func (h *Host) Run(ctx context.Context) (*Report, error) {
	if len(h.cfg.Robots) == 0 {
		return nil, ErrNoRobots
	}
	started := time.Now()

	var (
		arena       *engine.Arena
		contestants []*contestant
		err         error
	)
	if h.cfg.EngineURL == "" {
		arena, contestants, err = h.loopback(ctx)
		if arena != nil {
			defer func() {
				if err := arena.Stop(context.WithoutCancel(ctx)); err != nil {
					h.logger.WarnContext(ctx, "stop arena", "err", err)
				}
			}()
		}
	} else {
		contestants, err = h.remote(ctx)
	}
	defer func() {
		for _, c := range contestants {
			if c.close == nil {
				continue
			}
			if err := c.close(); err != nil {
				h.logger.DebugContext(ctx, "close engine", "session", c.session.String(), "err", err)
			}
		}
	}()
	if err != nil {
		return nil, err
	}

	report := &Report{}
	var rec *recorder.Writer
	if h.cfg.RecordDir != "" {
		rec, err = recorder.Create(h.cfg.RecordDir)
		if err != nil {
			return nil, fmt.Errorf("create recording: %w", err)
		}
		report.Recording = rec.Path()
		h.logger.InfoContext(ctx, "recording exchanges", "path", rec.Path())
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range contestants {
		opts := h.cfg.ProxyOptions(h.logger)
		opts.Session = c.session
		if rec != nil {
			opts.Recorder = rec
		}
		p, err := proxy.New(c.seat, c.robot, opts)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			if err := p.Run(gctx); err != nil {
				return fmt.Errorf("%s: %w", c.robot.Statics().Name, err)
			}
			return c.seat.Leave(gctx)
		})
	}
	err = g.Wait()
	if rec != nil {
		if cerr := rec.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close recording: %w", cerr)
		}
	}
	if err != nil {
		return nil, err
	}

	if arena != nil {
		report.Results = arena.Results()
	} else {
		report.Results = collectResults(contestants)
	}

	if h.cfg.ResultsDB != "" {
		id, err := RecordResults(ctx, h.cfg.ResultsDB, started, h.cfg.Arena.Rounds, report.Recording, report.Results)
		if err != nil {
			return report, err
		}
		report.BattleID = id
	}
	return report, nil
}

func (h *Host) loopback(ctx context.Context) (*engine.Arena, []*contestant, error) {
	ec := h.cfg.EngineConfig(h.logger)
	ec.Seats = len(h.cfg.Robots)
	arena, err := engine.New(ec)
	if err != nil {
		return nil, nil, err
	}
	if err := arena.Start(ctx); err != nil {
		return nil, nil, err
	}
	var out []*contestant
	for i, spec := range h.cfg.Robots {
		r, err := robots.New(spec, h.cfg.Seed+uint64(i)+1)
		if err != nil {
			return arena, nil, err
		}
		s, err := arena.Join(ctx)
		if err != nil {
			return arena, nil, err
		}
		out = append(out, &contestant{robot: r, seat: s, session: s.ID()})
	}
	h.logger.InfoContext(ctx, "loopback arena started", "robots", len(out))
	return arena, out, nil
}

func (h *Host) remote(ctx context.Context) ([]*contestant, error) {
	var out []*contestant
	for i, spec := range h.cfg.Robots {
		r, err := robots.New(spec, h.cfg.Seed+uint64(i)+1)
		if err != nil {
			return out, err
		}
		e, err := adapterwebsocket.Dial(ctx, h.cfg.EngineURL, domain.SessionID{}, h.cfg.Server.ReadLimit)
		if err != nil {
			return out, err
		}
		out = append(out, &contestant{robot: r, seat: e, session: e.Session(), close: e.Close})
	}
	h.logger.InfoContext(ctx, "connected to engine", "url", h.cfg.EngineURL, "robots", len(out))
	return out, nil
}

// collectResults はリモート対戦で各ロボットが受け取った自分の成績を順位順に並べる
func collectResults(contestants []*contestant) []domain.BattleResults {
	var out []domain.BattleResults
	for _, c := range contestants {
		rep, ok := c.robot.(robots.Reporter)
		if !ok {
			continue
		}
		if res := rep.Results(); res != nil {
			out = append(out, *res)
		}
	}
	slices.SortFunc(out, func(a, b domain.BattleResults) int {
		return cmp.Compare(a.Rank, b.Rank)
	})
	return out
}

// RecordResults は対戦と成績を索引に書き、対戦IDを返す
func RecordResults(ctx context.Context, path string, started time.Time, rounds int32, recording string, results []domain.BattleResults) (ksuid.KSUID, error) {
	idx, err := repository.OpenResultsIndex(path)
	if err != nil {
		return ksuid.Nil, err
	}
	defer idx.Close()
	id, err := idx.RecordBattle(ctx, started, rounds, recording)
	if err != nil {
		return ksuid.Nil, err
	}
	if err := idx.RecordResults(ctx, id, results); err != nil {
		return id, err
	}
	return id, nil
}
