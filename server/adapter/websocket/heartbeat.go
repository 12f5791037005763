package adapterwebsocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"robohost/server/domain"
)

var ErrHeartbeatTimeout = errors.New("heartbeat: peer did not answer ping")

// Pinger はpingを送りpongを待つ接続です。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Heartbeat は一定間隔でpingを送り、応答があればセッションの活動時刻を更新する死活監視です。
type Heartbeat struct {
	interval time.Duration
	pinger   Pinger
	session  *domain.Session
	logger   *slog.Logger
}

func NewHeartbeat(interval time.Duration, pinger Pinger, session *domain.Session, logger *slog.Logger) *Heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{interval: interval, pinger: pinger, session: session, logger: logger}
}

// Run はctxがキャンセルされるまでpingを送り続ける。
// intervalが0以下ならctxの終了だけを待つ。応答がなければErrHeartbeatTimeoutを返す
func (h *Heartbeat) Run(ctx context.Context) error {
	if h.interval <= 0 || h.pinger == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, h.interval)
			err := h.pinger.Ping(pctx)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: %v", ErrHeartbeatTimeout, err)
			}
			h.session.TouchRead()
			h.session.TouchWrite()
			h.logger.DebugContext(ctx, "heartbeat: pong received", "session", h.session.ID().String())
		}
	}
}
