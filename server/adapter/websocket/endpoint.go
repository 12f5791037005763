package adapterwebsocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"robohost/server/domain"
)

var (
	// ErrInitializationFailed はエンドポイントの生成に必要な依存が欠けている場合のエラーです。
	ErrInitializationFailed = errors.New("failed to initialize engine endpoint")
	// ErrIdle は相手からの読み書きが途絶えた場合のエラーです。
	ErrIdle = errors.New("engine endpoint: session idle")

	errEndpointClosed = errors.New("engine endpoint closed")
)

// Seat はエンドポイントが要求を渡すエンジン側の席です。
type Seat interface {
	domain.Engine
	Leave(ctx context.Context) error
}

type EndpointOptions struct {
	PingInterval time.Duration
	// IdleTimeout を超えて読み書きがなければ切断する。0以下で無効
	IdleTimeout time.Duration
	// LeaveTimeout は切断後に席を外す処理の上限
	LeaveTimeout time.Duration
	Logger       *slog.Logger
}

func DefaultEndpointOptions() EndpointOptions {
	return EndpointOptions{
		PingInterval: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		LeaveTimeout: 5 * time.Second,
	}
}

// EngineEndpoint はwebsocket接続1本を受け持ち、届いた要求フレームを順にSeatへ渡して応答を書き戻します。
type EngineEndpoint struct {
	connection *domain.Connection
	pinger     Pinger
	seat       Seat
	opts       EndpointOptions
	logger     *slog.Logger

	// 最初のフレームで決まるロボット側のセッション
	peer domain.SessionID
	out  []byte

	cancel context.CancelFunc
	closed atomic.Bool
}

// NewEngineEndpoint はpingerがnilならheartbeatなしで動くエンドポイントを生成します。
func NewEngineEndpoint(connection *domain.Connection, pinger Pinger, seat Seat, opts EndpointOptions) (*EngineEndpoint, error) {
	if connection == nil || seat == nil {
		return nil, ErrInitializationFailed
	}
	if opts.LeaveTimeout <= 0 {
		opts.LeaveTimeout = DefaultEndpointOptions().LeaveTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &EngineEndpoint{
		connection: connection,
		pinger:     pinger,
		seat:       seat,
		opts:       opts,
		logger:     opts.Logger.With("session", connection.Session().ID().String()),
		cancel:     func() {},
	}, nil
}

// Run は接続が閉じるかctxが終わるまで要求を処理し、最後に席を外します。
func (e *EngineEndpoint) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	defer cancel()

	frames := make(chan []byte)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return e.readLoop(ctx, frames)
	})
	eg.Go(func() error {
		return e.execLoop(ctx, frames)
	})
	eg.Go(func() error {
		return e.ownerLoop(ctx)
	})
	err := eg.Wait()

	code, reason := websocket.StatusNormalClosure, "bye"
	if err != nil && !errors.Is(err, errEndpointClosed) && !errors.Is(err, context.Canceled) {
		code, reason = websocket.StatusInternalError, err.Error()
	} else {
		err = nil
	}
	e.close(int32(code), reason)

	lctx, lcancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.LeaveTimeout)
	defer lcancel()
	if lerr := e.seat.Leave(lctx); lerr != nil {
		e.logger.DebugContext(lctx, "leave after disconnect failed", "err", lerr)
	}
	return err
}

// Close は処理中の要求を打ち切って接続を閉じる
func (e *EngineEndpoint) Close() {
	e.cancel()
}

func (e *EngineEndpoint) close(code int32, reason string) {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	if err := e.connection.Close(code, reason); err != nil {
		e.logger.Debug("close connection", "err", err)
	}
}

func (e *EngineEndpoint) readLoop(ctx context.Context, frames chan<- []byte) error {
	for {
		data, err := e.connection.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return errEndpointClosed
			}
			return fmt.Errorf("read frame: %w", err)
		}
		select {
		case frames <- data:
		case <-ctx.Done():
			return nil
		}
	}
}

// execLoop は要求を1つずつ処理する。プロキシは応答を待ってから次を送るので並行処理はしない
func (e *EngineEndpoint) execLoop(ctx context.Context, frames <-chan []byte) error {
	for {
		var data []byte
		select {
		case <-ctx.Done():
			return nil
		case data = <-frames:
		}

		frame, err := ParseFrame(data)
		if err != nil {
			e.logger.WarnContext(ctx, "failed to parse frame", "err", err)
			if err := e.writeError(ctx, e.peer, err); err != nil {
				return err
			}
			continue
		}
		if e.peer.IsEmpty() {
			e.peer = frame.Session
			e.logger.DebugContext(ctx, "robot bound to endpoint", "robot_session", e.peer.String())
		}
		if frame.Session != e.peer {
			e.logger.WarnContext(ctx, "session mismatch", "expected", e.peer.String(), "got", frame.Session.String())
			if err := e.writeError(ctx, frame.Session, ErrSessionMismatch); err != nil {
				return err
			}
			continue
		}

		var reply []byte
		switch frame.Kind {
		case FrameStartRound:
			reply, err = e.seat.StartRound(ctx, frame.Payload)
		case FrameTick:
			reply, err = e.seat.ExecuteTick(ctx, frame.Payload)
		case FrameWait:
			reply, err = e.seat.WaitForBattleEnd(ctx, frame.Payload)
		case FrameLeave:
			e.logger.InfoContext(ctx, "robot left")
			return errEndpointClosed
		default:
			e.logger.WarnContext(ctx, "unexpected frame from robot", "kind", frame.Kind.String())
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.logger.WarnContext(ctx, "engine rejected request", "kind", frame.Kind.String(), "err", err)
			if err := e.writeError(ctx, e.peer, err); err != nil {
				return err
			}
			continue
		}
		e.out = AppendFrame(e.out[:0], frame.Kind, e.peer, reply)
		if err := e.connection.Write(ctx, e.out); err != nil {
			return fmt.Errorf("write reply: %w", err)
		}
	}
}

func (e *EngineEndpoint) writeError(ctx context.Context, session domain.SessionID, cause error) error {
	e.out = AppendFrame(e.out[:0], FrameError, session, []byte(cause.Error()))
	if err := e.connection.Write(ctx, e.out); err != nil {
		return fmt.Errorf("write error frame: %w", err)
	}
	return nil
}

// ownerLoop はheartbeatとアイドル監視を受け持つ
func (e *EngineEndpoint) ownerLoop(ctx context.Context) error {
	session := e.connection.Session()
	hb := NewHeartbeat(e.opts.PingInterval, e.pinger, session, e.logger)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return hb.Run(ctx)
	})
	if e.opts.IdleTimeout > 0 {
		eg.Go(func() error {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if idle, reason := session.IsIdle(e.opts.IdleTimeout); idle {
						return fmt.Errorf("%w: %s", ErrIdle, reason)
					}
				}
			}
		})
	}
	return eg.Wait()
}
