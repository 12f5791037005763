package adapterwebsocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/coder/websocket"

	"robohost/server/domain"
)

var ErrUnexpectedFrame = errors.New("unexpected reply frame")

// DefaultReadLimit はwebsocketメッセージ1通の上限。交換バッファとフレームヘッダーが収まる大きさにする
const DefaultReadLimit = 1 << 20

// RemoteEngine はwebsocketの向こうのエンジンを呼ぶdomain.Engineです。
// 要求を書いてから応答を読むまでブロックし、ctxのキャンセルは接続ごと打ち切ります。
type RemoteEngine struct {
	mu         sync.Mutex
	connection *domain.Connection
	session    domain.SessionID
	out        []byte
}

var _ domain.Engine = (*RemoteEngine)(nil)

// Dial はurlのエンジンに接続する。sessionが空なら生成する
func Dial(ctx context.Context, url string, session domain.SessionID, readLimit int64) (*RemoteEngine, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial engine %s: %w", url, err)
	}
	if readLimit <= 0 {
		readLimit = DefaultReadLimit
	}
	conn.SetReadLimit(readLimit)
	return NewRemoteEngine(NewTransportFrom(conn), session), nil
}

func NewRemoteEngine(transport domain.Transport, session domain.SessionID) *RemoteEngine {
	s := domain.NewSession(session)
	return &RemoteEngine{
		connection: domain.NewConnection(s, transport),
		session:    s.ID(),
	}
}

func (e *RemoteEngine) Session() domain.SessionID { return e.session }

func (e *RemoteEngine) StartRound(ctx context.Context, req []byte) ([]byte, error) {
	return e.call(ctx, FrameStartRound, req)
}

func (e *RemoteEngine) ExecuteTick(ctx context.Context, req []byte) ([]byte, error) {
	return e.call(ctx, FrameTick, req)
}

func (e *RemoteEngine) WaitForBattleEnd(ctx context.Context, req []byte) ([]byte, error) {
	return e.call(ctx, FrameWait, req)
}

// Leave はエンジンに席を外すことを伝える。応答は待たない
func (e *RemoteEngine) Leave(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.out = AppendFrame(e.out[:0], FrameLeave, e.session, nil)
	return e.connection.Write(ctx, e.out)
}

func (e *RemoteEngine) Close() error {
	return e.connection.Close(int32(websocket.StatusNormalClosure), "bye")
}

func (e *RemoteEngine) call(ctx context.Context, kind FrameKind, req []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.connection.Session().IsClosed() {
		return nil, fmt.Errorf("%s: %w", kind, net.ErrClosed)
	}
	e.out = AppendFrame(e.out[:0], kind, e.session, req)
	if err := e.connection.Write(ctx, e.out); err != nil {
		return nil, fmt.Errorf("write %s: %w", kind, err)
	}
	data, err := e.connection.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// 応答を待たずに抜けると以降の応答と要求の対応が崩れる
			_ = e.connection.Close(int32(websocket.StatusGoingAway), "request cancelled")
		}
		return nil, fmt.Errorf("read %s reply: %w", kind, err)
	}
	frame, err := ParseFrame(data)
	if err != nil {
		return nil, fmt.Errorf("%s reply: %w", kind, err)
	}
	if frame.Session != e.session {
		return nil, fmt.Errorf("%s reply: %w", kind, ErrSessionMismatch)
	}
	switch frame.Kind {
	case kind:
		return frame.Payload, nil
	case FrameError:
		return nil, &RemoteError{Message: string(frame.Payload)}
	default:
		return nil, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedFrame, frame.Kind, kind)
	}
}
