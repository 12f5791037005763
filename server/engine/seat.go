package engine

import (
	"context"
	"fmt"

	"robohost/server/domain"
)

type requestKind uint8

const (
	kindJoin requestKind = iota + 1
	kindLeave
	kindStart
	kindTick
	kindWait
)

// request はSeatからループへ渡す要求。replyは容量1で、ループは1回だけ書く。
type request struct {
	seat     *Seat
	kind     requestKind
	statics  *domain.RobotStatics
	commands *domain.ExecCommands
	reply    chan response
}

type response struct {
	data []byte
	err  error
}

func (r *request) respond(data []byte, err error) {
	r.reply <- response{data: data, err: err}
}

// Seat はアリーナの席で、ロボット1体から見たdomain.Engineです。
// 応答は席ごとのバッファに書かれ、次の交換まで有効です。
type Seat struct {
	arena *Arena
	id    domain.SessionID
	buf   []byte
}

var _ domain.Engine = (*Seat)(nil)

func (s *Seat) ID() domain.SessionID { return s.id }

func (s *Seat) StartRound(ctx context.Context, req []byte) ([]byte, error) {
	statics, err := domain.UnmarshalAs[*domain.RobotStatics](req)
	if err != nil {
		return nil, fmt.Errorf("decode statics: %w", err)
	}
	return s.call(ctx, &request{kind: kindStart, statics: statics})
}

func (s *Seat) ExecuteTick(ctx context.Context, req []byte) ([]byte, error) {
	return s.exchange(ctx, kindTick, req)
}

func (s *Seat) WaitForBattleEnd(ctx context.Context, req []byte) ([]byte, error) {
	return s.exchange(ctx, kindWait, req)
}

// Leave は席を外します。ラウンド中のロボットは死亡扱いになります。
func (s *Seat) Leave(ctx context.Context) error {
	_, err := s.call(ctx, &request{kind: kindLeave})
	return err
}

func (s *Seat) exchange(ctx context.Context, kind requestKind, req []byte) ([]byte, error) {
	commands, err := domain.UnmarshalAs[*domain.ExecCommands](req)
	if err != nil {
		return nil, fmt.Errorf("decode commands: %w", err)
	}
	return s.call(ctx, &request{kind: kind, commands: commands})
}

func (s *Seat) call(ctx context.Context, req *request) ([]byte, error) {
	req.seat = s
	req.reply = make(chan response, 1)
	if err := s.arena.loop.Submit(ctx, req); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrArenaClosed, err)
	}
	select {
	case res := <-req.reply:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.arena.loop.Done():
		return nil, ErrArenaClosed
	}
}
