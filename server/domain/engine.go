package domain

import "context"

//go:generate go tool mockgen -destination=./mocks/engine_mock.go -package=mocks . Engine,Recorder

// Engine はロボット1体から見たシミュレーションエンジンの呼び出し口です。
// どのメソッドもエンコード済みバッファを受け取り、応答バッファを返すまでブロックします。
// reqは呼び出し側の共有バッファなので、実装は戻る前に読み終えなければなりません。
type Engine interface {
	// StartRound は自己申告のRobotStaticsを送り、RoundStartを受け取ります。
	StartRound(ctx context.Context, req []byte) ([]byte, error)
	// ExecuteTick はExecCommandsを送り、そのtickのExecResultsを受け取ります。
	ExecuteTick(ctx context.Context, req []byte) ([]byte, error)
	// WaitForBattleEnd はラウンド終了待ちの間に使います。形式はExecuteTickと同じです。
	WaitForBattleEnd(ctx context.Context, req []byte) ([]byte, error)
}

// ExchangeKind は記録される交換の種別
type ExchangeKind uint8

const (
	ExchangeStartRound ExchangeKind = iota + 1
	ExchangeTick
	ExchangeWaitForBattleEnd
)

func (k ExchangeKind) String() string {
	switch k {
	case ExchangeStartRound:
		return "start_round"
	case ExchangeTick:
		return "tick"
	case ExchangeWaitForBattleEnd:
		return "wait_for_battle_end"
	default:
		return "unknown"
	}
}

// Recorder はエンジンとの交換を記録します。バッファは呼び出し後に再利用されます。
type Recorder interface {
	RecordExchange(session SessionID, kind ExchangeKind, req, reply []byte) error
}
