package proxy

import (
	"context"
	"errors"
	"fmt"

	"robohost/server/domain"
)

// 制御シグナル。エラーとしてログせず、ラウンド終了待ちまで巻き戻す。
var (
	ErrWin      = errors.New("robot won the round")
	ErrDeath    = errors.New("robot died")
	ErrAbort    = errors.New("battle aborted")
	ErrDisabled = errors.New("robot disabled")
)

var (
	// ErrExchangeFailed はエンジンとの交換自体が失敗した場合のエラーです。
	ErrExchangeFailed = errors.New("engine exchange failed")
	// ErrTestingCondition はカスタム条件の評価中に行動しようとした場合のエラーです。
	ErrTestingCondition = errors.New("cannot take action inside a condition test, handle the custom event instead")
	// ErrNotTeamRobot はチーム機能をチームロボット以外が呼んだ場合のエラーです。
	ErrNotTeamRobot = errors.New("robot is not a team robot")
	// ErrMessageTooLarge はチームメッセージが上限を超えた場合のエラーです。
	ErrMessageTooLarge = errors.New("team message too large")

	errNilCondition = errors.New("nil condition")
)

// DisabledError は呼び出し予算の超過で無効化されたことを表します。
// setter/getterはこの値でpanicし、Runがrecoverします。
type DisabledError struct {
	Counter string
	Calls   int64
}

func (e *DisabledError) Error() string {
	return fmt.Sprintf("robot disabled: %d calls to %s methods without executing a turn", e.Calls, e.Counter)
}

func (e *DisabledError) Is(target error) bool { return target == ErrDisabled }

// IsControlSignal はerrが勝利・死亡・中断・無効化のいずれかかを返す
func IsControlSignal(err error) bool {
	return errors.Is(err, ErrWin) || errors.Is(err, ErrDeath) ||
		errors.Is(err, ErrAbort) || errors.Is(err, ErrDisabled)
}

// isFatal はハンドラから返ったときにイベント処理を打ち切るべきエラーかを返す
func isFatal(err error) bool {
	return IsControlSignal(err) || isHardFailure(err)
}

// isHardFailure はラウンド終了待ちにも進めない失敗かを返す
func isHardFailure(err error) bool {
	return errors.Is(err, ErrExchangeFailed) ||
		errors.Is(err, domain.ErrProtocolCorruption) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
