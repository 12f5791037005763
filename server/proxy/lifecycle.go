package proxy

import (
	"context"
	"errors"
	"fmt"

	"robohost/server/domain"
)

// Run はバトルが終わるまでラウンドを繰り返します。
//
// ラウンドごとにStartRoundで自己申告を送り、ロボットのRunを実行し、
// 終了要因が確定したらラウンド終了待ちに入ります。
// エンジンがBattleOverを返すとnilで戻り、交換の失敗とプロトコル破損はエラーで返します。
func (p *Proxy) Run(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)
	defer p.cancel()

	for {
		start, err := p.startRound()
		if err != nil {
			return err
		}
		if start.BattleOver {
			p.logger.InfoContext(p.ctx, "battle over")
			return nil
		}
		p.initializeRound(start)

		if err := p.runRound(); err != nil {
			return err
		}
	}
}

func (p *Proxy) startRound() (*domain.RoundStart, error) {
	self := p.robot.Statics()
	req, err := domain.Marshal(p.buf, p.opts.ByteOrder, &self)
	if err != nil {
		return nil, fmt.Errorf("%w: encode statics: %w", ErrExchangeFailed, err)
	}
	reply, err := p.engine.StartRound(p.ctx, req)
	if err != nil {
		if p.ctx.Err() != nil {
			return nil, p.ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrExchangeFailed, domain.ExchangeStartRound, err)
	}
	p.record(domain.ExchangeStartRound, req, reply)

	start, err := domain.UnmarshalAs[*domain.RoundStart](reply)
	if err != nil {
		return nil, fmt.Errorf("decode round start: %w", err)
	}
	return start, nil
}

// initializeRound はラウンド開始時の状態を作り直す。
// 弾IDはロボットの生存期間を通して一意なのでリセットしない。
func (p *Proxy) initializeRound(start *domain.RoundStart) {
	p.statics = start.Statics
	st := start.Status
	p.status.Store(&st)

	p.commands = domain.NewExecCommands(p.opts.Colors)
	p.bullets.clear()
	p.budget.reset()
	p.firedEnergy = 0
	p.firedHeat = 0
	p.stopped = false
	p.saved = [4]float64{}
	p.waitCondition = nil

	p.disabled.Store(false)
	p.mu.Lock()
	p.terminal = nil
	p.mu.Unlock()

	p.graphics.SetPaintingEnabled(false)
	p.graphics.TakeCalls()
	p.console.take()

	p.events = p.newEventManager()
	p.events.Add(&domain.StatusEvent{EventHeader: domain.EventHeader{Time: st.Time}, Status: st})

	p.logger.DebugContext(p.ctx, "round started", "round", st.RoundNum, "numRounds", st.NumRounds)
}

// runRound はロボット本体を動かし、終了要因が確定したらラウンド終了待ちに入る。
// エンジンがラウンドを打ち切った場合もnilを返す。
func (p *Proxy) runRound() error {
	err := p.runBody()
	switch {
	case err == nil:
	case isHardFailure(err):
		return err
	case errors.Is(err, ErrWin), errors.Is(err, ErrDeath), errors.Is(err, ErrAbort):
		p.logger.DebugContext(p.ctx, "round finished for robot", "reason", err)
	case errors.Is(err, ErrDisabled):
		p.disable(err)
	default:
		p.logger.WarnContext(p.ctx, "robot stopped with error", "err", err)
		p.disable(err)
	}
	if err := p.waitForBattleEnd(); err != nil && !errors.Is(err, ErrAbort) {
		return err
	}
	return nil
}

// runBody は最初のtickのイベントを配送してからロボットのRunを呼ぶ。
// Runが正常に戻った後は終了要因が来るまで何もせずにtickを進める。
func (p *Proxy) runBody() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = p.recovered(r)
		}
	}()

	if err := p.events.ProcessEvents(); err != nil {
		return err
	}
	if err := p.robot.Run(p); err != nil {
		return err
	}
	for {
		if err := p.Execute(); err != nil {
			return err
		}
	}
}

// recovered はロボットのpanicをエラーに変換する
func (p *Proxy) recovered(r any) error {
	if err, ok := r.(error); ok && IsControlSignal(err) {
		return err
	}
	err := fmt.Errorf("robot panicked: %v", r)
	p.disable(err)
	return err
}

// Go はロボットの補助goroutineを起動する。予算超過などのpanicはここで止まり、
// ロボットは無効化される。
func (p *Proxy) Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.disable(p.recovered(r))
			}
		}()
		fn()
	}()
}

// waitForBattleEnd はラウンドの終了が確定するまで交換を続ける。
// この間の制御シグナルは無視し、予約種別(Win/Death/RoundEnded/BattleEndedなど)のイベントだけを配送する。
// エンジンがhaltを返したらErrAbortで戻る。
func (p *Proxy) waitForBattleEnd() error {
	p.events.ClearAllEvents(false)
	p.graphics.SetPaintingEnabled(false)

	for {
		if err := p.drainEvents(); err != nil {
			return err
		}
		p.budget.reset()
		p.flush()

		res, err := p.exchange(domain.ExchangeWaitForBattleEnd, p.engine.WaitForBattleEnd)
		if err != nil {
			return err
		}
		p.update(res)
		p.enqueue(res, true)
		p.events.ResetCustomEvents()

		if res.Halt {
			p.setTerminal(ErrAbort)
			if err := p.drainEvents(); err != nil {
				return err
			}
			return ErrAbort
		}
		if !res.ShouldWait {
			return p.drainEvents()
		}
	}
}

// drainEvents は制御シグナルで途切れても残りのイベントを配送し切る
func (p *Proxy) drainEvents() (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.recovered(r)
			err = nil
		}
	}()
	for {
		err := p.events.ProcessEvents()
		if err == nil || !IsControlSignal(err) {
			return err
		}
	}
}
