package proxy

import (
	"context"
	"fmt"

	"robohost/server/domain"
)

type exchangeFunc func(ctx context.Context, req []byte) ([]byte, error)

// Execute は1tick分の交換を行い、そのtickのイベントを配送する。
//
// 終了要因(勝利・死亡・中断・無効化)が確定した後は交換せずにその要因を返す。
// ハンドラの中から呼んだ場合、同じ優先度の割り込みはevents.ErrEventInterruptedで返る。
func (p *Proxy) Execute() error {
	if err := p.terminalErr(); err != nil {
		p.spin(err)
		return err
	}
	if p.events.TestingCondition() {
		return ErrTestingCondition
	}
	if p.waitCondition != nil && p.waitCondition.Test != nil && p.waitCondition.Test() {
		p.waitCondition = nil
		p.commands.Scan = true
	}

	p.budget.reset()
	p.flush()

	res, err := p.exchange(domain.ExchangeTick, p.engine.ExecuteTick)
	if err != nil {
		p.setTerminal(err)
		return err
	}
	p.update(res)
	p.enqueue(res, false)
	if res.Halt {
		p.setTerminal(ErrAbort)
		return ErrAbort
	}
	err = p.events.ProcessEvents()
	if isFatal(err) {
		p.setTerminal(err)
	}
	return err
}

// spin は終了要因を無視して交換を呼び続けるロボットを予算で止める
func (p *Proxy) spin(err error) {
	if n := p.budget.gets.Add(1); n > p.budget.max {
		panic(err)
	}
}

// flush はコンソール出力と描画ログをコマンドに移す
func (p *Proxy) flush() {
	p.commands.OutputText = p.console.take()
	if p.graphics.PaintingEnabled() {
		p.commands.GraphicsCalls = p.graphics.TakeCalls()
	} else {
		p.commands.GraphicsCalls = nil
	}
}

// exchange はコマンドを共有バッファへエンコードし、エンジンの応答をデコードする
func (p *Proxy) exchange(kind domain.ExchangeKind, call exchangeFunc) (*domain.ExecResults, error) {
	req, err := domain.Marshal(p.buf, p.opts.ByteOrder, p.commands)
	if err != nil {
		return nil, fmt.Errorf("%w: encode commands: %w", ErrExchangeFailed, err)
	}
	reply, err := call(p.ctx, req)
	if err != nil {
		if p.ctx.Err() != nil {
			return nil, p.ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrExchangeFailed, kind, err)
	}
	p.record(kind, req, reply)

	res, err := domain.UnmarshalAs[*domain.ExecResults](reply)
	if err != nil {
		return nil, fmt.Errorf("decode %s results: %w", kind, err)
	}
	return res, nil
}

func (p *Proxy) record(kind domain.ExchangeKind, req, reply []byte) {
	if p.opts.Recorder == nil {
		return
	}
	if err := p.opts.Recorder.RecordExchange(p.session, kind, req, reply); err != nil {
		p.logger.WarnContext(p.ctx, "failed to record exchange", "kind", kind, "err", err)
	}
}

// update はエンジンがエコーしたコマンドと状態で手元の値を置き換える
func (p *Proxy) update(res *domain.ExecResults) {
	next := domain.NewExecCommands(p.opts.Colors)
	if res.Commands != nil {
		next.CopyFrom(res.Commands, false)
	} else {
		next.CopyFrom(p.commands, false)
	}
	p.commands = next

	if res.Status != nil {
		st := *res.Status
		if p.disabled.Load() {
			st.Energy = 0
		}
		p.status.Store(&st)
	}
	p.firedEnergy = 0
	p.firedHeat = 0
	p.graphics.SetPaintingEnabled(res.PaintEnabled)
}

// enqueue はそのtickのイベントをイベントマネージャーに積む。
// StatusとPaintはエンジンのイベントより先に積む。
// reservedOnlyなら予約種別のイベントだけを積み、チームメッセージは捨てる。
func (p *Proxy) enqueue(res *domain.ExecResults, reservedOnly bool) {
	st := *p.status.Load()
	if !reservedOnly {
		p.events.Add(&domain.StatusEvent{EventHeader: domain.EventHeader{Time: st.Time}, Status: st})
		if res.PaintEnabled {
			p.events.Add(&domain.PaintEvent{EventHeader: domain.EventHeader{Time: st.Time}})
		}
	}

	for _, ev := range res.Events {
		if reservedOnly && !ev.Kind().IsReserved() {
			continue
		}
		p.bullets.reconcile(ev)
		p.events.Add(ev)
	}
	p.bullets.apply(res.BulletUpdates)
	if reservedOnly {
		return
	}

	for _, m := range res.TeamMessages {
		p.events.Add(&domain.MessageEvent{
			EventHeader: domain.EventHeader{Time: st.Time},
			Sender:      m.Sender,
			Message:     m.Message,
		})
	}
}
