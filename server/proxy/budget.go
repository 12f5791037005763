package proxy

import "sync/atomic"

const DefaultMaxCalls = 10000

// callBudget はtickの間に許すsetter/getter呼び出し回数を数える。
// 補助goroutineからも呼ばれるのでカウンタはatomic。
type callBudget struct {
	max  int64
	sets atomic.Int64
	gets atomic.Int64
}

func (b *callBudget) reset() {
	b.sets.Store(0)
	b.gets.Store(0)
}

// setCall はsetter呼び出しを数え、上限を超えたらロボットを無効化してpanicする
func (p *Proxy) setCall() {
	if p.disabled.Load() {
		return
	}
	if n := p.budget.sets.Add(1); n > p.budget.max {
		p.tripBudget("set", n)
	}
}

// getCall はgetter呼び出しを数える
func (p *Proxy) getCall() {
	if p.disabled.Load() {
		return
	}
	if n := p.budget.gets.Add(1); n > p.budget.max {
		p.tripBudget("get", n)
	}
}

func (p *Proxy) tripBudget(counter string, calls int64) {
	err := &DisabledError{Counter: counter, Calls: calls}
	p.disable(err)
	panic(err)
}
