package proxy

import (
	"fmt"
	"io"
	"math"

	"robohost/server/domain"
	"robohost/server/events"
	"robohost/server/graphics"
)

// setter群。どれもその場ではコマンドを書き換えるだけで、Executeで送られる。

func (p *Proxy) SetMove(distance float64) {
	p.setCall()
	if math.IsNaN(distance) {
		p.logger.WarnContext(p.ctx, "SetMove called with NaN, ignored")
		return
	}
	if p.energy() == 0 {
		return
	}
	p.commands.DistanceRemaining = distance
	p.commands.Moved = true
}

func (p *Proxy) SetTurnBody(radians float64) {
	p.setCall()
	if math.IsNaN(radians) {
		p.logger.WarnContext(p.ctx, "SetTurnBody called with NaN, ignored")
		return
	}
	if p.energy() > 0 {
		p.commands.BodyTurnRemaining = radians
	}
}

func (p *Proxy) SetTurnGun(radians float64) {
	p.setCall()
	if math.IsNaN(radians) {
		p.logger.WarnContext(p.ctx, "SetTurnGun called with NaN, ignored")
		return
	}
	p.commands.GunTurnRemaining = radians
}

func (p *Proxy) SetTurnRadar(radians float64) {
	p.setCall()
	if math.IsNaN(radians) {
		p.logger.WarnContext(p.ctx, "SetTurnRadar called with NaN, ignored")
		return
	}
	p.commands.RadarTurnRemaining = radians
}

func (p *Proxy) SetAdjustGunForBodyTurn(v bool) {
	p.setCall()
	p.commands.IsAdjustGunForBodyTurn = v
}

// SetAdjustRadarForGunTurn は明示的に設定されていなければ車体旋回の補正も合わせる
func (p *Proxy) SetAdjustRadarForGunTurn(v bool) {
	p.setCall()
	p.commands.IsAdjustRadarForGunTurn = v
	if !p.commands.IsAdjustRadarForBodyTurnSet {
		p.commands.IsAdjustRadarForBodyTurn = v
	}
}

func (p *Proxy) SetAdjustRadarForBodyTurn(v bool) {
	p.setCall()
	p.commands.IsAdjustRadarForBodyTurn = v
	p.commands.IsAdjustRadarForBodyTurnSet = true
}

// SetMaxVelocity は絶対値をルール上限で丸めて設定する
func (p *Proxy) SetMaxVelocity(v float64) {
	p.setCall()
	if math.IsNaN(v) {
		p.logger.WarnContext(p.ctx, "SetMaxVelocity called with NaN, ignored")
		return
	}
	p.commands.MaxVelocity = min(math.Abs(v), domain.MaxVelocity)
}

func (p *Proxy) SetMaxTurnRate(radians float64) {
	p.setCall()
	if math.IsNaN(radians) {
		p.logger.WarnContext(p.ctx, "SetMaxTurnRate called with NaN, ignored")
		return
	}
	p.commands.MaxTurnRate = min(math.Abs(radians), domain.MaxTurnRate)
}

func (p *Proxy) SetScan() {
	p.setCall()
	p.commands.Scan = true
}

func (p *Proxy) SetColors(c domain.Colors) {
	p.setCall()
	p.commands.Colors = c
}

func (p *Proxy) SetBodyColor(argb uint32) {
	p.setCall()
	p.commands.Colors.Body = argb
}

func (p *Proxy) SetGunColor(argb uint32) {
	p.setCall()
	p.commands.Colors.Gun = argb
}

func (p *Proxy) SetRadarColor(argb uint32) {
	p.setCall()
	p.commands.Colors.Radar = argb
}

func (p *Proxy) SetScanColor(argb uint32) {
	p.setCall()
	p.commands.Colors.Scan = argb
}

func (p *Proxy) SetBulletColor(argb uint32) {
	p.setCall()
	p.commands.Colors.Bullet = argb
}

// SetDebugProperty はデバッグ表示用のキー値を積む。同じキーは後勝ち。
func (p *Proxy) SetDebugProperty(key, value string) {
	p.setCall()
	p.commands.DebugProperties = append(p.commands.DebugProperties, domain.DebugProperty{Key: key, Value: value})
}

// SetStop は4つの残量を退避してから0にする。
// 既に停止中なら、overwriteのときだけ退避し直す。
func (p *Proxy) SetStop(overwrite bool) {
	p.setCall()
	c := p.commands
	if !p.stopped || overwrite {
		p.saved = [4]float64{c.DistanceRemaining, c.BodyTurnRemaining, c.GunTurnRemaining, c.RadarTurnRemaining}
		p.stopped = true
	}
	c.DistanceRemaining = 0
	c.BodyTurnRemaining = 0
	c.GunTurnRemaining = 0
	c.RadarTurnRemaining = 0
}

// SetResume は停止中ならSetStopで退避した残量を戻す
func (p *Proxy) SetResume() {
	p.setCall()
	if !p.stopped {
		return
	}
	c := p.commands
	c.DistanceRemaining = p.saved[0]
	c.BodyTurnRemaining = p.saved[1]
	c.GunTurnRemaining = p.saved[2]
	c.RadarTurnRemaining = p.saved[3]
	p.stopped = false
}

// 以下はブロックする行動。フィールドを一度設定し、残量が0になるまでtickを回す。
// 残量が最初から0でも必ず1tickは進む。

func (p *Proxy) Move(distance float64) error {
	p.SetMove(distance)
	return p.until(func() bool { return p.commands.DistanceRemaining == 0 })
}

func (p *Proxy) Ahead(distance float64) error { return p.Move(distance) }

func (p *Proxy) Back(distance float64) error { return p.Move(-distance) }

func (p *Proxy) TurnBody(radians float64) error {
	p.SetTurnBody(radians)
	return p.until(func() bool { return p.commands.BodyTurnRemaining == 0 })
}

func (p *Proxy) TurnGun(radians float64) error {
	p.SetTurnGun(radians)
	return p.until(func() bool { return p.commands.GunTurnRemaining == 0 })
}

func (p *Proxy) TurnRadar(radians float64) error {
	p.SetTurnRadar(radians)
	return p.until(func() bool { return p.commands.RadarTurnRemaining == 0 })
}

// WaitFor はcondが真になるまでtickを回す
func (p *Proxy) WaitFor(cond *domain.Condition) error {
	p.setCall()
	if cond == nil || cond.Test == nil {
		return fmt.Errorf("WaitFor: %w", errNilCondition)
	}
	p.waitCondition = cond
	defer func() { p.waitCondition = nil }()
	return p.until(cond.Test)
}

func (p *Proxy) Stop(overwrite bool) error {
	p.SetStop(overwrite)
	return p.until(p.idle)
}

// Resume は退避していた動きを戻し、それが終わるまで待つ
func (p *Proxy) Resume() error {
	p.SetResume()
	return p.until(p.idle)
}

func (p *Proxy) idle() bool {
	c := p.commands
	return c.DistanceRemaining == 0 && c.BodyTurnRemaining == 0 &&
		c.GunTurnRemaining == 0 && c.RadarTurnRemaining == 0
}

// until はdoneが真になるまでExecuteを繰り返す。判定は毎tickの後に行う。
func (p *Proxy) until(done func() bool) error {
	for {
		if err := p.Execute(); err != nil {
			return err
		}
		if done() {
			return nil
		}
	}
}

func (p *Proxy) DoNothing() error { return p.Execute() }

// Scan はレーダースキャンを要求して1tick進める
func (p *Proxy) Scan() error {
	p.SetScan()
	return p.Execute()
}

// Rescan はScannedRobotのハンドラ内から呼ぶと、新しいスキャン結果で
// そのハンドラを打ち切れるようにしてから1tick進める
func (p *Proxy) Rescan() error {
	scanned := p.events.EventPriority(domain.KindScannedRobot)
	reset := p.events.CurrentTopEventPriority() == scanned
	prev := p.events.IsInterruptible(scanned)
	if reset {
		p.events.SetInterruptible(scanned, true)
	}
	err := p.Scan()
	if reset {
		p.events.SetInterruptible(scanned, prev)
	}
	return err
}

// イベント関連

func (p *Proxy) SetInterruptible(v bool) {
	p.setCall()
	p.events.SetInterruptible(p.events.CurrentTopEventPriority(), v)
}

func (p *Proxy) SetEventPriority(kind domain.EventKind, priority int) {
	p.setCall()
	p.events.SetEventPriority(kind, priority)
}

func (p *Proxy) EventPriority(kind domain.EventKind) int {
	p.getCall()
	return p.events.EventPriority(kind)
}

func (p *Proxy) AddCustomEvent(c *domain.Condition) {
	p.setCall()
	p.events.AddCustomEvent(c)
}

func (p *Proxy) RemoveCustomEvent(c *domain.Condition) {
	p.setCall()
	p.events.RemoveCustomEvent(c)
}

// ClearAllEvents はキューから予約種別以外のイベントを捨てる
func (p *Proxy) ClearAllEvents() {
	p.setCall()
	p.events.ClearAllEvents(false)
}

func (p *Proxy) AllEvents() []domain.Event {
	p.getCall()
	return p.events.AllEvents()
}

// EventsOf はキュー中のT型イベントを返す
func EventsOf[T domain.Event](p *Proxy) []T {
	p.getCall()
	return events.EventsOf[T](p.events)
}

// Graphics は描画バッファを返す。描画が無効なtickの呼び出しは捨てられる。
func (p *Proxy) Graphics() *graphics.Buffer {
	p.getCall()
	p.commands.IsTryingToPaint = true
	return p.graphics
}

// Out はロボットのコンソール。内容はtickごとにエンジンへ送られる。
func (p *Proxy) Out() io.Writer { return &p.console }

func (p *Proxy) Printf(format string, args ...any) {
	fmt.Fprintf(&p.console, format, args...)
}

func (p *Proxy) Println(args ...any) {
	fmt.Fprintln(&p.console, args...)
}
