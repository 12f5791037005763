package proxy

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"robohost/server/domain"
	"robohost/server/events"
	"robohost/server/graphics"
)

const (
	// DefaultBufferSize は共有交換バッファの容量
	DefaultBufferSize = 256 * 1024
	// MaxTeamMessageSize はチームメッセージ1件の上限
	MaxTeamMessageSize = 32 * 1024
)

var (
	// ErrInitializationFailed はプロキシの生成に必要な依存が欠けている場合のエラーです。
	ErrInitializationFailed = errors.New("failed to initialize robot proxy")
)

// Options はプロキシ1体分の設定です。
type Options struct {
	MaxCalls   int64
	BufferSize int
	ByteOrder  domain.ByteOrderFlag
	Colors     domain.Colors
	Graphics   graphics.Config
	Events     events.Options
	// Session は記録やログに使う識別子。空なら生成する
	Session domain.SessionID
	// Recorder がnilでなければ交換のたびに要求と応答を渡す
	Recorder domain.Recorder
	Logger   *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		MaxCalls:   DefaultMaxCalls,
		BufferSize: DefaultBufferSize,
		ByteOrder:  domain.LittleEndian,
		Colors:     domain.DefaultColors(),
		Graphics:   graphics.DefaultConfig(),
	}
}

// Proxy はロボット1体とエンジンの間に立ち、1tickごとの交換を行います。
//
// ロボットのAPI呼び出しはすべてRunを呼んだgoroutine上で行われる前提です。
// 補助goroutine(Goで起動したもの)から呼んでよいのはgetterだけです。
type Proxy struct {
	ctx    context.Context
	cancel context.CancelFunc

	engine  domain.Engine
	robot   Robot
	opts    Options
	logger  *slog.Logger
	session domain.SessionID

	buf    []byte
	budget callBudget

	statics  domain.RobotStatics
	status   atomic.Pointer[domain.RobotStatus]
	commands *domain.ExecCommands

	bullets      bulletTable
	nextBulletID int32
	firedEnergy  float64
	firedHeat    float64

	stopped bool
	saved   [4]float64

	waitCondition *domain.Condition

	events   *events.Manager
	graphics *graphics.Buffer
	console  console

	disabled atomic.Bool
	mu       sync.Mutex
	terminal error
}

func New(engine domain.Engine, robot Robot, opts Options) (*Proxy, error) {
	if engine == nil || robot == nil {
		return nil, ErrInitializationFailed
	}
	def := DefaultOptions()
	if opts.MaxCalls <= 0 {
		opts.MaxCalls = def.MaxCalls
	}
	if opts.BufferSize <= domain.BufferHeaderSize {
		opts.BufferSize = def.BufferSize
	}
	if opts.Colors == (domain.Colors{}) {
		opts.Colors = def.Colors
	}
	if opts.Graphics == (graphics.Config{}) {
		opts.Graphics = def.Graphics
	}
	opts.Graphics.Order = opts.ByteOrder
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	session := opts.Session
	if session.IsEmpty() {
		session = domain.NewSessionID()
	}
	name := robot.Statics().Name
	logger := opts.Logger.With("robot", name, "session", session.String())

	p := &Proxy{
		ctx:          context.Background(),
		cancel:       func() {},
		engine:       engine,
		robot:        robot,
		opts:         opts,
		logger:       logger,
		session:      session,
		buf:          make([]byte, 0, opts.BufferSize),
		budget:       callBudget{max: opts.MaxCalls},
		commands:     domain.NewExecCommands(opts.Colors),
		nextBulletID: 1,
		graphics:     graphics.New(opts.Graphics, logger),
	}
	p.statics = robot.Statics()
	p.status.Store(&domain.RobotStatus{})
	p.events = p.newEventManager()
	return p, nil
}

func (p *Proxy) newEventManager() *events.Manager {
	eo := p.opts.Events
	eo.Fatal = isFatal
	eo.Logger = p.logger
	m := events.New(p.now, eo)
	p.bindHandlers(m)
	return m
}

func (p *Proxy) now() int64 { return p.status.Load().Time }

func (p *Proxy) Session() domain.SessionID { return p.session }

// disable はロボットを無効化する。エネルギーを0にし、以降の行動はerrで失敗する。
func (p *Proxy) disable(err error) {
	if !p.disabled.CompareAndSwap(false, true) {
		return
	}
	st := *p.status.Load()
	st.Energy = 0
	p.status.Store(&st)
	p.setTerminal(err)
	p.logger.WarnContext(p.ctx, "robot disabled", "err", err)
}

func (p *Proxy) IsDisabled() bool { return p.disabled.Load() }

// setTerminal は最初の終了要因だけを保持する
func (p *Proxy) setTerminal(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminal == nil {
		p.terminal = err
	}
}

func (p *Proxy) terminalErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminal
}

// 以下のgetterはすべて呼び出し予算を消費する。

// Status はそのtickの状態のコピーを返す
func (p *Proxy) Status() domain.RobotStatus {
	p.getCall()
	return *p.status.Load()
}

func (p *Proxy) Name() string {
	p.getCall()
	return p.statics.Name
}

// Energy は今tickの発射分を差し引いたエネルギー
func (p *Proxy) Energy() float64 {
	p.getCall()
	return p.energy()
}

func (p *Proxy) energy() float64 {
	return p.status.Load().Energy - p.firedEnergy
}

// GunHeat は今tickの発射分を加えた砲身の熱
func (p *Proxy) GunHeat() float64 {
	p.getCall()
	return p.gunHeat()
}

func (p *Proxy) gunHeat() float64 {
	return p.status.Load().GunHeat + p.firedHeat
}

func (p *Proxy) X() float64 {
	p.getCall()
	return p.status.Load().X
}

func (p *Proxy) Y() float64 {
	p.getCall()
	return p.status.Load().Y
}

func (p *Proxy) Heading() float64 {
	p.getCall()
	return p.status.Load().BodyHeading
}

func (p *Proxy) GunHeading() float64 {
	p.getCall()
	return p.status.Load().GunHeading
}

func (p *Proxy) RadarHeading() float64 {
	p.getCall()
	return p.status.Load().RadarHeading
}

func (p *Proxy) Velocity() float64 {
	p.getCall()
	return p.status.Load().Velocity
}

func (p *Proxy) Others() int {
	p.getCall()
	return int(p.status.Load().Others)
}

func (p *Proxy) NumSentries() int {
	p.getCall()
	return int(p.status.Load().NumSentries)
}

func (p *Proxy) RoundNum() int {
	p.getCall()
	return int(p.status.Load().RoundNum)
}

func (p *Proxy) NumRounds() int {
	p.getCall()
	return int(p.statics.NumRounds)
}

func (p *Proxy) Time() int64 {
	p.getCall()
	return p.now()
}

func (p *Proxy) BattlefieldWidth() float64 {
	p.getCall()
	return float64(p.statics.BattlefieldWidth)
}

func (p *Proxy) BattlefieldHeight() float64 {
	p.getCall()
	return float64(p.statics.BattlefieldHeight)
}

func (p *Proxy) GunCoolingRate() float64 {
	p.getCall()
	return p.statics.GunCoolingRate
}

// DistanceRemaining 以下の残量はエンジンのエコーを反映したコマンドから読む。

func (p *Proxy) DistanceRemaining() float64 {
	p.getCall()
	return p.commands.DistanceRemaining
}

func (p *Proxy) TurnRemaining() float64 {
	p.getCall()
	return p.commands.BodyTurnRemaining
}

func (p *Proxy) GunTurnRemaining() float64 {
	p.getCall()
	return p.commands.GunTurnRemaining
}

func (p *Proxy) RadarTurnRemaining() float64 {
	p.getCall()
	return p.commands.RadarTurnRemaining
}

func (p *Proxy) IsAdjustGunForBodyTurn() bool {
	p.getCall()
	return p.commands.IsAdjustGunForBodyTurn
}

func (p *Proxy) IsAdjustRadarForGunTurn() bool {
	p.getCall()
	return p.commands.IsAdjustRadarForGunTurn
}

func (p *Proxy) IsAdjustRadarForBodyTurn() bool {
	p.getCall()
	return p.commands.IsAdjustRadarForBodyTurn
}

func (p *Proxy) MaxVelocity() float64 {
	p.getCall()
	return p.commands.MaxVelocity
}

func (p *Proxy) MaxTurnRate() float64 {
	p.getCall()
	return p.commands.MaxTurnRate
}
