package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"

	"robohost/internal/handler"
	"robohost/server/domain"
)

var (
	ErrBattleStarted = errors.New("arena: battle already started")
	ErrArenaClosed   = errors.New("arena: closed")
	ErrSeatGone      = errors.New("arena: seat has left")
)

// Config はアリーナのバトル設定
type Config struct {
	Width          int32
	Height         int32
	Rounds         int32
	MaxTurns       int64
	Seats          int
	PaintEnabled   bool
	GunCoolingRate float64
	InactivityTime int64
	Seed           uint64
	ByteOrder      domain.ByteOrderFlag
	BufferSize     int
	QueueSize      int
	Logger         *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Width:          800,
		Height:         600,
		Rounds:         10,
		MaxTurns:       10000,
		Seats:          2,
		GunCoolingRate: domain.DefaultGunCoolingRate,
		InactivityTime: 450,
		BufferSize:     64 * 1024,
	}
}

// Arena はインプロセスで動く参照エンジンです。
//
// ロボットはJoinで得たSeat越しに交換し、全員の要求が揃ったところで
// 1ターンだけシミュレーションを進めます(ターンバリア)。
// 状態はすべてループgoroutineが所有します。
type Arena struct {
	cfg    Config
	logger *slog.Logger
	loop   *handler.Loop[*request]
	rng    *rand.Rand
	field  field

	robots  []*robot
	bySeat  map[*Seat]*robot
	started bool
	playing bool

	round      int32
	time       int64
	totalTurns int64
	inactive   int64
	bullets    []*bullet
	deaths     []*robot

	final atomic.Pointer[[]domain.BattleResults]
	over  chan struct{}
}

// New はConfigを補完してArenaを作成します。ループはStartで起動します。
func New(cfg Config) (*Arena, error) {
	def := DefaultConfig()
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	if cfg.Rounds <= 0 {
		cfg.Rounds = def.Rounds
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = def.MaxTurns
	}
	if cfg.Seats <= 0 {
		cfg.Seats = def.Seats
	}
	if cfg.GunCoolingRate <= 0 {
		cfg.GunCoolingRate = def.GunCoolingRate
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if float64(cfg.Width) < 2*domain.RobotWidth || float64(cfg.Height) < 2*domain.RobotWidth {
		return nil, fmt.Errorf("arena: battlefield %dx%d is too small", cfg.Width, cfg.Height)
	}

	a := &Arena{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "arena"),
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		field:  field{width: float64(cfg.Width), height: float64(cfg.Height)},
		bySeat: make(map[*Seat]*robot),
		over:   make(chan struct{}),
	}
	loop, err := handler.New(handler.Config[*request]{
		Handler:   a,
		QueueSize: cfg.QueueSize,
		Logger:    a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.loop = loop
	return a, nil
}

func (a *Arena) Config() Config { return a.cfg }

// Start はアリーナのループを起動します。
func (a *Arena) Start(ctx context.Context) error {
	return a.loop.Start(ctx)
}

// Stop はループを止めます。待っている交換はErrArenaClosedで戻ります。
func (a *Arena) Stop(ctx context.Context) error {
	return a.loop.Stop(ctx)
}

// Join は席を1つ確保します。最初のラウンドが始まった後は参加できません。
func (a *Arena) Join(ctx context.Context) (*Seat, error) {
	s := &Seat{
		arena: a,
		id:    domain.NewSessionID(),
		buf:   make([]byte, 0, a.cfg.BufferSize),
	}
	if _, err := s.call(ctx, &request{kind: kindJoin}); err != nil {
		return nil, err
	}
	return s, nil
}

// Over はバトルが終わると閉じます。
func (a *Arena) Over() <-chan struct{} { return a.over }

// Results はバトル終了後の成績を順位順に返します。終了前はnilです。
func (a *Arena) Results() []domain.BattleResults {
	if p := a.final.Load(); p != nil {
		return *p
	}
	return nil
}

// Handle はループgoroutineで要求を1つ処理し、揃っていればラウンドかターンを進めます。
func (a *Arena) Handle(ctx context.Context, req *request) error {
	if req.kind == kindJoin {
		return a.join(req)
	}
	r, ok := a.bySeat[req.seat]
	if !ok || r.gone {
		req.respond(nil, ErrSeatGone)
		return nil
	}

	switch req.kind {
	case kindLeave:
		a.leave(r)
		req.respond(nil, nil)
	case kindStart:
		a.onStart(r, req)
	case kindTick, kindWait:
		a.onExchange(r, req)
	}
	a.advance(ctx)
	return nil
}

func (a *Arena) join(req *request) error {
	if a.started {
		req.respond(nil, ErrBattleStarted)
		return nil
	}
	r := &robot{seat: req.seat, dealt: make(map[*robot]float64)}
	a.robots = append(a.robots, r)
	a.bySeat[req.seat] = r
	req.respond(nil, nil)
	return nil
}

// leave は席を外す。ラウンド中なら死亡として扱う。
func (a *Arena) leave(r *robot) {
	r.gone = true
	a.logger.Info("seat left", "robot", r.name(), "session", r.seat.id)
	if a.playing && r.inRound && r.alive {
		r.alive = false
		a.deaths = append(a.deaths, r)
		for _, o := range a.participants() {
			if o != r {
				o.push(&domain.RobotDeathEvent{EventHeader: domain.EventHeader{Time: a.time}, Name: r.name()})
			}
		}
		awardSurvival(a.alive(), 1)
		if a.roundOver() {
			a.endRound()
			a.replyHalted()
		}
	}
}

func (a *Arena) onStart(r *robot, req *request) {
	if a.round >= a.cfg.Rounds {
		a.reply(r, req, &domain.RoundStart{BattleOver: true})
		return
	}
	if !r.named {
		r.statics = *req.statics
		r.statics.Name = a.uniqueName(r.statics.Name)
		r.named = true
	}
	r.pending = req
}

// onExchange はtick/wait要求を受け付ける。
// ラウンドが終わった席にはその場で残りのイベントとhaltを返す。
func (a *Arena) onExchange(r *robot, req *request) {
	if !a.playing || !r.inRound || r.halted {
		if r.commands == nil {
			a.reply(r, req, &domain.ExecResults{Halt: true, Status: &r.status})
			return
		}
		r.halted = true
		a.reply(r, req, a.execResults(r, req.kind == kindWait))
		return
	}
	r.pending = req
}

// advance はバリアが揃っていればラウンド開始かターン処理を行う
func (a *Arena) advance(ctx context.Context) {
	if a.playing {
		if a.turnReady() {
			a.step(ctx)
		}
		return
	}
	if a.startReady() {
		a.startRound(ctx)
	}
}

func (a *Arena) present() []*robot {
	out := make([]*robot, 0, len(a.robots))
	for _, r := range a.robots {
		if !r.gone {
			out = append(out, r)
		}
	}
	return out
}

func (a *Arena) participants() []*robot {
	out := make([]*robot, 0, len(a.robots))
	for _, r := range a.robots {
		if r.inRound && !r.gone {
			out = append(out, r)
		}
	}
	return out
}

// entrants はラウンドを始めたロボット。途中で席を外したロボットも含む
func (a *Arena) entrants() []*robot {
	out := make([]*robot, 0, len(a.robots))
	for _, r := range a.robots {
		if r.inRound {
			out = append(out, r)
		}
	}
	return out
}

func (a *Arena) alive() []*robot {
	out := make([]*robot, 0, len(a.robots))
	for _, r := range a.robots {
		if r.inRound && r.alive {
			out = append(out, r)
		}
	}
	return out
}

func (a *Arena) startReady() bool {
	if len(a.robots) < a.cfg.Seats {
		return false
	}
	present := a.present()
	if len(present) == 0 {
		return false
	}
	for _, r := range present {
		if r.pending == nil || r.pending.kind != kindStart {
			return false
		}
	}
	return true
}

func (a *Arena) turnReady() bool {
	for _, r := range a.participants() {
		if r.halted {
			continue
		}
		if r.pending == nil || (r.pending.kind != kindTick && r.pending.kind != kindWait) {
			return false
		}
	}
	return true
}

func (a *Arena) uniqueName(name string) string {
	if name == "" {
		name = "robot"
	}
	taken := func(n string) bool {
		for _, r := range a.robots {
			if r.named && r.statics.Name == n {
				return true
			}
		}
		return false
	}
	if !taken(name) {
		return name
	}
	for i := 2; ; i++ {
		n := fmt.Sprintf("%s (%d)", name, i)
		if !taken(n) {
			return n
		}
	}
}

// startRound はロボットを配置してRoundStartを返す
func (a *Arena) startRound(ctx context.Context) {
	a.started = true
	a.playing = true
	a.time = 0
	a.inactive = 0
	a.bullets = nil
	a.deaths = nil

	for _, r := range a.robots {
		r.inRound = false
	}
	present := a.present()
	placed := make([]*robot, 0, len(present))
	for _, r := range present {
		r.inRound = true
		r.alive = true
		r.disabled = false
		r.halted = false
		r.killer = nil
		r.rammed = false
		r.events = nil
		r.messages = nil
		r.updates = nil
		clear(r.dealt)
		r.commands = domain.NewExecCommands(domain.DefaultColors())
		r.status = domain.RobotStatus{
			Energy:    initialEnergy,
			GunHeat:   initialGunHeat,
			Others:    int32(len(present) - 1),
			RoundNum:  a.round,
			NumRounds: a.cfg.Rounds,
		}
		a.field.spawn(a.rng, r, placed)
		placed = append(placed, r)
	}

	for _, r := range present {
		st := a.statics(r, present)
		r.statics = st
		req := r.pending
		r.pending = nil
		a.reply(r, req, &domain.RoundStart{Statics: st, Status: r.status})
	}
	a.logger.InfoContext(ctx, "round started", "round", a.round, "robots", len(present))
}

// statics は自己申告にバトル設定とチームメイトを埋める
func (a *Arena) statics(r *robot, present []*robot) domain.RobotStatics {
	st := r.statics
	st.BattlefieldWidth = a.cfg.Width
	st.BattlefieldHeight = a.cfg.Height
	st.NumRounds = a.cfg.Rounds
	st.GunCoolingRate = a.cfg.GunCoolingRate
	st.InactivityTime = a.cfg.InactivityTime
	st.Teammates = nil
	if st.TeamName != "" {
		for _, o := range present {
			if o != r && o.statics.TeamName == st.TeamName {
				st.Teammates = append(st.Teammates, o.statics.Name)
			}
		}
	}
	return st
}

// step は揃った要求で1ターン進め、全員に結果を返す
func (a *Arena) step(ctx context.Context) {
	a.time++
	a.totalTurns++
	participants := a.participants()

	for _, r := range participants {
		r.damaged = false
		r.radarFrom = r.status.RadarHeading
		r.radarSweep = 0
		if r.halted || r.pending == nil {
			continue
		}
		if r.pending.kind == kindWait {
			if r.alive && !r.disabled {
				a.logger.DebugContext(ctx, "robot left the round while alive", "robot", r.name())
				r.disabled = true
				r.status.Energy = 0
			}
			continue
		}
		r.commands = r.pending.commands
		if text := r.commands.OutputText; text != "" {
			a.logger.DebugContext(ctx, "robot output", "robot", r.name(), "text", text)
		}
	}

	active := a.alive()
	for _, r := range active {
		a.cool(r)
		if r.disabled {
			continue
		}
		a.fire(r)
		a.turn(r)
		a.move(r)
		a.hitWall(r)
	}
	for _, r := range active {
		if !r.disabled {
			a.collide(r, active)
		}
	}
	a.moveBullets()
	for _, r := range active {
		if !r.disabled {
			a.scan(r, active)
		}
	}
	a.decay(active)
	a.resolveDeaths(participants)
	a.route(participants)

	if a.roundOver() {
		a.endRound()
	}
	a.replyAll(participants)
}

// resolveDeaths はエネルギーが尽きたロボットを倒し、生存点と撃破ボーナスを配る
func (a *Arena) resolveDeaths(participants []*robot) {
	var died []*robot
	for _, r := range participants {
		if r.alive && r.damaged && r.status.Energy <= 0 {
			r.alive = false
			r.status.Energy = 0
			r.status.Velocity = 0
			died = append(died, r)
		}
	}
	if len(died) == 0 {
		return
	}
	awardSurvival(a.alive(), len(died))
	for _, r := range died {
		awardKill(r.killer, r, !r.rammed)
		a.deaths = append(a.deaths, r)
		r.push(&domain.DeathEvent{EventHeader: domain.EventHeader{Time: a.time}})
		for _, o := range participants {
			if o != r {
				o.push(&domain.RobotDeathEvent{EventHeader: domain.EventHeader{Time: a.time}, Name: r.name()})
			}
		}
	}
}

// route はそのターンに送られたチームメッセージを宛先に配る。
// 宛先が空ならチームメイト全員へのブロードキャスト。
func (a *Arena) route(participants []*robot) {
	for _, from := range participants {
		if from.pending == nil || from.pending.kind != kindTick || !from.alive {
			continue
		}
		for _, m := range from.commands.TeamMessages {
			m.Sender = from.name()
			for _, to := range participants {
				if to == from || !to.alive {
					continue
				}
				if m.Recipient == "" && (from.statics.TeamName == "" || to.statics.TeamName != from.statics.TeamName) {
					continue
				}
				if m.Recipient != "" && m.Recipient != to.name() {
					continue
				}
				to.messages = append(to.messages, m)
			}
		}
	}
}

func (a *Arena) roundOver() bool {
	n := len(a.entrants())
	alive := len(a.alive())
	switch {
	case alive == 0:
		return true
	case n > 1 && alive <= 1:
		return true
	default:
		return a.time >= a.cfg.MaxTurns
	}
}

// endRound は勝者と順位を確定し、全員にラウンド終了を通知してhaltにする。
// 最終ラウンドならBattleEndedに成績を載せる。
func (a *Arena) endRound() {
	participants := a.participants()
	survivors := a.alive()
	if len(survivors) == 1 {
		w := survivors[0]
		w.score.lastSurvivorBonus += lastSurvivorBonus * float64(len(a.entrants())-1)
		w.push(&domain.WinEvent{EventHeader: domain.EventHeader{Time: a.time}})
	}
	place(survivors, a.deaths)

	for _, r := range participants {
		r.halted = true
		r.push(&domain.RoundEndedEvent{
			EventHeader: domain.EventHeader{Time: a.time},
			Round:       a.round,
			Turns:       int32(a.time),
			TotalTurns:  int32(a.totalTurns),
		})
	}
	a.logger.Info("round ended", "round", a.round, "turns", a.time, "survivors", len(survivors))

	a.playing = false
	a.round++
	if a.round < a.cfg.Rounds {
		return
	}

	results := standings(a.robots)
	a.final.Store(&results)
	for _, r := range participants {
		res := resultFor(results, r.name())
		r.push(&domain.BattleEndedEvent{EventHeader: domain.EventHeader{Time: a.time}, Results: res})
	}
	close(a.over)
	a.logger.Info("battle ended", "rounds", a.round, "totalTurns", a.totalTurns)
}

func resultFor(results []domain.BattleResults, name string) *domain.BattleResults {
	for i := range results {
		if results[i].TeamLeaderName == name {
			res := results[i]
			return &res
		}
	}
	return nil
}

// replyHalted は席が外れてラウンドが終わったとき、待っている全員に返す
func (a *Arena) replyHalted() {
	a.replyAll(a.participants())
}

func (a *Arena) replyAll(participants []*robot) {
	for _, r := range participants {
		req := r.pending
		if req == nil {
			continue
		}
		r.pending = nil
		a.reply(r, req, a.execResults(r, req.kind == kindWait))
	}
}

// execResults はそのターンの結果を組み立て、送った一時状態を空にする。
// wait中のロボットには予約種別のイベントだけを返す。
func (a *Arena) execResults(r *robot, waiting bool) *domain.ExecResults {
	echo := domain.NewExecCommands(r.commands.Colors)
	echo.CopyFrom(r.commands, false)

	st := r.status
	st.BodyTurnRemaining = r.commands.BodyTurnRemaining
	st.GunTurnRemaining = r.commands.GunTurnRemaining
	st.RadarTurnRemaining = r.commands.RadarTurnRemaining
	st.DistanceRemaining = r.commands.DistanceRemaining
	st.Time = a.time
	st.RoundNum = a.round
	if r.halted {
		st.RoundNum = a.round - 1
	}
	st.NumRounds = a.cfg.Rounds
	st.Others, st.NumSentries = 0, 0
	for _, o := range a.robots {
		if o != r && o.inRound && o.alive {
			st.Others++
			if o.statics.IsSentryRobot {
				st.NumSentries++
			}
		}
	}
	r.status = st

	res := &domain.ExecResults{
		Commands:      echo,
		Status:        &st,
		BulletUpdates: r.updates,
		Halt:          r.halted,
		ShouldWait:    waiting && !r.halted,
		PaintEnabled:  a.cfg.PaintEnabled && !waiting,
	}
	for _, ev := range r.events {
		if waiting && !ev.Kind().IsReserved() {
			continue
		}
		res.Events = append(res.Events, ev)
	}
	if !waiting {
		res.TeamMessages = r.messages
	}
	r.events = nil
	r.messages = nil
	r.updates = nil
	return res
}

// reply は結果を席のバッファにエンコードして返す
func (a *Arena) reply(r *robot, req *request, v domain.Serializable) {
	out, err := domain.Marshal(r.seat.buf, a.cfg.ByteOrder, v)
	if err != nil {
		a.logger.Warn("failed to encode reply", "robot", r.name(), "err", err)
		req.respond(nil, fmt.Errorf("encode reply: %w", err))
		return
	}
	req.respond(out, nil)
}
