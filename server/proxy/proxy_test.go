package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"robohost/server/domain"
	"robohost/server/domain/mocks"
	"robohost/server/graphics"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubRobot struct {
	statics domain.RobotStatics
	run     func(p *Proxy) error
}

func (r *stubRobot) Statics() domain.RobotStatics { return r.statics }

func (r *stubRobot) Run(p *Proxy) error {
	if r.run == nil {
		return nil
	}
	return r.run(p)
}

// stepper はExecuteTickの応答を組み立てる最小のエンジン
type stepper struct {
	t      *testing.T
	status domain.RobotStatus
	step   func(cmd *domain.ExecCommands, res *domain.ExecResults)
	seen   []*domain.ExecCommands
}

func newStepper(t *testing.T) *stepper {
	return &stepper{t: t, status: domain.RobotStatus{Energy: 100, X: 400, Y: 300}}
}

func (s *stepper) tick(_ context.Context, req []byte) ([]byte, error) {
	cmd, err := domain.UnmarshalAs[*domain.ExecCommands](req)
	if err != nil {
		s.t.Errorf("engine could not decode commands: %v", err)
		return nil, err
	}
	// stepが書き換える前の送信内容を残す
	sent := *cmd
	s.seen = append(s.seen, &sent)
	s.status.Time++
	res := &domain.ExecResults{Commands: cmd}
	if s.step != nil {
		s.step(cmd, res)
	}
	st := s.status
	res.Status = &st
	return marshal(s.t, res), nil
}

func marshal(t *testing.T, v domain.Serializable) []byte {
	t.Helper()
	out, err := domain.Marshal(make([]byte, 0, 64*1024), domain.LittleEndian, v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	return out
}

func newTestProxy(t *testing.T, eng domain.Engine, r Robot, opts Options) *Proxy {
	t.Helper()
	opts.Logger = discard
	p, err := New(eng, r, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

// withStatus はエンジンの状態を手元にも反映した状態で始める
func withStatus(p *Proxy, st domain.RobotStatus) {
	p.status.Store(&st)
}

func TestNewRequiresEngineAndRobot(t *testing.T) {
	if _, err := New(nil, &stubRobot{}, Options{}); !errors.Is(err, ErrInitializationFailed) {
		t.Errorf("nil engine: got %v, want ErrInitializationFailed", err)
	}
	ctrl := gomock.NewController(t)
	if _, err := New(mocks.NewMockEngine(ctrl), nil, Options{}); !errors.Is(err, ErrInitializationFailed) {
		t.Errorf("nil robot: got %v, want ErrInitializationFailed", err)
	}
}

func TestCallBudget(t *testing.T) {
	const limit = 5

	t.Run("K calls are allowed and the next one disables", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		p := newTestProxy(t, mocks.NewMockEngine(ctrl), &stubRobot{}, Options{MaxCalls: limit})
		withStatus(p, domain.RobotStatus{Energy: 50})

		for i := 0; i < limit; i++ {
			p.SetScan()
		}
		if p.IsDisabled() {
			t.Fatalf("disabled after %d calls, want still enabled", limit)
		}

		var got any
		func() {
			defer func() { got = recover() }()
			p.SetScan()
		}()
		var de *DisabledError
		err, _ := got.(error)
		if !errors.As(err, &de) {
			t.Fatalf("got panic %v, want *DisabledError", got)
		}
		if de.Counter != "set" || de.Calls != limit+1 {
			t.Errorf("got %s/%d, want set/%d", de.Counter, de.Calls, limit+1)
		}
		if !errors.Is(err, ErrDisabled) {
			t.Errorf("DisabledError does not match ErrDisabled")
		}
		if !p.IsDisabled() {
			t.Errorf("proxy not disabled")
		}
		if e := p.status.Load().Energy; e != 0 {
			t.Errorf("energy after disable: got %v, want 0", e)
		}
		if err := p.Execute(); !errors.Is(err, ErrDisabled) {
			t.Errorf("Execute after disable: got %v, want ErrDisabled", err)
		}
	})

	t.Run("getters have their own counter", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		p := newTestProxy(t, mocks.NewMockEngine(ctrl), &stubRobot{}, Options{MaxCalls: limit})
		for i := 0; i < limit; i++ {
			p.SetScan()
			_ = p.X()
		}
		if p.IsDisabled() {
			t.Fatalf("disabled with %d sets and %d gets", limit, limit)
		}
	})

	t.Run("a tick resets the counters", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		eng := mocks.NewMockEngine(ctrl)
		s := newStepper(t)
		eng.EXPECT().ExecuteTick(gomock.Any(), gomock.Any()).DoAndReturn(s.tick).Times(1)
		p := newTestProxy(t, eng, &stubRobot{}, Options{MaxCalls: limit})

		for i := 0; i < limit; i++ {
			p.SetScan()
		}
		if err := p.Execute(); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if got := p.budget.sets.Load(); got != 0 {
			t.Fatalf("sets after tick: got %d, want 0", got)
		}
		for i := 0; i < limit; i++ {
			p.SetScan()
		}
		if p.IsDisabled() {
			t.Errorf("disabled although a tick reset the budget")
		}
	})
}

func TestMoveTicksUntilDone(t *testing.T) {
	tests := []struct {
		name      string
		distance  float64
		wantTicks int
	}{
		{name: "move 100", distance: 100, wantTicks: 13},
		{name: "move back", distance: -20, wantTicks: 3},
		{name: "move 0 still ticks once", distance: 0, wantTicks: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			eng := mocks.NewMockEngine(ctrl)
			s := newStepper(t)
			s.step = func(cmd *domain.ExecCommands, _ *domain.ExecResults) {
				d := cmd.DistanceRemaining
				step := math.Min(math.Abs(d), domain.MaxVelocity)
				cmd.DistanceRemaining = d - math.Copysign(step, d)
			}
			eng.EXPECT().ExecuteTick(gomock.Any(), gomock.Any()).DoAndReturn(s.tick).AnyTimes()

			p := newTestProxy(t, eng, &stubRobot{}, Options{})
			withStatus(p, s.status)

			if err := p.Move(tt.distance); err != nil {
				t.Fatalf("Move failed: %v", err)
			}
			if len(s.seen) != tt.wantTicks {
				t.Errorf("ticks: got %d, want %d", len(s.seen), tt.wantTicks)
			}
			if got := p.DistanceRemaining(); got != 0 {
				t.Errorf("distance remaining: got %v, want 0", got)
			}
			if !s.seen[0].Moved || s.seen[0].DistanceRemaining != tt.distance {
				t.Errorf("first command: got moved=%v distance=%v, want true/%v",
					s.seen[0].Moved, s.seen[0].DistanceRemaining, tt.distance)
			}
		})
	}
}

func TestSetMoveWithoutEnergy(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := newTestProxy(t, mocks.NewMockEngine(ctrl), &stubRobot{}, Options{})
	withStatus(p, domain.RobotStatus{Energy: 0})

	p.SetMove(50)
	p.SetTurnBody(1)
	if p.commands.DistanceRemaining != 0 || p.commands.Moved {
		t.Errorf("SetMove with no energy changed commands")
	}
	if p.commands.BodyTurnRemaining != 0 {
		t.Errorf("SetTurnBody with no energy changed commands")
	}
}

type bulletWatcher struct {
	stubRobot
	missed []*domain.Bullet
}

func (r *bulletWatcher) OnBulletMissed(e *domain.BulletMissedEvent) error {
	r.missed = append(r.missed, e.Bullet)
	return nil
}

func TestFireAndBulletIdentity(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)
	s := newStepper(t)
	s.status.Energy = 10
	eng.EXPECT().ExecuteTick(gomock.Any(), gomock.Any()).DoAndReturn(s.tick).AnyTimes()

	r := &bulletWatcher{}
	p := newTestProxy(t, eng, r, Options{})
	withStatus(p, s.status)

	b := p.SetFire(3.0)
	if b == nil {
		t.Fatal("SetFire returned nil")
	}
	if b.Power() != 3.0 {
		t.Errorf("power: got %v, want 3", b.Power())
	}
	if got := p.Energy(); got != 7 {
		t.Errorf("energy: got %v, want 7", got)
	}
	if got, want := p.GunHeat(), domain.GunHeat(3.0); got != want {
		t.Errorf("gun heat: got %v, want %v", got, want)
	}
	if len(p.commands.Bullets) != 1 || p.commands.Bullets[0].BulletID != b.ID() {
		t.Fatalf("queued bullets: got %+v, want one with id %d", p.commands.Bullets, b.ID())
	}
	if p.SetFire(1) != nil {
		t.Errorf("second SetFire in the same tick fired with a hot gun")
	}

	s.step = func(cmd *domain.ExecCommands, res *domain.ExecResults) {
		if len(cmd.Bullets) == 1 {
			res.BulletUpdates = []domain.BulletStatus{{BulletID: cmd.Bullets[0].BulletID, X: 410, Y: 320, IsActive: true}}
		}
	}
	if err := p.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if b.X() != 410 || b.Y() != 320 || !b.IsActive() {
		t.Errorf("bullet after update: got (%v,%v,%v), want (410,320,true)", b.X(), b.Y(), b.IsActive())
	}
	if live, ok := p.bullets.load(b.ID()); !ok || live != b {
		t.Errorf("live table does not hold the fired handle")
	}
	if p.firedEnergy != 0 || p.firedHeat != 0 {
		t.Errorf("fire accumulators not cleared: %v/%v", p.firedEnergy, p.firedHeat)
	}

	s.step = func(_ *domain.ExecCommands, res *domain.ExecResults) {
		snap := domain.NewBullet(b.ID(), b.Heading(), 0, 320, 3, "stub", "", false)
		res.Events = []domain.Event{&domain.BulletMissedEvent{
			EventHeader: domain.EventHeader{Time: s.status.Time},
			Bullet:      snap,
		}}
		res.BulletUpdates = []domain.BulletStatus{{BulletID: b.ID(), X: 0, Y: 320, IsActive: false}}
	}
	if err := p.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(r.missed) != 1 || r.missed[0] != b {
		t.Fatalf("BulletMissed handler did not receive the fired handle")
	}
	if b.IsActive() || b.X() != 0 {
		t.Errorf("bullet after miss: got active=%v x=%v, want false/0", b.IsActive(), b.X())
	}
	if p.bullets.len() != 0 {
		t.Errorf("inactive bullet still tracked")
	}
}

func TestSetFireRejects(t *testing.T) {
	tests := []struct {
		name   string
		status domain.RobotStatus
		power  float64
	}{
		{name: "hot gun", status: domain.RobotStatus{Energy: 50, GunHeat: 0.5}, power: 1},
		{name: "no energy", status: domain.RobotStatus{Energy: 0}, power: 1},
		{name: "NaN", status: domain.RobotStatus{Energy: 50}, power: math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			p := newTestProxy(t, mocks.NewMockEngine(ctrl), &stubRobot{}, Options{})
			withStatus(p, tt.status)
			if b := p.SetFire(tt.power); b != nil {
				t.Errorf("got bullet %d, want nil", b.ID())
			}
			if len(p.commands.Bullets) != 0 {
				t.Errorf("bullet command queued")
			}
		})
	}
}

func TestSetFireClampsPower(t *testing.T) {
	tests := []struct {
		name   string
		energy float64
		power  float64
		want   float64
	}{
		{name: "below minimum", energy: 50, power: 0.01, want: domain.MinBulletPower},
		{name: "above maximum", energy: 50, power: 10, want: domain.MaxBulletPower},
		{name: "limited by energy", energy: 2, power: 3, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			p := newTestProxy(t, mocks.NewMockEngine(ctrl), &stubRobot{}, Options{})
			withStatus(p, domain.RobotStatus{Energy: tt.energy})
			b := p.SetFire(tt.power)
			if b == nil {
				t.Fatal("SetFire returned nil")
			}
			if b.Power() != tt.want {
				t.Errorf("got %v, want %v", b.Power(), tt.want)
			}
		})
	}
}

func TestFireAssist(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := newTestProxy(t, mocks.NewMockEngine(ctrl), &stubRobot{}, Options{})
	st := domain.RobotStatus{Energy: 50, BodyHeading: 1, GunHeading: 2, RadarHeading: 2, Time: 7}
	withStatus(p, st)

	var cmd domain.BulletCommand
	p.events.Handle(domain.KindScannedRobot, func(domain.Event) error {
		p.SetFire(1)
		cmd = p.commands.Bullets[0]
		return nil
	})
	p.events.Add(&domain.ScannedRobotEvent{EventHeader: domain.EventHeader{Time: 7}, Bearing: 0.5})
	if err := p.events.ProcessEvents(); err != nil {
		t.Fatalf("ProcessEvents failed: %v", err)
	}
	if !cmd.FireAssistValid || cmd.FireAssistAngle != 1.5 {
		t.Errorf("got valid=%v angle=%v, want true/1.5", cmd.FireAssistValid, cmd.FireAssistAngle)
	}
}

func TestStopResume(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := newTestProxy(t, mocks.NewMockEngine(ctrl), &stubRobot{}, Options{})
	withStatus(p, domain.RobotStatus{Energy: 50})

	p.SetMove(50)
	p.SetTurnGun(1)
	p.SetStop(false)
	if !p.idle() {
		t.Fatalf("remaining not zeroed after SetStop")
	}

	p.SetMove(30)
	p.SetStop(false)
	p.SetResume()
	if got := p.commands.DistanceRemaining; got != 50 {
		t.Errorf("distance after resume: got %v, want 50 (first stop keeps its save)", got)
	}
	if got := p.commands.GunTurnRemaining; got != 1 {
		t.Errorf("gun turn after resume: got %v, want 1", got)
	}

	p.SetMove(30)
	p.SetStop(false)
	p.SetMove(20)
	p.SetStop(true)
	p.SetResume()
	if got := p.commands.DistanceRemaining; got != 20 {
		t.Errorf("distance after overwrite: got %v, want 20", got)
	}

	p.SetMove(5)
	p.SetResume()
	if got := p.commands.DistanceRemaining; got != 5 {
		t.Errorf("redundant resume changed distance: got %v, want 5", got)
	}
}

func TestAdjustRadarFlags(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := newTestProxy(t, mocks.NewMockEngine(ctrl), &stubRobot{}, Options{})

	p.SetAdjustRadarForGunTurn(true)
	if !p.commands.IsAdjustRadarForBodyTurn {
		t.Errorf("radar for gun turn did not imply radar for body turn")
	}
	p.SetAdjustRadarForBodyTurn(false)
	p.SetAdjustRadarForGunTurn(true)
	if p.commands.IsAdjustRadarForBodyTurn {
		t.Errorf("explicit radar for body turn was overwritten")
	}
}

func TestMaxCaps(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := newTestProxy(t, mocks.NewMockEngine(ctrl), &stubRobot{}, Options{})

	p.SetMaxVelocity(-5)
	if got := p.commands.MaxVelocity; got != 5 {
		t.Errorf("max velocity: got %v, want 5", got)
	}
	p.SetMaxVelocity(20)
	if got := p.commands.MaxVelocity; got != domain.MaxVelocity {
		t.Errorf("max velocity: got %v, want %v", got, domain.MaxVelocity)
	}
	p.SetMaxVelocity(math.NaN())
	if got := p.commands.MaxVelocity; got != domain.MaxVelocity {
		t.Errorf("NaN changed max velocity to %v", got)
	}
	p.SetMaxTurnRate(1)
	if got := p.commands.MaxTurnRate; got != domain.MaxTurnRate {
		t.Errorf("max turn rate: got %v, want %v", got, domain.MaxTurnRate)
	}
}

func TestHaltAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)
	s := newStepper(t)
	s.step = func(_ *domain.ExecCommands, res *domain.ExecResults) { res.Halt = true }
	eng.EXPECT().ExecuteTick(gomock.Any(), gomock.Any()).DoAndReturn(s.tick).Times(1)

	p := newTestProxy(t, eng, &stubRobot{}, Options{})
	if err := p.Execute(); !errors.Is(err, ErrAbort) {
		t.Fatalf("got %v, want ErrAbort", err)
	}
	if err := p.Execute(); !errors.Is(err, ErrAbort) {
		t.Errorf("second Execute: got %v, want ErrAbort", err)
	}
}

func TestExchangeFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply []byte
		err   error
		want  error
	}{
		{name: "engine error", err: errors.New("boom"), want: ErrExchangeFailed},
		{name: "corrupt reply", reply: []byte{0, 1, 2}, want: domain.ErrProtocolCorruption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			eng := mocks.NewMockEngine(ctrl)
			eng.EXPECT().ExecuteTick(gomock.Any(), gomock.Any()).Return(tt.reply, tt.err)

			p := newTestProxy(t, eng, &stubRobot{}, Options{})
			err := p.Execute()
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if !isHardFailure(err) {
				t.Errorf("%v is not a hard failure", err)
			}
		})
	}
}

func TestConsoleFlushedPerTick(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)
	s := newStepper(t)
	eng.EXPECT().ExecuteTick(gomock.Any(), gomock.Any()).DoAndReturn(s.tick).Times(2)

	p := newTestProxy(t, eng, &stubRobot{}, Options{})
	p.Printf("turn %d\n", 1)
	for range 2 {
		if err := p.Execute(); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
	}
	if got := s.seen[0].OutputText; got != "turn 1\n" {
		t.Errorf("first tick output: got %q, want %q", got, "turn 1\n")
	}
	if got := s.seen[1].OutputText; got != "" {
		t.Errorf("second tick output: got %q, want empty", got)
	}
}

type painter struct {
	stubRobot
	painted int
}

func (r *painter) OnPaint(g *graphics.Buffer) error {
	r.painted++
	g.SetColor(0xFFFF0000)
	g.DrawLine(0, 0, 10, 10)
	return nil
}

func TestGraphicsFlushedWhenPaintEnabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)
	s := newStepper(t)
	s.step = func(_ *domain.ExecCommands, res *domain.ExecResults) { res.PaintEnabled = true }
	eng.EXPECT().ExecuteTick(gomock.Any(), gomock.Any()).DoAndReturn(s.tick).Times(2)

	r := &painter{}
	p := newTestProxy(t, eng, r, Options{})
	for range 2 {
		if err := p.Execute(); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
	}
	if r.painted != 2 {
		t.Errorf("paint handler calls: got %d, want 2", r.painted)
	}
	if s.seen[0].GraphicsCalls != nil {
		t.Errorf("graphics sent before painting was enabled")
	}
	calls, err := graphics.Decode(s.seen[1].GraphicsCalls)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(calls) != 2 || calls[0].Op != graphics.OpSetColor || calls[1].Op != graphics.OpDrawLine {
		t.Errorf("got %+v, want SET_COLOR then DRAW_LINE", calls)
	}
}

type messenger struct {
	stubRobot
	got []*domain.MessageEvent
}

func (r *messenger) OnMessage(e *domain.MessageEvent) error {
	r.got = append(r.got, e)
	return nil
}

func TestTeamMessaging(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)
	s := newStepper(t)
	eng.EXPECT().ExecuteTick(gomock.Any(), gomock.Any()).DoAndReturn(s.tick).AnyTimes()

	r := &messenger{stubRobot: stubRobot{statics: domain.RobotStatics{Name: "alpha"}}}
	p := newTestProxy(t, eng, r, Options{})

	if err := p.SendMessage("beta", []byte("hi")); !errors.Is(err, ErrNotTeamRobot) {
		t.Errorf("non team robot: got %v, want ErrNotTeamRobot", err)
	}

	p.statics.IsTeamRobot = true
	p.statics.Teammates = []string{"alpha", "beta"}
	if err := p.SendMessage("beta", make([]byte, MaxTeamMessageSize+1)); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("oversized: got %v, want ErrMessageTooLarge", err)
	}
	if err := p.BroadcastMessage([]byte("go")); err != nil {
		t.Fatalf("BroadcastMessage failed: %v", err)
	}
	if !p.IsTeammate("beta") || p.IsTeammate("gamma") {
		t.Errorf("IsTeammate does not follow statics")
	}

	s.step = func(_ *domain.ExecCommands, res *domain.ExecResults) {
		res.TeamMessages = []domain.TeamMessage{{Sender: "beta", Recipient: "alpha", Message: []byte("ack")}}
	}
	if err := p.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	sent := s.seen[0].TeamMessages
	if len(sent) != 1 || sent[0].Sender != "alpha" || sent[0].Recipient != "" {
		t.Errorf("sent: got %+v, want one broadcast from alpha", sent)
	}
	if len(r.got) != 1 || r.got[0].Sender != "beta" || string(r.got[0].Message) != "ack" {
		t.Errorf("received: got %+v, want one message from beta", r.got)
	}
}

type winner struct {
	stubRobot
	won, ended int
}

func (r *winner) OnWin(*domain.WinEvent) error { r.won++; return nil }

func (r *winner) OnRoundEnded(*domain.RoundEndedEvent) error { r.ended++; return nil }

func TestRunWinThenBattleOver(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)
	s := newStepper(t)

	statics := domain.RobotStatics{Name: "winner", NumRounds: 1, BattlefieldWidth: 800, BattlefieldHeight: 600}
	round := marshal(t, &domain.RoundStart{Statics: statics, Status: s.status})
	over := marshal(t, &domain.RoundStart{BattleOver: true})

	s.step = func(_ *domain.ExecCommands, res *domain.ExecResults) {
		if s.status.Time == 3 {
			res.Events = []domain.Event{&domain.WinEvent{EventHeader: domain.EventHeader{Time: 3}}}
		}
	}
	var waits int
	wait := func(_ context.Context, req []byte) ([]byte, error) {
		waits++
		res := &domain.ExecResults{ShouldWait: waits < 2, Status: &s.status}
		if waits == 2 {
			res.Events = []domain.Event{&domain.RoundEndedEvent{EventHeader: domain.EventHeader{Time: s.status.Time}, Round: 0, Turns: 3}}
		}
		return marshal(t, res), nil
	}

	gomock.InOrder(
		eng.EXPECT().StartRound(gomock.Any(), gomock.Any()).Return(round, nil),
		eng.EXPECT().ExecuteTick(gomock.Any(), gomock.Any()).DoAndReturn(s.tick).Times(3),
		eng.EXPECT().WaitForBattleEnd(gomock.Any(), gomock.Any()).DoAndReturn(wait).Times(2),
		eng.EXPECT().StartRound(gomock.Any(), gomock.Any()).Return(over, nil),
	)

	r := &winner{stubRobot: stubRobot{statics: domain.RobotStatics{Name: "winner"}}}
	r.run = func(p *Proxy) error {
		for {
			if err := p.Ahead(100); err != nil {
				return err
			}
		}
	}
	p := newTestProxy(t, eng, r, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if r.won != 1 || r.ended != 1 {
		t.Errorf("got won=%d ended=%d, want 1/1", r.won, r.ended)
	}
	if p.statics.BattlefieldWidth != 800 {
		t.Errorf("statics from engine not applied: %+v", p.statics)
	}
}

func TestRunDisablesRunawayRobot(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)
	s := newStepper(t)

	round := marshal(t, &domain.RoundStart{Statics: domain.RobotStatics{Name: "spinner"}, Status: s.status})
	over := marshal(t, &domain.RoundStart{BattleOver: true})

	var drained []*domain.ExecCommands
	wait := func(_ context.Context, req []byte) ([]byte, error) {
		cmd, err := domain.UnmarshalAs[*domain.ExecCommands](req)
		if err != nil {
			return nil, err
		}
		drained = append(drained, cmd)
		return marshal(t, &domain.ExecResults{Status: &s.status}), nil
	}
	gomock.InOrder(
		eng.EXPECT().StartRound(gomock.Any(), gomock.Any()).Return(round, nil),
		eng.EXPECT().WaitForBattleEnd(gomock.Any(), gomock.Any()).DoAndReturn(wait),
		eng.EXPECT().StartRound(gomock.Any(), gomock.Any()).Return(over, nil),
	)

	r := &stubRobot{statics: domain.RobotStatics{Name: "spinner"}}
	r.run = func(p *Proxy) error {
		for {
			_ = p.Energy()
		}
	}
	p := newTestProxy(t, eng, r, Options{MaxCalls: 100})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !p.IsDisabled() {
		t.Errorf("runaway robot not disabled")
	}
	if len(drained) != 1 {
		t.Errorf("wait exchanges: got %d, want 1", len(drained))
	}
	if e := p.status.Load().Energy; e != 0 {
		t.Errorf("energy: got %v, want 0", e)
	}
}

func TestRunPanickingRobotIsDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)
	s := newStepper(t)
	round := marshal(t, &domain.RoundStart{Status: s.status})
	over := marshal(t, &domain.RoundStart{BattleOver: true})
	gomock.InOrder(
		eng.EXPECT().StartRound(gomock.Any(), gomock.Any()).Return(round, nil),
		eng.EXPECT().WaitForBattleEnd(gomock.Any(), gomock.Any()).Return(marshal(t, &domain.ExecResults{Status: &s.status}), nil),
		eng.EXPECT().StartRound(gomock.Any(), gomock.Any()).Return(over, nil),
	)

	r := &stubRobot{run: func(*Proxy) error { panic("bug") }}
	p := newTestProxy(t, eng, r, Options{})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !p.IsDisabled() {
		t.Errorf("panicking robot not disabled")
	}
}

type roundWatcher struct {
	stubRobot
	ended []*domain.RoundEndedEvent
	hits  int
}

func (r *roundWatcher) OnRoundEnded(e *domain.RoundEndedEvent) error {
	r.ended = append(r.ended, e)
	return nil
}

func (r *roundWatcher) OnHitWall(*domain.HitWallEvent) error {
	r.hits++
	return nil
}

func TestRunHaltEndsRound(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)
	s := newStepper(t)
	s.step = func(_ *domain.ExecCommands, res *domain.ExecResults) {
		res.Halt = true
		res.Events = []domain.Event{
			&domain.HitWallEvent{EventHeader: domain.EventHeader{Time: s.status.Time}},
			&domain.RoundEndedEvent{EventHeader: domain.EventHeader{Time: s.status.Time}, Turns: 1},
		}
	}
	round := marshal(t, &domain.RoundStart{Status: s.status})
	over := marshal(t, &domain.RoundStart{BattleOver: true})
	halted := marshal(t, &domain.ExecResults{Halt: true, ShouldWait: true, Status: &s.status})
	gomock.InOrder(
		eng.EXPECT().StartRound(gomock.Any(), gomock.Any()).Return(round, nil),
		eng.EXPECT().ExecuteTick(gomock.Any(), gomock.Any()).DoAndReturn(s.tick),
		eng.EXPECT().WaitForBattleEnd(gomock.Any(), gomock.Any()).Return(halted, nil),
		eng.EXPECT().StartRound(gomock.Any(), gomock.Any()).Return(over, nil),
	)

	r := &roundWatcher{}
	p := newTestProxy(t, eng, r, Options{})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(r.ended) != 1 {
		t.Errorf("RoundEnded deliveries: got %d, want 1", len(r.ended))
	}
	if r.hits != 0 {
		t.Errorf("non reserved event delivered after halt")
	}
	if p.IsDisabled() {
		t.Errorf("halted robot was disabled")
	}
}

func TestAuxiliaryGoroutineBudget(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := newTestProxy(t, mocks.NewMockEngine(ctrl), &stubRobot{}, Options{MaxCalls: 10})

	p.Go(func() {
		for {
			_ = p.X()
		}
	})
	deadline := time.Now().Add(2 * time.Second)
	for !p.IsDisabled() {
		if time.Now().After(deadline) {
			t.Fatal("auxiliary goroutine did not trip the budget")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRecorderReceivesExchanges(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)
	rec := mocks.NewMockRecorder(ctrl)
	s := newStepper(t)
	eng.EXPECT().ExecuteTick(gomock.Any(), gomock.Any()).DoAndReturn(s.tick)

	p := newTestProxy(t, eng, &stubRobot{}, Options{Recorder: rec})
	rec.EXPECT().RecordExchange(p.Session(), domain.ExchangeTick, gomock.Any(), gomock.Any()).
		Return(errors.New("disk full"))

	if err := p.Execute(); err != nil {
		t.Fatalf("recorder failure must not fail the tick: %v", err)
	}
}
