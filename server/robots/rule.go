package robots

import (
	"math"
	"math/rand/v2"

	"robohost/server/domain"
	"robohost/server/graphics"
	"robohost/server/proxy"
	"robohost/utils"
)

const (
	noiseAngle    = 0.52 // ±30度
	rushChance    = 0.02 // 毎ターン2%の確率で突撃
	targetTimeout = 4    // この間スキャンがなければ見失ったとみなす
	strafeStep    = 60.0
	aimTolerance  = 0.1
)

// RuleBot はルールベースのAdvancedRobotです。
// ロボットごとに異なる間合いとストレイフ方向を持ちます。
// TeamNameを持つ場合は見つけた相手をチームメイトに知らせ、味方は撃ちません。
type RuleBot struct {
	Tally

	Name     string
	TeamName string

	CloseRange float64 // 後退を始める距離
	MidRange   float64 // ストレイフを始める距離
	StrafeSign float64 // +1: 時計回り, -1: 反時計回り

	rng    *rand.Rand
	api    *proxy.Proxy
	target *domain.ScannedRobotEvent
	hint   string
}

// NewRuleBot はrngから個性を引いたボットを生成します。
func NewRuleBot(name, team string, rng *rand.Rand) *RuleBot {
	sign := 1.0
	if rng.Float64() < 0.5 {
		sign = -1.0
	}
	return &RuleBot{
		Name:       name,
		TeamName:   team,
		CloseRange: 100 + rng.Float64()*100, // 100〜200
		MidRange:   250 + rng.Float64()*200, // 250〜450
		StrafeSign: sign,
		rng:        rng,
	}
}

func (b *RuleBot) Statics() domain.RobotStatics {
	return domain.RobotStatics{
		Name:            b.Name,
		ShortName:       "rule",
		TeamName:        b.TeamName,
		IsAdvancedRobot: true,
		IsTeamRobot:     b.TeamName != "",
		IsPaintRobot:    true,
	}
}

func (b *RuleBot) Run(api *proxy.Proxy) error {
	b.api = api
	b.target = nil
	api.SetAdjustGunForBodyTurn(true)
	api.SetAdjustRadarForGunTurn(true)
	api.SetBodyColor(0xFF3C6E47)

	for {
		if b.lost() {
			api.SetTurnRadar(2 * math.Pi)
		} else {
			b.decide()
		}
		if err := api.Execute(); err != nil {
			return err
		}
	}
}

func (b *RuleBot) lost() bool {
	return b.target == nil || b.api.Time()-b.target.Time > targetTimeout
}

// decide は間合いに応じて近づく・回り込む・下がるを選び、砲塔を向けて撃つ
func (b *RuleBot) decide() {
	api := b.api
	t := b.target
	absolute := api.Heading() + t.Bearing

	var dir, dist float64
	switch {
	case b.rng.Float64() < rushChance:
		dir, dist = t.Bearing, t.Distance/2
	case t.Distance < b.CloseRange:
		dir, dist = t.Bearing, -strafeStep
	case t.Distance < b.MidRange:
		dir, dist = t.Bearing+b.StrafeSign*math.Pi/2, strafeStep
	default:
		dir, dist = t.Bearing, t.Distance-b.MidRange/2
	}
	api.SetTurnBody(utils.NormalRelativeAngle(dir + b.noise()))
	api.SetMove(dist)

	aim := utils.NormalRelativeAngle(absolute - api.GunHeading())
	api.SetTurnGun(aim)
	if math.Abs(aim) < aimTolerance && api.GunHeat() == 0 {
		api.SetFire(firePower(t.Distance))
	}
}

// noise は移動方向に ±30度 のランダムノイズを加えます。
func (b *RuleBot) noise() float64 {
	return (b.rng.Float64()*2 - 1) * noiseAngle
}

// OnScannedRobot は最寄りの敵を狙い続け、レーダーをその方向に固定する
func (b *RuleBot) OnScannedRobot(e *domain.ScannedRobotEvent) error {
	if b.api == nil || b.api.IsTeammate(e.Name) {
		return nil
	}
	if !b.lost() && b.target.Name != e.Name && e.Name != b.hint && e.Distance > b.target.Distance {
		return nil
	}
	b.target = e

	absolute := b.api.Heading() + e.Bearing
	b.api.SetTurnRadar(2 * utils.NormalRelativeAngle(absolute-b.api.RadarHeading()))

	if b.TeamName != "" {
		return b.api.BroadcastMessage([]byte(e.Name))
	}
	return nil
}

// OnMessage はチームメイトが見つけた相手を優先目標として覚える
func (b *RuleBot) OnMessage(e *domain.MessageEvent) error {
	b.hint = string(e.Message)
	return nil
}

func (b *RuleBot) OnHitByBullet(*domain.HitByBulletEvent) error {
	b.StrafeSign = -b.StrafeSign
	return nil
}

func (b *RuleBot) OnHitWall(*domain.HitWallEvent) error {
	b.StrafeSign = -b.StrafeSign
	return nil
}

func (b *RuleBot) OnRobotDeath(e *domain.RobotDeathEvent) error {
	if b.target != nil && b.target.Name == e.Name {
		b.target = nil
	}
	if b.hint == e.Name {
		b.hint = ""
	}
	return nil
}

// OnPaint は目標への照準線を描く
func (b *RuleBot) OnPaint(g *graphics.Buffer) error {
	if b.lost() {
		return nil
	}
	absolute := b.api.Heading() + b.target.Bearing
	x, y := b.api.X(), b.api.Y()
	tx := x + math.Sin(absolute)*b.target.Distance
	ty := y + math.Cos(absolute)*b.target.Distance
	g.SetColor(0xFFFF0000)
	g.DrawLine(int32(x), int32(y), int32(tx), int32(ty))
	return nil
}
