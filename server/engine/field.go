package engine

import (
	"math"
	"math/rand/v2"

	"robohost/server/domain"
	"robohost/utils"
)

// robotHalf はロボットの当たり判定(正方形)の半辺
const robotHalf = domain.RobotWidth / 2

const (
	initialEnergy  = 100.0
	initialGunHeat = 3.0
	spawnAttempts  = 100
)

// robot はフィールド上のロボット1体の状態です。
// ループgoroutineだけが読み書きします。
type robot struct {
	seat    *Seat
	statics domain.RobotStatics
	named   bool

	status   domain.RobotStatus
	commands *domain.ExecCommands
	pending  *request

	inRound  bool
	alive    bool
	disabled bool
	halted   bool
	gone     bool

	// そのターンの一時状態
	damaged bool
	killer  *robot
	rammed  bool
	prevX   float64
	prevY   float64

	radarFrom  float64
	radarSweep float64

	events   []domain.Event
	messages []domain.TeamMessage
	updates  []domain.BulletStatus

	dealt map[*robot]float64
	score score
}

func (r *robot) name() string { return r.statics.Name }

// damage はエネルギーを減らし、死亡判定の対象にする
func (r *robot) damage(amount float64) {
	r.status.Energy -= amount
	r.damaged = true
}

func (r *robot) push(ev domain.Event) {
	r.events = append(r.events, ev)
}

// field はバトルフィールドの寸法を持ち、配置と壁判定を扱います。
type field struct {
	width  float64
	height float64
}

// spawn はロボットを他のロボットと重ならない位置にランダムに配置します。
// 空きが見つからなければ最後に引いた位置を使います。
func (f field) spawn(rng *rand.Rand, r *robot, placed []*robot) {
	var x, y float64
	for range spawnAttempts {
		x = robotHalf + rng.Float64()*(f.width-2*robotHalf)
		y = robotHalf + rng.Float64()*(f.height-2*robotHalf)
		if !overlapsAny(x, y, placed) {
			break
		}
	}
	heading := rng.Float64() * 2 * math.Pi
	r.status.X = x
	r.status.Y = y
	r.status.BodyHeading = heading
	r.status.GunHeading = heading
	r.status.RadarHeading = heading
}

func overlapsAny(x, y float64, placed []*robot) bool {
	for _, o := range placed {
		if overlaps(x, y, o.status.X, o.status.Y) {
			return true
		}
	}
	return false
}

func overlaps(x1, y1, x2, y2 float64) bool {
	return math.Abs(x1-x2) < domain.RobotWidth && math.Abs(y1-y2) < domain.RobotWidth
}

// clampWall はロボットを壁の内側に収めます。
// はみ出していた場合は壁の絶対角度とtrueを返します。
func (f field) clampWall(r *robot) (float64, bool) {
	st := &r.status
	var angle float64
	hit := false
	switch {
	case st.X < robotHalf:
		angle, hit = 3*math.Pi/2, true
	case st.X > f.width-robotHalf:
		angle, hit = math.Pi/2, true
	}
	switch {
	case st.Y < robotHalf:
		angle, hit = math.Pi, true
	case st.Y > f.height-robotHalf:
		angle, hit = 0, true
	}
	st.X = utils.Clamp(st.X, robotHalf, f.width-robotHalf)
	st.Y = utils.Clamp(st.Y, robotHalf, f.height-robotHalf)
	return angle, hit
}

// contains は点がフィールド内にあるかを返す
func (f field) contains(x, y float64) bool {
	return x >= 0 && x <= f.width && y >= 0 && y <= f.height
}

// bearingTo は(x, y)から見た(tx, ty)の絶対角度
func bearingTo(x, y, tx, ty float64) float64 {
	return utils.NormalAbsoluteAngle(math.Atan2(tx-x, ty-y))
}
