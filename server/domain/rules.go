package domain

import "math"

// 戦闘ルール定数
const (
	Acceleration          = 1.0
	Deceleration          = 2.0
	MaxVelocity           = 8.0
	RadarScanRadius       = 1200.0
	MinBulletPower        = 0.1
	MaxBulletPower        = 3.0
	RobotHitDamage        = 0.6
	RobotHitBonus         = 1.2
	RobotWidth            = 36.0
	DefaultGunCoolingRate = 0.1
)

var (
	MaxTurnRate   = toRadians(10)
	GunTurnRate   = toRadians(20)
	RadarTurnRate = toRadians(45)
)

// デフォルト色 (ARGB)
const (
	DefaultBodyColor   uint32 = 0xFF29298C
	DefaultGunColor    uint32 = 0xFF29298C
	DefaultRadarColor  uint32 = 0xFF29298C
	DefaultScanColor   uint32 = 0xFF0000FF
	DefaultBulletColor uint32 = 0xFFFFFFFF
)

// Colors はロボットの5色
type Colors struct {
	Body, Gun, Radar, Scan, Bullet uint32
}

func DefaultColors() Colors {
	return Colors{
		Body:   DefaultBodyColor,
		Gun:    DefaultGunColor,
		Radar:  DefaultRadarColor,
		Scan:   DefaultScanColor,
		Bullet: DefaultBulletColor,
	}
}

// TurnRate は速度に応じた車体の旋回上限 (rad/turn)
func TurnRate(velocity float64) float64 {
	return toRadians(10 - 0.75*math.Abs(velocity))
}

// GunHeat は発射時に加算される砲身の熱
func GunHeat(power float64) float64 {
	return 1 + power/5
}

func BulletSpeed(power float64) float64 {
	return 20 - 3*power
}

func BulletDamage(power float64) float64 {
	damage := 4 * power
	if power > 1 {
		damage += 2 * (power - 1)
	}
	return damage
}

// BulletHitBonus は命中時に撃った側が回復するエネルギー
func BulletHitBonus(power float64) float64 {
	return 3 * power
}

// WallHitDamage は壁衝突時のダメージ
func WallHitDamage(velocity float64) float64 {
	return math.Max(math.Abs(velocity)/2-1, 0)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
