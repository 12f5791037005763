package engine

import (
	"math"

	"robohost/server/domain"
	"robohost/utils"
)

// inactivityDamage は無交戦が続いたときに毎ターン全員が失うエネルギー
const inactivityDamage = 0.1

func relativeBearing(absolute, heading float64) float64 {
	return utils.NormalRelativeAngle(absolute - heading)
}

// cool は砲身を冷やす
func (a *Arena) cool(r *robot) {
	r.status.GunHeat = math.Max(0, r.status.GunHeat-a.cfg.GunCoolingRate)
}

// turn は車体・砲塔・レーダーを1ターン分回します。
// 砲塔は調整フラグがなければ車体の回転に、レーダーは砲塔と車体の回転に追従します。
func (a *Arena) turn(r *robot) {
	c := r.commands
	st := &r.status

	limit := math.Min(domain.TurnRate(st.Velocity), math.Abs(c.MaxTurnRate))
	body := utils.Clamp(c.BodyTurnRemaining, -limit, limit)
	c.BodyTurnRemaining -= body
	st.BodyHeading = utils.NormalAbsoluteAngle(st.BodyHeading + body)

	gun := utils.Clamp(c.GunTurnRemaining, -domain.GunTurnRate, domain.GunTurnRate)
	c.GunTurnRemaining -= gun
	gunDelta := gun
	if !c.IsAdjustGunForBodyTurn {
		gunDelta += body
	}
	st.GunHeading = utils.NormalAbsoluteAngle(st.GunHeading + gunDelta)

	radar := utils.Clamp(c.RadarTurnRemaining, -domain.RadarTurnRate, domain.RadarTurnRate)
	c.RadarTurnRemaining -= radar
	radarDelta := radar
	if !c.IsAdjustRadarForGunTurn {
		radarDelta += gun
	}
	if !c.IsAdjustRadarForBodyTurn {
		radarDelta += body
	}
	r.radarFrom = st.RadarHeading
	r.radarSweep = radarDelta
	st.RadarHeading = utils.NormalAbsoluteAngle(st.RadarHeading + radarDelta)
}

// move は速度を更新して車体を進めます。
// 加速は1、減速は2、残り距離を超える速度は出しません。
func (a *Arena) move(r *robot) {
	c := r.commands
	st := &r.status

	maxV := math.Min(math.Abs(c.MaxVelocity), domain.MaxVelocity)
	dist := c.DistanceRemaining
	v := st.Velocity
	switch {
	case dist == 0, v != 0 && math.Signbit(v) != math.Signbit(dist):
		v = decelerate(v)
	default:
		speed := math.Min(math.Min(math.Abs(v)+domain.Acceleration, maxV), math.Abs(dist))
		v = math.Copysign(speed, dist)
	}
	st.Velocity = v
	if dist != 0 {
		c.DistanceRemaining -= v
	}

	r.prevX, r.prevY = st.X, st.Y
	st.X += math.Sin(st.BodyHeading) * v
	st.Y += math.Cos(st.BodyHeading) * v
}

func decelerate(v float64) float64 {
	if math.Abs(v) <= domain.Deceleration {
		return 0
	}
	return v - math.Copysign(domain.Deceleration, v)
}

// hitWall は壁に当たったロボットを止め、HitWallイベントを積みます。
// ダメージを受けるのはAdvancedRobotだけです。
func (a *Arena) hitWall(r *robot) {
	angle, hit := a.field.clampWall(r)
	if !hit {
		return
	}
	if r.statics.IsAdvancedRobot {
		r.damage(domain.WallHitDamage(r.status.Velocity))
	}
	r.status.Velocity = 0
	r.commands.DistanceRemaining = 0
	r.push(&domain.HitWallEvent{
		EventHeader: domain.EventHeader{Time: a.time},
		Bearing:     relativeBearing(angle, r.status.BodyHeading),
	})
}

// collide はロボット同士の衝突を判定します。
// 動いていた側を元の位置に戻し、進行方向に相手がいれば過失ありとします。
func (a *Arena) collide(r *robot, others []*robot) {
	if r.status.Velocity == 0 {
		return
	}
	for _, o := range others {
		if o == r || !overlaps(r.status.X, r.status.Y, o.status.X, o.status.Y) {
			continue
		}
		bearing := relativeBearing(bearingTo(r.status.X, r.status.Y, o.status.X, o.status.Y), r.status.BodyHeading)
		atFault := (r.status.Velocity > 0 && math.Abs(bearing) < math.Pi/2) ||
			(r.status.Velocity < 0 && math.Abs(bearing) > math.Pi/2)

		r.status.X, r.status.Y = r.prevX, r.prevY
		r.status.Velocity = 0
		r.commands.DistanceRemaining = 0

		r.damage(domain.RobotHitDamage)
		o.damage(domain.RobotHitDamage)
		if atFault {
			r.score.ramDamage += domain.RobotHitBonus
			r.dealt[o] += domain.RobotHitDamage
			if o.status.Energy <= 0 && o.killer == nil {
				o.killer = r
				o.rammed = true
			}
		}
		a.inactive = 0

		r.push(&domain.HitRobotEvent{
			EventHeader: domain.EventHeader{Time: a.time},
			Name:        o.name(),
			Bearing:     bearing,
			Energy:      math.Max(o.status.Energy, 0),
			AtFault:     atFault,
		})
		o.push(&domain.HitRobotEvent{
			EventHeader: domain.EventHeader{Time: a.time},
			Name:        r.name(),
			Bearing:     relativeBearing(bearingTo(o.status.X, o.status.Y, r.status.X, r.status.Y), o.status.BodyHeading),
			Energy:      math.Max(r.status.Energy, 0),
		})
		return
	}
}

// scan はそのターンのレーダーの掃引範囲にいる相手を検出します。
// 回転しなかった場合は相手の見かけの幅だけを判定します。
func (a *Arena) scan(r *robot, others []*robot) {
	st := &r.status
	for _, o := range others {
		if o == r {
			continue
		}
		dx := o.status.X - st.X
		dy := o.status.Y - st.Y
		dist := math.Hypot(dx, dy)
		if dist > domain.RadarScanRadius || dist == 0 {
			continue
		}
		angle := bearingTo(st.X, st.Y, o.status.X, o.status.Y)
		width := math.Atan(robotHalf / dist)
		if !inSweep(r.radarFrom, r.radarSweep, angle, width) {
			continue
		}
		r.push(&domain.ScannedRobotEvent{
			EventHeader:   domain.EventHeader{Time: a.time},
			Name:          o.name(),
			Energy:        math.Max(o.status.Energy, 0),
			Heading:       o.status.BodyHeading,
			Bearing:       relativeBearing(angle, st.BodyHeading),
			Distance:      dist,
			Velocity:      o.status.Velocity,
			IsSentryRobot: o.statics.IsSentryRobot,
		})
	}
}

// inSweep はangleがfromからsweepだけ回した弧(両端にwidthの余裕)に入るかを返す
func inSweep(from, sweep, angle, width float64) bool {
	offset := utils.NormalRelativeAngle(angle - from)
	lo, hi := math.Min(0, sweep), math.Max(0, sweep)
	return offset >= lo-width && offset <= hi+width
}

// decay は無交戦がInactivityTimeを超えたら全員のエネルギーを削る
func (a *Arena) decay(alive []*robot) {
	a.inactive++
	if a.cfg.InactivityTime <= 0 || a.inactive <= a.cfg.InactivityTime {
		return
	}
	for _, r := range alive {
		r.damage(inactivityDamage)
	}
}
