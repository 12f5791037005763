package engine

import (
	"math"

	"robohost/server/domain"
)

// bullet はフィールド上を飛んでいる弾です。
// idは撃ったロボットの中でだけ一意です。
type bullet struct {
	id      int32
	owner   *robot
	heading float64
	x, y    float64
	power   float64
}

func (b *bullet) speed() float64 { return domain.BulletSpeed(b.power) }

// snapshot はイベントに載せる弾のコピーを作る
func (b *bullet) snapshot(victim string, active bool) *domain.Bullet {
	return domain.NewBullet(b.id, b.heading, b.x, b.y, b.power, b.owner.name(), victim, active)
}

func (b *bullet) status(victim string, active bool) domain.BulletStatus {
	return domain.BulletStatus{BulletID: b.id, X: b.x, Y: b.y, VictimName: victim, IsActive: active}
}

// hits は弾がロボットの当たり判定の中にあるかを返す
func (b *bullet) hits(r *robot) bool {
	return math.Abs(b.x-r.status.X) <= robotHalf && math.Abs(b.y-r.status.Y) <= robotHalf
}

// fire はロボットの発射要求から弾を作ります。
// 砲身が熱い、エネルギーがない、威力が不正な要求は無視します。
func (a *Arena) fire(r *robot) {
	for _, cmd := range r.commands.Bullets {
		st := &r.status
		if st.GunHeat > 0 || st.Energy <= 0 || math.IsNaN(cmd.Power) {
			continue
		}
		power := math.Min(st.Energy, math.Max(domain.MinBulletPower, math.Min(cmd.Power, domain.MaxBulletPower)))
		heading := st.GunHeading
		if cmd.FireAssistValid {
			heading = cmd.FireAssistAngle
		}
		st.Energy -= power
		st.GunHeat += domain.GunHeat(power)
		a.bullets = append(a.bullets, &bullet{
			id:      cmd.BulletID,
			owner:   r,
			heading: heading,
			x:       st.X,
			y:       st.Y,
			power:   power,
		})
	}
}

// moveBullets は全弾を1ターン進め、命中と場外を判定します。
// 飛行中の弾は毎ターン撃ったロボットに状態更新を送ります。
func (a *Arena) moveBullets() {
	live := a.bullets[:0]
	for _, b := range a.bullets {
		b.x += math.Sin(b.heading) * b.speed()
		b.y += math.Cos(b.heading) * b.speed()

		if victim := a.bulletVictim(b); victim != nil {
			a.bulletHit(b, victim)
			continue
		}
		if !a.field.contains(b.x, b.y) {
			b.owner.push(&domain.BulletMissedEvent{
				EventHeader: domain.EventHeader{Time: a.time},
				Bullet:      b.snapshot("", false),
			})
			b.owner.updates = append(b.owner.updates, b.status("", false))
			continue
		}
		b.owner.updates = append(b.owner.updates, b.status("", true))
		live = append(live, b)
	}
	clear(a.bullets[len(live):])
	a.bullets = live
}

func (a *Arena) bulletVictim(b *bullet) *robot {
	for _, r := range a.robots {
		if r == b.owner || !r.inRound || !r.alive {
			continue
		}
		if b.hits(r) {
			return r
		}
	}
	return nil
}

func (a *Arena) bulletHit(b *bullet, victim *robot) {
	owner := b.owner
	damage := domain.BulletDamage(b.power)
	dealt := math.Min(damage, math.Max(victim.status.Energy, 0))

	victim.damage(damage)
	if victim.status.Energy <= 0 && victim.killer == nil {
		victim.killer = owner
	}
	owner.status.Energy += domain.BulletHitBonus(b.power)
	owner.score.bulletDamage += dealt
	owner.dealt[victim] += dealt
	a.inactive = 0

	owner.push(&domain.BulletHitEvent{
		EventHeader: domain.EventHeader{Time: a.time},
		Name:        victim.name(),
		Energy:      math.Max(victim.status.Energy, 0),
		Bullet:      b.snapshot(victim.name(), false),
	})
	victim.push(&domain.HitByBulletEvent{
		EventHeader: domain.EventHeader{Time: a.time},
		Bearing:     relativeBearing(b.heading+math.Pi, victim.status.BodyHeading),
		Bullet:      b.snapshot(victim.name(), false),
	})
	owner.updates = append(owner.updates, b.status(victim.name(), false))
}
