package proxy

import (
	"math"

	"robohost/server/domain"
	"robohost/utils"
)

// SetFire は発射要求を積み、生成した弾のハンドルを返す。
// 砲身が熱い、エネルギーがない、無効化済みのいずれかなら撃たずにnilを返す。
//
// powerは[0.1, 3.0]に丸めた上で残りエネルギーを超えない。
// 消費したエネルギーと熱は次の交換までEnergy/GunHeatに反映される。
func (p *Proxy) SetFire(power float64) *domain.Bullet {
	p.setCall()
	if math.IsNaN(power) {
		p.logger.WarnContext(p.ctx, "SetFire called with NaN, ignored")
		return nil
	}
	if p.disabled.Load() || p.gunHeat() > 0 || p.energy() <= 0 {
		return nil
	}
	power = min(p.energy(), utils.Clamp(power, domain.MinBulletPower, domain.MaxBulletPower))
	p.firedEnergy += power
	p.firedHeat += domain.GunHeat(power)

	st := p.status.Load()
	cmd := domain.BulletCommand{Power: power, BulletID: p.nextBulletID}
	if angle, ok := p.fireAssist(st); ok {
		cmd.FireAssistValid = true
		cmd.FireAssistAngle = angle
	}
	p.nextBulletID++

	b := domain.NewBullet(cmd.BulletID, st.GunHeading, st.X, st.Y, power, p.statics.Name, "", true)
	p.bullets.store(b)
	p.commands.Bullets = append(p.commands.Bullets, cmd)
	return b
}

// fireAssist は非Advancedロボットが今tickのスキャン結果に向けて撃つ場合の角度を返す
func (p *Proxy) fireAssist(st *domain.RobotStatus) (float64, bool) {
	if p.statics.IsAdvancedRobot || st.GunHeading != st.RadarHeading {
		return 0, false
	}
	e, ok := p.events.CurrentTopEvent().(*domain.ScannedRobotEvent)
	if !ok || e.Time != st.Time {
		return 0, false
	}
	return utils.NormalAbsoluteAngle(st.BodyHeading + e.Bearing), true
}

// Fire は発射要求を積んで1tick進める
func (p *Proxy) Fire(power float64) (*domain.Bullet, error) {
	b := p.SetFire(power)
	if err := p.Execute(); err != nil {
		return b, err
	}
	return b, nil
}
