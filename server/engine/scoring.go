package engine

import (
	"cmp"
	"slices"

	"robohost/server/domain"
)

// 得点ルール
const (
	survivalScore        = 50.0
	lastSurvivorBonus    = 10.0
	bulletKillBonusRatio = 0.2
	ramKillBonusRatio    = 0.3
)

// score はバトルを通して積み上げる1ロボット分の得点
type score struct {
	survival          float64
	lastSurvivorBonus float64
	bulletDamage      float64
	bulletDamageBonus float64
	ramDamage         float64
	ramDamageBonus    float64

	firsts  int32
	seconds int32
	thirds  int32
}

func (s score) total() float64 {
	return s.survival + s.lastSurvivorBonus + s.bulletDamage + s.bulletDamageBonus + s.ramDamage + s.ramDamageBonus
}

// awardKill は倒した相手に与えたダメージに応じてボーナスを加える
func awardKill(killer, victim *robot, byBullet bool) {
	if killer == nil {
		return
	}
	if byBullet {
		killer.score.bulletDamageBonus += bulletKillBonusRatio * killer.dealt[victim]
	} else {
		killer.score.ramDamageBonus += ramKillBonusRatio * killer.dealt[victim]
	}
}

// awardSurvival は死亡が出たターンに生き残っている全員へ生存点を加える
func awardSurvival(survivors []*robot, deaths int) {
	for _, r := range survivors {
		r.score.survival += survivalScore * float64(deaths)
	}
}

// place はラウンドの順位を数える。生存者はエネルギー順、死亡者は後に死んだ順。
func place(survivors, deaths []*robot) {
	order := slices.Clone(survivors)
	slices.SortStableFunc(order, func(a, b *robot) int {
		return cmp.Compare(b.status.Energy, a.status.Energy)
	})
	for i := len(deaths) - 1; i >= 0; i-- {
		order = append(order, deaths[i])
	}
	for i, r := range order {
		switch i {
		case 0:
			r.score.firsts++
		case 1:
			r.score.seconds++
		case 2:
			r.score.thirds++
		}
	}
}

// standings は全ロボットの成績を得点の高い順に並べ、順位を付けて返す
func standings(robots []*robot) []domain.BattleResults {
	out := make([]domain.BattleResults, 0, len(robots))
	for _, r := range robots {
		s := r.score
		out = append(out, domain.BattleResults{
			TeamLeaderName:    r.name(),
			Score:             s.total(),
			Survival:          s.survival,
			LastSurvivorBonus: s.lastSurvivorBonus,
			BulletDamage:      s.bulletDamage,
			BulletDamageBonus: s.bulletDamageBonus,
			RamDamage:         s.ramDamage,
			RamDamageBonus:    s.ramDamageBonus,
			Firsts:            s.firsts,
			Seconds:           s.seconds,
			Thirds:            s.thirds,
		})
	}
	slices.SortStableFunc(out, func(a, b domain.BattleResults) int {
		return cmp.Compare(b.Score, a.Score)
	})
	for i := range out {
		out[i].Rank = int32(i + 1)
	}
	return out
}
