package domain

// BattleResults はバトル終了時の1ロボット分の成績
type BattleResults struct {
	TeamLeaderName    string
	Rank              int32
	Score             float64
	Survival          float64
	LastSurvivorBonus float64
	BulletDamage      float64
	BulletDamageBonus float64
	RamDamage         float64
	RamDamageBonus    float64
	Firsts            int32
	Seconds           int32
	Thirds            int32
}

func (b *BattleResults) TypeTag() TypeTag { return TypeBattleResults }

func (b *BattleResults) EncodeTo(w *Writer) {
	w.PutString(b.TeamLeaderName)
	w.PutInt32(b.Rank)
	w.PutFloat64(b.Score)
	w.PutFloat64(b.Survival)
	w.PutFloat64(b.LastSurvivorBonus)
	w.PutFloat64(b.BulletDamage)
	w.PutFloat64(b.BulletDamageBonus)
	w.PutFloat64(b.RamDamage)
	w.PutFloat64(b.RamDamageBonus)
	w.PutInt32(b.Firsts)
	w.PutInt32(b.Seconds)
	w.PutInt32(b.Thirds)
}

func decodeBattleResults(r *Reader) *BattleResults {
	return &BattleResults{
		TeamLeaderName:    r.String(),
		Rank:              r.Int32(),
		Score:             r.Float64(),
		Survival:          r.Float64(),
		LastSurvivorBonus: r.Float64(),
		BulletDamage:      r.Float64(),
		BulletDamageBonus: r.Float64(),
		RamDamage:         r.Float64(),
		RamDamageBonus:    r.Float64(),
		Firsts:            r.Int32(),
		Seconds:           r.Int32(),
		Thirds:            r.Int32(),
	}
}
