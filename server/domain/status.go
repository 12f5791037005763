package domain

// RobotStatus はそのtickで観測されたロボットの物理状態。
// エンジンが生成し、プロキシは値として保持する。
type RobotStatus struct {
	Energy             float64
	X                  float64
	Y                  float64
	BodyHeading        float64
	GunHeading         float64
	RadarHeading       float64
	Velocity           float64
	BodyTurnRemaining  float64
	RadarTurnRemaining float64
	GunTurnRemaining   float64
	DistanceRemaining  float64
	GunHeat            float64
	Others             int32
	NumSentries        int32
	RoundNum           int32
	NumRounds          int32
	Time               int64
}

var _ Serializable = (*RobotStatus)(nil)

func (s *RobotStatus) TypeTag() TypeTag { return TypeRobotStatus }

func (s *RobotStatus) EncodeTo(w *Writer) {
	w.PutFloat64(s.Energy)
	w.PutFloat64(s.X)
	w.PutFloat64(s.Y)
	w.PutFloat64(s.BodyHeading)
	w.PutFloat64(s.GunHeading)
	w.PutFloat64(s.RadarHeading)
	w.PutFloat64(s.Velocity)
	w.PutFloat64(s.BodyTurnRemaining)
	w.PutFloat64(s.RadarTurnRemaining)
	w.PutFloat64(s.GunTurnRemaining)
	w.PutFloat64(s.DistanceRemaining)
	w.PutFloat64(s.GunHeat)
	w.PutInt32(s.Others)
	w.PutInt32(s.NumSentries)
	w.PutInt32(s.RoundNum)
	w.PutInt32(s.NumRounds)
	w.PutInt64(s.Time)
}

func decodeRobotStatus(r *Reader) *RobotStatus {
	return &RobotStatus{
		Energy:             r.Float64(),
		X:                  r.Float64(),
		Y:                  r.Float64(),
		BodyHeading:        r.Float64(),
		GunHeading:         r.Float64(),
		RadarHeading:       r.Float64(),
		Velocity:           r.Float64(),
		BodyTurnRemaining:  r.Float64(),
		RadarTurnRemaining: r.Float64(),
		GunTurnRemaining:   r.Float64(),
		DistanceRemaining:  r.Float64(),
		GunHeat:            r.Float64(),
		Others:             r.Int32(),
		NumSentries:        r.Int32(),
		RoundNum:           r.Int32(),
		NumRounds:          r.Int32(),
		Time:               r.Int64(),
	}
}
