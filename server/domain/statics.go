package domain

// RobotStatics はラウンド中に変化しないロボットの情報
//
// ロボット側はStartRoundの要求として自己申告(名前・種別)を送り、
// エンジンはバトル設定を埋めたものを返す。
type RobotStatics struct {
	Name              string
	ShortName         string
	TeamName          string
	Teammates         []string
	IsAdvancedRobot   bool
	IsTeamRobot       bool
	IsInteractive     bool
	IsPaintRobot      bool
	IsDroid           bool
	IsSentryRobot     bool
	BattlefieldWidth  int32
	BattlefieldHeight int32
	NumRounds         int32
	GunCoolingRate    float64
	InactivityTime    int64
}

func (s *RobotStatics) TypeTag() TypeTag { return TypeRobotStatics }

func (s *RobotStatics) EncodeTo(w *Writer) {
	w.PutString(s.Name)
	w.PutString(s.ShortName)
	w.PutString(s.TeamName)
	if s.Teammates == nil {
		w.PutInt32(-1)
	} else {
		w.PutInt32(int32(len(s.Teammates)))
		for _, m := range s.Teammates {
			w.PutString(m)
		}
	}
	w.PutBool(s.IsAdvancedRobot)
	w.PutBool(s.IsTeamRobot)
	w.PutBool(s.IsInteractive)
	w.PutBool(s.IsPaintRobot)
	w.PutBool(s.IsDroid)
	w.PutBool(s.IsSentryRobot)
	w.PutInt32(s.BattlefieldWidth)
	w.PutInt32(s.BattlefieldHeight)
	w.PutInt32(s.NumRounds)
	w.PutFloat64(s.GunCoolingRate)
	w.PutInt64(s.InactivityTime)
}

func decodeRobotStatics(r *Reader) *RobotStatics {
	s := &RobotStatics{
		Name:      r.String(),
		ShortName: r.String(),
		TeamName:  r.String(),
	}
	if n, ok := r.length(); ok {
		if n > r.Remaining()/SizeOfInt32 {
			r.fail(ErrShortBuffer)
			return s
		}
		s.Teammates = make([]string, n)
		for i := range s.Teammates {
			s.Teammates[i] = r.String()
		}
	}
	s.IsAdvancedRobot = r.Bool()
	s.IsTeamRobot = r.Bool()
	s.IsInteractive = r.Bool()
	s.IsPaintRobot = r.Bool()
	s.IsDroid = r.Bool()
	s.IsSentryRobot = r.Bool()
	s.BattlefieldWidth = r.Int32()
	s.BattlefieldHeight = r.Int32()
	s.NumRounds = r.Int32()
	s.GunCoolingRate = r.Float64()
	s.InactivityTime = r.Int64()
	return s
}

// IsTeammate はnameがチームメイトかどうかを返す
func (s *RobotStatics) IsTeammate(name string) bool {
	for _, m := range s.Teammates {
		if m == name {
			return true
		}
	}
	return false
}

// RoundStart はStartRoundの応答。BattleOverならそれ以上のラウンドはない。
type RoundStart struct {
	BattleOver bool
	Statics    RobotStatics
	Status     RobotStatus
}

func (s *RoundStart) TypeTag() TypeTag { return TypeRoundStart }

func (s *RoundStart) EncodeTo(w *Writer) {
	w.PutBool(s.BattleOver)
	w.PutObject(&s.Statics)
	w.PutObject(&s.Status)
}

func decodeRoundStart(r *Reader) (*RoundStart, error) {
	s := &RoundStart{BattleOver: r.Bool()}
	statics, err := readObject[*RobotStatics](r)
	if err != nil {
		return nil, err
	}
	status, err := readObject[*RobotStatus](r)
	if err != nil {
		return nil, err
	}
	s.Statics = *statics
	s.Status = *status
	return s, nil
}

// readObject は次の値をP型として読む。null・型違いはプロトコル破損とする。
func readObject[P any](r *Reader) (P, error) {
	var zero P
	v, err := r.ReadAny()
	if err != nil {
		return zero, err
	}
	p, ok := v.(P)
	if !ok {
		r.fail(ErrUnexpectedType)
		return zero, ErrUnexpectedType
	}
	return p, nil
}
