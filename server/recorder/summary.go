package recorder

import (
	"robohost/server/domain"
	"robohost/server/graphics"
)

// SessionSummary は記録からロボット1体分を集計したもの
type SessionSummary struct {
	Session    domain.SessionID
	Name       string
	Rounds     int
	Ticks      int
	Waits      int
	Events     int
	PaintCalls int
	LastStatus *domain.RobotStatus
}

// Summarize は記録を最後まで読み、セッションごとの集計を記録順に返す
func Summarize(r *Reader) ([]*SessionSummary, error) {
	var out []*SessionSummary
	byID := make(map[domain.SessionID]*SessionSummary)
	for x, err := range r.All() {
		if err != nil {
			return out, err
		}
		s, ok := byID[x.Session]
		if !ok {
			s = &SessionSummary{Session: x.Session}
			byID[x.Session] = s
			out = append(out, s)
		}
		switch x.Kind {
		case domain.ExchangeStartRound:
			st, err := x.RoundStart()
			if err != nil {
				return out, err
			}
			if st.BattleOver {
				continue
			}
			s.Rounds++
			s.Name = st.Statics.Name
			s.LastStatus = &st.Status
		case domain.ExchangeTick, domain.ExchangeWaitForBattleEnd:
			res, err := x.Results()
			if err != nil {
				return out, err
			}
			if x.Kind == domain.ExchangeTick {
				s.Ticks++
				cmds, err := x.Commands()
				if err != nil {
					return out, err
				}
				calls, err := graphics.Decode(cmds.GraphicsCalls)
				if err != nil {
					return out, err
				}
				s.PaintCalls += len(calls)
			} else {
				s.Waits++
			}
			s.Events += len(res.Events)
			if res.Status != nil {
				s.LastStatus = res.Status
			}
		}
	}
	return out, nil
}
