package domain

// ExecResults はエンジンがtickごとに1つ返す結果バッチ
type ExecResults struct {
	Commands      *ExecCommands
	Status        *RobotStatus
	Events        []Event
	TeamMessages  []TeamMessage
	BulletUpdates []BulletStatus

	Halt         bool
	ShouldWait   bool
	PaintEnabled bool
}

var _ Serializable = (*ExecResults)(nil)

func (res *ExecResults) TypeTag() TypeTag { return TypeExecResults }

func (res *ExecResults) EncodeTo(w *Writer) {
	w.PutBool(res.Halt)
	w.PutBool(res.ShouldWait)
	w.PutBool(res.PaintEnabled)
	putNullable(w, res.Commands)
	putNullable(w, res.Status)
	for _, ev := range res.Events {
		w.PutEvent(ev)
	}
	w.PutTerminator()
	for i := range res.TeamMessages {
		w.PutObject(&res.TeamMessages[i])
	}
	w.PutTerminator()
	for i := range res.BulletUpdates {
		w.PutObject(&res.BulletUpdates[i])
	}
	w.PutTerminator()
}

func decodeExecResults(r *Reader) (*ExecResults, error) {
	res := &ExecResults{
		Halt:         r.Bool(),
		ShouldWait:   r.Bool(),
		PaintEnabled: r.Bool(),
	}
	var err error
	if res.Commands, err = readNullable[*ExecCommands](r); err != nil {
		return nil, err
	}
	if res.Status, err = readNullable[*RobotStatus](r); err != nil {
		return nil, err
	}
	for {
		v, err := r.ReadAny()
		if err != nil {
			return nil, err
		}
		if v == nil {
			break
		}
		if ev, ok := v.(Event); ok {
			res.Events = append(res.Events, ev)
		}
	}
	if res.TeamMessages, err = readRun[*TeamMessage](r); err != nil {
		return nil, err
	}
	if res.BulletUpdates, err = readRun[*BulletStatus](r); err != nil {
		return nil, err
	}
	return res, r.Err()
}
