package domain

import "fmt"

// PutEvent はイベントを型タグ・発生ターン・ペイロードの順に書き込む。
// ワイヤー表現を持たない種別はErrUnserializableEventをWriterに残す。
func (w *Writer) PutEvent(ev Event) {
	tag, ok := ev.Kind().Tag()
	if !ok {
		if w.err == nil {
			w.err = fmt.Errorf("%w: %s", ErrUnserializableEvent, ev.Kind())
		}
		return
	}
	w.PutTag(tag)
	w.PutInt64(ev.EventTime())

	switch e := ev.(type) {
	case *ScannedRobotEvent:
		w.PutString(e.Name)
		w.PutFloat64(e.Energy)
		w.PutFloat64(e.Heading)
		w.PutFloat64(e.Bearing)
		w.PutFloat64(e.Distance)
		w.PutFloat64(e.Velocity)
		w.PutBool(e.IsSentryRobot)
	case *HitWallEvent:
		w.PutFloat64(e.Bearing)
	case *HitRobotEvent:
		w.PutString(e.Name)
		w.PutFloat64(e.Bearing)
		w.PutFloat64(e.Energy)
		w.PutBool(e.AtFault)
	case *HitByBulletEvent:
		w.PutFloat64(e.Bearing)
		putNullable(w, e.Bullet)
	case *BulletHitEvent:
		w.PutString(e.Name)
		w.PutFloat64(e.Energy)
		putNullable(w, e.Bullet)
	case *BulletHitBulletEvent:
		putNullable(w, e.Bullet)
		putNullable(w, e.HitBullet)
	case *BulletMissedEvent:
		putNullable(w, e.Bullet)
	case *RobotDeathEvent:
		w.PutString(e.Name)
	case *WinEvent, *DeathEvent:
	case *SkippedTurnEvent:
		w.PutInt64(e.SkippedTurn)
	case *BattleEndedEvent:
		w.PutBool(e.Aborted)
		putNullable(w, e.Results)
	case *RoundEndedEvent:
		w.PutInt32(e.Round)
		w.PutInt32(e.Turns)
		w.PutInt32(e.TotalTurns)
	case *KeyEvent:
		w.PutInt32(e.KeyChar)
		w.PutInt32(e.KeyCode)
		w.PutInt32(e.Location)
		w.PutInt32(e.ID)
		w.PutInt32(e.Modifiers)
		w.PutInt64(e.When)
	case *MouseEvent:
		w.PutInt32(e.Button)
		w.PutInt32(e.ClickCount)
		w.PutInt32(e.X)
		w.PutInt32(e.Y)
		w.PutInt32(e.ID)
		w.PutInt32(e.Modifiers)
		w.PutInt64(e.When)
		if e.EventKind == KindMouseWheelMoved {
			w.PutInt32(e.ScrollType)
			w.PutInt32(e.ScrollAmount)
			w.PutInt32(e.WheelRotation)
		}
	default:
		if w.err == nil {
			w.err = fmt.Errorf("%w: %T", ErrUnserializableEvent, ev)
		}
	}
}

// putNullable はnilを終端タグとして書き込む
func putNullable[P interface {
	*T
	Serializable
}, T any](w *Writer, v P) {
	if v == nil {
		w.PutTerminator()
		return
	}
	w.PutObject(v)
}

// readNullable は終端タグをnilとして読む
func readNullable[P any](r *Reader) (P, error) {
	var zero P
	v, err := r.ReadAny()
	if err != nil || v == nil {
		return zero, err
	}
	p, ok := v.(P)
	if !ok {
		r.fail(ErrUnexpectedType)
		return zero, ErrUnexpectedType
	}
	return p, nil
}

func decodeEvent(r *Reader, kind EventKind) (Event, error) {
	h := EventHeader{Time: r.Int64()}
	var err error
	switch kind {
	case KindScannedRobot:
		return &ScannedRobotEvent{
			EventHeader:   h,
			Name:          r.String(),
			Energy:        r.Float64(),
			Heading:       r.Float64(),
			Bearing:       r.Float64(),
			Distance:      r.Float64(),
			Velocity:      r.Float64(),
			IsSentryRobot: r.Bool(),
		}, r.Err()
	case KindHitWall:
		return &HitWallEvent{EventHeader: h, Bearing: r.Float64()}, r.Err()
	case KindHitRobot:
		return &HitRobotEvent{
			EventHeader: h,
			Name:        r.String(),
			Bearing:     r.Float64(),
			Energy:      r.Float64(),
			AtFault:     r.Bool(),
		}, r.Err()
	case KindHitByBullet:
		e := &HitByBulletEvent{EventHeader: h, Bearing: r.Float64()}
		e.Bullet, err = readNullable[*Bullet](r)
		return e, err
	case KindBulletHit:
		e := &BulletHitEvent{EventHeader: h, Name: r.String(), Energy: r.Float64()}
		e.Bullet, err = readNullable[*Bullet](r)
		return e, err
	case KindBulletHitBullet:
		e := &BulletHitBulletEvent{EventHeader: h}
		if e.Bullet, err = readNullable[*Bullet](r); err != nil {
			return nil, err
		}
		e.HitBullet, err = readNullable[*Bullet](r)
		return e, err
	case KindBulletMissed:
		e := &BulletMissedEvent{EventHeader: h}
		e.Bullet, err = readNullable[*Bullet](r)
		return e, err
	case KindRobotDeath:
		return &RobotDeathEvent{EventHeader: h, Name: r.String()}, r.Err()
	case KindWin:
		return &WinEvent{EventHeader: h}, r.Err()
	case KindDeath:
		return &DeathEvent{EventHeader: h}, r.Err()
	case KindSkippedTurn:
		return &SkippedTurnEvent{EventHeader: h, SkippedTurn: r.Int64()}, r.Err()
	case KindBattleEnded:
		e := &BattleEndedEvent{EventHeader: h, Aborted: r.Bool()}
		e.Results, err = readNullable[*BattleResults](r)
		return e, err
	case KindRoundEnded:
		return &RoundEndedEvent{
			EventHeader: h,
			Round:       r.Int32(),
			Turns:       r.Int32(),
			TotalTurns:  r.Int32(),
		}, r.Err()
	case KindKeyPressed, KindKeyReleased, KindKeyTyped:
		return &KeyEvent{
			EventHeader: h,
			EventKind:   kind,
			KeyChar:     r.Int32(),
			KeyCode:     r.Int32(),
			Location:    r.Int32(),
			ID:          r.Int32(),
			Modifiers:   r.Int32(),
			When:        r.Int64(),
		}, r.Err()
	case KindMouseClicked, KindMouseDragged, KindMouseEntered, KindMouseExited,
		KindMouseMoved, KindMousePressed, KindMouseReleased, KindMouseWheelMoved:
		e := &MouseEvent{
			EventHeader: h,
			EventKind:   kind,
			Button:      r.Int32(),
			ClickCount:  r.Int32(),
			X:           r.Int32(),
			Y:           r.Int32(),
			ID:          r.Int32(),
			Modifiers:   r.Int32(),
			When:        r.Int64(),
		}
		if kind == KindMouseWheelMoved {
			e.ScrollType = r.Int32()
			e.ScrollAmount = r.Int32()
			e.WheelRotation = r.Int32()
		}
		return e, r.Err()
	}
	return nil, fmt.Errorf("%w: event kind %s", ErrUnknownType, kind)
}
