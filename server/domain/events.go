package domain

import "fmt"

// EventKind はイベントの種別。ディスパッチテーブルのキーになる。
type EventKind uint8

const (
	KindStatus EventKind = iota + 1
	KindScannedRobot
	KindHitWall
	KindHitRobot
	KindHitByBullet
	KindBulletHit
	KindBulletHitBullet
	KindBulletMissed
	KindRobotDeath
	KindWin
	KindDeath
	KindSkippedTurn
	KindBattleEnded
	KindRoundEnded
	KindCustom
	KindMessage
	KindPaint
	KindKeyPressed
	KindKeyReleased
	KindKeyTyped
	KindMouseClicked
	KindMouseDragged
	KindMouseEntered
	KindMouseExited
	KindMouseMoved
	KindMousePressed
	KindMouseReleased
	KindMouseWheelMoved

	kindEnd
)

// NumEventKinds は有効なEventKindの上限(排他)
const NumEventKinds = int(kindEnd)

// 優先度の予約値
const (
	MinPriority          = 0
	MaxPriority          = 99
	ReservedPriority     = 100
	DeathPriority        = -1
	DefaultEventPriority = 80
)

type kindInfo struct {
	name     string
	priority int
	tag      TypeTag // 0はワイヤー表現なし
	reserved bool
}

var kindTable = [kindEnd]kindInfo{
	KindStatus:          {name: "Status", priority: 99},
	KindScannedRobot:    {name: "ScannedRobot", priority: 10, tag: TypeScannedRobotEvent},
	KindHitWall:         {name: "HitWall", priority: 30, tag: TypeHitWallEvent},
	KindHitRobot:        {name: "HitRobot", priority: 40, tag: TypeHitRobotEvent},
	KindHitByBullet:     {name: "HitByBullet", priority: 20, tag: TypeHitByBulletEvent},
	KindBulletHit:       {name: "BulletHit", priority: 50, tag: TypeBulletHitEvent},
	KindBulletHitBullet: {name: "BulletHitBullet", priority: 55, tag: TypeBulletHitBulletEvent},
	KindBulletMissed:    {name: "BulletMissed", priority: 60, tag: TypeBulletMissedEvent},
	KindRobotDeath:      {name: "RobotDeath", priority: 70, tag: TypeRobotDeathEvent},
	KindWin:             {name: "Win", priority: ReservedPriority, tag: TypeWinEvent, reserved: true},
	KindDeath:           {name: "Death", priority: DeathPriority, tag: TypeDeathEvent, reserved: true},
	KindSkippedTurn:     {name: "SkippedTurn", priority: ReservedPriority, tag: TypeSkippedTurnEvent, reserved: true},
	KindBattleEnded:     {name: "BattleEnded", priority: ReservedPriority, tag: TypeBattleEndedEvent, reserved: true},
	KindRoundEnded:      {name: "RoundEnded", priority: ReservedPriority, tag: TypeRoundEndedEvent, reserved: true},
	KindCustom:          {name: "Custom", priority: DefaultEventPriority},
	KindMessage:         {name: "Message", priority: 75},
	KindPaint:           {name: "Paint", priority: 5},
	KindKeyPressed:      {name: "KeyPressed", priority: 98, tag: TypeKeyPressedEvent},
	KindKeyReleased:     {name: "KeyReleased", priority: 98, tag: TypeKeyReleasedEvent},
	KindKeyTyped:        {name: "KeyTyped", priority: 98, tag: TypeKeyTypedEvent},
	KindMouseClicked:    {name: "MouseClicked", priority: 98, tag: TypeMouseClickedEvent},
	KindMouseDragged:    {name: "MouseDragged", priority: 98, tag: TypeMouseDraggedEvent},
	KindMouseEntered:    {name: "MouseEntered", priority: 98, tag: TypeMouseEnteredEvent},
	KindMouseExited:     {name: "MouseExited", priority: 98, tag: TypeMouseExitedEvent},
	KindMouseMoved:      {name: "MouseMoved", priority: 98, tag: TypeMouseMovedEvent},
	KindMousePressed:    {name: "MousePressed", priority: 98, tag: TypeMousePressedEvent},
	KindMouseReleased:   {name: "MouseReleased", priority: 98, tag: TypeMouseReleasedEvent},
	KindMouseWheelMoved: {name: "MouseWheelMoved", priority: 98, tag: TypeMouseWheelMovedEvent},
}

func (k EventKind) valid() bool { return k > 0 && k < kindEnd }

func (k EventKind) String() string {
	if !k.valid() {
		return fmt.Sprintf("unknown(%d)", k)
	}
	return kindTable[k].name
}

// DefaultPriority はイベント種別の既定優先度
func (k EventKind) DefaultPriority() int {
	if !k.valid() {
		return DefaultEventPriority
	}
	return kindTable[k].priority
}

// IsReserved は優先度を変更できない制御系イベントかどうか
func (k EventKind) IsReserved() bool {
	return k.valid() && kindTable[k].reserved
}

// Tag はワイヤー上の型タグ。ワイヤー表現を持たない種別はfalse。
func (k EventKind) Tag() (TypeTag, bool) {
	if !k.valid() || kindTable[k].tag == 0 {
		return 0, false
	}
	return kindTable[k].tag, true
}

func eventKindForTag(tag TypeTag) (EventKind, bool) {
	for k := KindStatus; k < kindEnd; k++ {
		if kindTable[k].tag == tag && tag != 0 {
			return k, true
		}
	}
	return 0, false
}

// Event はイベントの閉じた直和型
type Event interface {
	Kind() EventKind
	EventTime() int64
}

// EventHeader は全イベント共通の発生ターン
type EventHeader struct {
	Time int64
}

func (h EventHeader) EventTime() int64 { return h.Time }

// Condition はカスタムイベントの発火条件
type Condition struct {
	Name     string
	Priority int
	Test     func() bool
}

// StatusEvent はtickごとにプロキシが合成する
type StatusEvent struct {
	EventHeader
	Status RobotStatus
}

// PaintEvent は描画が有効なtickにプロキシが合成する
type PaintEvent struct {
	EventHeader
}

type CustomEvent struct {
	EventHeader
	Condition *Condition
}

type MessageEvent struct {
	EventHeader
	Sender  string
	Message []byte
}

type ScannedRobotEvent struct {
	EventHeader
	Name          string
	Energy        float64
	Heading       float64
	Bearing       float64
	Distance      float64
	Velocity      float64
	IsSentryRobot bool
}

type HitWallEvent struct {
	EventHeader
	Bearing float64
}

type HitRobotEvent struct {
	EventHeader
	Name    string
	Bearing float64
	Energy  float64
	AtFault bool
}

// HitByBulletEvent のBulletは他ロボットの弾なので照合しない
type HitByBulletEvent struct {
	EventHeader
	Bearing float64
	Bullet  *Bullet
}

type BulletHitEvent struct {
	EventHeader
	Name   string
	Energy float64
	Bullet *Bullet
}

type BulletHitBulletEvent struct {
	EventHeader
	Bullet    *Bullet
	HitBullet *Bullet
}

type BulletMissedEvent struct {
	EventHeader
	Bullet *Bullet
}

type RobotDeathEvent struct {
	EventHeader
	Name string
}

type WinEvent struct{ EventHeader }

type DeathEvent struct{ EventHeader }

type SkippedTurnEvent struct {
	EventHeader
	SkippedTurn int64
}

type BattleEndedEvent struct {
	EventHeader
	Aborted bool
	Results *BattleResults
}

type RoundEndedEvent struct {
	EventHeader
	Round      int32
	Turns      int32
	TotalTurns int32
}

// KeyEvent はKeyPressed/KeyReleased/KeyTypedを表す
type KeyEvent struct {
	EventHeader
	EventKind EventKind
	KeyChar   int32
	KeyCode   int32
	Location  int32
	ID        int32
	Modifiers int32
	When      int64
}

// MouseEvent はMouse*系を表す。Wheel系のみScroll/Wheelを使う。
type MouseEvent struct {
	EventHeader
	EventKind     EventKind
	Button        int32
	ClickCount    int32
	X             int32
	Y             int32
	ID            int32
	Modifiers     int32
	When          int64
	ScrollType    int32
	ScrollAmount  int32
	WheelRotation int32
}

func (*StatusEvent) Kind() EventKind          { return KindStatus }
func (*PaintEvent) Kind() EventKind           { return KindPaint }
func (*CustomEvent) Kind() EventKind          { return KindCustom }
func (*MessageEvent) Kind() EventKind         { return KindMessage }
func (*ScannedRobotEvent) Kind() EventKind    { return KindScannedRobot }
func (*HitWallEvent) Kind() EventKind         { return KindHitWall }
func (*HitRobotEvent) Kind() EventKind        { return KindHitRobot }
func (*HitByBulletEvent) Kind() EventKind     { return KindHitByBullet }
func (*BulletHitEvent) Kind() EventKind       { return KindBulletHit }
func (*BulletHitBulletEvent) Kind() EventKind { return KindBulletHitBullet }
func (*BulletMissedEvent) Kind() EventKind    { return KindBulletMissed }
func (*RobotDeathEvent) Kind() EventKind      { return KindRobotDeath }
func (*WinEvent) Kind() EventKind             { return KindWin }
func (*DeathEvent) Kind() EventKind           { return KindDeath }
func (*SkippedTurnEvent) Kind() EventKind     { return KindSkippedTurn }
func (*BattleEndedEvent) Kind() EventKind     { return KindBattleEnded }
func (*RoundEndedEvent) Kind() EventKind      { return KindRoundEnded }
func (e *KeyEvent) Kind() EventKind           { return e.EventKind }
func (e *MouseEvent) Kind() EventKind         { return e.EventKind }

// OwnBullet は自分が撃った弾を参照するイベントからその弾を返す。
// 照合対象外のイベントはnil。
func OwnBullet(ev Event) *Bullet {
	switch e := ev.(type) {
	case *BulletHitEvent:
		return e.Bullet
	case *BulletHitBulletEvent:
		return e.Bullet
	case *BulletMissedEvent:
		return e.Bullet
	}
	return nil
}

// ReplaceOwnBullet はOwnBulletの参照先をbに差し替える
func ReplaceOwnBullet(ev Event, b *Bullet) {
	switch e := ev.(type) {
	case *BulletHitEvent:
		e.Bullet = b
	case *BulletHitBulletEvent:
		e.Bullet = b
	case *BulletMissedEvent:
		e.Bullet = b
	}
}
