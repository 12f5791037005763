package domain

// ExecCommands は1tick分のロボットの意図を蓄積するコマンドレコード
//
// ラウンド開始時に生成され、setter呼び出しで更新され、
// tickごとにエンジンへ送られてエコーされたものに置き換わる。
type ExecCommands struct {
	BodyTurnRemaining  float64
	RadarTurnRemaining float64
	GunTurnRemaining   float64
	DistanceRemaining  float64

	IsAdjustGunForBodyTurn      bool
	IsAdjustRadarForGunTurn     bool
	IsAdjustRadarForBodyTurn    bool
	IsAdjustRadarForBodyTurnSet bool

	Colors Colors

	MaxTurnRate float64
	MaxVelocity float64

	Moved           bool
	Scan            bool
	IsIORobot       bool
	IsTryingToPaint bool

	OutputText    string
	GraphicsCalls []byte

	Bullets         []BulletCommand
	TeamMessages    []TeamMessage
	DebugProperties []DebugProperty
}

var _ Serializable = (*ExecCommands)(nil)

// NewExecCommands はデフォルト色と上限値を持つコマンドレコードを生成する
func NewExecCommands(colors Colors) *ExecCommands {
	return &ExecCommands{
		Colors:      colors,
		MaxTurnRate: MaxTurnRate,
		MaxVelocity: MaxVelocity,
	}
}

// CopyFrom はoriginの残量・調整フラグ・上限・色をコピーする。
// fromRobotの場合のみ一時リスト(弾・メッセージ・デバッグ・出力・描画)もコピーする。
func (c *ExecCommands) CopyFrom(origin *ExecCommands, fromRobot bool) {
	c.BodyTurnRemaining = origin.BodyTurnRemaining
	c.RadarTurnRemaining = origin.RadarTurnRemaining
	c.GunTurnRemaining = origin.GunTurnRemaining
	c.DistanceRemaining = origin.DistanceRemaining

	c.IsAdjustGunForBodyTurn = origin.IsAdjustGunForBodyTurn
	c.IsAdjustRadarForGunTurn = origin.IsAdjustRadarForGunTurn
	c.IsAdjustRadarForBodyTurn = origin.IsAdjustRadarForBodyTurn
	c.IsAdjustRadarForBodyTurnSet = origin.IsAdjustRadarForBodyTurnSet

	c.MaxTurnRate = origin.MaxTurnRate
	c.MaxVelocity = origin.MaxVelocity
	c.Colors = origin.Colors

	if fromRobot {
		c.Moved = origin.Moved
		c.Scan = origin.Scan
		c.IsIORobot = origin.IsIORobot
		c.IsTryingToPaint = origin.IsTryingToPaint
		c.OutputText = origin.OutputText
		c.GraphicsCalls = origin.GraphicsCalls
		c.Bullets = append([]BulletCommand(nil), origin.Bullets...)
		c.TeamMessages = append([]TeamMessage(nil), origin.TeamMessages...)
		c.DebugProperties = append([]DebugProperty(nil), origin.DebugProperties...)
	}
}

// TakeOutputText はコンソール出力を取り出して空にする
func (c *ExecCommands) TakeOutputText() string {
	out := c.OutputText
	c.OutputText = ""
	return out
}

func (c *ExecCommands) TypeTag() TypeTag { return TypeExecCommands }

func (c *ExecCommands) EncodeTo(w *Writer) {
	w.PutFloat64(c.BodyTurnRemaining)
	w.PutFloat64(c.RadarTurnRemaining)
	w.PutFloat64(c.GunTurnRemaining)
	w.PutFloat64(c.DistanceRemaining)

	w.PutBool(c.IsAdjustGunForBodyTurn)
	w.PutBool(c.IsAdjustRadarForGunTurn)
	w.PutBool(c.IsAdjustRadarForBodyTurn)
	w.PutBool(c.IsAdjustRadarForBodyTurnSet)

	w.PutInt32(int32(c.Colors.Body))
	w.PutInt32(int32(c.Colors.Gun))
	w.PutInt32(int32(c.Colors.Radar))
	w.PutInt32(int32(c.Colors.Scan))
	w.PutInt32(int32(c.Colors.Bullet))

	w.PutFloat64(c.MaxTurnRate)
	w.PutFloat64(c.MaxVelocity)

	w.PutBool(c.Moved)
	w.PutBool(c.Scan)
	w.PutBool(c.IsIORobot)
	w.PutBool(c.IsTryingToPaint)

	w.PutString(c.OutputText)
	w.PutBytes(c.GraphicsCalls)

	for i := range c.Bullets {
		w.PutObject(&c.Bullets[i])
	}
	w.PutTerminator()
	for i := range c.TeamMessages {
		w.PutObject(&c.TeamMessages[i])
	}
	w.PutTerminator()
	for i := range c.DebugProperties {
		w.PutObject(&c.DebugProperties[i])
	}
	w.PutTerminator()
}

func decodeExecCommands(r *Reader) (*ExecCommands, error) {
	c := &ExecCommands{
		BodyTurnRemaining:  r.Float64(),
		RadarTurnRemaining: r.Float64(),
		GunTurnRemaining:   r.Float64(),
		DistanceRemaining:  r.Float64(),

		IsAdjustGunForBodyTurn:      r.Bool(),
		IsAdjustRadarForGunTurn:     r.Bool(),
		IsAdjustRadarForBodyTurn:    r.Bool(),
		IsAdjustRadarForBodyTurnSet: r.Bool(),
	}
	c.Colors = Colors{
		Body:   uint32(r.Int32()),
		Gun:    uint32(r.Int32()),
		Radar:  uint32(r.Int32()),
		Scan:   uint32(r.Int32()),
		Bullet: uint32(r.Int32()),
	}
	c.MaxTurnRate = r.Float64()
	c.MaxVelocity = r.Float64()
	c.Moved = r.Bool()
	c.Scan = r.Bool()
	c.IsIORobot = r.Bool()
	c.IsTryingToPaint = r.Bool()
	c.OutputText = r.String()
	c.GraphicsCalls = r.Bytes()

	var err error
	if c.Bullets, err = readRun[*BulletCommand](r); err != nil {
		return nil, err
	}
	if c.TeamMessages, err = readRun[*TeamMessage](r); err != nil {
		return nil, err
	}
	if c.DebugProperties, err = readRun[*DebugProperty](r); err != nil {
		return nil, err
	}
	return c, r.Err()
}

// readRun は終端タグまでの要素を読み、P型のものだけを集める
func readRun[P interface{ *T }, T any](r *Reader) ([]T, error) {
	var out []T
	for {
		v, err := r.ReadAny()
		if err != nil {
			return nil, err
		}
		if v == nil {
			return out, nil
		}
		if p, ok := v.(P); ok {
			out = append(out, *p)
		}
	}
}

// BulletCommand は発射要求
type BulletCommand struct {
	Power           float64
	FireAssistValid bool
	FireAssistAngle float64
	BulletID        int32
}

func (b *BulletCommand) TypeTag() TypeTag { return TypeBulletCommand }

func (b *BulletCommand) EncodeTo(w *Writer) {
	w.PutFloat64(b.Power)
	w.PutBool(b.FireAssistValid)
	w.PutFloat64(b.FireAssistAngle)
	w.PutInt32(b.BulletID)
}

func decodeBulletCommand(r *Reader) *BulletCommand {
	return &BulletCommand{
		Power:           r.Float64(),
		FireAssistValid: r.Bool(),
		FireAssistAngle: r.Float64(),
		BulletID:        r.Int32(),
	}
}

// TeamMessage はチームメイト間のメッセージ。Recipientが空ならブロードキャスト。
type TeamMessage struct {
	Sender    string
	Recipient string
	Message   []byte
}

func (m *TeamMessage) TypeTag() TypeTag { return TypeTeamMessage }

func (m *TeamMessage) EncodeTo(w *Writer) {
	w.PutString(m.Sender)
	w.PutString(m.Recipient)
	w.PutBytes(m.Message)
}

func decodeTeamMessage(r *Reader) *TeamMessage {
	return &TeamMessage{
		Sender:    r.String(),
		Recipient: r.String(),
		Message:   r.Bytes(),
	}
}

// DebugProperty はデバッグ表示用のキー値。同じキーは後勝ち。
type DebugProperty struct {
	Key   string
	Value string
}

func (d *DebugProperty) TypeTag() TypeTag { return TypeDebugProperty }

func (d *DebugProperty) EncodeTo(w *Writer) {
	w.PutString(d.Key)
	w.PutString(d.Value)
}

func decodeDebugProperty(r *Reader) *DebugProperty {
	return &DebugProperty{
		Key:   r.String(),
		Value: r.String(),
	}
}
