package domain

// Bullet はロボットが保持する弾へのハンドル。
// プロキシは同じ*Bulletをその場で更新し、置き換えない。
type Bullet struct {
	heading    float64
	x, y       float64
	power      float64
	ownerName  string
	victimName string
	active     bool
	id         int32
}

var _ Serializable = (*Bullet)(nil)

func NewBullet(id int32, heading, x, y, power float64, ownerName, victimName string, active bool) *Bullet {
	return &Bullet{
		id:         id,
		heading:    heading,
		x:          x,
		y:          y,
		power:      power,
		ownerName:  ownerName,
		victimName: victimName,
		active:     active,
	}
}

func (b *Bullet) ID() int32         { return b.id }
func (b *Bullet) Heading() float64  { return b.heading }
func (b *Bullet) X() float64        { return b.x }
func (b *Bullet) Y() float64        { return b.y }
func (b *Bullet) Power() float64    { return b.power }
func (b *Bullet) Name() string      { return b.ownerName }
func (b *Bullet) Victim() string    { return b.victimName }
func (b *Bullet) IsActive() bool    { return b.active }
func (b *Bullet) Velocity() float64 { return BulletSpeed(b.power) }

// Update は位置・命中相手・生存フラグをその場で書き換える
func (b *Bullet) Update(x, y float64, victimName string, active bool) {
	b.x = x
	b.y = y
	b.victimName = victimName
	b.active = active
}

func (b *Bullet) TypeTag() TypeTag { return TypeBullet }

func (b *Bullet) EncodeTo(w *Writer) {
	w.PutFloat64(b.heading)
	w.PutFloat64(b.x)
	w.PutFloat64(b.y)
	w.PutFloat64(b.power)
	w.PutString(b.ownerName)
	w.PutString(b.victimName)
	w.PutBool(b.active)
	w.PutInt32(b.id)
}

func decodeBullet(r *Reader) *Bullet {
	return &Bullet{
		heading:    r.Float64(),
		x:          r.Float64(),
		y:          r.Float64(),
		power:      r.Float64(),
		ownerName:  r.String(),
		victimName: r.String(),
		active:     r.Bool(),
		id:         r.Int32(),
	}
}

// BulletStatus はエンジン側で確定した弾の状態更新
type BulletStatus struct {
	BulletID   int32
	X, Y       float64
	VictimName string
	IsActive   bool
}

func (s *BulletStatus) TypeTag() TypeTag { return TypeBulletStatus }

func (s *BulletStatus) EncodeTo(w *Writer) {
	w.PutInt32(s.BulletID)
	w.PutFloat64(s.X)
	w.PutFloat64(s.Y)
	w.PutString(s.VictimName)
	w.PutBool(s.IsActive)
}

func decodeBulletStatus(r *Reader) *BulletStatus {
	return &BulletStatus{
		BulletID:   r.Int32(),
		X:          r.Float64(),
		Y:          r.Float64(),
		VictimName: r.String(),
		IsActive:   r.Bool(),
	}
}
