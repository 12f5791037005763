package graphics

import (
	"log/slog"

	"robohost/server/domain"
)

const (
	DefaultInitialSize = 2 * 1024
	DefaultMaxSize     = 64 * 1024
	DefaultWarnEvery   = 100
)

// Config は描画ログの容量ポリシー
type Config struct {
	InitialSize int
	MaxSize     int
	// WarnEvery は上限超過による破棄を何回ごとに警告するか
	WarnEvery int
	Order     domain.ByteOrderFlag
}

func DefaultConfig() Config {
	return Config{
		InitialSize: DefaultInitialSize,
		MaxSize:     DefaultMaxSize,
		WarnEvery:   DefaultWarnEvery,
		Order:       domain.LittleEndian,
	}
}

// Buffer は描画呼び出しを(命令, オペランド)の列として蓄積する。
// 先頭1バイトはバイトオーダーフラグ。描画が無効な間の呼び出しは捨てる。
//
// 追記が容量を超えた場合は直前のマークまで巻き戻し、容量を倍にして
// その1件だけを再試行する。上限を超えたらログ全体を捨てる。
type Buffer struct {
	cfg     Config
	w       *domain.Writer
	enabled bool

	pen      uint32
	emitted  uint32
	hasColor bool

	drops  int
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Buffer {
	if cfg.InitialSize <= 1 {
		cfg.InitialSize = DefaultInitialSize
	}
	if cfg.MaxSize < cfg.InitialSize {
		cfg.MaxSize = cfg.InitialSize
	}
	if cfg.WarnEvery <= 0 {
		cfg.WarnEvery = DefaultWarnEvery
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Buffer{
		cfg:    cfg,
		w:      domain.NewWriter(make([]byte, 0, cfg.InitialSize), cfg.Order),
		pen:    domain.DefaultBulletColor,
		logger: logger,
	}
	b.reset()
	return b
}

func (b *Buffer) reset() {
	b.w.Truncate(0)
	b.w.PutByte(byte(b.cfg.Order))
	b.hasColor = false
}

func (b *Buffer) SetPaintingEnabled(enabled bool) { b.enabled = enabled }
func (b *Buffer) PaintingEnabled() bool           { return b.enabled }

// Cap は現在の容量
func (b *Buffer) Cap() int { return b.w.Cap() }

// Len はフラグバイトを含む書き込み済みバイト数
func (b *Buffer) Len() int { return b.w.Len() }

// Drops は上限超過でログを捨てた回数
func (b *Buffer) Drops() int { return b.drops }

// TakeCalls は蓄積した描画ログを取り出して空にする。何も無ければnil。
func (b *Buffer) TakeCalls() []byte {
	if b.w.Len() <= 1 {
		return nil
	}
	out := make([]byte, b.w.Len())
	copy(out, b.w.Bytes())
	b.reset()
	return out
}

// emit は1件の描画命令を追記する。必要なら色の切り替えを前置する。
func (b *Buffer) emit(op Opcode, operands func(w *domain.Writer)) {
	if !b.enabled {
		return
	}
	for {
		mark := b.w.Len()
		needColor := !b.hasColor || b.emitted != b.pen
		if needColor && op != OpTranslate {
			b.w.PutByte(byte(OpSetColor))
			b.w.PutBool(true)
			b.w.PutInt32(int32(b.pen))
		}
		b.w.PutByte(byte(op))
		if operands != nil {
			operands(b.w)
		}
		if b.w.Err() == nil {
			if needColor && op != OpTranslate {
				b.emitted = b.pen
				b.hasColor = true
			}
			return
		}
		b.w.Truncate(mark)
		if !b.grow() {
			b.drop()
			return
		}
	}
}

func (b *Buffer) grow() bool {
	next := 2 * b.w.Cap()
	if next > b.cfg.MaxSize {
		return false
	}
	b.w.Resize(next)
	return true
}

func (b *Buffer) drop() {
	b.reset()
	b.drops++
	if b.drops == 1 || b.drops%b.cfg.WarnEvery == 0 {
		b.logger.Warn("robot is painting too much between actions, queued paint operations dropped",
			"max_bytes", b.cfg.MaxSize, "drops", b.drops)
	}
}

// SetColor は以降の描画に使う色(ARGB)を設定する
func (b *Buffer) SetColor(argb uint32) { b.pen = argb }

func (b *Buffer) Color() uint32 { return b.pen }

func (b *Buffer) Translate(x, y int32) {
	b.emit(OpTranslate, ints(x, y))
}

func (b *Buffer) DrawLine(x1, y1, x2, y2 int32) {
	b.emit(OpDrawLine, ints(x1, y1, x2, y2))
}

func (b *Buffer) DrawRect(x, y, width, height int32) {
	b.emit(OpDrawRect, ints(x, y, width, height))
}

func (b *Buffer) FillRect(x, y, width, height int32) {
	b.emit(OpFillRect, ints(x, y, width, height))
}

func (b *Buffer) ClearRect(x, y, width, height int32) {
	b.emit(OpClearRect, ints(x, y, width, height))
}

func (b *Buffer) DrawRoundRect(x, y, width, height, arcWidth, arcHeight int32) {
	b.emit(OpDrawRoundRect, ints(x, y, width, height, arcWidth, arcHeight))
}

func (b *Buffer) FillRoundRect(x, y, width, height, arcWidth, arcHeight int32) {
	b.emit(OpFillRoundRect, ints(x, y, width, height, arcWidth, arcHeight))
}

func (b *Buffer) DrawOval(x, y, width, height int32) {
	b.emit(OpDrawOval, ints(x, y, width, height))
}

func (b *Buffer) FillOval(x, y, width, height int32) {
	b.emit(OpFillOval, ints(x, y, width, height))
}

// DrawArc の角度は度単位
func (b *Buffer) DrawArc(x, y, width, height, startAngle, arcAngle int32) {
	b.emit(OpDrawArc, ints(x, y, width, height, startAngle, arcAngle))
}

func (b *Buffer) FillArc(x, y, width, height, startAngle, arcAngle int32) {
	b.emit(OpFillArc, ints(x, y, width, height, startAngle, arcAngle))
}

func (b *Buffer) DrawPolyline(xs, ys []int32) {
	b.emit(OpDrawPolyline, points(xs, ys))
}

func (b *Buffer) DrawPolygon(xs, ys []int32) {
	b.emit(OpDrawPolygon, points(xs, ys))
}

func (b *Buffer) FillPolygon(xs, ys []int32) {
	b.emit(OpFillPolygon, points(xs, ys))
}

func (b *Buffer) DrawString(s string, x, y int32) {
	if s == "" {
		return
	}
	b.emit(OpDrawString, func(w *domain.Writer) {
		w.PutString(s)
		w.PutInt32(x)
		w.PutInt32(y)
	})
}

func ints(v ...int32) func(w *domain.Writer) {
	return func(w *domain.Writer) {
		for _, x := range v {
			w.PutInt32(x)
		}
	}
}

// points は座標列を短い方の長さに揃えて書き込む
func points(xs, ys []int32) func(w *domain.Writer) {
	n := min(len(xs), len(ys))
	return func(w *domain.Writer) {
		w.PutInt32s(xs[:n])
		w.PutInt32s(ys[:n])
		w.PutInt32(int32(n))
	}
}
