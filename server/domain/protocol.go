package domain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ByteOrderFlag はバッファ先頭1バイトに記録するバイトオーダー
type ByteOrderFlag uint8

const (
	LittleEndian ByteOrderFlag = 0
	BigEndian    ByteOrderFlag = 1
)

func (f ByteOrderFlag) Order() binary.ByteOrder {
	if f == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (f ByteOrderFlag) String() string {
	if f == BigEndian {
		return "big"
	}
	return "little"
}

// ParseByteOrderFlag は設定値("little"/"big")をフラグに変換する
func ParseByteOrderFlag(s string) (ByteOrderFlag, error) {
	switch s {
	case "", "little":
		return LittleEndian, nil
	case "big":
		return BigEndian, nil
	default:
		return 0, fmt.Errorf("unknown byte order %q", s)
	}
}

const (
	ProtocolMagic   uint32 = 0xC0DEDEA1
	ProtocolVersion uint32 = 1

	// BufferHeaderSize はバッファヘッダー (13バイト)
	//
	//	order    u8  (1)
	//	magic    u32 (4)
	//	version  u32 (4)
	//	length   u32 (4) - ペイロード長
	BufferHeaderSize = 13
)

// サイズ定数
const (
	SizeOfBool    = 1
	SizeOfByte    = 1
	SizeOfInt32   = 4
	SizeOfInt64   = 8
	SizeOfFloat64 = 8
	SizeOfTag     = 1
)

// TypeTag は多相シーケンス中の要素型を示す
type TypeTag int8

const (
	TypeTerminator    TypeTag = -1
	TypeExecCommands  TypeTag = 1
	TypeBulletCommand TypeTag = 2
	TypeTeamMessage   TypeTag = 3
	TypeDebugProperty TypeTag = 4
	TypeExecResults   TypeTag = 5
	TypeRobotStatus   TypeTag = 6
	TypeBulletStatus  TypeTag = 7
	TypeBattleResults TypeTag = 8
	TypeBullet        TypeTag = 9
	TypeRobotStatics  TypeTag = 10
	TypeRoundStart    TypeTag = 11

	TypeBattleEndedEvent     TypeTag = 32
	TypeBulletHitBulletEvent TypeTag = 33
	TypeBulletHitEvent       TypeTag = 34
	TypeBulletMissedEvent    TypeTag = 35
	TypeDeathEvent           TypeTag = 36
	TypeWinEvent             TypeTag = 37
	TypeHitWallEvent         TypeTag = 38
	TypeRobotDeathEvent      TypeTag = 39
	TypeSkippedTurnEvent     TypeTag = 40
	TypeScannedRobotEvent    TypeTag = 41
	TypeHitByBulletEvent     TypeTag = 42
	TypeHitRobotEvent        TypeTag = 43
	TypeKeyPressedEvent      TypeTag = 44
	TypeKeyReleasedEvent     TypeTag = 45
	TypeKeyTypedEvent        TypeTag = 46
	TypeMouseClickedEvent    TypeTag = 47
	TypeMouseDraggedEvent    TypeTag = 48
	TypeMouseEnteredEvent    TypeTag = 49
	TypeMouseExitedEvent     TypeTag = 50
	TypeMouseMovedEvent      TypeTag = 51
	TypeMousePressedEvent    TypeTag = 52
	TypeMouseReleasedEvent   TypeTag = 53
	TypeMouseWheelMovedEvent TypeTag = 54
	TypeRoundEndedEvent      TypeTag = 55
)

// ErrProtocolCorruption はデコード失敗すべてがラップするエラーです。
// ローカルでは回復できず、そのtickを失敗させます。
var ErrProtocolCorruption = errors.New("protocol corruption")

var (
	ErrShortBuffer     = fmt.Errorf("%w: short buffer", ErrProtocolCorruption)
	ErrUnknownType     = fmt.Errorf("%w: unknown or unsupported type tag", ErrProtocolCorruption)
	ErrBadMagic        = fmt.Errorf("%w: bad magic", ErrProtocolCorruption)
	ErrVersionMismatch = fmt.Errorf("%w: protocol version mismatch", ErrProtocolCorruption)
	ErrLengthMismatch  = fmt.Errorf("%w: payload length mismatch", ErrProtocolCorruption)
	ErrTrailingBytes   = fmt.Errorf("%w: trailing bytes after object", ErrProtocolCorruption)
	ErrUnexpectedType  = fmt.Errorf("%w: unexpected object type", ErrProtocolCorruption)
	ErrNegativeLength  = fmt.Errorf("%w: negative length", ErrProtocolCorruption)
)

var (
	// ErrBufferOverflow は固定容量のバッファに収まらない場合のエラーです。
	ErrBufferOverflow = errors.New("buffer capacity exceeded")
	// ErrUnserializableEvent はワイヤー表現を持たないイベントをエンコードしようとした場合のエラーです。
	ErrUnserializableEvent = errors.New("event kind is not wire serializable")
)

// Serializable は型タグ付きでエンコードできる値
type Serializable interface {
	TypeTag() TypeTag
	EncodeTo(w *Writer)
}

// Writer は固定容量のバッファに値を書き込む。
// 容量を超えるとErrBufferOverflowを保持し以降の書き込みを無視する。
type Writer struct {
	order binary.ByteOrder
	buf   []byte
	err   error
}

// NewWriter はbufの容量をそのまま上限として使うWriterを生成する
func NewWriter(buf []byte, flag ByteOrderFlag) *Writer {
	return &Writer{order: flag.Order(), buf: buf[:0]}
}

func (w *Writer) Len() int       { return len(w.buf) }
func (w *Writer) Cap() int       { return cap(w.buf) }
func (w *Writer) Bytes() []byte  { return w.buf }
func (w *Writer) Err() error     { return w.err }
func (w *Writer) SetErr(e error) { w.err = e }

// Truncate は位置nまで巻き戻しエラー状態も解除する
func (w *Writer) Truncate(n int) {
	w.buf = w.buf[:n]
	w.err = nil
}

// Resize は書き込み済みの内容を保ったまま容量をnに変更する
func (w *Writer) Resize(n int) {
	if n < len(w.buf) {
		n = len(w.buf)
	}
	buf := make([]byte, len(w.buf), n)
	copy(buf, w.buf)
	w.buf = buf
}

func (w *Writer) grow(n int) []byte {
	if w.err != nil {
		return nil
	}
	l := len(w.buf)
	if l+n > cap(w.buf) {
		w.err = ErrBufferOverflow
		return nil
	}
	w.buf = w.buf[:l+n]
	return w.buf[l : l+n]
}

func (w *Writer) PutByte(v byte) {
	if b := w.grow(SizeOfByte); b != nil {
		b[0] = v
	}
}

func (w *Writer) PutBool(v bool) {
	if v {
		w.PutByte(1)
		return
	}
	w.PutByte(0)
}

func (w *Writer) PutTag(t TypeTag) { w.PutByte(byte(t)) }

func (w *Writer) PutInt32(v int32) {
	if b := w.grow(SizeOfInt32); b != nil {
		w.order.PutUint32(b, uint32(v))
	}
}

func (w *Writer) PutUint32(v uint32) {
	if b := w.grow(SizeOfInt32); b != nil {
		w.order.PutUint32(b, v)
	}
}

func (w *Writer) PutInt64(v int64) {
	if b := w.grow(SizeOfInt64); b != nil {
		w.order.PutUint64(b, uint64(v))
	}
}

func (w *Writer) PutFloat64(v float64) {
	if b := w.grow(SizeOfFloat64); b != nil {
		w.order.PutUint64(b, math.Float64bits(v))
	}
}

// PutString は長さ(i32)+UTF-8バイト列を書き込む
func (w *Writer) PutString(s string) {
	w.PutInt32(int32(len(s)))
	if b := w.grow(len(s)); b != nil {
		copy(b, s)
	}
}

// PutBytes はnilを長さ-1として書き込む
func (w *Writer) PutBytes(v []byte) {
	if v == nil {
		w.PutInt32(-1)
		return
	}
	w.PutInt32(int32(len(v)))
	if b := w.grow(len(v)); b != nil {
		copy(b, v)
	}
}

func (w *Writer) PutInt32s(v []int32) {
	if v == nil {
		w.PutInt32(-1)
		return
	}
	w.PutInt32(int32(len(v)))
	for _, x := range v {
		w.PutInt32(x)
	}
}

func (w *Writer) PutFloat64s(v []float64) {
	if v == nil {
		w.PutInt32(-1)
		return
	}
	w.PutInt32(int32(len(v)))
	for _, x := range v {
		w.PutFloat64(x)
	}
}

// PutObject は型タグとペイロードを書き込む
func (w *Writer) PutObject(v Serializable) {
	w.PutTag(v.TypeTag())
	v.EncodeTo(w)
}

// PutTerminator は多相シーケンスの終端を書き込む
func (w *Writer) PutTerminator() { w.PutTag(TypeTerminator) }

// Reader はバイト列から値を読み出す。
// 読み出し超過はErrShortBufferを保持し以降はゼロ値を返す。
type Reader struct {
	order binary.ByteOrder
	data  []byte
	pos   int
	err   error
}

func NewReader(data []byte, flag ByteOrderFlag) *Reader {
	return &Reader{order: flag.Order(), data: data}
}

func (r *Reader) Err() error     { return r.err }
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.fail(ErrShortBuffer)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *Reader) Byte() byte {
	if b := r.take(SizeOfByte); b != nil {
		return b[0]
	}
	return 0
}

func (r *Reader) Bool() bool   { return r.Byte() != 0 }
func (r *Reader) Tag() TypeTag { return TypeTag(int8(r.Byte())) }

func (r *Reader) Int32() int32 {
	if b := r.take(SizeOfInt32); b != nil {
		return int32(r.order.Uint32(b))
	}
	return 0
}

func (r *Reader) Uint32() uint32 {
	if b := r.take(SizeOfInt32); b != nil {
		return r.order.Uint32(b)
	}
	return 0
}

func (r *Reader) Int64() int64 {
	if b := r.take(SizeOfInt64); b != nil {
		return int64(r.order.Uint64(b))
	}
	return 0
}

func (r *Reader) Float64() float64 {
	if b := r.take(SizeOfFloat64); b != nil {
		return math.Float64frombits(r.order.Uint64(b))
	}
	return 0
}

// length は長さプレフィックスを読む。-1はnull。
func (r *Reader) length() (int, bool) {
	n := r.Int32()
	if r.err != nil {
		return 0, false
	}
	if n == -1 {
		return 0, false
	}
	if n < 0 {
		r.fail(ErrNegativeLength)
		return 0, false
	}
	return int(n), true
}

// String はnull(-1)を空文字として返す
func (r *Reader) String() string {
	n, ok := r.length()
	if !ok {
		return ""
	}
	return string(r.take(n))
}

func (r *Reader) Bytes() []byte {
	n, ok := r.length()
	if !ok {
		return nil
	}
	b := r.take(n)
	if r.err != nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (r *Reader) Int32s() []int32 {
	n, ok := r.length()
	if !ok {
		return nil
	}
	if n*SizeOfInt32 > r.Remaining() {
		r.fail(ErrShortBuffer)
		return nil
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = r.Int32()
	}
	return out
}

func (r *Reader) Float64s() []float64 {
	n, ok := r.length()
	if !ok {
		return nil
	}
	if n*SizeOfFloat64 > r.Remaining() {
		r.fail(ErrShortBuffer)
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = r.Float64()
	}
	return out
}

// ReadAny は型タグを1つ読み、対応する値をデコードする。
// 終端タグの場合は(nil, nil)を返す。
func (r *Reader) ReadAny() (any, error) {
	tag := r.Tag()
	if r.err != nil {
		return nil, r.err
	}
	if tag == TypeTerminator {
		return nil, nil
	}
	v, err := decodeTagged(r, tag)
	if err != nil {
		r.fail(err)
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}
	return v, nil
}

func decodeTagged(r *Reader, tag TypeTag) (any, error) {
	switch tag {
	case TypeExecCommands:
		return decodeExecCommands(r)
	case TypeBulletCommand:
		return decodeBulletCommand(r), nil
	case TypeTeamMessage:
		return decodeTeamMessage(r), nil
	case TypeDebugProperty:
		return decodeDebugProperty(r), nil
	case TypeExecResults:
		return decodeExecResults(r)
	case TypeRobotStatus:
		return decodeRobotStatus(r), nil
	case TypeBulletStatus:
		return decodeBulletStatus(r), nil
	case TypeBattleResults:
		return decodeBattleResults(r), nil
	case TypeBullet:
		return decodeBullet(r), nil
	case TypeRobotStatics:
		return decodeRobotStatics(r), nil
	case TypeRoundStart:
		return decodeRoundStart(r)
	}
	if kind, ok := eventKindForTag(tag); ok {
		return decodeEvent(r, kind)
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownType, tag)
}

type BufferHeader struct {
	Order   ByteOrderFlag
	Magic   uint32
	Version uint32
	Length  uint32
}

// ParseBufferHeader はバッファ先頭のヘッダーをパースする
func ParseBufferHeader(data []byte) (*BufferHeader, error) {
	if len(data) < BufferHeaderSize {
		return nil, ErrShortBuffer
	}
	flag := ByteOrderFlag(data[0])
	if flag != LittleEndian && flag != BigEndian {
		return nil, fmt.Errorf("%w: byte order flag %d", ErrProtocolCorruption, data[0])
	}
	order := flag.Order()
	return &BufferHeader{
		Order:   flag,
		Magic:   order.Uint32(data[1:5]),
		Version: order.Uint32(data[5:9]),
		Length:  order.Uint32(data[9:13]),
	}, nil
}

// Marshal はbufの容量内にヘッダー付きでvをエンコードする。
// bufはtick中の共有バッファで、位置は毎回0から書き直す。
func Marshal(buf []byte, flag ByteOrderFlag, v Serializable) ([]byte, error) {
	w := NewWriter(buf, flag)
	w.PutByte(byte(flag))
	w.PutUint32(ProtocolMagic)
	w.PutUint32(ProtocolVersion)
	w.PutUint32(0)
	w.PutObject(v)
	if err := w.Err(); err != nil {
		return nil, err
	}
	out := w.Bytes()
	flag.Order().PutUint32(out[9:13], uint32(len(out)-BufferHeaderSize))
	return out, nil
}

// Unmarshal はヘッダーのバイトオーダーに従って1つの値をデコードする
func Unmarshal(data []byte) (any, error) {
	h, err := ParseBufferHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Magic != ProtocolMagic {
		return nil, ErrBadMagic
	}
	if h.Version != ProtocolVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, h.Version, ProtocolVersion)
	}
	payload := data[BufferHeaderSize:]
	if int(h.Length) != len(payload) {
		return nil, fmt.Errorf("%w: header %d, payload %d", ErrLengthMismatch, h.Length, len(payload))
	}
	r := NewReader(payload, h.Order)
	v, err := r.ReadAny()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%w: terminator at top level", ErrUnexpectedType)
	}
	if r.Remaining() != 0 {
		return nil, ErrTrailingBytes
	}
	return v, nil
}

// UnmarshalAs はUnmarshalした値を型Tとして取り出す
func UnmarshalAs[T any](data []byte) (T, error) {
	var zero T
	v, err := Unmarshal(data)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T", ErrUnexpectedType, v)
	}
	return t, nil
}
