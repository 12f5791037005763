package adapterwebsocket

import (
	"errors"
	"fmt"

	"robohost/server/domain"
)

// FrameKind はwebsocketメッセージ1通の種別
type FrameKind uint8

const (
	FrameTick FrameKind = iota + 1
	FrameWait
	// FrameStartRound はRobotStaticsを運ぶ。接続の最初のフレームならセッションの登録も兼ねる
	FrameStartRound
	FrameError
	FrameLeave
)

func (k FrameKind) String() string {
	switch k {
	case FrameTick:
		return "tick"
	case FrameWait:
		return "wait"
	case FrameStartRound:
		return "start_round"
	case FrameError:
		return "error"
	case FrameLeave:
		return "leave"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// FrameHeaderSize はフレームヘッダー (17バイト)
//
//	kind     u8  (1)
//	session  [16]byte (16)
const FrameHeaderSize = 1 + 16

var (
	ErrShortFrame       = errors.New("frame shorter than header")
	ErrUnknownFrameKind = errors.New("unknown frame kind")
	ErrSessionMismatch  = errors.New("frame session does not match the connection")
)

// RemoteError はエラーフレームで通知された相手側のエラーです。
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return "remote engine: " + e.Message }

// Frame はデコード済みのフレーム。Payloadは元のメッセージを指す
type Frame struct {
	Kind    FrameKind
	Session domain.SessionID
	Payload []byte
}

// AppendFrame はdstにフレームを追記して返す
func AppendFrame(dst []byte, kind FrameKind, session domain.SessionID, payload []byte) []byte {
	dst = append(dst, byte(kind))
	id := session.Bytes()
	dst = append(dst, id[:]...)
	return append(dst, payload...)
}

func ParseFrame(data []byte) (Frame, error) {
	if len(data) < FrameHeaderSize {
		return Frame{}, ErrShortFrame
	}
	kind := FrameKind(data[0])
	if kind < FrameTick || kind > FrameLeave {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnknownFrameKind, data[0])
	}
	var id [16]byte
	copy(id[:], data[1:FrameHeaderSize])
	return Frame{
		Kind:    kind,
		Session: domain.SessionIDFromBytes(id),
		Payload: data[FrameHeaderSize:],
	}, nil
}
