package domain

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SessionID はロボット1体とエンジンの接続を識別する
type SessionID [16]byte

func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

func SessionIDFromBytes(b [16]byte) SessionID { return SessionID(b) }

func ParseSessionID(s string) (SessionID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(id), nil
}

func (id SessionID) Bytes() [16]byte { return id }
func (id SessionID) IsEmpty() bool   { return id == SessionID{} }
func (id SessionID) String() string  { return uuid.UUID(id).String() }

// Session はエンジン接続1本の論理的な状態を表す構造体です。
type Session struct {
	id SessionID

	// activity
	lastRead  atomic.Int64
	lastWrite atomic.Int64

	// lifecycle
	closed atomic.Bool
}

func NewSession(id SessionID) *Session {
	if id.IsEmpty() {
		id = NewSessionID()
	}
	s := &Session{id: id}
	now := time.Now().UnixNano()
	s.lastRead.Store(now)
	s.lastWrite.Store(now)
	return s
}

func (s *Session) ID() SessionID { return s.id }

func (s *Session) TouchRead() {
	s.lastRead.Store(time.Now().UnixNano())
}

func (s *Session) TouchWrite() {
	s.lastWrite.Store(time.Now().UnixNano())
}

// Close は初回のみtrueを返す
func (s *Session) Close() bool {
	return s.closed.CompareAndSwap(false, true)
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// IsIdle はtimeoutを超えて読み書きのない方向をIdleReasonで返す
func (s *Session) IsIdle(timeout time.Duration) (bool, IdleReason) {
	if timeout <= 0 {
		return false, IdleDisabled
	}
	var reason IdleReason
	if isIdleSince(s.lastRead.Load(), timeout) {
		reason |= IdleRead
	}
	if isIdleSince(s.lastWrite.Load(), timeout) {
		reason |= IdleWrite
	}
	return reason != IdleNone, reason
}

func isIdleSince(nano int64, timeout time.Duration) bool {
	return time.Since(time.Unix(0, nano)) > timeout
}
