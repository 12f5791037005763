package recorder

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/segmentio/ksuid"

	"robohost/server/domain"
)

// Ext は記録ファイルの拡張子
const Ext = ".rhrec.zst"

// frameHeaderSize は交換1件の固定部分
//
//	session  [16]byte (16)
//	kind     u8  (1)
//	reqLen   u32 (4)
//	replyLen u32 (4)
const frameHeaderSize = 16 + 1 + 4 + 4

var ErrClosed = errors.New("recorder closed")

// Writer はエンジンとの交換をzstdで圧縮したストリームに書き出すdomain.Recorderです。
// 複数のプロキシから同時に呼ばれてよい。
type Writer struct {
	id   ksuid.KSUID
	path string

	mu     sync.Mutex
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
	hdr    [frameHeaderSize]byte
	frames int64
}

var _ domain.Recorder = (*Writer)(nil)

// Create はdir/<ksuid>.rhrec.zst を作って書き込みを始める
func Create(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	id := ksuid.New()
	path := filepath.Join(dir, id.String()+Ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	w, err := newWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.id = id
	w.path = path
	w.f = f
	return w, nil
}

// NewWriter はファイル以外の出力先に書く。Closeは出力先を閉じない
func NewWriter(out io.Writer) (*Writer, error) {
	return newWriter(out)
}

func newWriter(out io.Writer) (*Writer, error) {
	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return &Writer{
		id:  ksuid.New(),
		enc: enc,
		w:   bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

func (w *Writer) ID() ksuid.KSUID { return w.id }
func (w *Writer) Path() string    { return w.path }

func (w *Writer) Frames() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

func (w *Writer) RecordExchange(session domain.SessionID, kind domain.ExchangeKind, req, reply []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return ErrClosed
	}

	id := session.Bytes()
	copy(w.hdr[:16], id[:])
	w.hdr[16] = byte(kind)
	binary.LittleEndian.PutUint32(w.hdr[17:21], uint32(len(req)))
	binary.LittleEndian.PutUint32(w.hdr[21:25], uint32(len(reply)))
	if _, err := w.w.Write(w.hdr[:]); err != nil {
		return fmt.Errorf("record header: %w", err)
	}
	if _, err := w.w.Write(req); err != nil {
		return fmt.Errorf("record request: %w", err)
	}
	if _, err := w.w.Write(reply); err != nil {
		return fmt.Errorf("record reply: %w", err)
	}
	w.frames++
	return nil
}

// Close は残りを書き出してzstdフレームを閉じる
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	err := w.w.Flush()
	w.w = nil
	if cerr := w.enc.Close(); err == nil {
		err = cerr
	}
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
		w.f = nil
	}
	return err
}
