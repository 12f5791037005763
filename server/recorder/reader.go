package recorder

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/klauspost/compress/zstd"

	"robohost/server/domain"
)

var ErrTruncated = errors.New("recording truncated")

// Exchange は記録された交換1件
type Exchange struct {
	Session domain.SessionID
	Kind    domain.ExchangeKind
	Request []byte
	Reply   []byte
}

// Commands はtickまたはwaitの要求をデコードする
func (x Exchange) Commands() (*domain.ExecCommands, error) {
	if x.Kind == domain.ExchangeStartRound {
		return nil, fmt.Errorf("%w: %s exchange carries statics", domain.ErrUnexpectedType, x.Kind)
	}
	return domain.UnmarshalAs[*domain.ExecCommands](x.Request)
}

// Results はtickまたはwaitの応答をデコードする
func (x Exchange) Results() (*domain.ExecResults, error) {
	if x.Kind == domain.ExchangeStartRound {
		return nil, fmt.Errorf("%w: %s exchange carries a round start", domain.ErrUnexpectedType, x.Kind)
	}
	return domain.UnmarshalAs[*domain.ExecResults](x.Reply)
}

func (x Exchange) RoundStart() (*domain.RoundStart, error) {
	if x.Kind != domain.ExchangeStartRound {
		return nil, fmt.Errorf("%w: %s exchange carries results", domain.ErrUnexpectedType, x.Kind)
	}
	return domain.UnmarshalAs[*domain.RoundStart](x.Reply)
}

type Reader struct {
	f   *os.File
	dec *zstd.Decoder
	r   *bufio.Reader
	hdr [frameHeaderSize]byte
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.f = f
	return r, nil
}

func NewReader(in io.Reader) (*Reader, error) {
	dec, err := zstd.NewReader(in)
	if err != nil {
		return nil, err
	}
	return &Reader{dec: dec, r: bufio.NewReaderSize(dec, 128*1024)}, nil
}

// Next は次の交換を返す。終端ではio.EOF
func (r *Reader) Next() (Exchange, error) {
	if _, err := io.ReadFull(r.r, r.hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Exchange{}, io.EOF
		}
		return Exchange{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	var id [16]byte
	copy(id[:], r.hdr[:16])
	x := Exchange{
		Session: domain.SessionIDFromBytes(id),
		Kind:    domain.ExchangeKind(r.hdr[16]),
		Request: make([]byte, binary.LittleEndian.Uint32(r.hdr[17:21])),
		Reply:   make([]byte, binary.LittleEndian.Uint32(r.hdr[21:25])),
	}
	if _, err := io.ReadFull(r.r, x.Request); err != nil {
		return Exchange{}, fmt.Errorf("%w: request: %v", ErrTruncated, err)
	}
	if _, err := io.ReadFull(r.r, x.Reply); err != nil {
		return Exchange{}, fmt.Errorf("%w: reply: %v", ErrTruncated, err)
	}
	return x, nil
}

// All は終端まで交換を順に返す。エラーが出たらそこで止まる
func (r *Reader) All() iter.Seq2[Exchange, error] {
	return func(yield func(Exchange, error) bool) {
		for {
			x, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(x, err) || err != nil {
				return
			}
		}
	}
}

func (r *Reader) Close() error {
	r.dec.Close()
	if r.f != nil {
		return r.f.Close()
	}
	return nil
}
