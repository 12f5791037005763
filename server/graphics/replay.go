package graphics

import (
	"errors"
	"fmt"

	"robohost/server/domain"
)

var ErrUnknownOpcode = errors.New("unknown paint opcode")

// Call はデコードされた1件の描画命令
type Call struct {
	Op    Opcode
	Color uint32
	Args  []int32
	Xs    []int32
	Ys    []int32
	Text  string
}

// Decode は描画ログを命令列に戻す。記録やテストの検査に使う。
func Decode(data []byte) ([]Call, error) {
	if len(data) == 0 {
		return nil, nil
	}
	flag := domain.ByteOrderFlag(data[0])
	if flag != domain.LittleEndian && flag != domain.BigEndian {
		return nil, fmt.Errorf("%w: paint log byte order %d", domain.ErrProtocolCorruption, data[0])
	}
	r := domain.NewReader(data[1:], flag)
	var calls []Call
	for r.Remaining() > 0 {
		op := Opcode(r.Byte())
		c := Call{Op: op}
		switch {
		case op == OpSetColor:
			if r.Bool() {
				c.Color = r.Uint32()
			}
		case op == OpDrawString:
			c.Text = r.String()
			c.Args = []int32{r.Int32(), r.Int32()}
		case op == OpDrawPolyline || op == OpDrawPolygon || op == OpFillPolygon:
			c.Xs = r.Int32s()
			c.Ys = r.Int32s()
			c.Args = []int32{r.Int32()}
		default:
			n, ok := intOperands[op]
			if !ok {
				return calls, fmt.Errorf("%w: %d", ErrUnknownOpcode, op)
			}
			c.Args = make([]int32, n)
			for i := range c.Args {
				c.Args[i] = r.Int32()
			}
		}
		if err := r.Err(); err != nil {
			return calls, err
		}
		calls = append(calls, c)
	}
	return calls, nil
}
