package graphics

import "fmt"

// Opcode は描画ログ中の命令種別
type Opcode byte

const (
	OpTranslate Opcode = iota
	OpSetColor
	OpSetPaintMode
	OpSetXORMode
	OpSetFont
	OpClipRect
	OpSetClip
	OpSetClipShape
	OpCopyArea
	OpDrawLine
	OpFillRect
	OpDrawRect
	OpClearRect
	OpDrawRoundRect
	OpFillRoundRect
	OpDraw3DRect
	OpFill3DRect
	OpDrawOval
	OpFillOval
	OpDrawArc
	OpFillArc
	OpDrawPolyline
	OpDrawPolygon
	OpFillPolygon
	OpDrawString
)

var opNames = map[Opcode]string{
	OpTranslate:     "Translate",
	OpSetColor:      "SetColor",
	OpClipRect:      "ClipRect",
	OpSetClip:       "SetClip",
	OpDrawLine:      "DrawLine",
	OpFillRect:      "FillRect",
	OpDrawRect:      "DrawRect",
	OpClearRect:     "ClearRect",
	OpDrawRoundRect: "DrawRoundRect",
	OpFillRoundRect: "FillRoundRect",
	OpDrawOval:      "DrawOval",
	OpFillOval:      "FillOval",
	OpDrawArc:       "DrawArc",
	OpFillArc:       "FillArc",
	OpDrawPolyline:  "DrawPolyline",
	OpDrawPolygon:   "DrawPolygon",
	OpFillPolygon:   "FillPolygon",
	OpDrawString:    "DrawString",
}

func (op Opcode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", op)
}

// intOperands は固定長のint32オペランドを持つ命令のオペランド数
var intOperands = map[Opcode]int{
	OpTranslate:     2,
	OpClipRect:      4,
	OpSetClip:       4,
	OpDrawLine:      4,
	OpFillRect:      4,
	OpDrawRect:      4,
	OpClearRect:     4,
	OpDrawRoundRect: 6,
	OpFillRoundRect: 6,
	OpDrawOval:      4,
	OpFillOval:      4,
	OpDrawArc:       6,
	OpFillArc:       6,
}
