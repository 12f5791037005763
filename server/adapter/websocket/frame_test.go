package adapterwebsocket

import (
	"bytes"
	"errors"
	"testing"

	"pgregory.net/rapid"

	"robohost/server/domain"
)

func TestParseFrame(t *testing.T) {
	session := domain.NewSessionID()
	tests := []struct {
		name    string
		data    []byte
		want    Frame
		wantErr error
	}{
		{
			name: "tick with payload",
			data: AppendFrame(nil, FrameTick, session, []byte{1, 2, 3}),
			want: Frame{Kind: FrameTick, Session: session, Payload: []byte{1, 2, 3}},
		},
		{
			name: "leave without payload",
			data: AppendFrame(nil, FrameLeave, session, nil),
			want: Frame{Kind: FrameLeave, Session: session, Payload: []byte{}},
		},
		{
			name:    "short",
			data:    []byte{byte(FrameTick), 1, 2},
			wantErr: ErrShortFrame,
		},
		{
			name:    "unknown kind",
			data:    AppendFrame(nil, FrameKind(9), session, nil),
			wantErr: ErrUnknownFrameKind,
		},
		{
			name:    "zero kind",
			data:    AppendFrame(nil, FrameKind(0), session, nil),
			wantErr: ErrUnknownFrameKind,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFrame(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFrame failed: %v", err)
			}
			if got.Kind != tt.want.Kind || got.Session != tt.want.Session || !bytes.Equal(got.Payload, tt.want.Payload) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAppendFrameReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 64)
	out := AppendFrame(buf, FrameWait, domain.NewSessionID(), []byte("abc"))
	if &out[0] != &buf[:1][0] {
		t.Error("AppendFrame allocated although the buffer had room")
	}
	if len(out) != FrameHeaderSize+3 {
		t.Errorf("len = %d, want %d", len(out), FrameHeaderSize+3)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kind := FrameKind(rapid.IntRange(int(FrameTick), int(FrameLeave)).Draw(t, "kind"))
		var id [16]byte
		copy(id[:], rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, "session"))
		payload := rapid.SliceOf(rapid.Byte()).Draw(t, "payload")

		got, err := ParseFrame(AppendFrame(nil, kind, domain.SessionIDFromBytes(id), payload))
		if err != nil {
			t.Fatalf("ParseFrame failed: %v", err)
		}
		if got.Kind != kind || got.Session.Bytes() != id || !bytes.Equal(got.Payload, payload) {
			t.Fatalf("got %+v", got)
		}
	})
}
