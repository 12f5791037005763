package adapterwebsocket

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"

	"go.uber.org/mock/gomock"

	"robohost/server/domain"
	"robohost/server/domain/mocks"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRemoteEngineCall(t *testing.T) {
	session := domain.NewSessionID()
	other := domain.NewSessionID()
	req := []byte("commands")

	tests := []struct {
		name    string
		reply   []byte
		want    []byte
		wantErr error
	}{
		{
			name:  "reply",
			reply: AppendFrame(nil, FrameTick, session, []byte("results")),
			want:  []byte("results"),
		},
		{
			name:    "error frame",
			reply:   AppendFrame(nil, FrameError, session, []byte("arena: seat gone")),
			wantErr: &RemoteError{},
		},
		{
			name:    "foreign session",
			reply:   AppendFrame(nil, FrameTick, other, nil),
			wantErr: ErrSessionMismatch,
		},
		{
			name:    "wrong kind",
			reply:   AppendFrame(nil, FrameWait, session, nil),
			wantErr: ErrUnexpectedFrame,
		},
		{
			name:    "garbage",
			reply:   []byte{1},
			wantErr: ErrShortFrame,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			tr := mocks.NewMockTransport(ctrl)
			e := NewRemoteEngine(tr, session)

			gomock.InOrder(
				tr.EXPECT().Write(gomock.Any(), AppendFrame(nil, FrameTick, session, req)).Return(nil),
				tr.EXPECT().Read(gomock.Any()).Return(tt.reply, nil),
			)
			got, err := e.ExecuteTick(context.Background(), req)
			if tt.wantErr != nil {
				var remote *RemoteError
				if errors.As(tt.wantErr, &remote) {
					if !errors.As(err, &remote) || remote.Message != "arena: seat gone" {
						t.Fatalf("got %v, want a RemoteError", err)
					}
					return
				}
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExecuteTick failed: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRemoteEngineSessionIsGeneratedWhenEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	e := NewRemoteEngine(mocks.NewMockTransport(ctrl), domain.SessionID{})
	if e.Session().IsEmpty() {
		t.Error("expected a generated session id")
	}
}

func TestRemoteEngineClosesOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	e := NewRemoteEngine(tr, domain.NewSessionID())

	ctx, cancel := context.WithCancel(context.Background())
	tr.EXPECT().Write(gomock.Any(), gomock.Any()).Return(nil)
	tr.EXPECT().Read(gomock.Any()).DoAndReturn(func(context.Context) ([]byte, error) {
		cancel()
		return nil, context.Canceled
	})
	tr.EXPECT().Close(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	if _, err := e.StartRound(ctx, []byte("statics")); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	// 閉じた後の呼び出しは送信しない
	if _, err := e.ExecuteTick(context.Background(), nil); !errors.Is(err, net.ErrClosed) {
		t.Errorf("got %v, want net.ErrClosed", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestRemoteEngineLeave(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	session := domain.NewSessionID()
	e := NewRemoteEngine(tr, session)

	tr.EXPECT().Write(gomock.Any(), AppendFrame(nil, FrameLeave, session, nil)).Return(nil)
	if err := e.Leave(context.Background()); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
}
