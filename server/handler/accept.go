package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	adapterwebsocket "robohost/server/adapter/websocket"
	"robohost/server/domain"
	"robohost/server/engine"
)

// SeatProvider はエンジンの席を払い出す
type SeatProvider interface {
	Join(ctx context.Context) (*engine.Seat, error)
}

type AcceptHandler struct {
	seats     SeatProvider
	endpoint  adapterwebsocket.EndpointOptions
	readLimit int64
	logger    *slog.Logger
}

func NewAcceptHandler(seats SeatProvider, endpoint adapterwebsocket.EndpointOptions, readLimit int64) *AcceptHandler {
	if readLimit <= 0 {
		readLimit = adapterwebsocket.DefaultReadLimit
	}
	logger := endpoint.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AcceptHandler{seats: seats, endpoint: endpoint, readLimit: readLimit, logger: logger}
}

func (h *AcceptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	// 席が取れないならupgradeせずに断る
	seat, err := h.seats.Join(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to join arena", "err", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // 開発用: Origin チェックをスキップ
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to accept", "err", err)
		_ = seat.Leave(ctx)
		return
	}
	conn.SetReadLimit(h.readLimit)

	session := domain.NewSession(seat.ID())
	transport := adapterwebsocket.NewTransportFrom(conn)
	pinger, _ := transport.(adapterwebsocket.Pinger)
	connection := domain.NewConnection(session, transport)
	endpoint, err := adapterwebsocket.NewEngineEndpoint(connection, pinger, seat, h.endpoint)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create engine endpoint", "err", err)
		_ = seat.Leave(ctx)
		return
	}
	h.logger.DebugContext(ctx, "accepted new connection", "session_id", session.ID().String())
	if err := endpoint.Run(ctx); err != nil {
		h.logger.ErrorContext(ctx, "engine endpoint stopped", "session_id", session.ID().String(), "err", err)
	}
}
