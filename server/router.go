package server

import (
	"net/http"

	"robohost/server/handler"
)

func Route(accept *handler.AcceptHandler, battleOver <-chan struct{}) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", accept)
	mux.Handle("GET /healthz", handler.NewHealthHandler(battleOver))
	return mux
}
