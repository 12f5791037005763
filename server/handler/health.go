package handler

import (
	"net/http"
)

// NewHealthHandler はエンジンが止まっていなければ200を返す。battleOverが閉じていれば410
func NewHealthHandler(battleOver <-chan struct{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-battleOver:
			w.WriteHeader(http.StatusGone)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}
}
