// Package api assembles the /v1 HTTP surface on a gorilla/mux router.
package api

import (
	"net/http"

	"recalld/pkg/api/handlers"
	"recalld/pkg/llm"
	"recalld/pkg/turn"

	"github.com/gorilla/mux"
)

// NewRouter builds the versioned API router. The turn controller and
// model client are shared by all handlers.
func NewRouter(ctrl *turn.Controller, client llm.Client) *mux.Router {
	handlers.Configure(ctrl, client)

	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterTurns(v1)
	handlers.RegisterMessages(v1)
	handlers.RegisterPins(v1)
	handlers.RegisterThreads(v1)
	handlers.RegisterAsk(v1)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})
	return r
}
