package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"recalld/pkg/lanes"
	"recalld/pkg/logger"
	"recalld/pkg/turn"
	"recalld/pkg/validation"

	"github.com/gorilla/mux"
)

// RegisterTurns registers the turn submission and status routes.
func RegisterTurns(r *mux.Router) {
	r.HandleFunc("/threads/{threadID}/turns", submitTurn).Methods(http.MethodPost)
	r.HandleFunc("/threads/{threadID}/turns/status", turnStatus).Methods(http.MethodGet)
}

// submitTurn handles POST /threads/{threadID}/turns. The turn runs
// synchronously; the response reports the final status for the thread.
func submitTurn(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	threadID := mux.Vars(r)["threadID"]

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if err := validation.ValidateTurnText(body.Text); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	_, err := controller.SubmitTurn(r.Context(), threadID, body.Text)
	if err != nil {
		writeTurnError(w, threadID, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"thread": threadID,
		"status": controller.Status(threadID),
	})
}

// turnStatus handles GET /threads/{threadID}/turns/status.
func turnStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	threadID := mux.Vars(r)["threadID"]
	_ = json.NewEncoder(w).Encode(map[string]string{
		"thread": threadID,
		"status": controller.Status(threadID),
	})
}

func writeTurnError(w http.ResponseWriter, threadID string, err error) {
	var pe *turn.PersistenceError
	var se *lanes.StageError
	switch {
	case errors.Is(err, turn.ErrTurnInFlight):
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusConflict)
	case errors.As(err, &pe), errors.As(err, &se):
		logger.Error("turn_failed", "thread", threadID, "error", err)
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
	default:
		logger.Error("turn_failed", "thread", threadID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}
