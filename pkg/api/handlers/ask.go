package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"recalld/pkg/config"
	"recalld/pkg/lanes"
	"recalld/pkg/logger"
	"recalld/pkg/validation"

	"github.com/gorilla/mux"
)

// RegisterAsk registers the synchronous callback endpoint. It is mounted
// outside the /v1/threads scope and carries its own bearer credential.
func RegisterAsk(r *mux.Router) {
	r.HandleFunc("/ask", ask).Methods(http.MethodPost)
}

// ask handles POST /v1/ask: a one-shot question answered from the
// caller-supplied history and pins, no thread state and no retrieval.
func ask(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	key := config.GetAskKey()
	token := bearerToken(r)
	if key == "" || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
		logger.Warn("ask_unauthorized", "remote", r.RemoteAddr)
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req validation.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if errs := validation.ValidateAsk(req); len(errs) > 0 {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(struct {
			Error  string                  `json:"error"`
			Fields []validation.FieldError `json:"fields"`
		}{Error: "invalid request", Fields: errs})
		return
	}

	history := make([]string, 0, len(req.History))
	for _, h := range req.History {
		history = append(history, fmt.Sprintf("%s: %s", h.Role, h.Content))
	}
	pins := make([]string, 0, len(req.Pins))
	for _, p := range req.Pins {
		pins = append(pins, strings.TrimSpace(p.Content))
	}

	answer, err := lanes.Answer(r.Context(), model, req.Question, history, pins)
	if err != nil {
		logger.Error("ask_failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"answer": answer})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
