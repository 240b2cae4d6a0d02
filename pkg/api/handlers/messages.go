package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"recalld/pkg/models"
	"recalld/pkg/pins"
	"recalld/pkg/store"

	"github.com/gorilla/mux"
)

// RegisterMessages registers thread message read routes.
func RegisterMessages(r *mux.Router) {
	r.HandleFunc("/threads/{threadID}/messages", listThreadMessages).Methods(http.MethodGet)
	r.HandleFunc("/threads/{threadID}/messages/{id}", getThreadMessage).Methods(http.MethodGet)
}

// listThreadMessages handles GET /threads/{threadID}/messages. Messages
// come back in log order with the derived pinned flag set. An optional
// "limit" query parameter keeps only the most recent n messages.
func listThreadMessages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	threadID := mux.Vars(r)["threadID"]

	msgs, err := store.ListMessages(threadID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	msgs, err = pins.Mark(threadID, msgs)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		if lim, err := strconv.Atoi(limStr); err == nil && lim >= 0 && lim < len(msgs) {
			msgs = msgs[len(msgs)-lim:]
		}
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	_ = json.NewEncoder(w).Encode(struct {
		Thread   string           `json:"thread"`
		Messages []models.Message `json:"messages"`
	}{Thread: threadID, Messages: msgs})
}

// getThreadMessage handles GET /threads/{threadID}/messages/{id}.
func getThreadMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	vars := mux.Vars(r)
	threadID := vars["threadID"]

	m, err := store.GetMessage(vars["id"])
	if err != nil || m.Thread != threadID {
		http.Error(w, `{"error":"message not found"}`, http.StatusNotFound)
		return
	}
	marked, err := pins.Mark(threadID, []models.Message{m})
	if err == nil && len(marked) == 1 {
		m = marked[0]
	}
	_ = json.NewEncoder(w).Encode(m)
}
