package handlers

import (
	"encoding/json"
	"net/http"

	"recalld/pkg/models"
	"recalld/pkg/store"

	"github.com/gorilla/mux"
)

// RegisterThreads registers thread metadata and per-thread document views.
func RegisterThreads(r *mux.Router) {
	r.HandleFunc("/threads", listThreads).Methods(http.MethodGet)
	r.HandleFunc("/threads/{threadID}", getThread).Methods(http.MethodGet)
	r.HandleFunc("/threads/{threadID}/context", getContext).Methods(http.MethodGet)
	r.HandleFunc("/threads/{threadID}/lastturn", getLastTurn).Methods(http.MethodGet)
}

func listThreads(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	threads, err := store.ListThreads()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if threads == nil {
		threads = []models.Thread{}
	}
	_ = json.NewEncoder(w).Encode(struct {
		Threads []models.Thread `json:"threads"`
	}{Threads: threads})
}

func getThread(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	th, err := store.GetThread(mux.Vars(r)["threadID"])
	if err != nil {
		http.Error(w, `{"error":"thread not found"}`, http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(th)
}

// getContext handles GET /threads/{threadID}/context, a read-only view of
// the running context note.
func getContext(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	threadID := mux.Vars(r)["threadID"]
	note, err := store.GetContext(threadID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(struct {
		Thread string `json:"thread"`
		Note   string `json:"note"`
	}{Thread: threadID, Note: note.Note})
}

// getLastTurn handles GET /threads/{threadID}/lastturn.
func getLastTurn(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	threadID := mux.Vars(r)["threadID"]
	rec, err := store.GetLastTurn(threadID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(rec)
}
