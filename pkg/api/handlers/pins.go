package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"recalld/pkg/pins"
	"recalld/pkg/store"

	"github.com/gorilla/mux"
)

// RegisterPins registers pin toggle and listing routes.
func RegisterPins(r *mux.Router) {
	r.HandleFunc("/threads/{threadID}/pins", listPins).Methods(http.MethodGet)
	r.HandleFunc("/threads/{threadID}/pins/{id}", togglePin).Methods(http.MethodPost)
}

type pinView struct {
	ID      string `json:"id"`
	Content string `json:"content,omitempty"`
}

func pinViews(threadID string) ([]pinView, error) {
	set, err := store.GetPins(threadID)
	if err != nil {
		return nil, err
	}
	out := make([]pinView, 0, len(set.Items))
	for _, id := range set.Items {
		v := pinView{ID: id}
		if m, err := store.GetMessage(id); err == nil {
			v.Content = m.Content
		}
		out = append(out, v)
	}
	return out, nil
}

// togglePin handles POST /threads/{threadID}/pins/{id} and returns the
// pin list after the flip.
func togglePin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	vars := mux.Vars(r)
	threadID := vars["threadID"]

	pinned, err := pins.Toggle(threadID, vars["id"])
	if err != nil {
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "does not belong") {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	views, err := pinViews(threadID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(struct {
		Thread string    `json:"thread"`
		Pinned bool      `json:"pinned"`
		Pins   []pinView `json:"pins"`
	}{Thread: threadID, Pinned: pinned, Pins: views})
}

// listPins handles GET /threads/{threadID}/pins.
func listPins(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	threadID := mux.Vars(r)["threadID"]
	views, err := pinViews(threadID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(struct {
		Thread string    `json:"thread"`
		Pins   []pinView `json:"pins"`
	}{Thread: threadID, Pins: views})
}
