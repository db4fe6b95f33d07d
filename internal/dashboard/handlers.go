package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// ResetFunc runs the reset coordinator.
type ResetFunc func() error

// NewRouter mounts the dashboard endpoints. reset may be nil to disable
// remote resets.
func NewRouter(h *Hub, reset ResetFunc) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/latest", h.handleLatest).Methods(http.MethodGet)
	r.HandleFunc("/ws", h.ServeWS)
	if reset != nil {
		r.HandleFunc("/reset", handleReset(reset)).Methods(http.MethodPost)
	}
	return r
}

// handleRoot is a liveness endpoint.
func handleRoot(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "swarmctl dashboard relay")
}

// handleLatest returns the latest update of the current session.
func (h *Hub) handleLatest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.Latest()); err != nil {
		http.Error(w, "Failed to encode latest", http.StatusInternalServerError)
		return
	}
}

type resetResponse struct {
	Reset          bool   `json:"reset"`
	BroadcastError string `json:"broadcastError,omitempty"`
}

// handleReset triggers a reset. State is cleared even when the directive
// could not be broadcast, so the request still succeeds.
func handleReset(reset ResetFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := resetResponse{Reset: true}
		if err := reset(); err != nil {
			resp.BroadcastError = err.Error()
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
	}
}
