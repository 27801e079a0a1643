package network

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// HealthResponse is served on GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Device   string `json:"device,omitempty"`
}

// newRouter serves the health probe and upgrades every other path.
func (s *Server) newRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.PathPrefix("/").HandlerFunc(s.handleUpgrade)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:   "ok",
		Sessions: s.SessionCount(),
	}
	if device := s.store.Device(); device != nil {
		response.Device = device.Name
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log.Debug().Err(err).Msg("write health response")
	}
}
