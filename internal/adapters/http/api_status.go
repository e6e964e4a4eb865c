package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lagscout/lagscout/internal/utils"
)

type healthResponse struct {
	Status    string          `json:"status"`
	Instances map[string]bool `json:"instances"`
}

// apiHealth reports agent liveness and per-instance broker reachability.
func (s *Server) apiHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{Status: "ok", Instances: make(map[string]bool)}
	for _, inst := range s.repo.FindAll() {
		healthy := false
		if client, ok := s.repo.GetClient(inst.ID()); ok {
			healthy = client.IsHealthy()
		}
		resp.Instances[inst.ID()] = healthy
	}
	writeJSON(w, resp)
}

func (s *Server) apiListInstances(w http.ResponseWriter, r *http.Request) {
	_ = r
	instances := s.repo.FindAll()
	utils.Logger.Debug("api list instances", "count", len(instances))
	writeJSON(w, instances)
}

func (s *Server) apiGetInstance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "instanceID")
	inst, ok := s.repo.FindByID(id)
	if !ok {
		http.Error(w, "instance not found", http.StatusNotFound)
		return
	}
	writeJSON(w, inst)
}

// apiStatus returns the latest check result of every instance.
func (s *Server) apiStatus(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, s.store.Snapshot())
}

// apiInstanceStatus returns the latest check result of one instance.
func (s *Server) apiInstanceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "instanceID")
	res, ok := s.store.Get(id)
	if !ok {
		http.Error(w, "no result for instance", http.StatusNotFound)
		return
	}
	writeJSON(w, res)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Logger.Error("encode response failed", "err", err)
	}
}
