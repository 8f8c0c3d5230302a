package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/me/tickos/internal/config"
	"github.com/me/tickos/pkg/model"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Store     string `json:"store"`
	Runs      int    `json:"runs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	resp := healthResponse{
		Status:    "healthy",
		Version:   config.Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Store:     "ok",
	}
	opts := model.DefaultListOptions()
	opts.Limit = 1
	if _, total, err := s.store.ListRuns(r.Context(), opts); err != nil {
		resp.Status = "degraded"
		resp.Store = err.Error()
	} else {
		resp.Runs = total
	}
	respondOK(w, reqID, resp)
}
