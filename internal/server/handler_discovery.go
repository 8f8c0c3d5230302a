package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "tickos API",
		Version:     "v1",
		Description: "Simulated Cortex-M scheduler runs, switch traces and task reports",
		Endpoints: []endpointInfo{
			{"/api/v1/runs", []string{"GET", "POST"}, "List runs; POST a YAML manifest with ?ticks=N to simulate and record it"},
			{"/api/v1/runs/{id}", []string{"GET", "DELETE"}, "Single run with task reports"},
			{"/api/v1/runs/{id}/switches", []string{"GET"}, "Context-switch trace, optionally windowed by ?from=&to="},
			{"/api/v1/runs/{id}/tasks", []string{"GET"}, "Final task table report"},
			{"/api/v1/runs/{id}/chart.png", []string{"GET"}, "Gantt chart of the switch trace"},
			{"/api/v1/manifests/validate", []string{"POST"}, "Validate a YAML manifest without running it"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
