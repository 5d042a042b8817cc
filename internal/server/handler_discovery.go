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
		Name:        "remotetask API",
		Version:     "v1",
		Description: "Runs job definitions on remote execution services and tracks each attempt to a terminal outcome",
		Endpoints: []endpointInfo{
			{"/api/v1/tasks", []string{"GET", "POST"}, "Task attempts. POST takes a parameter blob and starts an attempt"},
			{"/api/v1/tasks/{id}", []string{"GET"}, "Single attempt with state, handle and outcome"},
			{"/api/v1/tasks/{id}/cancel", []string{"PUT"}, "Cancel a running attempt"},
			{"/api/v1/connections", []string{"GET", "POST"}, "Stored connections (secrets are never returned)"},
			{"/api/v1/connections/{name}", []string{"GET", "DELETE"}, "Single stored connection"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
