package v1handler

import "net/http"

// HealthResponse reports that the process is serving.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Store   string `json:"store"`
}

// Health is a liveness check. It does not touch any dependency.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "exposureshield-api",
		Store:   h.options.StorageBackend,
	})
}
