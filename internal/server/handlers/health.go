package handlers

import (
	"net/http"
	"time"
)

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Health обрабатывает GET /healthz
func Health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	}, http.StatusOK)
}
