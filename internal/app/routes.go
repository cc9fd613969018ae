package app

import (
	"github.com/gorilla/mux"

	"message-router/internal/common/logging"
	"message-router/internal/handlers"
	"message-router/internal/middleware"
)

// SetupRoutes configures the operational HTTP routes
func SetupRoutes(router *mux.Router, h *handlers.Handlers, logger logging.Logger) {
	router.Use(middleware.Logging(logger))

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/metrics", h.Metrics).Methods("GET")
}
