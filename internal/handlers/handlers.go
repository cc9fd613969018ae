// Package handlers serves the operational HTTP endpoints: broker health and
// routing metrics.
package handlers

import (
	"encoding/json"
	"net/http"

	"message-router/internal/binder"
	"message-router/internal/circuitbreaker"
	"message-router/internal/common/logging"
	"message-router/internal/routing"
)

// HealthChecker is satisfied by brokers.Broker
type HealthChecker interface {
	Name() string
	Health() error
}

type Handlers struct {
	broker   HealthChecker
	router   *routing.Router
	input    *binder.Input
	breakers *circuitbreaker.Manager
	logger   logging.Logger
}

func New(broker HealthChecker, router *routing.Router, input *binder.Input, breakers *circuitbreaker.Manager, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		broker:   broker,
		router:   router,
		input:    input,
		breakers: breakers,
		logger:   logger,
	}
}

type HealthResponse struct {
	Status string `json:"status"`
	Broker string `json:"broker"`
	Error  string `json:"error,omitempty"`
}

// HealthCheck reports 503 while the broker is unhealthy
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "healthy", Broker: h.broker.Name()}
	status := http.StatusOK

	if err := h.broker.Health(); err != nil {
		response.Status = "unhealthy"
		response.Error = err.Error()
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

type MetricsResponse struct {
	Router          routing.Stats          `json:"router"`
	Evaluator       string                 `json:"evaluator"`
	Destinations    []string               `json:"destinations"`
	Input           *binder.InputStats     `json:"input,omitempty"`
	RateLimit       map[string]interface{} `json:"rate_limit,omitempty"`
	CircuitBreakers []circuitbreaker.Stats `json:"circuit_breakers"`
}

func (h *Handlers) Metrics(w http.ResponseWriter, r *http.Request) {
	response := MetricsResponse{
		Router:          h.router.Stats(),
		Evaluator:       h.router.Evaluator().Kind(),
		Destinations:    h.router.Resolver().Destinations(),
		CircuitBreakers: []circuitbreaker.Stats{},
	}
	if h.input != nil {
		stats := h.input.Stats()
		response.Input = &stats
		response.RateLimit = h.input.RateLimitStats()
	}
	if h.breakers != nil {
		response.CircuitBreakers = h.breakers.AllStats()
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("Failed to write response", logging.Err(err))
	}
}
