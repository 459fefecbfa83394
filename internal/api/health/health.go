package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"reaper/internal/adapters/redis"
	"reaper/pkg/logger"
)

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	postgres    *sqlx.DB
	redis       *redis.Client
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a new health check handler. Nil dependencies are skipped, so
// the handler works for in-memory deployments too.
func New(log *logger.Logger, postgres *sqlx.DB, rdb *redis.Client, serviceName, version string) *Handler {
	return &Handler{
		log:         log,
		postgres:    postgres,
		redis:       rdb,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Uptime  string            `json:"uptime"`
	Checks  map[string]string `json:"checks"`
}

// HandleHealth reports liveness plus dependency status
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := h.check(r)

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// HandleReadiness reports whether the service can take traffic
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	h.HandleHealth(w, r)
}

func (h *Handler) check(r *http.Request) HealthStatus {
	status := HealthStatus{
		Status:  "healthy",
		Service: h.serviceName,
		Version: h.version,
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
		Checks:  make(map[string]string),
	}

	if h.postgres != nil {
		if err := h.postgres.PingContext(r.Context()); err != nil {
			status.Checks["postgres"] = err.Error()
			status.Status = "unhealthy"
		} else {
			status.Checks["postgres"] = "ok"
		}
	}
	if h.redis != nil {
		if err := h.redis.Health(r.Context()); err != nil {
			status.Checks["redis"] = err.Error()
			status.Status = "unhealthy"
		} else {
			status.Checks["redis"] = "ok"
		}
	}
	return status
}
