package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/config"
	"github.com/crewquery/engine/pkg/executor"
	"github.com/crewquery/engine/pkg/schema"
)

const readinessTimeout = 5 * time.Second

// HealthHandler handles liveness and readiness endpoints.
type HealthHandler struct {
	cfg     *config.Config
	catalog *schema.Catalog
	engine  *executor.Engine
	logger  *zap.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, catalog *schema.Catalog, engine *executor.Engine, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, catalog: catalog, engine: engine, logger: logger}
}

// RegisterRoutes registers the health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
}

// Health handles GET /health. Liveness only.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ReadyResponse reports per-dependency readiness.
type ReadyResponse struct {
	Status    string `json:"status"`
	Catalog   bool   `json:"catalog"`
	Databases bool   `json:"databases"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
}

// Ready handles GET /ready. The service is ready once the catalog is loaded
// and every configured database can be attached.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := ReadyResponse{
		Catalog:   h.catalog.Loaded(),
		Version:   h.cfg.Version,
		GoVersion: runtime.Version(),
	}

	if err := h.engine.Ping(ctx); err != nil {
		h.logger.Warn("readiness: database ping failed", zap.Error(err))
	} else {
		resp.Databases = true
	}

	status := http.StatusOK
	resp.Status = "ready"
	if !resp.Catalog || !resp.Databases {
		status = http.StatusServiceUnavailable
		resp.Status = "not_ready"
	}

	_ = WriteJSON(w, status, resp)
}
