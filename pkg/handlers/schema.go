package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/logging"
	"github.com/crewquery/engine/pkg/schema"
)

// SchemaHandler serves catalog inspection and reload endpoints.
type SchemaHandler struct {
	catalog *schema.Catalog
	logger  *zap.Logger
}

// NewSchemaHandler creates a SchemaHandler.
func NewSchemaHandler(catalog *schema.Catalog, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{
		catalog: catalog,
		logger:  logger.Named("http"),
	}
}

// RegisterRoutes registers the schema routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/schema/info", h.Info)
	mux.HandleFunc("GET /api/schema/tables", h.Tables)
	mux.HandleFunc("POST /api/schema/reload", h.Reload)
}

// Info handles GET /api/schema/info.
func (h *SchemaHandler) Info(w http.ResponseWriter, r *http.Request) {
	snap, err := h.catalog.Snapshot()
	if err != nil {
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "catalog_unavailable", "schema catalog is not loaded")
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"databases":        snap.Aliases(),
		"total_databases":  snap.Stats.TotalDatabases,
		"total_tables":     snap.Stats.TotalTables,
		"total_columns":    snap.Stats.TotalColumns,
		"estimated_tokens": snap.Stats.EstimatedTokens,
		"loaded_at":        snap.LoadedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// TableInfo is one table of GET /api/schema/tables.
type TableInfo struct {
	Database    string `json:"database"`
	Table       string `json:"table"`
	Description string `json:"description,omitempty"`
	Columns     int    `json:"columns"`
}

// Tables handles GET /api/schema/tables.
func (h *SchemaHandler) Tables(w http.ResponseWriter, r *http.Request) {
	snap, err := h.catalog.Snapshot()
	if err != nil {
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "catalog_unavailable", "schema catalog is not loaded")
		return
	}

	out := make([]TableInfo, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		out = append(out, TableInfo{
			Database:    e.Database,
			Table:       e.Table,
			Description: e.Description,
			Columns:     len(e.Columns),
		})
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{"tables": out})
}

// Reload handles POST /api/schema/reload. The reload builds a fresh snapshot
// off to the side and swaps it in atomically; in-flight requests keep their
// current snapshot. Idempotent.
func (h *SchemaHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Load(); err != nil {
		h.logger.Error("catalog reload failed", zap.String("error", logging.SanitizeError(err)))
		_ = ErrorResponse(w, http.StatusInternalServerError, "reload_failed", "failed to reload schema catalog")
		return
	}

	snap, err := h.catalog.Snapshot()
	if err != nil {
		_ = ErrorResponse(w, http.StatusInternalServerError, "reload_failed", "failed to reload schema catalog")
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "reloaded",
		"total_tables": snap.Stats.TotalTables,
	})
}
