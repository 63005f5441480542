package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"kgraph/domain/core/valueobjects"
	pkgerrors "kgraph/pkg/errors"

	"go.uber.org/zap"
)

// Search result limits
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// GraphHandler serves graph projections, search and maintenance
type GraphHandler struct {
	base
	commands GraphCommands
	queries  GraphQueries
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(
	commands GraphCommands,
	queries GraphQueries,
	errors *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *GraphHandler {
	return &GraphHandler{
		base:     base{errors: errors, logger: logger},
		commands: commands,
		queries:  queries,
	}
}

// GetGraph handles GET /graph. An optional ids=1,2,3 parameter restricts
// the projection to those nodes.
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDList(r.URL.Query().Get("ids"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	view, err := h.queries.GraphProjection(r.Context(), ids)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// Search handles GET /search?q=...&limit=...
func (h *GraphHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := DefaultSearchLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.errors.Handle(w, r, pkgerrors.NewInvalidArgumentError("limit must be a positive integer"))
			return
		}
		limit = min(n, MaxSearchLimit)
	}

	hits, err := h.queries.Search(r.Context(), q.Get("q"), limit)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   q.Get("q"),
		"results": hits,
	})
}

// Reindex handles POST /admin/reindex
func (h *GraphHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	result, err := h.commands.Reindex(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.logger.Info("Reindex requested over HTTP",
		zap.Int("indexed", result.Indexed),
		zap.Int("failed", result.Failed))
	h.respondJSON(w, http.StatusOK, result)
}

// parseIDList parses "1,2,3"; an empty string means no filter (nil)
func parseIDList(raw string) ([]valueobjects.NodeID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]valueobjects.NodeID, 0, len(parts))
	for _, p := range parts {
		id, err := valueobjects.ParseNodeID(strings.TrimSpace(p))
		if err != nil {
			return nil, pkgerrors.NewInvalidArgumentError("ids: " + err.Error())
		}
		ids = append(ids, id)
	}
	return ids, nil
}
