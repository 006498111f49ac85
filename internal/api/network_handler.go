package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lexigraph/lexigraph/internal/api/shared"
	"github.com/lexigraph/lexigraph/internal/domain"
	"github.com/lexigraph/lexigraph/internal/network"
	"github.com/lexigraph/lexigraph/internal/platform/logger"
)

// NetworkHandler handles entity-network HTTP requests.
type NetworkHandler struct {
	networkService *network.Service
	logger         *slog.Logger
}

// NewNetworkHandler creates a new NetworkHandler.
func NewNetworkHandler(networkService *network.Service, log *slog.Logger) *NetworkHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for NetworkHandler")
	}

	return &NetworkHandler{
		networkService: networkService,
		logger:         log.With(slog.String("component", "network_handler")),
	}
}

// GetNetwork handles GET /network requests. It returns the full
// co-occurrence graph for the authenticated user's cases.
func (h *NetworkHandler) GetNetwork(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	graph, err := h.networkService.Graph(r.Context(), userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), "Failed to build network", err)
		return
	}

	log.Debug("network built",
		slog.Int("nodes", graph.Stats.TotalNodes),
		slog.Int("edges", graph.Stats.TotalEdges))
	shared.RespondWithJSON(w, r, http.StatusOK, graph)
}

// GetEntity handles GET /network/entity/{name} requests. The name is
// matched against normalized entity names, so case and spacing
// variants resolve to the same entity.
func (h *NetworkHandler) GetEntity(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest,
			"Entity name is required", domain.ErrValidation)
		return
	}

	detail, err := h.networkService.EntityDetail(r.Context(), userID, name)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, detail)
}
