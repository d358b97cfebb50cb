package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/staffmatch/internal/domain/types"
	"github.com/okian/staffmatch/pkg/logger"
)

// Recommender computes or fetches the ranking of a requirement.
type Recommender interface {
	GetOrCompute(ctx context.Context, requirementID string, forceRecalculate bool) (types.RecommendationEnvelope, error)
}

// RecommendationsHandler serves rankings.
type RecommendationsHandler struct {
	deps Recommender
	log  logger.Logger
}

// NewRecommendationsHandler creates a new recommendations handler.
func NewRecommendationsHandler(deps Recommender, log logger.Logger) *RecommendationsHandler {
	return &RecommendationsHandler{deps: deps, log: log}
}

// HandleGetRecommendations handles GET /api/scheduling/recommendations/{requirementId}.
func (h *RecommendationsHandler) HandleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "get recommendations", false)
}

// HandleRecalculate handles POST /api/scheduling/requirements/{requirementId}/recalculate.
func (h *RecommendationsHandler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "recalculate", true)
}

func (h *RecommendationsHandler) serve(w http.ResponseWriter, r *http.Request, op string, force bool) {
	id := strings.TrimSpace(r.PathValue("requirementId"))
	if id == "" {
		h.fail(w, r, NewKind(op, ErrBadRequest, "missing requirementId"))
		return
	}

	env, err := h.deps.GetOrCompute(r.Context(), id, force)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *RecommendationsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", logger.String("code", code), logger.Error(err))
	} else {
		h.log.Debug(r.Context(), "request rejected", logger.String("code", code), logger.Error(err))
	}
	writeError(w, status, code, err)
}
