package analytics

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/zestlabs/admin-sentinel/internal/resolver"
)

// Handler serves the cross-project analytics views.
type Handler struct {
	resolvers resolver.Set
	logger    *zap.SugaredLogger
}

func NewHandler(resolvers resolver.Set, logger *zap.SugaredLogger) *Handler {
	return &Handler{resolvers: resolvers, logger: logger}
}

// CommonUsersView resolves both projects in parallel and intersects their
// user emails. Both resolutions must succeed for an intersection to mean
// anything.
func (h *Handler) CommonUsersView(w http.ResponseWriter, r *http.Request) {
	results := h.resolvers.UsersAll(r.Context())

	academy := results[resolver.ProjectAcademy]
	zestfolio := results[resolver.ProjectZestfolio]
	// A project absent from the set yields a zero result with neither a
	// resolution nor an error, which still counts as a failure here.
	if academy.Err != nil || zestfolio.Err != nil ||
		academy.Resolution == nil || zestfolio.Resolution == nil {
		h.logger.Warnw("common users resolution failed",
			"academy_err", academy.Err, "zestfolio_err", zestfolio.Err)
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "resolution failed"})
		return
	}

	common := CommonUsers(academy.Resolution.Users, zestfolio.Resolution.Users)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"common": common,
		"count":  len(common),
	})
}

// SignupsView groups one project's users by creation date.
func (h *Handler) SignupsView(w http.ResponseWriter, r *http.Request) {
	project, err := resolver.ParseProject(r.URL.Query().Get("project"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown project"})
		return
	}
	rslv, ok := h.resolvers[project]
	if !ok || rslv == nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown project"})
		return
	}
	res, err := rslv.Users(r.Context())
	if err != nil {
		h.logger.Warnw("signups resolution failed", "project", project, "err", err)
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "resolution failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"project": project,
		"signups": SignupsByDate(res.Users),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
