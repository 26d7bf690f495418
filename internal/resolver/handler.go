package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Handler exposes the resolver-backed dashboard data views.
type Handler struct {
	resolvers Set
	catalogs  map[Project]Catalog
	logger    *zap.SugaredLogger
}

func NewHandler(resolvers Set, catalogs map[Project]Catalog, logger *zap.SugaredLogger) *Handler {
	return &Handler{resolvers: resolvers, catalogs: catalogs, logger: logger}
}

// Users resolves the user listing of one project through the fallback
// chain.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	project, err := ParseProject(r.PathValue("project"))
	if err != nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown project"})
		return
	}
	res, err := h.resolve(r, project)
	if err != nil {
		h.logger.Warnw("user resolution failed", "project", project, "err", err)
		switch {
		case errors.Is(err, ErrServiceAccountMissing):
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service account missing"})
		case errors.Is(err, ErrAuthDisabled):
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "AUTH_DISABLED"})
		default:
			h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Collections lists the document-store collections of one project.
func (h *Handler) Collections(w http.ResponseWriter, r *http.Request) {
	cat, project, ok := h.catalog(w, r)
	if !ok {
		return
	}
	ids, err := cat.Collections(r.Context())
	if err != nil {
		h.catalogError(w, project, "list collections", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"project": project, "collections": ids})
}

// Documents lists the documents of one collection.
func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	cat, project, ok := h.catalog(w, r)
	if !ok {
		return
	}
	collection := r.PathValue("collection")
	docs, err := cat.Documents(r.Context(), collection)
	if err != nil {
		h.catalogError(w, project, "list documents", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"project": project, "collection": collection, "documents": docs})
}

// Comments lists the comments sub-collection beneath one document.
func (h *Handler) Comments(w http.ResponseWriter, r *http.Request) {
	cat, project, ok := h.catalog(w, r)
	if !ok {
		return
	}
	collection := r.PathValue("collection")
	docID := r.PathValue("doc")
	docs, err := cat.SubDocuments(r.Context(), collection, docID, "comments")
	if err != nil {
		h.catalogError(w, project, "list comments", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"project": project, "collection": collection, "doc": docID, "comments": docs})
}

func (h *Handler) resolve(r *http.Request, project Project) (*Resolution, error) {
	res, ok := h.resolvers[project]
	if !ok || res == nil {
		return nil, fmt.Errorf("no resolver for project %s", project)
	}
	return res.Users(r.Context())
}

func (h *Handler) catalog(w http.ResponseWriter, r *http.Request) (Catalog, Project, bool) {
	project, err := ParseProject(r.PathValue("project"))
	if err != nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown project"})
		return nil, "", false
	}
	cat, ok := h.catalogs[project]
	if !ok || cat == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "content store not configured"})
		return nil, "", false
	}
	return cat, project, true
}

func (h *Handler) catalogError(w http.ResponseWriter, project Project, op string, err error) {
	h.logger.Warnw("catalog query failed", "project", project, "op", op, "err", err)
	if errors.Is(err, ErrAuthDisabled) {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "AUTH_DISABLED"})
		return
	}
	h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
