package resolver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUsersMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects/{project}/users", h.Users)
	return mux
}

func TestUsersEndpointResolves(t *testing.T) {
	set := Set{
		ProjectAcademy: New(ProjectAcademy, zap.NewNop().Sugar(),
			&fakeTier{source: SourceAuth, err: ErrServiceAccountMissing},
			&fakeTier{source: SourceRealtime, records: []Record{{ID: "k1"}}},
		),
	}
	h := NewHandler(set, nil, zap.NewNop().Sugar())

	rec := httptest.NewRecorder()
	newUsersMux(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/academy/users", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var res Resolution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, SourceRealtime, res.Source)
	assert.Len(t, res.Users, 1)
}

func TestUsersEndpointServiceAccountMissing(t *testing.T) {
	set := Set{
		ProjectZestfolio: New(ProjectZestfolio, zap.NewNop().Sugar(),
			AdminTier{},
		),
	}
	h := NewHandler(set, nil, zap.NewNop().Sugar())

	rec := httptest.NewRecorder()
	newUsersMux(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/zestfolio/users", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "service account missing", resp["error"])
}

func TestUsersEndpointUnknownProject(t *testing.T) {
	h := NewHandler(Set{}, nil, zap.NewNop().Sugar())
	rec := httptest.NewRecorder()
	newUsersMux(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/nope/users", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollectionsEndpointWithoutCatalog(t *testing.T) {
	h := NewHandler(Set{}, map[Project]Catalog{}, zap.NewNop().Sugar())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects/{project}/collections", h.Collections)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/academy/collections", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
