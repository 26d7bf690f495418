package analytics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/zestlabs/admin-sentinel/internal/resolver"
)

type listTier struct {
	users []resolver.Record
}

func (t listTier) Source() resolver.Source { return resolver.SourceAuth }

func (t listTier) Users(context.Context) ([]resolver.Record, error) { return t.users, nil }

func testSet() resolver.Set {
	nop := zap.NewNop().Sugar()
	return resolver.Set{
		resolver.ProjectAcademy: resolver.New(resolver.ProjectAcademy, nop, listTier{users: []resolver.Record{
			{Email: "ops@zest.dev"}, {Email: "only-academy@zest.dev"},
		}}),
		resolver.ProjectZestfolio: resolver.New(resolver.ProjectZestfolio, nop, listTier{users: []resolver.Record{
			{Email: "ops@zest.dev"},
		}}),
	}
}

func TestCommonUsersView(t *testing.T) {
	h := NewHandler(testSet(), zap.NewNop().Sugar())

	rec := httptest.NewRecorder()
	h.CommonUsersView(rec, httptest.NewRequest(http.MethodGet, "/zest-admin/analytics/common-users", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ops@zest.dev")
	assert.NotContains(t, rec.Body.String(), "only-academy@zest.dev")
}

func TestCommonUsersViewWithEmptySet(t *testing.T) {
	// No configured projects must read as a failed resolution, not a crash.
	h := NewHandler(resolver.Set{}, zap.NewNop().Sugar())

	rec := httptest.NewRecorder()
	h.CommonUsersView(rec, httptest.NewRequest(http.MethodGet, "/zest-admin/analytics/common-users", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "resolution failed")
}

func TestCommonUsersViewWithOneProjectMissing(t *testing.T) {
	set := testSet()
	delete(set, resolver.ProjectZestfolio)
	h := NewHandler(set, zap.NewNop().Sugar())

	rec := httptest.NewRecorder()
	h.CommonUsersView(rec, httptest.NewRequest(http.MethodGet, "/zest-admin/analytics/common-users", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSignupsViewUnknownProject(t *testing.T) {
	h := NewHandler(testSet(), zap.NewNop().Sugar())

	rec := httptest.NewRecorder()
	h.SignupsView(rec, httptest.NewRequest(http.MethodGet, "/zest-admin/analytics/signups?project=nope", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
