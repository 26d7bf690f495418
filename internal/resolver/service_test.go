package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTier struct {
	source  Source
	records []Record
	err     error
	calls   int
}

func (f *fakeTier) Source() Source { return f.source }

func (f *fakeTier) Users(_ context.Context) ([]Record, error) {
	f.calls++
	return f.records, f.err
}

type slowDocStore struct {
	delay time.Duration
	docs  []DocumentUser
}

func (s *slowDocStore) UsersCollection(_ context.Context) ([]DocumentUser, error) {
	time.Sleep(s.delay)
	return s.docs, nil
}

func TestResolverStopsAtFirstSuccess(t *testing.T) {
	admin := &fakeTier{source: SourceAuth, records: []Record{{ID: "u1", Source: SourceAuth}}}
	docs := &fakeTier{source: SourceFirestore}
	r := New(ProjectAcademy, zap.NewNop().Sugar(), admin, docs)

	res, err := r.Users(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceAuth, res.Source)
	assert.Len(t, res.Users, 1)
	assert.Zero(t, docs.calls)
}

func TestResolverFallbackOrdering(t *testing.T) {
	// Admin SDK failure, document timeout, realtime success: the final
	// result is the realtime data and no error propagates.
	admin := &fakeTier{source: SourceAuth, err: errors.New("admin unavailable")}
	docs := &fakeTier{source: SourceFirestore, err: ErrDocumentTimeout}
	rt := &fakeTier{source: SourceRealtime, records: []Record{{ID: "k1", Source: SourceRealtime}}}
	r := New(ProjectAcademy, zap.NewNop().Sugar(), admin, docs, rt)

	res, err := r.Users(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceRealtime, res.Source)
	assert.Equal(t, "k1", res.Users[0].ID)
	assert.Equal(t, 1, admin.calls)
	assert.Equal(t, 1, docs.calls)
}

func TestResolverSurfacesFirstErrorWhenAllTiersFail(t *testing.T) {
	admin := &fakeTier{source: SourceAuth, err: ErrServiceAccountMissing}
	docs := &fakeTier{source: SourceFirestore, err: ErrDocumentTimeout}
	rt := &fakeTier{source: SourceRealtime, err: errors.New("rtdb down")}
	r := New(ProjectZestfolio, zap.NewNop().Sugar(), admin, docs, rt)

	_, err := r.Users(context.Background())
	assert.ErrorIs(t, err, ErrServiceAccountMissing)
	// Tier-1 errors do not short-circuit: the lower tiers still ran.
	assert.Equal(t, 1, rt.calls)
}

func TestAdminTierWithoutAccountLister(t *testing.T) {
	_, err := AdminTier{}.Users(context.Background())
	assert.ErrorIs(t, err, ErrServiceAccountMissing)
}

func TestDocumentTierTimeoutFallsThrough(t *testing.T) {
	slow := DocumentTier{Store: &slowDocStore{delay: 200 * time.Millisecond}, Timeout: 20 * time.Millisecond}
	rt := &fakeTier{source: SourceRealtime, records: []Record{{ID: "k1"}}}
	r := New(ProjectZestfolio, zap.NewNop().Sugar(), slow, rt)

	start := time.Now()
	res, err := r.Users(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceRealtime, res.Source)
	// The losing query is abandoned, not waited for.
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestDocumentTierFastQueryWins(t *testing.T) {
	tier := DocumentTier{
		Store:   &slowDocStore{docs: []DocumentUser{{ID: "d1", Fields: map[string]any{"email": "a@b.com"}}}},
		Timeout: time.Second,
	}
	records, err := tier.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "d1", records[0].ID)
	assert.Equal(t, "a@b.com", records[0].Email)
	assert.Equal(t, SourceFirestore, records[0].Source)
}

type fakeRealtimeStore struct {
	node map[string]map[string]any
	err  error
}

func (f fakeRealtimeStore) UsersNode(_ context.Context) (map[string]map[string]any, error) {
	return f.node, f.err
}

func TestRealtimeTierAbsentNodeIsEmptyResult(t *testing.T) {
	records, err := RealtimeTier{Store: fakeRealtimeStore{}}.Users(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRealtimeTierFlattensChildren(t *testing.T) {
	store := fakeRealtimeStore{node: map[string]map[string]any{
		"k1": {"email": "a@b.com", "name": "Alice"},
	}}
	records, err := RealtimeTier{Store: store}.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "k1", records[0].ID)
	assert.Equal(t, "Alice", records[0].DisplayName)
	assert.Equal(t, SourceRealtime, records[0].Source)
}

func TestUsersAllIsIndependentPerProject(t *testing.T) {
	good := New(ProjectAcademy, zap.NewNop().Sugar(),
		&fakeTier{source: SourceAuth, records: []Record{{ID: "u1"}}})
	bad := New(ProjectZestfolio, zap.NewNop().Sugar(),
		&fakeTier{source: SourceAuth, err: errors.New("down")})

	results := Set{ProjectAcademy: good, ProjectZestfolio: bad}.UsersAll(context.Background())

	require.NoError(t, results[ProjectAcademy].Err)
	assert.Len(t, results[ProjectAcademy].Resolution.Users, 1)
	assert.Error(t, results[ProjectZestfolio].Err)
}
