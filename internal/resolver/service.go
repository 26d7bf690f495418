package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrServiceAccountMissing marks tier 1 of a project without Admin SDK
	// credentials. The fallback dispatcher still tries the lower tiers; the
	// error surfaces only if they fail too.
	ErrServiceAccountMissing = errors.New("service account missing")
	// ErrAuthDisabled is the named condition for the provider rejecting the
	// anonymous handshake (admin-restricted operation).
	ErrAuthDisabled = errors.New("AUTH_DISABLED")
	// ErrDocumentTimeout marks a document query losing its race against the
	// fixed timeout. The losing query is abandoned, not aborted.
	ErrDocumentTimeout = errors.New("document query timeout")
)

// documentQueryTimeout bounds the live document-store tier.
const documentQueryTimeout = 5 * time.Second

// adminListLimit is the Admin SDK listing batch size.
const adminListLimit = 100

// Tier is one candidate data source in the fallback chain.
type Tier interface {
	Source() Source
	Users(ctx context.Context) ([]Record, error)
}

// Resolution is the outcome of a successful users query.
type Resolution struct {
	Project Project  `json:"project"`
	Source  Source   `json:"source"`
	Users   []Record `json:"users"`
}

// Resolver dispatches a users query across an ordered tier list, stopping
// at the first success. On total failure the FIRST tier error is the one
// surfaced: tier-1-specific errors reach the caller only when the lower
// tiers fail as well.
type Resolver struct {
	project Project
	tiers   []Tier
	logger  *zap.SugaredLogger
}

func New(project Project, logger *zap.SugaredLogger, tiers ...Tier) *Resolver {
	return &Resolver{project: project, tiers: tiers, logger: logger}
}

func (r *Resolver) Project() Project { return r.project }

// Users walks the tier list in priority order.
func (r *Resolver) Users(ctx context.Context) (*Resolution, error) {
	var firstErr error
	for _, tier := range r.tiers {
		users, err := tier.Users(ctx)
		if err != nil {
			r.logger.Warnw("resolver tier failed, falling through",
				"project", r.project, "source", tier.Source(), "err", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		return &Resolution{Project: r.project, Source: tier.Source(), Users: users}, nil
	}
	if firstErr == nil {
		firstErr = fmt.Errorf("no data source configured for project %s", r.project)
	}
	return nil, firstErr
}

// AdminTier lists accounts through the Admin SDK.
type AdminTier struct {
	// Accounts is nil when the project has no service account configured.
	Accounts AccountLister
}

// AccountLister abstracts Admin SDK user listing for fakes.
type AccountLister interface {
	ListAccounts(ctx context.Context, limit int) ([]AdminUser, error)
}

func (t AdminTier) Source() Source { return SourceAuth }

func (t AdminTier) Users(ctx context.Context) ([]Record, error) {
	if t.Accounts == nil {
		return nil, ErrServiceAccountMissing
	}
	accounts, err := t.Accounts.ListAccounts(ctx, adminListLimit)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	records := make([]Record, 0, len(accounts))
	for _, a := range accounts {
		records = append(records, a.Normalize())
	}
	return records, nil
}

// UserDocStore abstracts the live document-store users query.
type UserDocStore interface {
	UsersCollection(ctx context.Context) ([]DocumentUser, error)
}

// DocumentTier races the users collection query against a fixed timeout.
// Losing the race abandons the query rather than cancelling it, so the
// underlying fetch may complete late into a discarded channel.
type DocumentTier struct {
	Store   UserDocStore
	Timeout time.Duration
}

func (t DocumentTier) Source() Source { return SourceFirestore }

func (t DocumentTier) Users(ctx context.Context) ([]Record, error) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = documentQueryTimeout
	}

	type outcome struct {
		docs []DocumentUser
		err  error
	}
	// Buffered so the abandoned query can still deliver and terminate.
	ch := make(chan outcome, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		docs, err := t.Store.UsersCollection(detached)
		ch <- outcome{docs: docs, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case out := <-ch:
		if out.err != nil {
			return nil, fmt.Errorf("users collection query: %w", out.err)
		}
		records := make([]Record, 0, len(out.docs))
		for _, d := range out.docs {
			records = append(records, d.Normalize())
		}
		return records, nil
	case <-timer.C:
		return nil, ErrDocumentTimeout
	}
}

// RealtimeStore abstracts the realtime-tree users lookup. A nil map means
// the node is absent.
type RealtimeStore interface {
	UsersNode(ctx context.Context) (map[string]map[string]any, error)
}

// RealtimeTier flattens the users node into records. An absent node is an
// empty result set, not an error.
type RealtimeTier struct {
	Store RealtimeStore
}

func (t RealtimeTier) Source() Source { return SourceRealtime }

func (t RealtimeTier) Users(ctx context.Context) ([]Record, error) {
	node, err := t.Store.UsersNode(ctx)
	if err != nil {
		return nil, fmt.Errorf("users node lookup: %w", err)
	}
	records := make([]Record, 0, len(node))
	for key, fields := range node {
		records = append(records, RealtimeUser{Key: key, Fields: fields}.Normalize())
	}
	return records, nil
}

// Set holds one resolver per project.
type Set map[Project]*Resolver

// UsersResult pairs one project's resolution with its error.
type UsersResult struct {
	Resolution *Resolution
	Err        error
}

// UsersAll fans the users query out to every project in parallel and joins
/// on all of them. Results are independent: one project's failure never
// blocks or cancels another's success, and a slow project does not cancel
// a fast one.
func (s Set) UsersAll(ctx context.Context) map[Project]UsersResult {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[Project]UsersResult, len(s))
	)
	for project, r := range s {
		wg.Add(1)
		go func(project Project, r *Resolver) {
			defer wg.Done()
			res, err := r.Users(ctx)
			mu.Lock()
			results[project] = UsersResult{Resolution: res, Err: err}
			mu.Unlock()
		}(project, r)
	}
	wg.Wait()
	return results
}

// Catalog exposes the live content-store views of one project.
type Catalog interface {
	Collections(ctx context.Context) ([]string, error)
	Documents(ctx context.Context, collection string) ([]Document, error)
	SubDocuments(ctx context.Context, collection, docID, sub string) ([]Document, error)
	CollectionCount(ctx context.Context, collection string) (int, error)
}
