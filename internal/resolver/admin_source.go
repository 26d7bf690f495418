package resolver

import (
	"context"
	"fmt"
	"time"

	fs "cloud.google.com/go/firestore"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"

	"github.com/zestlabs/admin-sentinel/pkg/firebase"
)

// AdminSource serves every tier of a project whose Admin SDK handle is
// configured.
type AdminSource struct {
	handle *firebase.AdminHandle
}

func NewAdminSource(handle *firebase.AdminHandle) *AdminSource {
	return &AdminSource{handle: handle}
}

// ListAccounts fetches a single page of exported user records.
func (s *AdminSource) ListAccounts(ctx context.Context, limit int) ([]AdminUser, error) {
	it := s.handle.Auth.Users(ctx, "")
	pager := iterator.NewPager(it, limit, "")

	var page []*fbauth.ExportedUserRecord
	if _, err := pager.NextPage(&page); err != nil {
		return nil, fmt.Errorf("list users page: %w", err)
	}

	users := make([]AdminUser, 0, len(page))
	for _, rec := range page {
		u := AdminUser{
			UID:         rec.UID,
			Email:       rec.Email,
			DisplayName: rec.DisplayName,
			Disabled:    rec.Disabled,
		}
		if rec.UserMetadata != nil {
			if rec.UserMetadata.CreationTimestamp > 0 {
				u.CreatedAt = time.UnixMilli(rec.UserMetadata.CreationTimestamp).UTC()
			}
			if rec.UserMetadata.LastLogInTimestamp > 0 {
				u.LastSeenAt = time.UnixMilli(rec.UserMetadata.LastLogInTimestamp).UTC()
			}
		}
		for _, p := range rec.ProviderUserInfo {
			u.Providers = append(u.Providers, p.ProviderID)
		}
		users = append(users, u)
	}
	return users, nil
}

// UsersCollection queries the users collection of the project's document
// store.
func (s *AdminSource) UsersCollection(ctx context.Context) ([]DocumentUser, error) {
	return s.collectDocs(s.handle.Firestore.Collection("users").Documents(ctx))
}

// UsersNode reads the users node of the project's realtime tree. A nil map
// signals the node is absent.
func (s *AdminSource) UsersNode(ctx context.Context) (map[string]map[string]any, error) {
	if s.handle.Database == nil {
		return nil, fmt.Errorf("realtime database not configured")
	}
	var node map[string]map[string]any
	if err := s.handle.Database.NewRef("users").Get(ctx, &node); err != nil {
		return nil, fmt.Errorf("get users ref: %w", err)
	}
	return node, nil
}

// Collections lists the top-level collection IDs of the document store.
func (s *AdminSource) Collections(ctx context.Context) ([]string, error) {
	it := s.handle.Firestore.Collections(ctx)
	var ids []string
	for {
		col, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list collections: %w", err)
		}
		ids = append(ids, col.ID)
	}
	return ids, nil
}

// Documents lists the documents of one collection.
func (s *AdminSource) Documents(ctx context.Context, collection string) ([]Document, error) {
	return s.collectPlainDocs(ctx, s.handle.Firestore.Collection(collection))
}

// SubDocuments lists a sub-collection beneath one document.
func (s *AdminSource) SubDocuments(ctx context.Context, collection, docID, sub string) ([]Document, error) {
	ref := s.handle.Firestore.Collection(collection).Doc(docID).Collection(sub)
	return s.collectPlainDocs(ctx, ref)
}

// CollectionCount counts the documents of one collection.
func (s *AdminSource) CollectionCount(ctx context.Context, collection string) (int, error) {
	docs, err := s.Documents(ctx, collection)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *AdminSource) collectDocs(it *fs.DocumentIterator) ([]DocumentUser, error) {
	var docs []DocumentUser
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate documents: %w", err)
		}
		docs = append(docs, DocumentUser{ID: snap.Ref.ID, Fields: snap.Data()})
	}
	return docs, nil
}

func (s *AdminSource) collectPlainDocs(ctx context.Context, ref *fs.CollectionRef) ([]Document, error) {
	it := ref.Documents(ctx)
	var docs []Document
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate documents: %w", err)
		}
		docs = append(docs, Document{ID: snap.Ref.ID, Fields: snap.Data()})
	}
	return docs, nil
}
