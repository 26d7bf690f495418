package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zestlabs/admin-sentinel/pkg/firebase"
)

const identityToolkitURL = "https://identitytoolkit.googleapis.com/v1/accounts:signUp"

// RestSource reaches a project's live stores over the public REST surface
// using an API key and an anonymous Identity Toolkit session. It serves
// projects whose Admin SDK credentials are absent, where the live stores
// are the intended long-term source.
//
// The anonymous handshake is established once per source lifetime and
// memoized; concurrent callers observing "no session yet" serialize on the
// mutex, so the handshake never runs twice at once.
type RestSource struct {
	projectID   string
	apiKey      string
	databaseURL string
	// identityURL and firestoreURL are overridable for tests.
	identityURL  string
	firestoreURL string
	httpc        *http.Client
	logger       *zap.SugaredLogger

	mu      sync.Mutex
	idToken string
	expiry  time.Time
}

func NewRestSource(cfg firebase.ProjectConfig, httpc *http.Client, logger *zap.SugaredLogger) *RestSource {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &RestSource{
		projectID:    cfg.ProjectID,
		apiKey:       cfg.APIKey,
		databaseURL:  cfg.DatabaseURL,
		identityURL:  identityToolkitURL,
		firestoreURL: "https://firestore.googleapis.com/v1",
		httpc:        httpc,
		logger:       logger,
	}
}

// ensureSession returns a live anonymous ID token, performing the sign-up
// handshake only when none is established. Idempotent and safe under
// concurrent callers.
func (s *RestSource) ensureSession(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idToken != "" && time.Now().Before(s.expiry) {
		return s.idToken, nil
	}

	s.logger.Infow("establishing anonymous session", "project", s.projectID)
	body, err := json.Marshal(map[string]bool{"returnSecureToken": true})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.identityURL+"?key="+url.QueryEscape(s.apiKey), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("anonymous sign-up: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Error.Message == "ADMIN_ONLY_OPERATION" {
			// Anonymous sign-in disabled in the provider console.
			return "", ErrAuthDisabled
		}
		return "", fmt.Errorf("anonymous sign-up: status %d: %s", resp.StatusCode, apiErr.Error.Message)
	}

	var ok struct {
		IDToken   string `json:"idToken"`
		ExpiresIn string `json:"expiresIn"`
		LocalID   string `json:"localId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ok); err != nil {
		return "", fmt.Errorf("decode sign-up response: %w", err)
	}
	ttl := 55 * time.Minute
	if secs, err := strconv.Atoi(ok.ExpiresIn); err == nil && secs > 60 {
		ttl = time.Duration(secs-60) * time.Second
	}
	s.idToken = ok.IDToken
	s.expiry = time.Now().Add(ttl)
	s.logger.Infow("anonymous session established", "project", s.projectID, "uid", ok.LocalID)
	return s.idToken, nil
}

// UsersCollection queries the users collection through the Firestore REST
// API.
func (s *RestSource) UsersCollection(ctx context.Context) ([]DocumentUser, error) {
	docs, err := s.Documents(ctx, "users")
	if err != nil {
		return nil, err
	}
	users := make([]DocumentUser, 0, len(docs))
	for _, d := range docs {
		users = append(users, DocumentUser{ID: d.ID, Fields: d.Fields})
	}
	return users, nil
}

// UsersNode reads the users node through the realtime database REST API.
func (s *RestSource) UsersNode(ctx context.Context) (map[string]map[string]any, error) {
	token, err := s.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/users.json?auth=%s", s.databaseURL, url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("realtime users fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("realtime users fetch: status %d", resp.StatusCode)
	}

	// The node serializes to null when absent.
	var node map[string]map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
		return nil, fmt.Errorf("decode realtime users: %w", err)
	}
	return node, nil
}

// Collections lists top-level collection IDs.
func (s *RestSource) Collections(ctx context.Context) ([]string, error) {
	token, err := s.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/projects/%s/databases/(default)/documents:listCollectionIds",
		s.firestoreURL, s.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte(`{}`)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list collection ids: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list collection ids: status %d", resp.StatusCode)
	}
	var out struct {
		CollectionIDs []string `json:"collectionIds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode collection ids: %w", err)
	}
	return out.CollectionIDs, nil
}

// Documents lists the documents of one collection.
func (s *RestSource) Documents(ctx context.Context, collection string) ([]Document, error) {
	return s.fetchDocuments(ctx, url.PathEscape(collection))
}

// SubDocuments lists a sub-collection beneath one document.
func (s *RestSource) SubDocuments(ctx context.Context, collection, docID, sub string) ([]Document, error) {
	path := fmt.Sprintf("%s/%s/%s", url.PathEscape(collection), url.PathEscape(docID), url.PathEscape(sub))
	return s.fetchDocuments(ctx, path)
}

// CollectionCount counts the documents of one collection.
func (s *RestSource) CollectionCount(ctx context.Context, collection string) (int, error) {
	docs, err := s.Documents(ctx, collection)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *RestSource) fetchDocuments(ctx context.Context, path string) ([]Document, error) {
	token, err := s.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/projects/%s/databases/(default)/documents/%s?pageSize=300",
		s.firestoreURL, s.projectID, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("documents fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("documents fetch: status %d", resp.StatusCode)
	}

	var out struct {
		Documents []restDocument `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	docs := make([]Document, 0, len(out.Documents))
	for _, d := range out.Documents {
		docs = append(docs, Document{ID: d.id(), Fields: decodeRestFields(d.Fields)})
	}
	return docs, nil
}

// restDocument is the Firestore REST document envelope with typed values.
type restDocument struct {
	Name   string                     `json:"name"`
	Fields map[string]json.RawMessage `json:"fields"`
}

func (d restDocument) id() string {
	for i := len(d.Name) - 1; i >= 0; i-- {
		if d.Name[i] == '/' {
			return d.Name[i+1:]
		}
	}
	return d.Name
}

// decodeRestFields flattens Firestore's typed value wrappers
// ({"stringValue": ...} etc.) into plain Go values.
func decodeRestFields(fields map[string]json.RawMessage) map[string]any {
	out := make(map[string]any, len(fields))
	for k, raw := range fields {
		out[k] = decodeRestValue(raw)
	}
	return out
}

func decodeRestValue(raw json.RawMessage) any {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil
	}
	for kind, val := range wrapper {
		switch kind {
		case "stringValue", "timestampValue", "referenceValue":
			var s string
			_ = json.Unmarshal(val, &s)
			return s
		case "integerValue":
			// Serialized as a string on the wire.
			var s string
			_ = json.Unmarshal(val, &s)
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
			return s
		case "doubleValue":
			var f float64
			_ = json.Unmarshal(val, &f)
			return f
		case "booleanValue":
			var b bool
			_ = json.Unmarshal(val, &b)
			return b
		case "nullValue":
			return nil
		case "mapValue":
			var m struct {
				Fields map[string]json.RawMessage `json:"fields"`
			}
			_ = json.Unmarshal(val, &m)
			return decodeRestFields(m.Fields)
		case "arrayValue":
			var a struct {
				Values []json.RawMessage `json:"values"`
			}
			_ = json.Unmarshal(val, &a)
			items := make([]any, 0, len(a.Values))
			for _, v := range a.Values {
				items = append(items, decodeRestValue(v))
			}
			return items
		}
	}
	return nil
}
