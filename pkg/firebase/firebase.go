// Package firebase constructs per-project Firebase handles. Handles are
// built explicitly in main and injected into request-scoped services; no
// package-level app singletons.
package firebase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	fbdb "firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

// ServiceAccount holds the pieces of a Firebase service account sourced
// from env vars. Private keys in .env carry newlines encoded as \n.
type ServiceAccount struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  string
}

// Configured reports whether the account carries enough material to
// authenticate the Admin SDK.
func (a ServiceAccount) Configured() bool {
	return a.ClientEmail != "" && a.PrivateKey != ""
}

// JSON renders the account as a credentials file payload accepted by
// option.WithCredentialsJSON.
func (a ServiceAccount) JSON() ([]byte, error) {
	if !a.Configured() {
		return nil, fmt.Errorf("service account for %q is not configured", a.ProjectID)
	}
	return json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   a.ProjectID,
		"client_email": a.ClientEmail,
		"private_key":  strings.ReplaceAll(a.PrivateKey, `\n`, "\n"),
		"token_uri":    "https://oauth2.googleapis.com/token",
	})
}

// ProjectConfig is the full configuration of one backing project.
type ProjectConfig struct {
	Name        string
	ProjectID   string
	DatabaseURL string
	// APIKey enables client-keyed REST access for projects whose live
	// stores are reached without a service account.
	APIKey  string
	Account ServiceAccount
}

// AcademyConfigFromEnv reads the primary (Academy) project config.
func AcademyConfigFromEnv() ProjectConfig {
	pid := envOr("ACADEMY_PROJECT_ID", "zest-academy")
	return ProjectConfig{
		Name:        "academy",
		ProjectID:   pid,
		DatabaseURL: os.Getenv("ACADEMY_DATABASE_URL"),
		Account: ServiceAccount{
			ProjectID:   pid,
			ClientEmail: os.Getenv("ACADEMY_CLIENT_EMAIL"),
			PrivateKey:  os.Getenv("ACADEMY_PRIVATE_KEY"),
		},
	}
}

// ZestfolioConfigFromEnv reads the secondary (Zestfolio) project config.
// The service account is optional; the API key covers tiers that run on
// client-keyed REST access.
func ZestfolioConfigFromEnv() ProjectConfig {
	pid := envOr("ZESTFOLIO_PROJECT_ID", "zestfolio-247")
	return ProjectConfig{
		Name:        "zestfolio",
		ProjectID:   pid,
		DatabaseURL: envOr("ZESTFOLIO_DATABASE_URL", fmt.Sprintf("https://%s-default-rtdb.firebaseio.com", pid)),
		APIKey:      os.Getenv("ZESTFOLIO_API_KEY"),
		Account: ServiceAccount{
			ProjectID:   pid,
			ClientEmail: os.Getenv("ZESTFOLIO_CLIENT_EMAIL"),
			PrivateKey:  os.Getenv("ZESTFOLIO_PRIVATE_KEY"),
		},
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// AdminHandle bundles the Admin SDK clients of one project.
type AdminHandle struct {
	Auth      *fbauth.Client
	Firestore *firestore.Client
	Database  *fbdb.Client
}

// Connect initializes the Admin SDK for the given project and verifies the
// clients can be constructed. The Database client is nil when no realtime
// database URL is configured.
func Connect(ctx context.Context, cfg ProjectConfig) (*AdminHandle, error) {
	creds, err := cfg.Account.JSON()
	if err != nil {
		return nil, err
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:   cfg.ProjectID,
		DatabaseURL: cfg.DatabaseURL,
	}, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("init %s app: %w", cfg.Name, err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init %s auth client: %w", cfg.Name, err)
	}
	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init %s firestore client: %w", cfg.Name, err)
	}

	h := &AdminHandle{Auth: authClient, Firestore: fsClient}
	if cfg.DatabaseURL != "" {
		dbClient, err := app.Database(ctx)
		if err != nil {
			return nil, fmt.Errorf("init %s realtime db client: %w", cfg.Name, err)
		}
		h.Database = dbClient
	}
	return h, nil
}

// Close releases clients holding network resources.
func (h *AdminHandle) Close() error {
	if h == nil || h.Firestore == nil {
		return nil
	}
	return h.Firestore.Close()
}
