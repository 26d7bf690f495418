// Package resolver implements the tiered data-source fallback for the two
// backing projects: Admin SDK account listing, then a live document query,
// then a realtime-tree lookup, stopping at the first success.
package resolver

import (
	"fmt"
	"strings"
	"time"
)

// Project selects which backing product environment a resolution targets.
type Project string

const (
	ProjectAcademy   Project = "academy"
	ProjectZestfolio Project = "zestfolio"
)

// ParseProject validates a project identifier from a request path.
func ParseProject(s string) (Project, error) {
	switch Project(strings.ToLower(strings.TrimSpace(s))) {
	case ProjectAcademy:
		return ProjectAcademy, nil
	case ProjectZestfolio:
		return ProjectZestfolio, nil
	default:
		return "", fmt.Errorf("unknown project %q", s)
	}
}

// Source tags which tier produced a resolution.
type Source string

const (
	SourceAuth      Source = "auth"
	SourceFirestore Source = "firestore"
	SourceRealtime  Source = "rtdb"
)

// AdminUser is the Admin-SDK shape of a user.
type AdminUser struct {
	UID         string
	Email       string
	DisplayName string
	Disabled    bool
	CreatedAt   time.Time
	LastSeenAt  time.Time
	Providers   []string
}

// DocumentUser is the document-store shape: an ID plus arbitrary fields.
type DocumentUser struct {
	ID     string
	Fields map[string]any
}

// RealtimeUser is the realtime-tree shape: a node key plus child fields.
type RealtimeUser struct {
	Key    string
	Fields map[string]any
}

// Record is the canonical display record all three shapes normalize into.
type Record struct {
	ID          string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Disabled    bool      `json:"disabled"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
	LastSeenAt  time.Time `json:"lastSeenAt,omitzero"`
	Source      Source    `json:"source"`
}

func (u AdminUser) Normalize() Record {
	return Record{
		ID:          u.UID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Disabled:    u.Disabled,
		CreatedAt:   u.CreatedAt,
		LastSeenAt:  u.LastSeenAt,
		Source:      SourceAuth,
	}
}

func (u DocumentUser) Normalize() Record {
	r := normalizeFields(u.Fields)
	r.ID = u.ID
	r.Source = SourceFirestore
	return r
}

func (u RealtimeUser) Normalize() Record {
	r := normalizeFields(u.Fields)
	r.ID = u.Key
	r.Source = SourceRealtime
	return r
}

// normalizeFields centralizes the optional-field probing the original
// spread across its views. Consumers see one canonical record regardless
// of which store the data came from.
func normalizeFields(fields map[string]any) Record {
	var r Record
	r.Email = fieldString(fields, "email")
	r.DisplayName = fieldString(fields, "displayName", "name", "username")
	if v, ok := fields["disabled"].(bool); ok {
		r.Disabled = v
	}
	r.CreatedAt = fieldTime(fields, "createdAt", "creationTime", "joined")
	r.LastSeenAt = fieldTime(fields, "lastSeenAt", "lastSignInTime", "lastActive")
	return r
}

func fieldString(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := fields[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func fieldTime(fields map[string]any, keys ...string) time.Time {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case time.Time:
			return v
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return t
			}
		case float64:
			// Millisecond epoch, the realtime-tree convention.
			return time.UnixMilli(int64(v)).UTC()
		case int64:
			return time.UnixMilli(v).UTC()
		}
	}
	return time.Time{}
}

// Document is one entry of a live collection query.
type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}
