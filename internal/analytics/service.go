// Package analytics derives cross-project aggregates from resolved user
// records.
package analytics

import (
	"sort"
	"strings"

	"github.com/zestlabs/admin-sentinel/internal/resolver"
)

// CommonUsers intersects two projects' user sets by lowercased email and
// returns the shared emails sorted. Records without an email never match.
func CommonUsers(a, b []resolver.Record) []string {
	seen := make(map[string]struct{}, len(a))
	for _, rec := range a {
		if email := strings.ToLower(strings.TrimSpace(rec.Email)); email != "" {
			seen[email] = struct{}{}
		}
	}
	var common []string
	matched := make(map[string]struct{})
	for _, rec := range b {
		email := strings.ToLower(strings.TrimSpace(rec.Email))
		if email == "" {
			continue
		}
		if _, ok := seen[email]; !ok {
			continue
		}
		if _, dup := matched[email]; dup {
			continue
		}
		matched[email] = struct{}{}
		common = append(common, email)
	}
	sort.Strings(common)
	return common
}

// DatePoint is one day of signups.
type DatePoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// SignupsByDate groups user records by creation date (UTC, day
// granularity), sorted ascending. Records without a creation time are
// dropped.
func SignupsByDate(records []resolver.Record) []DatePoint {
	byDate := make(map[string]int)
	for _, rec := range records {
		if rec.CreatedAt.IsZero() {
			continue
		}
		byDate[rec.CreatedAt.UTC().Format("2006-01-02")]++
	}
	points := make([]DatePoint, 0, len(byDate))
	for date, count := range byDate {
		points = append(points, DatePoint{Date: date, Count: count})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}
