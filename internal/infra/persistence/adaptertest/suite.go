// Package adaptertest holds the behavioural contract every persistence
// adapter must satisfy. Adapter packages run it from their own tests so the
// in-memory, SQLite and PostgreSQL realizations stay interchangeable.
package adaptertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"firecheck/pkg/domain"
)

// Factory returns a fresh, empty adapter. Cleanup is registered by the factory.
type Factory func(t *testing.T) domain.Adapter

// Run executes the full contract against adapters produced by factory.
func Run(t *testing.T, factory Factory) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(*testing.T, domain.Adapter)
	}{
		{"SiteLifecycle", testSiteLifecycle},
		{"ListOrdering", testListOrdering},
		{"InspectionRequiresSite", testInspectionRequiresSite},
		{"IssueLifecycle", testIssueLifecycle},
		{"CascadeDelete", testCascadeDelete},
		{"MissingRecords", testMissingRecords},
		{"HistoryUpsertIsMonotonic", testHistoryUpsert},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, factory(t))
		})
	}
}

// Base is the fixed creation time used by seeded fixtures.
var Base = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func mustSite(t *testing.T, a domain.Adapter, name string, at time.Time) domain.Site {
	t.Helper()
	site, err := a.InsertSite(context.Background(), domain.Site{Name: name, Address: name + " address", CreatedAt: at})
	if err != nil {
		t.Fatalf("insert site %s: %v", name, err)
	}
	return site
}

func mustInspection(t *testing.T, a domain.Adapter, siteID string, at time.Time) domain.Inspection {
	t.Helper()
	inspection, err := a.InsertInspection(context.Background(), domain.Inspection{
		SiteID:         siteID,
		Inspector:      "김점검",
		InspectionType: domain.InspectionOperational,
		CreatedAt:      at,
	})
	if err != nil {
		t.Fatalf("insert inspection: %v", err)
	}
	return inspection
}

func mustIssue(t *testing.T, a domain.Adapter, inspectionID, description string, at time.Time) domain.Issue {
	t.Helper()
	issue, err := a.InsertIssue(context.Background(), domain.Issue{
		InspectionID: inspectionID,
		FacilityType: domain.FacilityAlarm,
		Description:  description,
		Location:     "1층 복도",
		CreatedAt:    at,
	})
	if err != nil {
		t.Fatalf("insert issue: %v", err)
	}
	return issue
}

func testSiteLifecycle(t *testing.T, a domain.Adapter) {
	ctx := context.Background()
	site, err := a.InsertSite(ctx, domain.Site{Name: "Riverside Tower", Address: "12 River Rd", Notes: "gate code 1234"})
	if err != nil {
		t.Fatalf("insert site: %v", err)
	}
	if site.ID == "" || site.CreatedAt.IsZero() {
		t.Fatalf("expected generated id and timestamp, got %+v", site)
	}
	name := "Riverside Tower B"
	updated, err := a.UpdateSite(ctx, site.ID, domain.SitePatch{Name: &name})
	if err != nil {
		t.Fatalf("update site: %v", err)
	}
	if updated.Name != name || updated.Address != "12 River Rd" || updated.Notes != "gate code 1234" {
		t.Fatalf("unexpected updated site %+v", updated)
	}
	sites, err := a.ListSites(ctx)
	if err != nil {
		t.Fatalf("list sites: %v", err)
	}
	if len(sites) != 1 || sites[0].Name != name {
		t.Fatalf("unexpected sites %+v", sites)
	}
	if !sites[0].CreatedAt.Equal(site.CreatedAt) {
		t.Fatalf("created_at changed: %v vs %v", sites[0].CreatedAt, site.CreatedAt)
	}
	if err := a.RemoveSite(ctx, site.ID); err != nil {
		t.Fatalf("remove site: %v", err)
	}
	sites, err = a.ListSites(ctx)
	if err != nil {
		t.Fatalf("list sites: %v", err)
	}
	if len(sites) != 0 {
		t.Fatalf("expected no sites, got %+v", sites)
	}
}

func testListOrdering(t *testing.T, a domain.Adapter) {
	ctx := context.Background()
	first := mustSite(t, a, "first", Base)
	second := mustSite(t, a, "second", Base.Add(time.Hour))
	sites, err := a.ListSites(ctx)
	if err != nil {
		t.Fatalf("list sites: %v", err)
	}
	if len(sites) != 2 || sites[0].ID != second.ID || sites[1].ID != first.ID {
		t.Fatalf("expected newest site first, got %+v", sites)
	}

	older := mustInspection(t, a, first.ID, Base)
	newer := mustInspection(t, a, first.ID, Base.Add(time.Minute))
	inspections, err := a.ListInspections(ctx)
	if err != nil {
		t.Fatalf("list inspections: %v", err)
	}
	if len(inspections) != 2 || inspections[0].ID != newer.ID || inspections[1].ID != older.ID {
		t.Fatalf("expected newest inspection first, got %+v", inspections)
	}

	a1 := mustIssue(t, a, newer.ID, "a", Base)
	a2 := mustIssue(t, a, newer.ID, "b", Base.Add(time.Second))
	issues, err := a.ListIssues(ctx)
	if err != nil {
		t.Fatalf("list issues: %v", err)
	}
	if len(issues) != 2 || issues[0].ID != a1.ID || issues[1].ID != a2.ID {
		t.Fatalf("expected issues in creation order, got %+v", issues)
	}
}

func testInspectionRequiresSite(t *testing.T, a domain.Adapter) {
	_, err := a.InsertInspection(context.Background(), domain.Inspection{
		SiteID:         "missing",
		Inspector:      "김점검",
		InspectionType: domain.InspectionComprehensive,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for missing site, got %v", err)
	}
	_, err = a.InsertIssue(context.Background(), domain.Issue{
		InspectionID: "missing",
		FacilityType: domain.FacilityOther,
		Description:  "d",
		Location:     "l",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for missing inspection, got %v", err)
	}
}

func testIssueLifecycle(t *testing.T, a domain.Adapter) {
	ctx := context.Background()
	site := mustSite(t, a, "site", Base)
	inspection := mustInspection(t, a, site.ID, Base)
	issue := mustIssue(t, a, inspection.ID, "감지기 탈락", Base)

	detail := "계단실"
	facility := domain.FacilityEvacuation
	updated, err := a.UpdateIssue(ctx, issue.ID, domain.IssuePatch{DetailLocation: &detail, FacilityType: &facility})
	if err != nil {
		t.Fatalf("update issue: %v", err)
	}
	if updated.DetailLocation != detail || updated.FacilityType != facility || updated.Description != "감지기 탈락" {
		t.Fatalf("unexpected issue %+v", updated)
	}

	notes := "지하 주차장 누수"
	updatedInspection, err := a.UpdateInspection(ctx, inspection.ID, domain.InspectionPatch{Notes: &notes})
	if err != nil {
		t.Fatalf("update inspection: %v", err)
	}
	if updatedInspection.Notes != notes || updatedInspection.SiteID != site.ID {
		t.Fatalf("unexpected inspection %+v", updatedInspection)
	}

	if err := a.RemoveIssue(ctx, issue.ID); err != nil {
		t.Fatalf("remove issue: %v", err)
	}
	issues, err := a.ListIssues(ctx)
	if err != nil {
		t.Fatalf("list issues: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func testCascadeDelete(t *testing.T, a domain.Adapter) {
	ctx := context.Background()
	keep := mustSite(t, a, "keep", Base)
	drop := mustSite(t, a, "drop", Base)
	keptInspection := mustInspection(t, a, keep.ID, Base)
	droppedInspection := mustInspection(t, a, drop.ID, Base)
	kept := mustIssue(t, a, keptInspection.ID, "kept", Base)
	mustIssue(t, a, droppedInspection.ID, "dropped", Base)

	if err := a.RemoveSite(ctx, drop.ID); err != nil {
		t.Fatalf("remove site: %v", err)
	}
	inspections, err := a.ListInspections(ctx)
	if err != nil {
		t.Fatalf("list inspections: %v", err)
	}
	if len(inspections) != 1 || inspections[0].ID != keptInspection.ID {
		t.Fatalf("expected only kept inspection, got %+v", inspections)
	}
	issues, err := a.ListIssues(ctx)
	if err != nil {
		t.Fatalf("list issues: %v", err)
	}
	if len(issues) != 1 || issues[0].ID != kept.ID {
		t.Fatalf("expected only kept issue, got %+v", issues)
	}

	if err := a.RemoveInspection(ctx, keptInspection.ID); err != nil {
		t.Fatalf("remove inspection: %v", err)
	}
	issues, err = a.ListIssues(ctx)
	if err != nil {
		t.Fatalf("list issues: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected issues removed with inspection, got %+v", issues)
	}
}

func testMissingRecords(t *testing.T, a domain.Adapter) {
	ctx := context.Background()
	name := "x"
	if _, err := a.UpdateSite(ctx, "missing", domain.SitePatch{Name: &name}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update site: expected not found, got %v", err)
	}
	if _, err := a.UpdateInspection(ctx, "missing", domain.InspectionPatch{Notes: &name}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update inspection: expected not found, got %v", err)
	}
	if _, err := a.UpdateIssue(ctx, "missing", domain.IssuePatch{Location: &name}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update issue: expected not found, got %v", err)
	}
	if err := a.RemoveSite(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("remove site: expected not found, got %v", err)
	}
	if err := a.RemoveInspection(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("remove inspection: expected not found, got %v", err)
	}
	if err := a.RemoveIssue(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("remove issue: expected not found, got %v", err)
	}
}

func testHistoryUpsert(t *testing.T, a domain.Adapter) {
	ctx := context.Background()
	first := domain.HistoryEntry{Text: "유도등 점등 불량", Count: 2, LastUsed: Base.Add(time.Hour)}
	if _, err := a.PutHistory(ctx, domain.HistoryDescriptions, first); err != nil {
		t.Fatalf("put history: %v", err)
	}
	stale := domain.HistoryEntry{Text: "유도등 점등 불량", Count: 1, LastUsed: Base}
	stored, err := a.PutHistory(ctx, domain.HistoryDescriptions, stale)
	if err != nil {
		t.Fatalf("put stale history: %v", err)
	}
	if stored.Count != 2 || !stored.LastUsed.Equal(first.LastUsed) {
		t.Fatalf("history moved backward: %+v", stored)
	}
	if _, err := a.PutHistory(ctx, domain.HistoryLocations, domain.HistoryEntry{Text: "옥상", Count: 1, LastUsed: Base}); err != nil {
		t.Fatalf("put location: %v", err)
	}
	descriptions, err := a.ListHistory(ctx, domain.HistoryDescriptions)
	if err != nil {
		t.Fatalf("list descriptions: %v", err)
	}
	if len(descriptions) != 1 || descriptions[0].Count != 2 {
		t.Fatalf("unexpected descriptions %+v", descriptions)
	}
	locations, err := a.ListHistory(ctx, domain.HistoryLocations)
	if err != nil {
		t.Fatalf("list locations: %v", err)
	}
	if len(locations) != 1 || locations[0].Text != "옥상" {
		t.Fatalf("unexpected locations %+v", locations)
	}
	if _, err := a.PutHistory(ctx, domain.HistoryDescriptions, domain.HistoryEntry{Text: "   "}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected blank text rejection, got %v", err)
	}
}
