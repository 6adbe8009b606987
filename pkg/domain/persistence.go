package domain

import "context"

// Adapter is the durable-storage boundary. Every realization (in-memory,
// local SQLite file, PostgreSQL server) satisfies the same contract and the
// core never inspects which one it was given.
//
// Insert methods assign ID and CreatedAt when they are empty and return the
// canonical record. Update methods return the record after the patch has been
// applied. Removing a site or inspection also removes its dependents; adapters
// perform that cascade atomically. Errors carry one of the kinds ErrNotFound,
// ErrConflict or ErrUnavailable.
type Adapter interface {
	SiteRepository
	InspectionRepository
	IssueRepository
	HistoryRepository
	Close() error
}

// SiteRepository persists sites.
type SiteRepository interface {
	ListSites(ctx context.Context) ([]Site, error)
	InsertSite(ctx context.Context, site Site) (Site, error)
	UpdateSite(ctx context.Context, id string, patch SitePatch) (Site, error)
	RemoveSite(ctx context.Context, id string) error
}

// InspectionRepository persists inspections without their issue lists.
type InspectionRepository interface {
	ListInspections(ctx context.Context) ([]Inspection, error)
	InsertInspection(ctx context.Context, inspection Inspection) (Inspection, error)
	UpdateInspection(ctx context.Context, id string, patch InspectionPatch) (Inspection, error)
	RemoveInspection(ctx context.Context, id string) error
}

// IssueRepository persists issues.
type IssueRepository interface {
	ListIssues(ctx context.Context) ([]Issue, error)
	InsertIssue(ctx context.Context, issue Issue) (Issue, error)
	UpdateIssue(ctx context.Context, id string, patch IssuePatch) (Issue, error)
	RemoveIssue(ctx context.Context, id string) error
}

// HistoryRepository persists the autocomplete history tables. PutHistory is an
// upsert keyed by entry text that never lowers a stored count or timestamp.
type HistoryRepository interface {
	ListHistory(ctx context.Context, table HistoryTable) ([]HistoryEntry, error)
	PutHistory(ctx context.Context, table HistoryTable, entry HistoryEntry) (HistoryEntry, error)
}
