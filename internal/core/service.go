// Package core owns the inspection record state of one session: the
// immutable snapshot store, the transition function, the history tracker and
// the Service facade that keeps them in step with the persistence adapter.
package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"firecheck/internal/report"
	"firecheck/pkg/domain"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the recorder observing every write.
func WithMetrics(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithRankTable overrides the facility order used by Report.
func WithRankTable(ranks report.RankTable) Option {
	return func(s *Service) {
		if ranks != nil {
			s.ranks = ranks
		}
	}
}

// WithClock sets the time source of the history tracker.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service is the read and write API over one adapter. Writes validate, check
// references against the current snapshot, persist, and only then transition
// the snapshot. A failed write leaves the snapshot untouched.
type Service struct {
	adapter Adapter
	store   *Store
	history *HistoryTracker
	logger  *zap.Logger
	metrics MetricsRecorder
	ranks   report.RankTable
	now     func() time.Time
}

// NewService constructs a service over adapter. Call Open before use.
func NewService(adapter Adapter, opts ...Option) *Service {
	s := &Service{
		adapter: adapter,
		store:   NewStore(),
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
		ranks:   report.DefaultRanks(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.history = NewHistoryTracker(adapter, s.logger.Named("history"), s.now)
	return s
}

// Open loads every record and both history tables from the adapter. A
// history load failure is logged and leaves the tables empty.
func (s *Service) Open(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	if err := s.history.Load(ctx); err != nil {
		s.history.logger.Warn("load history failed", zap.Error(err))
	}
	snap := s.store.Snapshot()
	s.logger.Info("service opened",
		zap.Int("sites", len(snap.sites)),
		zap.Int("inspections", len(snap.inspections)))
	return nil
}

// Reload re-lists sites, inspections and issues and replaces the snapshot.
func (s *Service) Reload(ctx context.Context) (err error) {
	defer s.observe(ctx, "reload", time.Now(), &err)
	sites, err := s.adapter.ListSites(ctx)
	if err != nil {
		return err
	}
	inspections, err := s.adapter.ListInspections(ctx)
	if err != nil {
		return err
	}
	issues, err := s.adapter.ListIssues(ctx)
	if err != nil {
		return err
	}
	s.store.Dispatch(Loaded{Sites: sites, Inspections: inspections, Issues: issues})
	return nil
}

// Close waits for background history writes and closes the adapter.
func (s *Service) Close() error {
	s.history.Wait()
	return s.adapter.Close()
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, errp *error) {
	err := *errp
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		s.logger.Debug("operation failed", zap.String("operation", op), zap.Error(err))
	}
}

func notFound(entity EntityType, id string) error {
	return &domain.NotFoundError{Entity: entity, ID: id}
}

// CreateSite validates and persists a new site.
func (s *Service) CreateSite(ctx context.Context, site Site) (created Site, err error) {
	defer s.observe(ctx, "create_site", time.Now(), &err)
	if err := domain.ValidateSite(site); err != nil {
		return Site{}, err
	}
	created, err = s.adapter.InsertSite(ctx, site)
	if err != nil {
		return Site{}, err
	}
	s.store.Dispatch(SiteCreated{Site: created})
	return created, nil
}

// UpdateSite applies patch to an existing site.
func (s *Service) UpdateSite(ctx context.Context, id string, patch SitePatch) (updated Site, err error) {
	defer s.observe(ctx, "update_site", time.Now(), &err)
	if err := domain.ValidateSitePatch(patch); err != nil {
		return Site{}, err
	}
	if _, ok := s.store.Snapshot().Site(id); !ok {
		return Site{}, notFound(EntitySite, id)
	}
	updated, err = s.adapter.UpdateSite(ctx, id, patch)
	if err != nil {
		return Site{}, err
	}
	s.store.Dispatch(SiteUpdated{Site: updated})
	return updated, nil
}

// DeleteSite removes a site with its inspections and their issues.
func (s *Service) DeleteSite(ctx context.Context, id string) (err error) {
	defer s.observe(ctx, "delete_site", time.Now(), &err)
	if _, ok := s.store.Snapshot().Site(id); !ok {
		return notFound(EntitySite, id)
	}
	if err := s.adapter.RemoveSite(ctx, id); err != nil {
		return err
	}
	s.store.Dispatch(SiteDeleted{ID: id})
	return nil
}

// CreateInspection opens an inspection at a live site and selects it as the
// current inspection.
func (s *Service) CreateInspection(ctx context.Context, inspection Inspection) (created Inspection, err error) {
	defer s.observe(ctx, "create_inspection", time.Now(), &err)
	if err := domain.ValidateInspection(inspection); err != nil {
		return Inspection{}, err
	}
	if _, ok := s.store.Snapshot().Site(inspection.SiteID); !ok {
		return Inspection{}, notFound(EntitySite, inspection.SiteID)
	}
	inspection.Issues = nil
	created, err = s.adapter.InsertInspection(ctx, inspection)
	if err != nil {
		return Inspection{}, err
	}
	s.store.Dispatch(InspectionCreated{Inspection: created})
	return created, nil
}

// UpdateInspection changes inspector, inspection type or notes.
func (s *Service) UpdateInspection(ctx context.Context, id string, patch domain.InspectionPatch) (updated Inspection, err error) {
	defer s.observe(ctx, "update_inspection", time.Now(), &err)
	if err := domain.ValidateInspectionPatch(patch); err != nil {
		return Inspection{}, err
	}
	if _, ok := s.store.Snapshot().Inspection(id); !ok {
		return Inspection{}, notFound(EntityInspection, id)
	}
	persisted, err := s.adapter.UpdateInspection(ctx, id, patch)
	if err != nil {
		return Inspection{}, err
	}
	next := s.store.Dispatch(InspectionUpdated{Inspection: persisted})
	updated, _ = next.Inspection(id)
	return updated, nil
}

// DeleteInspection removes an inspection and its issues.
func (s *Service) DeleteInspection(ctx context.Context, id string) (err error) {
	defer s.observe(ctx, "delete_inspection", time.Now(), &err)
	if _, ok := s.store.Snapshot().Inspection(id); !ok {
		return notFound(EntityInspection, id)
	}
	if err := s.adapter.RemoveInspection(ctx, id); err != nil {
		return err
	}
	s.store.Dispatch(InspectionDeleted{ID: id})
	return nil
}

// AddIssue records an issue on a live inspection. Description and location
// are fed to the history tracker in the background.
func (s *Service) AddIssue(ctx context.Context, issue Issue) (created Issue, err error) {
	defer s.observe(ctx, "add_issue", time.Now(), &err)
	if err := domain.ValidateIssue(issue); err != nil {
		return Issue{}, err
	}
	if _, ok := s.store.Snapshot().Inspection(issue.InspectionID); !ok {
		return Issue{}, notFound(EntityInspection, issue.InspectionID)
	}
	created, err = s.adapter.InsertIssue(ctx, issue)
	if err != nil {
		return Issue{}, err
	}
	s.store.Dispatch(IssueAdded{Issue: created})
	s.history.RecordIssueAsync(ctx, created)
	return created, nil
}

// UpdateIssue applies patch to an issue and records the resulting
// description and location in the history tables.
func (s *Service) UpdateIssue(ctx context.Context, id string, patch domain.IssuePatch) (updated Issue, err error) {
	defer s.observe(ctx, "update_issue", time.Now(), &err)
	if err := domain.ValidateIssuePatch(patch); err != nil {
		return Issue{}, err
	}
	if _, ok := s.store.Snapshot().Issue(id); !ok {
		return Issue{}, notFound(EntityIssue, id)
	}
	updated, err = s.adapter.UpdateIssue(ctx, id, patch)
	if err != nil {
		return Issue{}, err
	}
	s.store.Dispatch(IssueUpdated{Issue: updated})
	s.history.RecordIssueAsync(ctx, updated)
	return updated, nil
}

// DeleteIssue removes an issue.
func (s *Service) DeleteIssue(ctx context.Context, id string) (err error) {
	defer s.observe(ctx, "delete_issue", time.Now(), &err)
	if _, ok := s.store.Snapshot().Issue(id); !ok {
		return notFound(EntityIssue, id)
	}
	if err := s.adapter.RemoveIssue(ctx, id); err != nil {
		return err
	}
	s.store.Dispatch(IssueDeleted{ID: id})
	return nil
}

// SetCurrentSite selects a site. An empty id clears the selection.
func (s *Service) SetCurrentSite(id string) error {
	if id != "" {
		if _, ok := s.store.Snapshot().Site(id); !ok {
			return notFound(EntitySite, id)
		}
	}
	s.store.Dispatch(CurrentSiteSelected{ID: id})
	return nil
}

// SetCurrentInspection selects an inspection. An empty id clears the
// selection.
func (s *Service) SetCurrentInspection(id string) error {
	if id != "" {
		if _, ok := s.store.Snapshot().Inspection(id); !ok {
			return notFound(EntityInspection, id)
		}
	}
	s.store.Dispatch(CurrentInspectionSelected{ID: id})
	return nil
}

// SelectCurrent changes both selections together. A nil id leaves that
// selection as is and "" clears it. Both ids are checked against the same
// snapshot, so nothing changes unless every given id exists.
func (s *Service) SelectCurrent(siteID, inspectionID *string) error {
	snap := s.store.Snapshot()
	if siteID != nil && *siteID != "" {
		if _, ok := snap.Site(*siteID); !ok {
			return notFound(EntitySite, *siteID)
		}
	}
	if inspectionID != nil && *inspectionID != "" {
		if _, ok := snap.Inspection(*inspectionID); !ok {
			return notFound(EntityInspection, *inspectionID)
		}
	}
	if siteID != nil {
		s.store.Dispatch(CurrentSiteSelected{ID: *siteID})
	}
	if inspectionID != nil {
		s.store.Dispatch(CurrentInspectionSelected{ID: *inspectionID})
	}
	return nil
}

// Snapshot returns the current immutable snapshot.
func (s *Service) Snapshot() *Snapshot { return s.store.Snapshot() }

// ListSites returns every site, newest first.
func (s *Service) ListSites() []Site { return s.store.Snapshot().Sites() }

// ListInspections returns every inspection, newest first.
func (s *Service) ListInspections() []Inspection { return s.store.Snapshot().Inspections() }

// InspectionsForSite returns the inspections of one site, newest first.
func (s *Service) InspectionsForSite(siteID string) []Inspection {
	return s.store.Snapshot().InspectionsForSite(siteID)
}

// CurrentSite returns the selected site.
func (s *Service) CurrentSite() (Site, bool) { return s.store.Snapshot().CurrentSite() }

// CurrentInspection returns the selected inspection.
func (s *Service) CurrentInspection() (Inspection, bool) {
	return s.store.Snapshot().CurrentInspection()
}

// TopIssueDescriptions returns the most frequently used descriptions.
func (s *Service) TopIssueDescriptions(n int) []HistoryEntry {
	return s.history.TopByFrequency(HistoryDescriptions, n)
}

// TopLocations returns the most recently used locations.
func (s *Service) TopLocations(n int) []HistoryEntry {
	return s.history.TopByRecency(HistoryLocations, n)
}

// History exposes the tracker for callers that need other orderings.
func (s *Service) History() *HistoryTracker { return s.history }

// Report builds the report contract for one inspection from the current
// snapshot.
func (s *Service) Report(inspectionID string) (report.Report, error) {
	snap := s.store.Snapshot()
	inspection, ok := snap.Inspection(inspectionID)
	if !ok {
		return report.Report{}, notFound(EntityInspection, inspectionID)
	}
	site, ok := snap.Site(inspection.SiteID)
	if !ok {
		return report.Report{}, notFound(EntitySite, inspection.SiteID)
	}
	return report.BuildReport(inspection, site, s.ranks), nil
}
