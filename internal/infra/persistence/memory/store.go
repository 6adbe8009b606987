// Package memory provides an in-memory implementation of the persistence
// adapter used for tests, ephemeral environments and as the working set of
// the SQLite snapshot store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"firecheck/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain adapter.
var _ domain.Adapter = (*Store)(nil)

type (
	// Site aliases domain.Site for in-memory persistence operations.
	Site = domain.Site
	// Inspection aliases domain.Inspection.
	Inspection = domain.Inspection
	// Issue aliases domain.Issue.
	Issue = domain.Issue
	// HistoryEntry aliases domain.HistoryEntry.
	HistoryEntry = domain.HistoryEntry
)

// row pairs a record with its insertion sequence so equal timestamps still
// list in a stable order.
type row[T any] struct {
	seq   uint64
	value T
}

type memoryState struct {
	seq         uint64
	sites       map[string]row[Site]
	inspections map[string]row[Inspection]
	issues      map[string]row[Issue]
	history     map[domain.HistoryTable]map[string]HistoryEntry
}

// Snapshot is the serialisable representation of the store. Entity slices
// are kept in insertion order.
type Snapshot struct {
	Sites              []Site         `json:"sites"`
	Inspections        []Inspection   `json:"inspections"`
	Issues             []Issue        `json:"issues"`
	DescriptionHistory []HistoryEntry `json:"description_history"`
	LocationHistory    []HistoryEntry `json:"location_history"`
}

func newMemoryState() memoryState {
	history := make(map[domain.HistoryTable]map[string]HistoryEntry, len(domain.HistoryTables()))
	for _, table := range domain.HistoryTables() {
		history[table] = make(map[string]HistoryEntry)
	}
	return memoryState{
		sites:       make(map[string]row[Site]),
		inspections: make(map[string]row[Inspection]),
		issues:      make(map[string]row[Issue]),
		history:     history,
	}
}

func (s memoryState) clone() memoryState {
	cp := newMemoryState()
	cp.seq = s.seq
	for k, v := range s.sites {
		cp.sites[k] = v
	}
	for k, v := range s.inspections {
		cp.inspections[k] = v
	}
	for k, v := range s.issues {
		cp.issues[k] = v
	}
	for table, entries := range s.history {
		for k, v := range entries {
			cp.history[table][k] = v
		}
	}
	return cp
}

func (s *memoryState) next() uint64 {
	s.seq++
	return s.seq
}

func inOrder[T any](rows map[string]row[T]) []T {
	ordered := make([]row[T], 0, len(rows))
	for _, r := range rows {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })
	out := make([]T, len(ordered))
	for i, r := range ordered {
		out[i] = r.value
	}
	return out
}

func historyList(entries map[string]HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	return Snapshot{
		Sites:              inOrder(state.sites),
		Inspections:        inOrder(state.inspections),
		Issues:             inOrder(state.issues),
		DescriptionHistory: historyList(state.history[domain.HistoryDescriptions]),
		LocationHistory:    historyList(state.history[domain.HistoryLocations]),
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for _, site := range s.Sites {
		state.sites[site.ID] = row[Site]{seq: state.next(), value: site}
	}
	for _, inspection := range s.Inspections {
		inspection.Issues = nil
		state.inspections[inspection.ID] = row[Inspection]{seq: state.next(), value: inspection}
	}
	for _, issue := range s.Issues {
		state.issues[issue.ID] = row[Issue]{seq: state.next(), value: issue}
	}
	for _, e := range s.DescriptionHistory {
		state.history[domain.HistoryDescriptions][e.Text] = e
	}
	for _, e := range s.LocationHistory {
		state.history[domain.HistoryLocations][e.Text] = e
	}
	return state
}

// CommitHook observes the state a write is about to publish. Returning an
// error aborts the write and leaves the previous state in place.
type CommitHook func(ctx context.Context, snapshot Snapshot) error

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for CreatedAt defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithCommitHook installs a hook run before each write is published.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) { s.commit = hook }
}

// Store provides an in-memory transactional adapter.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	nowFn  func() time.Time
	commit CommitHook
}

// NewStore constructs an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state: newMemoryState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// NowFunc returns the time provider used by the store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// update executes fn against a copy of the state and publishes the copy only
// when fn and the commit hook both succeed.
func (s *Store) update(ctx context.Context, op string, fn func(state *memoryState) error) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable(op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if s.commit != nil {
		if err := s.commit(ctx, snapshotFromMemoryState(next)); err != nil {
			return domain.Unavailable(op, err)
		}
	}
	s.state = next
	return nil
}

func (s *Store) view(ctx context.Context, op string, fn func(state *memoryState)) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable(op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.state)
	return nil
}

func newest[T any](rows map[string]row[T], created func(T) time.Time) []T {
	ordered := make([]row[T], 0, len(rows))
	for _, r := range rows {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool {
		ci, cj := created(ordered[i].value), created(ordered[j].value)
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return ordered[i].seq > ordered[j].seq
	})
	out := make([]T, len(ordered))
	for i, r := range ordered {
		out[i] = r.value
	}
	return out
}

// ListSites returns all sites, newest first.
func (s *Store) ListSites(ctx context.Context) ([]Site, error) {
	var out []Site
	err := s.view(ctx, "list sites", func(state *memoryState) {
		out = newest(state.sites, func(v Site) time.Time { return v.CreatedAt })
	})
	return out, err
}

// InsertSite stores a new site.
func (s *Store) InsertSite(ctx context.Context, site Site) (Site, error) {
	err := s.update(ctx, "insert site", func(state *memoryState) error {
		if site.ID == "" {
			site.ID = uuid.NewString()
		}
		if _, exists := state.sites[site.ID]; exists {
			return &domain.ConflictError{Entity: domain.EntitySite, ID: site.ID, Err: fmt.Errorf("already exists")}
		}
		if site.CreatedAt.IsZero() {
			site.CreatedAt = s.nowFn()
		}
		state.sites[site.ID] = row[Site]{seq: state.next(), value: site}
		return nil
	})
	if err != nil {
		return Site{}, err
	}
	return site, nil
}

// UpdateSite applies patch to an existing site.
func (s *Store) UpdateSite(ctx context.Context, id string, patch domain.SitePatch) (Site, error) {
	var updated Site
	err := s.update(ctx, "update site", func(state *memoryState) error {
		current, ok := state.sites[id]
		if !ok {
			return &domain.NotFoundError{Entity: domain.EntitySite, ID: id}
		}
		current.value = patch.Apply(current.value)
		state.sites[id] = current
		updated = current.value
		return nil
	})
	return updated, err
}

// RemoveSite deletes a site together with its inspections and their issues.
func (s *Store) RemoveSite(ctx context.Context, id string) error {
	return s.update(ctx, "remove site", func(state *memoryState) error {
		if _, ok := state.sites[id]; !ok {
			return &domain.NotFoundError{Entity: domain.EntitySite, ID: id}
		}
		for inspectionID, inspection := range state.inspections {
			if inspection.value.SiteID == id {
				removeInspection(state, inspectionID)
			}
		}
		delete(state.sites, id)
		return nil
	})
}

// ListInspections returns all inspections without issues, newest first.
func (s *Store) ListInspections(ctx context.Context) ([]Inspection, error) {
	var out []Inspection
	err := s.view(ctx, "list inspections", func(state *memoryState) {
		out = newest(state.inspections, func(v Inspection) time.Time { return v.CreatedAt })
	})
	return out, err
}

// InsertInspection stores a new inspection for an existing site.
func (s *Store) InsertInspection(ctx context.Context, inspection Inspection) (Inspection, error) {
	inspection.Issues = nil
	err := s.update(ctx, "insert inspection", func(state *memoryState) error {
		if _, ok := state.sites[inspection.SiteID]; !ok {
			return &domain.NotFoundError{Entity: domain.EntitySite, ID: inspection.SiteID}
		}
		if inspection.ID == "" {
			inspection.ID = uuid.NewString()
		}
		if _, exists := state.inspections[inspection.ID]; exists {
			return &domain.ConflictError{Entity: domain.EntityInspection, ID: inspection.ID, Err: fmt.Errorf("already exists")}
		}
		if inspection.CreatedAt.IsZero() {
			inspection.CreatedAt = s.nowFn()
		}
		state.inspections[inspection.ID] = row[Inspection]{seq: state.next(), value: inspection}
		return nil
	})
	if err != nil {
		return Inspection{}, err
	}
	return inspection, nil
}

// UpdateInspection applies patch to an existing inspection.
func (s *Store) UpdateInspection(ctx context.Context, id string, patch domain.InspectionPatch) (Inspection, error) {
	var updated Inspection
	err := s.update(ctx, "update inspection", func(state *memoryState) error {
		current, ok := state.inspections[id]
		if !ok {
			return &domain.NotFoundError{Entity: domain.EntityInspection, ID: id}
		}
		current.value = patch.Apply(current.value)
		state.inspections[id] = current
		updated = current.value
		return nil
	})
	return updated, err
}

// RemoveInspection deletes an inspection and its issues.
func (s *Store) RemoveInspection(ctx context.Context, id string) error {
	return s.update(ctx, "remove inspection", func(state *memoryState) error {
		if _, ok := state.inspections[id]; !ok {
			return &domain.NotFoundError{Entity: domain.EntityInspection, ID: id}
		}
		removeInspection(state, id)
		return nil
	})
}

func removeInspection(state *memoryState, id string) {
	for issueID, issue := range state.issues {
		if issue.value.InspectionID == id {
			delete(state.issues, issueID)
		}
	}
	delete(state.inspections, id)
}

// ListIssues returns all issues in creation order.
func (s *Store) ListIssues(ctx context.Context) ([]Issue, error) {
	var out []Issue
	err := s.view(ctx, "list issues", func(state *memoryState) {
		out = newest(state.issues, func(v Issue) time.Time { return v.CreatedAt })
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	})
	return out, err
}

// InsertIssue stores a new issue for an existing inspection.
func (s *Store) InsertIssue(ctx context.Context, issue Issue) (Issue, error) {
	err := s.update(ctx, "insert issue", func(state *memoryState) error {
		if _, ok := state.inspections[issue.InspectionID]; !ok {
			return &domain.NotFoundError{Entity: domain.EntityInspection, ID: issue.InspectionID}
		}
		if issue.ID == "" {
			issue.ID = uuid.NewString()
		}
		if _, exists := state.issues[issue.ID]; exists {
			return &domain.ConflictError{Entity: domain.EntityIssue, ID: issue.ID, Err: fmt.Errorf("already exists")}
		}
		if issue.CreatedAt.IsZero() {
			issue.CreatedAt = s.nowFn()
		}
		state.issues[issue.ID] = row[Issue]{seq: state.next(), value: issue}
		return nil
	})
	if err != nil {
		return Issue{}, err
	}
	return issue, nil
}

// UpdateIssue applies patch to an existing issue.
func (s *Store) UpdateIssue(ctx context.Context, id string, patch domain.IssuePatch) (Issue, error) {
	var updated Issue
	err := s.update(ctx, "update issue", func(state *memoryState) error {
		current, ok := state.issues[id]
		if !ok {
			return &domain.NotFoundError{Entity: domain.EntityIssue, ID: id}
		}
		current.value = patch.Apply(current.value)
		state.issues[id] = current
		updated = current.value
		return nil
	})
	return updated, err
}

// RemoveIssue deletes an issue.
func (s *Store) RemoveIssue(ctx context.Context, id string) error {
	return s.update(ctx, "remove issue", func(state *memoryState) error {
		if _, ok := state.issues[id]; !ok {
			return &domain.NotFoundError{Entity: domain.EntityIssue, ID: id}
		}
		delete(state.issues, id)
		return nil
	})
}

func historyTable(state *memoryState, table domain.HistoryTable) (map[string]HistoryEntry, error) {
	entries, ok := state.history[table]
	if !ok {
		return nil, &domain.ValidationError{Entity: domain.EntityHistory, Fields: []string{"table"}, Reason: fmt.Sprintf("unknown table %q", table)}
	}
	return entries, nil
}

// ListHistory returns the entries of one history table ordered by text.
func (s *Store) ListHistory(ctx context.Context, table domain.HistoryTable) ([]HistoryEntry, error) {
	var (
		out  []HistoryEntry
		terr error
	)
	err := s.view(ctx, "list history", func(state *memoryState) {
		entries, err := historyTable(state, table)
		if err != nil {
			terr = err
			return
		}
		out = historyList(entries)
	})
	if err != nil {
		return nil, err
	}
	return out, terr
}

// PutHistory upserts a history entry without lowering the stored count or
// timestamp.
func (s *Store) PutHistory(ctx context.Context, table domain.HistoryTable, entry HistoryEntry) (HistoryEntry, error) {
	entry.Text = domain.NormalizeHistoryText(entry.Text)
	if entry.Text == "" {
		return HistoryEntry{}, &domain.ValidationError{Entity: domain.EntityHistory, Fields: []string{"text"}}
	}
	var stored HistoryEntry
	err := s.update(ctx, "put history", func(state *memoryState) error {
		entries, err := historyTable(state, table)
		if err != nil {
			return err
		}
		stored = entry
		if existing, ok := entries[entry.Text]; ok {
			stored = existing.Merge(entry)
		}
		entries[entry.Text] = stored
		return nil
	})
	if err != nil {
		return HistoryEntry{}, err
	}
	return stored, nil
}
