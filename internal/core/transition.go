package core

import (
	"sort"

	"firecheck/pkg/domain"
)

// Mutation describes one persisted change. Apply turns it into a new
// Snapshot.
type Mutation interface {
	apply(prev *Snapshot) *Snapshot
}

// Loaded replaces the whole entity set with what the adapter listed. Issues
// are attached to their inspections in the given order.
type Loaded struct {
	Sites       []Site
	Inspections []Inspection
	Issues      []Issue
}

// SiteCreated adds a persisted site.
type SiteCreated struct{ Site Site }

// SiteUpdated replaces a site in place.
type SiteUpdated struct{ Site Site }

// SiteDeleted removes a site with its inspections and their issues.
type SiteDeleted struct{ ID string }

// InspectionCreated adds an inspection and selects it as current.
type InspectionCreated struct{ Inspection Inspection }

// InspectionUpdated replaces the mutable fields of an inspection. Its issues,
// site and creation time are kept.
type InspectionUpdated struct{ Inspection Inspection }

// InspectionDeleted removes an inspection with its issues.
type InspectionDeleted struct{ ID string }

// IssueAdded appends an issue to its inspection.
type IssueAdded struct{ Issue Issue }

// IssueUpdated replaces an issue in place.
type IssueUpdated struct{ Issue Issue }

// IssueDeleted removes an issue.
type IssueDeleted struct{ ID string }

// CurrentSiteSelected changes the selected site. An empty ID clears it.
type CurrentSiteSelected struct{ ID string }

// CurrentInspectionSelected changes the selected inspection. An empty ID
// clears it.
type CurrentInspectionSelected struct{ ID string }

// Apply is the state transition function. It never modifies prev and returns
// prev itself when m changes nothing (unknown ids, nil mutation).
func Apply(prev *Snapshot, m Mutation) *Snapshot {
	if prev == nil {
		prev = emptySnapshot
	}
	if m == nil {
		return prev
	}
	return m.apply(prev)
}

func (s *Snapshot) derive() *Snapshot {
	next := *s
	next.version++
	return &next
}

func newestFirst[T any](items []T, createdAt func(T) int64) {
	sort.SliceStable(items, func(i, j int) bool { return createdAt(items[i]) > createdAt(items[j]) })
}

func sortSites(sites []Site) {
	newestFirst(sites, func(s Site) int64 { return s.CreatedAt.UnixNano() })
}

func sortInspections(inspections []Inspection) {
	newestFirst(inspections, func(i Inspection) int64 { return i.CreatedAt.UnixNano() })
}

func (m Loaded) apply(prev *Snapshot) *Snapshot {
	next := prev.derive()
	next.sites = append([]Site{}, m.Sites...)
	next.inspections = make([]Inspection, 0, len(m.Inspections))
	index := make(map[string]int, len(m.Inspections))
	for _, inspection := range m.Inspections {
		inspection.Issues = nil
		index[inspection.ID] = len(next.inspections)
		next.inspections = append(next.inspections, inspection)
	}
	for _, issue := range m.Issues {
		if i, ok := index[issue.InspectionID]; ok {
			next.inspections[i].Issues = append(next.inspections[i].Issues, issue)
		}
	}
	if next.siteIndex(next.currentSiteID) < 0 {
		next.currentSiteID = ""
	}
	if next.inspectionIndex(next.currentInspectionID) < 0 {
		next.currentInspectionID = ""
	}
	return next
}

func (m SiteCreated) apply(prev *Snapshot) *Snapshot {
	next := prev.derive()
	next.sites = append([]Site{m.Site}, prev.sites...)
	sortSites(next.sites)
	return next
}

func (m SiteUpdated) apply(prev *Snapshot) *Snapshot {
	i := prev.siteIndex(m.Site.ID)
	if i < 0 {
		return prev
	}
	next := prev.derive()
	next.sites = append([]Site{}, prev.sites...)
	next.sites[i] = m.Site
	return next
}

func (m SiteDeleted) apply(prev *Snapshot) *Snapshot {
	if prev.siteIndex(m.ID) < 0 {
		return prev
	}
	next := prev.derive()
	next.sites = make([]Site, 0, len(prev.sites)-1)
	for _, site := range prev.sites {
		if site.ID != m.ID {
			next.sites = append(next.sites, site)
		}
	}
	next.inspections = make([]Inspection, 0, len(prev.inspections))
	for _, inspection := range prev.inspections {
		if inspection.SiteID == m.ID {
			if inspection.ID == next.currentInspectionID {
				next.currentInspectionID = ""
			}
			continue
		}
		next.inspections = append(next.inspections, inspection)
	}
	if next.currentSiteID == m.ID {
		next.currentSiteID = ""
	}
	return next
}

func (m InspectionCreated) apply(prev *Snapshot) *Snapshot {
	next := prev.derive()
	inspection := domain.CloneInspection(m.Inspection)
	next.inspections = append([]Inspection{inspection}, prev.inspections...)
	sortInspections(next.inspections)
	next.currentInspectionID = inspection.ID
	return next
}

func (m InspectionUpdated) apply(prev *Snapshot) *Snapshot {
	i := prev.inspectionIndex(m.Inspection.ID)
	if i < 0 {
		return prev
	}
	next := prev.derive()
	next.inspections = append([]Inspection{}, prev.inspections...)
	updated := next.inspections[i]
	updated.Inspector = m.Inspection.Inspector
	updated.InspectionType = m.Inspection.InspectionType
	updated.Notes = m.Inspection.Notes
	next.inspections[i] = updated
	return next
}

func (m InspectionDeleted) apply(prev *Snapshot) *Snapshot {
	i := prev.inspectionIndex(m.ID)
	if i < 0 {
		return prev
	}
	next := prev.derive()
	next.inspections = make([]Inspection, 0, len(prev.inspections)-1)
	next.inspections = append(next.inspections, prev.inspections[:i]...)
	next.inspections = append(next.inspections, prev.inspections[i+1:]...)
	if next.currentInspectionID == m.ID {
		next.currentInspectionID = ""
	}
	return next
}

// withIssues copies the inspection list and gives inspection i a fresh issue
// slice built by fn.
func (s *Snapshot) withIssues(i int, fn func([]Issue) []Issue) *Snapshot {
	next := s.derive()
	next.inspections = append([]Inspection{}, s.inspections...)
	next.inspections[i].Issues = fn(append([]Issue{}, s.inspections[i].Issues...))
	return next
}

func (m IssueAdded) apply(prev *Snapshot) *Snapshot {
	i := prev.inspectionIndex(m.Issue.InspectionID)
	if i < 0 {
		return prev
	}
	return prev.withIssues(i, func(issues []Issue) []Issue {
		return append(issues, m.Issue)
	})
}

func (m IssueUpdated) apply(prev *Snapshot) *Snapshot {
	i, j := prev.issueIndex(m.Issue.ID)
	if i < 0 {
		return prev
	}
	return prev.withIssues(i, func(issues []Issue) []Issue {
		updated := m.Issue
		updated.InspectionID = issues[j].InspectionID
		updated.CreatedAt = issues[j].CreatedAt
		issues[j] = updated
		return issues
	})
}

func (m IssueDeleted) apply(prev *Snapshot) *Snapshot {
	i, j := prev.issueIndex(m.ID)
	if i < 0 {
		return prev
	}
	return prev.withIssues(i, func(issues []Issue) []Issue {
		return append(issues[:j], issues[j+1:]...)
	})
}

func (m CurrentSiteSelected) apply(prev *Snapshot) *Snapshot {
	if m.ID == prev.currentSiteID || (m.ID != "" && prev.siteIndex(m.ID) < 0) {
		return prev
	}
	next := prev.derive()
	next.currentSiteID = m.ID
	return next
}

func (m CurrentInspectionSelected) apply(prev *Snapshot) *Snapshot {
	if m.ID == prev.currentInspectionID || (m.ID != "" && prev.inspectionIndex(m.ID) < 0) {
		return prev
	}
	next := prev.derive()
	next.currentInspectionID = m.ID
	return next
}
