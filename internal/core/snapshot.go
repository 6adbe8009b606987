package core

import "firecheck/pkg/domain"

// Snapshot is one immutable view of every site, inspection and issue plus the
// current selection. Transitions build a new Snapshot; an existing one is
// never modified, so comparing pointers is enough to detect change.
type Snapshot struct {
	version             uint64
	sites               []Site
	inspections         []Inspection
	currentSiteID       string
	currentInspectionID string
}

var emptySnapshot = &Snapshot{}

// Version increases by one with every transition that changed something.
func (s *Snapshot) Version() uint64 { return s.version }

// Sites returns the sites, newest first.
func (s *Snapshot) Sites() []Site {
	return append([]Site{}, s.sites...)
}

// Inspections returns every inspection, newest first, with issues in
// creation order.
func (s *Snapshot) Inspections() []Inspection {
	out := make([]Inspection, 0, len(s.inspections))
	for _, inspection := range s.inspections {
		out = append(out, domain.CloneInspection(inspection))
	}
	return out
}

// InspectionsForSite returns the inspections of one site, newest first.
func (s *Snapshot) InspectionsForSite(siteID string) []Inspection {
	out := []Inspection{}
	for _, inspection := range s.inspections {
		if inspection.SiteID == siteID {
			out = append(out, domain.CloneInspection(inspection))
		}
	}
	return out
}

// Site looks up a site by id.
func (s *Snapshot) Site(id string) (Site, bool) {
	if i := s.siteIndex(id); i >= 0 {
		return s.sites[i], true
	}
	return Site{}, false
}

// Inspection looks up an inspection by id.
func (s *Snapshot) Inspection(id string) (Inspection, bool) {
	if i := s.inspectionIndex(id); i >= 0 {
		return domain.CloneInspection(s.inspections[i]), true
	}
	return Inspection{}, false
}

// Issue looks up an issue by id.
func (s *Snapshot) Issue(id string) (Issue, bool) {
	i, j := s.issueIndex(id)
	if i < 0 {
		return Issue{}, false
	}
	return s.inspections[i].Issues[j], true
}

// Issues returns the issue list of one inspection.
func (s *Snapshot) Issues(inspectionID string) []Issue {
	if i := s.inspectionIndex(inspectionID); i >= 0 {
		return append([]Issue{}, s.inspections[i].Issues...)
	}
	return []Issue{}
}

// CurrentSite returns the selected site, if any.
func (s *Snapshot) CurrentSite() (Site, bool) {
	if s.currentSiteID == "" {
		return Site{}, false
	}
	return s.Site(s.currentSiteID)
}

// CurrentInspection returns the selected inspection, if any.
func (s *Snapshot) CurrentInspection() (Inspection, bool) {
	if s.currentInspectionID == "" {
		return Inspection{}, false
	}
	return s.Inspection(s.currentInspectionID)
}

func (s *Snapshot) siteIndex(id string) int {
	for i := range s.sites {
		if s.sites[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Snapshot) inspectionIndex(id string) int {
	for i := range s.inspections {
		if s.inspections[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Snapshot) issueIndex(id string) (int, int) {
	for i := range s.inspections {
		for j := range s.inspections[i].Issues {
			if s.inspections[i].Issues[j].ID == id {
				return i, j
			}
		}
	}
	return -1, -1
}
