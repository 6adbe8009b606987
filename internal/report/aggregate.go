// Package report turns an inspection's issue list into the grouped structure
// every report renderer consumes.
package report

import (
	"sort"
	"strings"

	"firecheck/pkg/domain"
)

// RankTable maps facility categories to their report position. Lower ranks
// come first; categories missing from the table sort after every known one.
type RankTable map[domain.FacilityType]int

// DefaultRanks orders the fixed facility categories as printed on inspection
// reports.
func DefaultRanks() RankTable {
	ranks := make(RankTable, len(domain.FacilityTypes()))
	for i, facility := range domain.FacilityTypes() {
		ranks[facility] = i + 1
	}
	return ranks
}

// GroupedIssue collects issues sharing facility type, description and location.
type GroupedIssue struct {
	Description     string         `json:"description"`
	Location        string         `json:"location"`
	DetailLocations []string       `json:"detail_locations"`
	Issues          []domain.Issue `json:"issues"`
}

// FacilitySection holds the groups of one facility category.
type FacilitySection struct {
	FacilityType domain.FacilityType `json:"facility_type"`
	Groups       []GroupedIssue      `json:"groups"`
}

type groupKey struct {
	description string
	location    string
}

type partition struct {
	facility domain.FacilityType
	first    int
	groups   []GroupedIssue
	index    map[groupKey]int
}

// Aggregate partitions issues by facility, groups each partition by
// (description, location) in first-appearance order, deduplicates trimmed
// detail locations and orders the sections by rank. Ties, including every
// category absent from ranks, keep their first appearance in issues.
func Aggregate(issues []domain.Issue, ranks RankTable) []FacilitySection {
	partitions := make(map[domain.FacilityType]*partition)
	var order []*partition
	for i, issue := range issues {
		p, ok := partitions[issue.FacilityType]
		if !ok {
			p = &partition{facility: issue.FacilityType, first: i, index: make(map[groupKey]int)}
			partitions[issue.FacilityType] = p
			order = append(order, p)
		}
		key := groupKey{description: issue.Description, location: issue.Location}
		gi, ok := p.index[key]
		if !ok {
			gi = len(p.groups)
			p.index[key] = gi
			p.groups = append(p.groups, GroupedIssue{
				Description:     issue.Description,
				Location:        issue.Location,
				DetailLocations: []string{},
			})
		}
		group := &p.groups[gi]
		group.Issues = append(group.Issues, issue)
		group.DetailLocations = appendDetail(group.DetailLocations, issue.DetailLocation)
	}

	rank := func(p *partition) (int, bool) {
		r, ok := ranks[p.facility]
		return r, ok
	}
	sort.SliceStable(order, func(i, j int) bool {
		ri, knownI := rank(order[i])
		rj, knownJ := rank(order[j])
		switch {
		case knownI && knownJ:
			return ri < rj
		case knownI != knownJ:
			return knownI
		}
		return false
	})

	sections := make([]FacilitySection, 0, len(order))
	for _, p := range order {
		sections = append(sections, FacilitySection{FacilityType: p.facility, Groups: p.groups})
	}
	return sections
}

func appendDetail(details []string, raw string) []string {
	detail := strings.TrimSpace(raw)
	if detail == "" {
		return details
	}
	for _, existing := range details {
		if existing == detail {
			return details
		}
	}
	return append(details, detail)
}
