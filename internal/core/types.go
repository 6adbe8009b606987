package core

import "firecheck/pkg/domain"

type (
	EntityType     = domain.EntityType
	FacilityType   = domain.FacilityType
	InspectionType = domain.InspectionType
	HistoryTable   = domain.HistoryTable
	Site           = domain.Site
	Inspection     = domain.Inspection
	Issue          = domain.Issue
	HistoryEntry   = domain.HistoryEntry
	SitePatch      = domain.SitePatch
	Adapter        = domain.Adapter
)

const (
	EntitySite       = domain.EntitySite
	EntityInspection = domain.EntityInspection
	EntityIssue      = domain.EntityIssue
)

const (
	HistoryDescriptions = domain.HistoryDescriptions
	HistoryLocations    = domain.HistoryLocations
)
