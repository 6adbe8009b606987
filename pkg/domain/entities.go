// Package domain defines the persistent inspection records, value types,
// validation rules and the persistence boundary used by firecheck.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in errors and persistence buckets.
const (
	// EntitySite identifies a site record.
	EntitySite EntityType = "site"
	// EntityInspection identifies an inspection record.
	EntityInspection EntityType = "inspection"
	// EntityIssue identifies an issue record.
	EntityIssue EntityType = "issue"
	// EntityHistory identifies a description or location history entry.
	EntityHistory EntityType = "history"
)

// FacilityType is the fixed category an issue is filed under.
type FacilityType string

// Facility categories in report order.
const (
	FacilityFireSuppression FacilityType = "소화설비"
	FacilityAlarm           FacilityType = "경보설비"
	FacilityEvacuation      FacilityType = "피난구조설비"
	FacilityWaterSupply     FacilityType = "소화용수설비"
	FacilityFireResponse    FacilityType = "소화활동설비"
	FacilitySafety          FacilityType = "안전시설등"
	// FacilityRecommendation marks an improvement recommendation rather than a defect.
	FacilityRecommendation FacilityType = "권고사항"
	FacilityOther          FacilityType = "기타"
)

// FacilityTypes lists every known category in report order.
func FacilityTypes() []FacilityType {
	return []FacilityType{
		FacilityFireSuppression,
		FacilityAlarm,
		FacilityEvacuation,
		FacilityWaterSupply,
		FacilityFireResponse,
		FacilitySafety,
		FacilityRecommendation,
		FacilityOther,
	}
}

// Known reports whether the facility type is one of the fixed categories.
func (f FacilityType) Known() bool {
	for _, known := range FacilityTypes() {
		if f == known {
			return true
		}
	}
	return false
}

// InspectionType enumerates the statutory inspection kinds.
type InspectionType string

// Supported inspection kinds.
const (
	InspectionOperational   InspectionType = "작동점검"
	InspectionComprehensive InspectionType = "종합점검"
)

// Known reports whether the inspection type is supported.
func (t InspectionType) Known() bool {
	return t == InspectionOperational || t == InspectionComprehensive
}

// HistoryTable names one of the autocomplete history tables.
type HistoryTable string

// History tables fed by issue writes.
const (
	HistoryDescriptions HistoryTable = "descriptions"
	HistoryLocations    HistoryTable = "locations"
)

// HistoryTables lists the tables in a stable order.
func HistoryTables() []HistoryTable {
	return []HistoryTable{HistoryDescriptions, HistoryLocations}
}

// Site is a physical location subject to fire-safety inspection.
type Site struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Address      string    `json:"address" db:"address"`
	Phone        string    `json:"phone,omitempty" db:"phone"`
	ManagerName  string    `json:"manager_name,omitempty" db:"manager_name"`
	ManagerPhone string    `json:"manager_phone,omitempty" db:"manager_phone"`
	ManagerEmail string    `json:"manager_email,omitempty" db:"manager_email"`
	ApprovalDate string    `json:"approval_date,omitempty" db:"approval_date"`
	Notes        string    `json:"notes,omitempty" db:"notes"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Inspection is one inspection event at a site. Issues are kept in creation
// order; adapters never persist them on the inspection record itself.
type Inspection struct {
	ID             string         `json:"id" db:"id"`
	SiteID         string         `json:"site_id" db:"site_id"`
	Inspector      string         `json:"inspector" db:"inspector"`
	InspectionType InspectionType `json:"inspection_type" db:"inspection_type"`
	Notes          string         `json:"notes,omitempty" db:"notes"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	Issues         []Issue        `json:"issues,omitempty" db:"-"`
}

// Issue is one recorded deficiency or recommendation.
type Issue struct {
	ID             string       `json:"id" db:"id"`
	InspectionID   string       `json:"inspection_id" db:"inspection_id"`
	FacilityType   FacilityType `json:"facility_type" db:"facility_type"`
	Description    string       `json:"description" db:"description"`
	Location       string       `json:"location" db:"location"`
	DetailLocation string       `json:"detail_location,omitempty" db:"detail_location"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}

// HistoryEntry tracks how often and how recently a text value was used.
type HistoryEntry struct {
	Text     string    `json:"text" db:"text"`
	Count    int       `json:"count" db:"count"`
	LastUsed time.Time `json:"last_used" db:"last_used"`
}

// NormalizeHistoryText returns the key a history table stores text under.
func NormalizeHistoryText(text string) string {
	return strings.TrimSpace(text)
}

// Merge combines two observations of the same key so that neither the count
// nor the timestamp moves backward.
func (e HistoryEntry) Merge(other HistoryEntry) HistoryEntry {
	out := e
	if other.Count > out.Count {
		out.Count = other.Count
	}
	if other.LastUsed.After(out.LastUsed) {
		out.LastUsed = other.LastUsed
	}
	return out
}

// SitePatch carries the fields an update may change; nil leaves a field as is.
type SitePatch struct {
	Name         *string `json:"name,omitempty"`
	Address      *string `json:"address,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	ManagerName  *string `json:"manager_name,omitempty"`
	ManagerPhone *string `json:"manager_phone,omitempty"`
	ManagerEmail *string `json:"manager_email,omitempty"`
	ApprovalDate *string `json:"approval_date,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// Apply returns a copy of site with the patch applied.
func (p SitePatch) Apply(site Site) Site {
	setString(&site.Name, p.Name)
	setString(&site.Address, p.Address)
	setString(&site.Phone, p.Phone)
	setString(&site.ManagerName, p.ManagerName)
	setString(&site.ManagerPhone, p.ManagerPhone)
	setString(&site.ManagerEmail, p.ManagerEmail)
	setString(&site.ApprovalDate, p.ApprovalDate)
	setString(&site.Notes, p.Notes)
	return site
}

// InspectionPatch carries the mutable inspection fields. Site and creation
// time are fixed once the inspection exists.
type InspectionPatch struct {
	Inspector      *string         `json:"inspector,omitempty"`
	InspectionType *InspectionType `json:"inspection_type,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
}

// Apply returns a copy of inspection with the patch applied.
func (p InspectionPatch) Apply(inspection Inspection) Inspection {
	setString(&inspection.Inspector, p.Inspector)
	if p.InspectionType != nil {
		inspection.InspectionType = *p.InspectionType
	}
	setString(&inspection.Notes, p.Notes)
	return inspection
}

// IssuePatch carries the mutable issue fields.
type IssuePatch struct {
	FacilityType   *FacilityType `json:"facility_type,omitempty"`
	Description    *string       `json:"description,omitempty"`
	Location       *string       `json:"location,omitempty"`
	DetailLocation *string       `json:"detail_location,omitempty"`
}

// Apply returns a copy of issue with the patch applied.
func (p IssuePatch) Apply(issue Issue) Issue {
	if p.FacilityType != nil {
		issue.FacilityType = *p.FacilityType
	}
	setString(&issue.Description, p.Description)
	setString(&issue.Location, p.Location)
	setString(&issue.DetailLocation, p.DetailLocation)
	return issue
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// CloneInspection copies an inspection including its issue list.
func CloneInspection(in Inspection) Inspection {
	cp := in
	if in.Issues != nil {
		cp.Issues = append([]Issue(nil), in.Issues...)
	}
	return cp
}
