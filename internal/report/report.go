package report

import (
	"time"

	"firecheck/pkg/domain"
)

// Notes carries the free-text remarks printed at the end of a report.
type Notes struct {
	Inspection string `json:"inspection,omitempty"`
	Site       string `json:"site,omitempty"`
}

// Report is the data contract shared by every renderer. Renderers format it
// and never regroup issues themselves.
type Report struct {
	InspectionID   string                `json:"inspection_id"`
	SiteName       string                `json:"site_name"`
	SiteAddress    string                `json:"site_address"`
	Inspector      string                `json:"inspector"`
	InspectionType domain.InspectionType `json:"inspection_type"`
	Date           time.Time             `json:"date"`
	Sections       []FacilitySection     `json:"sections"`
	Notes          Notes                 `json:"notes"`
	IssueCount     int                   `json:"issue_count"`
}

// BuildReport assembles the report for one inspection at its site. A nil rank
// table falls back to DefaultRanks.
func BuildReport(inspection domain.Inspection, site domain.Site, ranks RankTable) Report {
	if ranks == nil {
		ranks = DefaultRanks()
	}
	return Report{
		InspectionID:   inspection.ID,
		SiteName:       site.Name,
		SiteAddress:    site.Address,
		Inspector:      inspection.Inspector,
		InspectionType: inspection.InspectionType,
		Date:           inspection.CreatedAt,
		Sections:       Aggregate(inspection.Issues, ranks),
		Notes:          Notes{Inspection: inspection.Notes, Site: site.Notes},
		IssueCount:     len(inspection.Issues),
	}
}
