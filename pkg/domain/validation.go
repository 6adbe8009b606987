package domain

import (
	"fmt"
	"strings"
	"time"
)

// ApprovalDateLayout is the accepted format of Site.ApprovalDate.
const ApprovalDateLayout = "2006-01-02"

func blank(v string) bool { return strings.TrimSpace(v) == "" }

func blankPtr(v *string) bool { return v != nil && blank(*v) }

func approvalDateErr(entity EntityType, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(ApprovalDateLayout, value); err != nil {
		return &ValidationError{Entity: entity, Fields: []string{"approval_date"}, Reason: fmt.Sprintf("must use %s", ApprovalDateLayout)}
	}
	return nil
}

// ValidateSite checks the fields required to register a site.
func ValidateSite(site Site) error {
	var missing []string
	if blank(site.Name) {
		missing = append(missing, "name")
	}
	if blank(site.Address) {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return &ValidationError{Entity: EntitySite, Fields: missing}
	}
	return approvalDateErr(EntitySite, site.ApprovalDate)
}

// ValidateSitePatch rejects patches that would blank a required field.
func ValidateSitePatch(patch SitePatch) error {
	var missing []string
	if blankPtr(patch.Name) {
		missing = append(missing, "name")
	}
	if blankPtr(patch.Address) {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return &ValidationError{Entity: EntitySite, Fields: missing}
	}
	if patch.ApprovalDate != nil {
		return approvalDateErr(EntitySite, *patch.ApprovalDate)
	}
	return nil
}

// ValidateInspection checks the fields required to open an inspection.
func ValidateInspection(inspection Inspection) error {
	var missing []string
	if blank(inspection.SiteID) {
		missing = append(missing, "site_id")
	}
	if blank(inspection.Inspector) {
		missing = append(missing, "inspector")
	}
	if inspection.InspectionType == "" {
		missing = append(missing, "inspection_type")
	}
	if len(missing) > 0 {
		return &ValidationError{Entity: EntityInspection, Fields: missing}
	}
	if !inspection.InspectionType.Known() {
		return &ValidationError{Entity: EntityInspection, Fields: []string{"inspection_type"}, Reason: fmt.Sprintf("unknown value %q", inspection.InspectionType)}
	}
	return nil
}

// ValidateInspectionPatch rejects blank inspectors and unknown inspection types.
func ValidateInspectionPatch(patch InspectionPatch) error {
	if blankPtr(patch.Inspector) {
		return &ValidationError{Entity: EntityInspection, Fields: []string{"inspector"}}
	}
	if patch.InspectionType != nil && !patch.InspectionType.Known() {
		return &ValidationError{Entity: EntityInspection, Fields: []string{"inspection_type"}, Reason: fmt.Sprintf("unknown value %q", *patch.InspectionType)}
	}
	return nil
}

// ValidateIssue checks the fields required to record an issue.
func ValidateIssue(issue Issue) error {
	var missing []string
	if blank(issue.InspectionID) {
		missing = append(missing, "inspection_id")
	}
	if issue.FacilityType == "" {
		missing = append(missing, "facility_type")
	}
	if blank(issue.Description) {
		missing = append(missing, "description")
	}
	if blank(issue.Location) {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return &ValidationError{Entity: EntityIssue, Fields: missing}
	}
	if !issue.FacilityType.Known() {
		return &ValidationError{Entity: EntityIssue, Fields: []string{"facility_type"}, Reason: fmt.Sprintf("unknown value %q", issue.FacilityType)}
	}
	return nil
}

// ValidateIssuePatch rejects patches that blank description or location.
func ValidateIssuePatch(patch IssuePatch) error {
	var missing []string
	if blankPtr(patch.Description) {
		missing = append(missing, "description")
	}
	if blankPtr(patch.Location) {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return &ValidationError{Entity: EntityIssue, Fields: missing}
	}
	if patch.FacilityType != nil && !patch.FacilityType.Known() {
		return &ValidationError{Entity: EntityIssue, Fields: []string{"facility_type"}, Reason: fmt.Sprintf("unknown value %q", *patch.FacilityType)}
	}
	return nil
}
