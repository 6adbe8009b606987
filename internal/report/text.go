package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"firecheck/pkg/domain"
)

const (
	textHeader = "===소방시설등 불량세부사항==="
	textFooter = "--- 보고서 끝 ---"
)

func localDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc)
}

func sectionTitle(facility domain.FacilityType) string {
	if facility == domain.FacilityRecommendation {
		return string(domain.FacilityRecommendation)
	}
	return "설비명: " + string(facility)
}

// RenderText formats r as the shareable plain-text report. Dates are printed
// in loc (UTC when nil).
func RenderText(r Report, loc *time.Location) string {
	date := localDate(r.Date, loc)
	var b strings.Builder
	b.WriteString(textHeader + "\n\n")
	fmt.Fprintf(&b, "[ %s ]\n\n", r.SiteName)
	fmt.Fprintf(&b, "점검일: %d년 %d월 %d일\n\n", date.Year(), int(date.Month()), date.Day())
	for _, section := range r.Sections {
		items := make([]string, 0, len(section.Groups))
		for i, group := range section.Groups {
			item := fmt.Sprintf("%d. %s\n   위치: %s", i+1, group.Description, group.Location)
			if len(group.DetailLocations) > 0 {
				item += " (" + strings.Join(group.DetailLocations, ", ") + ")"
			}
			items = append(items, item)
		}
		fmt.Fprintf(&b, "\n%s\n%s\n", sectionTitle(section.FacilityType), strings.Join(items, "\n"))
	}
	b.WriteString("\n\n")
	if r.Notes.Inspection != "" {
		fmt.Fprintf(&b, "점검 특이사항: %s\n", r.Notes.Inspection)
	}
	if r.Notes.Site != "" {
		fmt.Fprintf(&b, "현장 특이사항: %s\n", r.Notes.Site)
	}
	b.WriteString("\n\n" + textFooter)
	return strings.TrimSpace(b.String())
}

// unsafeNameRun matches path separators and dot runs that would let a site
// name change the directory of an archived export.
var unsafeNameRun = regexp.MustCompile(`(?:[/\\]|\.{2,})+`)

// FileName is the download name used for text exports. It is a single path
// segment whatever the site name contains.
func FileName(r Report, loc *time.Location) string {
	name := unsafeNameRun.ReplaceAllString(r.SiteName, "_")
	return fmt.Sprintf("소방시설_점검보고서_%s_%s.txt", name, localDate(r.Date, loc).Format("20060102"))
}
