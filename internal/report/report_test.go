package report

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"firecheck/internal/blob"
	"firecheck/pkg/domain"
)

func scenario() (domain.Inspection, domain.Site) {
	created := time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC)
	site := domain.Site{ID: "site-1", Name: "Riverside Tower", Address: "12 River Rd", Notes: "관리실 상주", CreatedAt: created}
	inspection := domain.Inspection{
		ID:             "insp-1",
		SiteID:         site.ID,
		Inspector:      "Kim",
		InspectionType: domain.InspectionOperational,
		Notes:          "재점검 필요",
		CreatedAt:      created,
		Issues: []domain.Issue{
			issue("i1", domain.FacilityFireSuppression, "호스 손상", "1F", ""),
			issue("i2", domain.FacilityFireSuppression, "호스 손상", "1F", "계단실"),
			issue("i3", domain.FacilityAlarm, "감지기 오작동", "2F", ""),
		},
	}
	return inspection, site
}

func TestBuildReportScenario(t *testing.T) {
	inspection, site := scenario()
	r := BuildReport(inspection, site, nil)

	require.Equal(t, "Riverside Tower", r.SiteName)
	require.Equal(t, "12 River Rd", r.SiteAddress)
	require.Equal(t, "Kim", r.Inspector)
	require.Equal(t, domain.InspectionOperational, r.InspectionType)
	require.Equal(t, inspection.CreatedAt, r.Date)
	require.Equal(t, 3, r.IssueCount)
	require.Equal(t, Notes{Inspection: "재점검 필요", Site: "관리실 상주"}, r.Notes)

	require.Equal(t, []domain.FacilityType{domain.FacilityFireSuppression, domain.FacilityAlarm}, facilities(r.Sections))
	suppression := r.Sections[0].Groups
	require.Len(t, suppression, 1)
	require.Equal(t, "호스 손상", suppression[0].Description)
	require.Equal(t, "1F", suppression[0].Location)
	require.Len(t, suppression[0].Issues, 2)
	require.Equal(t, []string{"계단실"}, suppression[0].DetailLocations)
	alarm := r.Sections[1].Groups
	require.Len(t, alarm, 1)
	require.Empty(t, alarm[0].DetailLocations)
}

func TestRenderText(t *testing.T) {
	inspection, site := scenario()
	r := BuildReport(inspection, site, nil)
	seoul := time.FixedZone("KST", 9*3600)

	want := strings.Join([]string{
		"===소방시설등 불량세부사항===",
		"",
		"[ Riverside Tower ]",
		"",
		"점검일: 2024년 3월 15일",
		"",
		"",
		"설비명: 소화설비",
		"1. 호스 손상",
		"   위치: 1F (계단실)",
		"",
		"설비명: 경보설비",
		"1. 감지기 오작동",
		"   위치: 2F",
		"",
		"",
		"점검 특이사항: 재점검 필요",
		"현장 특이사항: 관리실 상주",
		"",
		"",
		"--- 보고서 끝 ---",
	}, "\n")
	if diff := cmp.Diff(want, RenderText(r, seoul)); diff != "" {
		t.Fatalf("rendered text mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "소방시설_점검보고서_Riverside Tower_20240315.txt", FileName(r, seoul))
}

func TestRenderTextRecommendationTitleAndTimezone(t *testing.T) {
	r := Report{
		SiteName: "A",
		Date:     time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC),
		Sections: Aggregate([]domain.Issue{issue("1", domain.FacilityRecommendation, "비상조명 추가", "주차장", "")}, nil),
	}
	text := RenderText(r, time.FixedZone("KST", 9*3600))
	require.Contains(t, text, "\n권고사항\n1. 비상조명 추가")
	require.Contains(t, text, "점검일: 2024년 3월 16일")
	require.NotContains(t, text, "특이사항")
	require.Contains(t, RenderText(r, nil), "점검일: 2024년 3월 15일")
}

func TestArchiveSaveReplacesAndLists(t *testing.T) {
	ctx := context.Background()
	store, err := blob.Open(ctx, blob.Config{Driver: blob.DriverMemory})
	require.NoError(t, err)
	archive := NewArchive(store, time.UTC)

	inspection, site := scenario()
	r := BuildReport(inspection, site, nil)
	info, err := archive.Save(ctx, r)
	require.NoError(t, err)
	require.Equal(t, "reports/insp-1/소방시설_점검보고서_Riverside Tower_20240315.txt", info.Key)
	require.Empty(t, info.URL)

	r.Notes.Inspection = "수정됨"
	_, err = archive.Save(ctx, r)
	require.NoError(t, err)

	list, err := archive.List(ctx, "insp-1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, rc, err := store.Get(ctx, info.Key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Contains(t, string(body), "점검 특이사항: 수정됨")
}

func TestArchiveRequiresInspectionID(t *testing.T) {
	store, err := blob.Open(context.Background(), blob.Config{Driver: blob.DriverMemory})
	require.NoError(t, err)
	_, err = NewArchive(store, nil).Save(context.Background(), Report{SiteName: "A"})
	require.Error(t, err)
}

func TestFileNameIsSingleSegment(t *testing.T) {
	date := time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"Riverside Tower":  "소방시설_점검보고서_Riverside Tower_20240315.txt",
		"x/../../insp-2/y": "소방시설_점검보고서_x_insp-2_y_20240315.txt",
		`A\B//C`:           "소방시설_점검보고서_A_B_C_20240315.txt",
		"Tower A..B":       "소방시설_점검보고서_Tower A_B_20240315.txt",
		"St. Mary's":       "소방시설_점검보고서_St. Mary's_20240315.txt",
	}
	for name, want := range cases {
		require.Equal(t, want, FileName(Report{SiteName: name, Date: date}, time.UTC), name)
	}
}

func TestArchiveKeepsExportUnderItsInspection(t *testing.T) {
	ctx := context.Background()
	store, err := blob.Open(ctx, blob.Config{Driver: blob.DriverMemory})
	require.NoError(t, err)
	archive := NewArchive(store, time.UTC)

	inspection, site := scenario()
	site.Name = "x/../../insp-2/y"
	info, err := archive.Save(ctx, BuildReport(inspection, site, nil))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(info.Key, "reports/insp-1/"), info.Key)

	own, err := archive.List(ctx, "insp-1")
	require.NoError(t, err)
	require.Len(t, own, 1)
	other, err := archive.List(ctx, "insp-2")
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestArchiveFilesystemAcceptsDottedSiteName(t *testing.T) {
	ctx := context.Background()
	store, err := blob.Open(ctx, blob.Config{Driver: blob.DriverFilesystem, FSRoot: t.TempDir()})
	require.NoError(t, err)
	archive := NewArchive(store, time.UTC)

	inspection, site := scenario()
	site.Name = "Tower A..B"
	info, err := archive.Save(ctx, BuildReport(inspection, site, nil))
	require.NoError(t, err)
	require.Equal(t, "reports/insp-1/소방시설_점검보고서_Tower A_B_20240315.txt", info.Key)

	list, err := archive.List(ctx, "insp-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}
