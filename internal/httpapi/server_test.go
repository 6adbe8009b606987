package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"firecheck/internal/blob"
	"firecheck/internal/core"
	"firecheck/internal/infra/persistence/memory"
	"firecheck/internal/report"
	"firecheck/pkg/domain"
)

var kst = time.FixedZone("KST", 9*60*60)

type harness struct {
	t       *testing.T
	svc     *core.Service
	handler http.Handler
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	reg := prometheus.NewRegistry()
	recorder, err := core.NewPrometheusMetricsRecorder(reg)
	require.NoError(t, err)
	svc := core.NewService(memory.NewStore(), core.WithMetrics(recorder))
	require.NoError(t, svc.Open(context.Background()))
	t.Cleanup(func() { _ = svc.Close() })
	opts = append([]Option{WithLocation(kst), WithGatherer(reg)}, opts...)
	return &harness{t: t, svc: svc, handler: NewServer(svc, opts...)}
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) decode(rec *httptest.ResponseRecorder, dst any) {
	h.t.Helper()
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func (h *harness) seed() (domain.Site, domain.Inspection) {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/v1/sites", map[string]string{
		"name":    "Riverside Tower",
		"address": "12 River Rd",
	})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	var site domain.Site
	h.decode(rec, &site)

	rec = h.do(http.MethodPost, "/api/v1/inspections", map[string]string{
		"site_id":         site.ID,
		"inspector":       "Kim",
		"inspection_type": string(domain.InspectionOperational),
	})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	var inspection domain.Inspection
	h.decode(rec, &inspection)
	return site, inspection
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestOpenAPIDocument(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/api/v1/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "/api/v1/inspections/{id}/report:")
}

func TestSiteLifecycle(t *testing.T) {
	h := newHarness(t)
	site, _ := h.seed()

	rec := h.do(http.MethodGet, "/api/v1/sites/"+site.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPatch, "/api/v1/sites/"+site.ID, map[string]string{"manager_name": "Park"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated domain.Site
	h.decode(rec, &updated)
	require.Equal(t, "Park", updated.ManagerName)
	require.Equal(t, "Riverside Tower", updated.Name)

	rec = h.do(http.MethodGet, "/api/v1/sites/"+site.ID+"/inspections", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var inspections []domain.Inspection
	h.decode(rec, &inspections)
	require.Len(t, inspections, 1)

	rec = h.do(http.MethodDelete, "/api/v1/sites/"+site.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/sites/"+site.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(http.MethodGet, "/api/v1/inspections", nil)
	h.decode(rec, &inspections)
	require.Empty(t, inspections)
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing site name", http.MethodPost, "/api/v1/sites", map[string]string{"address": "x"}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/v1/sites", map[string]string{"name": "a", "address": "b", "color": "red"}, http.StatusBadRequest},
		{"inspection for missing site", http.MethodPost, "/api/v1/inspections", map[string]string{"site_id": "nope", "inspector": "Kim", "inspection_type": string(domain.InspectionOperational)}, http.StatusNotFound},
		{"patch missing issue", http.MethodPatch, "/api/v1/issues/nope", map[string]string{"description": "x"}, http.StatusNotFound},
		{"delete missing inspection", http.MethodDelete, "/api/v1/inspections/nope", nil, http.StatusNotFound},
		{"report for missing inspection", http.MethodGet, "/api/v1/inspections/nope/report", nil, http.StatusNotFound},
		{"bad limit", http.MethodGet, "/api/v1/history/descriptions?limit=many", nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(tc.method, tc.path, tc.body)
			require.Equal(t, tc.want, rec.Code, rec.Body.String())
			var payload map[string]string
			h.decode(rec, &payload)
			require.NotEmpty(t, payload["error"])
		})
	}
}

func TestIssuesAndReport(t *testing.T) {
	h := newHarness(t)
	_, inspection := h.seed()
	base := "/api/v1/inspections/" + inspection.ID

	for _, issue := range []map[string]string{
		{"facility_type": string(domain.FacilityAlarm), "description": "감지기 불량", "location": "A동", "detail_location": "3층"},
		{"facility_type": string(domain.FacilityFireSuppression), "description": "소화기 압력 미달", "location": "B동"},
		{"facility_type": string(domain.FacilityAlarm), "description": "감지기 불량", "location": "A동", "detail_location": "지하1층"},
	} {
		rec := h.do(http.MethodPost, base+"/issues", issue)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	h.svc.History().Wait()

	rec := h.do(http.MethodGet, base+"/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rep report.Report
	h.decode(rec, &rep)
	require.Equal(t, 3, rep.IssueCount)
	require.Len(t, rep.Sections, 2)
	require.Equal(t, domain.FacilityFireSuppression, rep.Sections[0].FacilityType)
	require.Equal(t, []string{"3층", "지하1층"}, rep.Sections[1].Groups[0].DetailLocations)

	rec = h.do(http.MethodGet, base+"/report?format=text", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename*=UTF-8''")
	require.Contains(t, rec.Body.String(), "Riverside Tower")

	rec = h.do(http.MethodGet, base+"/report?format=pdf", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/history/descriptions?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var top []domain.HistoryEntry
	h.decode(rec, &top)
	require.Len(t, top, 1)
	require.Equal(t, "감지기 불량", top[0].Text)
	require.Equal(t, 2, top[0].Count)

	rec = h.do(http.MethodGet, "/api/v1/history/locations", nil)
	h.decode(rec, &top)
	require.Len(t, top, 2)

	issueID := rep.Sections[0].Groups[0].Issues[0].ID
	rec = h.do(http.MethodPatch, "/api/v1/issues/"+issueID, map[string]string{"location": "C동"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = h.do(http.MethodDelete, "/api/v1/issues/"+issueID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	h.svc.History().Wait()

	got, ok := h.svc.Snapshot().Inspection(inspection.ID)
	require.True(t, ok)
	require.Len(t, got.Issues, 2)
}

func TestInspectionUpdate(t *testing.T) {
	h := newHarness(t)
	_, inspection := h.seed()

	rec := h.do(http.MethodPatch, "/api/v1/inspections/"+inspection.ID, map[string]string{"notes": "재점검 필요"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated domain.Inspection
	h.decode(rec, &updated)
	require.Equal(t, "재점검 필요", updated.Notes)
	require.Equal(t, inspection.SiteID, updated.SiteID)

	rec = h.do(http.MethodGet, "/api/v1/inspections/"+inspection.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCurrentSelection(t *testing.T) {
	h := newHarness(t)
	site, inspection := h.seed()

	rec := h.do(http.MethodGet, "/api/v1/current", nil)
	var cur currentResponse
	h.decode(rec, &cur)
	require.Nil(t, cur.Site)
	require.NotNil(t, cur.Inspection)
	require.Equal(t, inspection.ID, cur.Inspection.ID)

	rec = h.do(http.MethodPut, "/api/v1/current", map[string]string{"site_id": site.ID, "inspection_id": ""})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cur = currentResponse{}
	h.decode(rec, &cur)
	require.NotNil(t, cur.Site)
	require.Equal(t, site.ID, cur.Site.ID)
	require.Nil(t, cur.Inspection)

	rec = h.do(http.MethodPut, "/api/v1/current", map[string]string{"site_id": "nope"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodPut, "/api/v1/current", map[string]string{"site_id": "", "inspection_id": "nope"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(http.MethodGet, "/api/v1/current", nil)
	cur = currentResponse{}
	h.decode(rec, &cur)
	require.NotNil(t, cur.Site, "a rejected request must not clear the site")
	require.Equal(t, site.ID, cur.Site.ID)
}

func TestExportReport(t *testing.T) {
	h := newHarness(t)
	_, inspection := h.seed()
	rec := h.do(http.MethodPost, "/api/v1/inspections/"+inspection.ID+"/report/export", nil)
	require.Equal(t, http.StatusNotImplemented, rec.Code)

	store, err := blob.Open(context.Background(), blob.Config{Driver: blob.DriverMemory})
	require.NoError(t, err)
	h = newHarness(t, WithArchive(report.NewArchive(store, kst)))
	_, inspection = h.seed()
	rec = h.do(http.MethodPost, "/api/v1/inspections/"+inspection.ID+"/report/export", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var info blob.Info
	h.decode(rec, &info)
	require.True(t, strings.HasPrefix(info.Key, "reports/"+inspection.ID+"/"))
	require.Equal(t, "text/plain; charset=utf-8", info.ContentType)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.seed()
	rec := h.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `firecheck_service_operations_total{operation="create_site",status="success"} 1`)
}
