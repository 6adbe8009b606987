package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"firecheck/internal/blob"
	"firecheck/internal/core"
	"firecheck/internal/httpapi"
	"firecheck/internal/report"
	"firecheck/pkg/domain"
)

// TestIntegrationSmoke exercises a minimal end-to-end write/read cycle over
// HTTP for each in-process storage and blob adapter.
func TestIntegrationSmoke(t *testing.T) {
	ctx := context.Background()
	kst := time.FixedZone("KST", 9*60*60)

	storageVariants := []struct {
		name string
		cfg  func(t *testing.T) core.StorageConfig
	}{
		{
			name: "memory-store",
			cfg:  func(*testing.T) core.StorageConfig { return core.StorageConfig{Driver: core.StorageMemory} },
		},
		{
			name: "sqlite-store",
			cfg: func(t *testing.T) core.StorageConfig {
				return core.StorageConfig{Driver: core.StorageSQLite, SQLitePath: filepath.Join(t.TempDir(), "firecheck.db")}
			},
		},
	}
	blobVariants := []struct {
		name string
		cfg  func(t *testing.T) blob.Config
	}{
		{
			name: "memory-blob",
			cfg:  func(*testing.T) blob.Config { return blob.Config{Driver: blob.DriverMemory} },
		},
		{
			name: "filesystem-blob",
			cfg:  func(t *testing.T) blob.Config { return blob.Config{Driver: blob.DriverFilesystem, FSRoot: t.TempDir()} },
		},
	}

	for _, sv := range storageVariants {
		for _, bv := range blobVariants {
			t.Run(sv.name+"/"+bv.name, func(t *testing.T) {
				adapter, err := core.OpenAdapter(ctx, sv.cfg(t))
				if err != nil {
					t.Fatalf("open adapter: %v", err)
				}
				svc := core.NewService(adapter)
				if err := svc.Open(ctx); err != nil {
					t.Fatalf("open service: %v", err)
				}
				defer func() { _ = svc.Close() }()

				store, err := blob.Open(ctx, bv.cfg(t))
				if err != nil {
					t.Fatalf("open blob: %v", err)
				}
				archive := report.NewArchive(store, kst)
				srv := httptest.NewServer(httpapi.NewServer(svc,
					httpapi.WithArchive(archive),
					httpapi.WithLocation(kst),
				))
				defer srv.Close()

				var site domain.Site
				post(t, srv.URL+"/api/v1/sites", map[string]string{"name": "Harbor Mall", "address": "3 Pier Ave"}, &site)
				var inspection domain.Inspection
				post(t, srv.URL+"/api/v1/inspections", map[string]string{
					"site_id":         site.ID,
					"inspector":       "Choi",
					"inspection_type": string(domain.InspectionComprehensive),
				}, &inspection)
				var issue domain.Issue
				post(t, srv.URL+"/api/v1/inspections/"+inspection.ID+"/issues", map[string]string{
					"facility_type": string(domain.FacilityEvacuation),
					"description":   "유도등 점등 불량",
					"location":      "지하주차장",
				}, &issue)

				var info blob.Info
				post(t, srv.URL+"/api/v1/inspections/"+inspection.ID+"/report/export", nil, &info)
				if !strings.HasPrefix(info.Key, "reports/"+inspection.ID+"/") {
					t.Fatalf("unexpected archive key %q", info.Key)
				}

				listed, err := archive.List(ctx, inspection.ID)
				if err != nil {
					t.Fatalf("list archive: %v", err)
				}
				if len(listed) != 1 || listed[0].Key != info.Key {
					t.Fatalf("unexpected archive listing %+v", listed)
				}
				_, rc, err := store.Get(ctx, info.Key)
				if err != nil {
					t.Fatalf("get archived report: %v", err)
				}
				defer func() { _ = rc.Close() }()
				var body bytes.Buffer
				if _, err := body.ReadFrom(rc); err != nil {
					t.Fatalf("read archived report: %v", err)
				}
				if !strings.Contains(body.String(), "유도등 점등 불량") {
					t.Fatalf("archived report missing issue:\n%s", body.String())
				}

				svc.History().Wait()
				if top := svc.TopLocations(1); len(top) != 1 || top[0].Text != "지하주차장" {
					t.Fatalf("unexpected location history %+v", top)
				}
			})
		}
	}
}

func post(t *testing.T, url string, body any, dst any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}
