package report

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"firecheck/internal/blob"
)

const (
	archivePrefix   = "reports"
	textContentType = "text/plain; charset=utf-8"
)

// Archive keeps rendered text reports in a blob store.
type Archive struct {
	store  blob.Store
	loc    *time.Location
	expiry time.Duration
}

// NewArchive returns an archive writing to store. Dates in file names and
// report bodies are rendered in loc.
func NewArchive(store blob.Store, loc *time.Location) *Archive {
	return &Archive{store: store, loc: loc, expiry: blob.DefaultPresignExpiry}
}

// Key is the blob key for the text export of r.
func (a *Archive) Key(r Report) string {
	return path.Join(archivePrefix, r.InspectionID, FileName(r, a.loc))
}

// Save renders r and stores it, replacing an earlier export of the same name.
// The returned info carries a presigned URL when the driver can produce one.
func (a *Archive) Save(ctx context.Context, r Report) (blob.Info, error) {
	if strings.TrimSpace(r.InspectionID) == "" {
		return blob.Info{}, fmt.Errorf("archive report: inspection id required")
	}
	key := a.Key(r)
	info, err := a.store.Put(ctx, key, strings.NewReader(RenderText(r, a.loc)), blob.PutOptions{
		ContentType: textContentType,
		Metadata: map[string]string{
			"inspection": r.InspectionID,
			"site":       r.SiteName,
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("archive report %s: %w", key, err)
	}
	url, err := a.store.PresignURL(ctx, key, a.expiry)
	switch {
	case err == nil:
		info.URL = url
	case !errors.Is(err, blob.ErrUnsupported):
		return blob.Info{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return info, nil
}

// List returns the archived exports of one inspection.
func (a *Archive) List(ctx context.Context, inspectionID string) ([]blob.Info, error) {
	return a.store.List(ctx, archivePrefix+"/"+inspectionID+"/")
}
