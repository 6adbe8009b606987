// Package httpapi exposes the inspection service as a JSON API.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"firecheck/docs/schema/openapi"
	"firecheck/internal/core"
	"firecheck/internal/report"
	"firecheck/pkg/domain"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithArchive enables POST /inspections/{id}/report/export.
func WithArchive(archive *report.Archive) Option {
	return func(s *Server) { s.archive = archive }
}

// WithLocation sets the timezone text reports are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithGatherer serves the gatherer's metrics on /metrics.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = gatherer }
}

// Server is the http.Handler serving the JSON API, /metrics and /healthz.
type Server struct {
	router   chi.Router
	svc      *core.Service
	archive  *report.Archive
	loc      *time.Location
	logger   *zap.Logger
	gatherer prometheus.Gatherer
}

// NewServer builds the router over svc.
func NewServer(svc *core.Service, opts ...Option) *Server {
	s := &Server{
		router: chi.NewRouter(),
		svc:    svc,
		loc:    time.UTC,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP dispatches to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			s.logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("dur", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/sites", func(r chi.Router) {
			r.Get("/", s.handleListSites)
			r.Post("/", s.handleCreateSite)
			r.Get("/{id}", s.handleGetSite)
			r.Patch("/{id}", s.handleUpdateSite)
			r.Delete("/{id}", s.handleDeleteSite)
			r.Get("/{id}/inspections", s.handleSiteInspections)
		})
		r.Route("/inspections", func(r chi.Router) {
			r.Get("/", s.handleListInspections)
			r.Post("/", s.handleCreateInspection)
			r.Get("/{id}", s.handleGetInspection)
			r.Patch("/{id}", s.handleUpdateInspection)
			r.Delete("/{id}", s.handleDeleteInspection)
			r.Post("/{id}/issues", s.handleAddIssue)
			r.Get("/{id}/report", s.handleReport)
			r.Post("/{id}/report/export", s.handleExportReport)
		})
		r.Patch("/issues/{id}", s.handleUpdateIssue)
		r.Delete("/issues/{id}", s.handleDeleteIssue)
		r.Get("/history/descriptions", s.handleTopDescriptions)
		r.Get("/history/locations", s.handleTopLocations)
		r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(openapi.Spec())
		})
		r.Get("/current", s.handleGetCurrent)
		r.Put("/current", s.handleSetCurrent)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	return nil
}

func limit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: limit must be an integer", errBadRequest)
	}
	return n, nil
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ListSites())
}

func (s *Server) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	var site domain.Site
	if err := decode(r, &site); err != nil {
		s.writeError(w, err)
		return
	}
	created, err := s.svc.CreateSite(r.Context(), site)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	site, ok := s.svc.Snapshot().Site(id)
	if !ok {
		s.writeError(w, &domain.NotFoundError{Entity: domain.EntitySite, ID: id})
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleUpdateSite(w http.ResponseWriter, r *http.Request) {
	var patch domain.SitePatch
	if err := decode(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}
	updated, err := s.svc.UpdateSite(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteSite(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSiteInspections(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.svc.Snapshot().Site(id); !ok {
		s.writeError(w, &domain.NotFoundError{Entity: domain.EntitySite, ID: id})
		return
	}
	writeJSON(w, http.StatusOK, s.svc.InspectionsForSite(id))
}

func (s *Server) handleListInspections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ListInspections())
}

type inspectionRequest struct {
	SiteID         string                `json:"site_id"`
	Inspector      string                `json:"inspector"`
	InspectionType domain.InspectionType `json:"inspection_type"`
	Notes          string                `json:"notes"`
}

func (s *Server) handleCreateInspection(w http.ResponseWriter, r *http.Request) {
	var req inspectionRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	created, err := s.svc.CreateInspection(r.Context(), domain.Inspection{
		SiteID:         req.SiteID,
		Inspector:      req.Inspector,
		InspectionType: req.InspectionType,
		Notes:          req.Notes,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetInspection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inspection, ok := s.svc.Snapshot().Inspection(id)
	if !ok {
		s.writeError(w, &domain.NotFoundError{Entity: domain.EntityInspection, ID: id})
		return
	}
	writeJSON(w, http.StatusOK, inspection)
}

func (s *Server) handleUpdateInspection(w http.ResponseWriter, r *http.Request) {
	var patch domain.InspectionPatch
	if err := decode(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}
	updated, err := s.svc.UpdateInspection(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteInspection(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteInspection(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type issueRequest struct {
	FacilityType   domain.FacilityType `json:"facility_type"`
	Description    string              `json:"description"`
	Location       string              `json:"location"`
	DetailLocation string              `json:"detail_location"`
}

func (s *Server) handleAddIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	created, err := s.svc.AddIssue(r.Context(), domain.Issue{
		InspectionID:   chi.URLParam(r, "id"),
		FacilityType:   req.FacilityType,
		Description:    req.Description,
		Location:       req.Location,
		DetailLocation: req.DetailLocation,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	var patch domain.IssuePatch
	if err := decode(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}
	updated, err := s.svc.UpdateIssue(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteIssue(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteIssue(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Report(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, rep)
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(report.FileName(rep, s.loc)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(report.RenderText(rep, s.loc)))
	default:
		s.writeError(w, fmt.Errorf("%w: unknown format %q", errBadRequest, r.URL.Query().Get("format")))
	}
}

func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "report archive not configured"})
		return
	}
	rep, err := s.svc.Report(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	info, err := s.archive.Save(r.Context(), rep)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleTopDescriptions(w http.ResponseWriter, r *http.Request) {
	n, err := limit(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.TopIssueDescriptions(n))
}

func (s *Server) handleTopLocations(w http.ResponseWriter, r *http.Request) {
	n, err := limit(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.TopLocations(n))
}

type currentResponse struct {
	Site       *domain.Site       `json:"site"`
	Inspection *domain.Inspection `json:"inspection"`
}

func (s *Server) current() currentResponse {
	snap := s.svc.Snapshot()
	var resp currentResponse
	if site, ok := snap.CurrentSite(); ok {
		resp.Site = &site
	}
	if inspection, ok := snap.CurrentInspection(); ok {
		resp.Inspection = &inspection
	}
	return resp
}

func (s *Server) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.current())
}

type currentRequest struct {
	SiteID       *string `json:"site_id"`
	InspectionID *string `json:"inspection_id"`
}

func (s *Server) handleSetCurrent(w http.ResponseWriter, r *http.Request) {
	var req currentRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.SelectCurrent(req.SiteID, req.InspectionID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.current())
}
