package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/segment-insights/internal/pkg/httputil"
	"github.com/ignite/segment-insights/internal/pkg/logger"
	"github.com/ignite/segment-insights/internal/segmentation"
)

// reloadTimeout bounds a reload triggered over HTTP.
const reloadTimeout = 2 * time.Minute

// Handlers contains all HTTP handlers
type Handlers struct {
	engine        *segmentation.Engine
	reloadTimeout time.Duration
}

// NewHandlers creates handlers over engine.
func NewHandlers(engine *segmentation.Engine) *Handlers {
	return &Handlers{engine: engine, reloadTimeout: reloadTimeout}
}

// SetReloadTimeout overrides the deadline of POST /api/reload.
func (h *Handlers) SetReloadTimeout(d time.Duration) {
	if d > 0 {
		h.reloadTimeout = d
	}
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	httputil.JSON(w, status, data)
}

func respondOK(w http.ResponseWriter, data interface{}) {
	httputil.OK(w, data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	httputil.Error(w, status, message)
}

// respondEngineError maps engine errors onto HTTP statuses.
func respondEngineError(w http.ResponseWriter, err error) {
	var schemaErr *segmentation.SchemaError
	var queryErr *segmentation.QueryError
	switch {
	case errors.Is(err, segmentation.ErrNotLoaded):
		httputil.Unavailable(w, err.Error())
	case errors.Is(err, segmentation.ErrReloadInProgress):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, segmentation.ErrEmptySegment):
		httputil.NotFound(w, err.Error())
	case errors.As(err, &queryErr):
		httputil.BadRequest(w, err.Error())
	case errors.As(err, &schemaErr):
		httputil.ErrorWithCode(w, http.StatusUnprocessableEntity, "invalid_table", err.Error(), nil)
	default:
		httputil.InternalError(w, err)
	}
}

// pathParam returns a decoded chi URL parameter.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// ==========================================
// SNAPSHOT
// ==========================================

// GetVersion returns the id and load time of the current snapshot.
func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	v, err := h.engine.Version()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondOK(w, v)
}

// Reload replaces the snapshot from its sources. The previous snapshot keeps
// serving when the reload fails.
func (h *Handlers) Reload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.reloadTimeout)
	defer cancel()

	v, err := h.engine.Reload(ctx)
	if err != nil {
		logger.Warn("reload failed", "error", err)
		respondEngineError(w, err)
		return
	}
	respondOK(w, v)
}

// ==========================================
// AGGREGATES
// ==========================================

// GetOverview returns population KPIs.
func (h *Handlers) GetOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.engine.Overview()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondOK(w, ov)
}

// ListSegments returns the revenue breakdown by segment.
func (h *Handlers) ListSegments(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.engine.Breakdown()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{
		"segments": breakdown,
		"count":    len(breakdown),
	})
}

// SegmentDetail is one segment's aggregate with its playbook guidance.
type SegmentDetail struct {
	Aggregate segmentation.SegmentAggregate `json:"aggregate"`
	Playbook  *segmentation.PlaybookEntry   `json:"playbook,omitempty"`
}

// GetSegment returns one segment's aggregate and playbook entry.
func (h *Handlers) GetSegment(w http.ResponseWriter, r *http.Request) {
	agg, err := h.engine.Segment(pathParam(r, "name"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	detail := SegmentDetail{Aggregate: agg}
	if entry, ok := h.engine.Playbook().Entry(agg.SegmentName); ok {
		detail.Playbook = &entry
	}
	respondOK(w, detail)
}

// GetSegmentInsights returns the narrative statements for a segment.
func (h *Handlers) GetSegmentInsights(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(pathParam(r, "name"))
	insights, err := h.engine.Insights(name)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{
		"segment":  name,
		"insights": insights,
	})
}

// ListClusters returns per-cluster statistics.
func (h *Handlers) ListClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.engine.Clusters()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{
		"clusters": clusters,
	})
}

// ListClusterProfiles returns the cluster display profiles.
func (h *Handlers) ListClusterProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.engine.Profiles()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if profiles == nil {
		profiles = []segmentation.ClusterProfile{}
	}
	respondOK(w, map[string]interface{}{
		"profiles": profiles,
	})
}

// ==========================================
// REPORT & PLAYBOOK
// ==========================================

// GetReport returns every segment's aggregate, insights and playbook entry.
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Report()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{
		"segments": report,
	})
}

// GetPlaybook returns the per-segment guidance.
func (h *Handlers) GetPlaybook(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]interface{}{
		"segments": h.engine.Playbook().Segments,
	})
}

// GetStrategy returns the strategic summary table.
func (h *Handlers) GetStrategy(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]interface{}{
		"strategy": h.engine.Playbook().Strategy,
	})
}
