package api

import (
	"fmt"
	"net/http"

	"github.com/ignite/segment-insights/internal/pkg/httputil"
	"github.com/ignite/segment-insights/internal/pkg/logger"
	"github.com/ignite/segment-insights/internal/segmentation"
	"github.com/ignite/segment-insights/internal/source"
)

// ExportCustomers streams the filtered customers as CSV. It accepts the
// same filter parameters as ListCustomers.
func (h *Handlers) ExportCustomers(w http.ResponseWriter, r *http.Request) {
	view, ok := h.filteredView(w, r)
	if !ok {
		return
	}
	setAttachment(w, "customers.csv")
	if err := source.WriteRecords(w, segmentation.ColumnMap{}, view.Records()); err != nil {
		logger.Error("customer export failed", "error", err)
	}
}

// ExportSegments streams the segment breakdown of the filtered customers as CSV.
func (h *Handlers) ExportSegments(w http.ResponseWriter, r *http.Request) {
	view, ok := h.filteredView(w, r)
	if !ok {
		return
	}
	setAttachment(w, "segments.csv")
	if err := source.WriteBreakdown(w, view.Breakdown()); err != nil {
		logger.Error("segment export failed", "error", err)
	}
}

func (h *Handlers) filteredView(w http.ResponseWriter, r *http.Request) (*segmentation.FilteredView, bool) {
	p, err := predicateFromQuery(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return nil, false
	}
	view, err := h.engine.Filter(p)
	if err != nil {
		respondEngineError(w, err)
		return nil, false
	}
	return view, true
}

func setAttachment(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
