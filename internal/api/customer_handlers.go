package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/ignite/segment-insights/internal/pkg/httputil"
	"github.com/ignite/segment-insights/internal/pkg/logger"
	"github.com/ignite/segment-insights/internal/segmentation"
)

// CustomerPage is one page of a filtered customer view with the aggregates
// of the whole view.
type CustomerPage struct {
	Customers  []segmentation.CustomerRecord   `json:"customers"`
	Pagination PaginationMeta                  `json:"pagination"`
	Means      segmentation.Means              `json:"means"`
	Breakdown  []segmentation.SegmentAggregate `json:"breakdown"`
}

// QueryRequest is the body of POST /api/customers/query.
type QueryRequest struct {
	Conditions []segmentation.Condition `json:"conditions"`
	Page       int                      `json:"page,omitempty"`
	Limit      int                      `json:"limit,omitempty"`
}

// ListCustomers filters the population by query parameters.
//
//	GET /api/customers?segment=Loyal+Customers&cluster=1&recency_max=30&limit=50
//
// segment and cluster are repeatable; the single value "none" selects
// nothing on that dimension.
func (h *Handlers) ListCustomers(w http.ResponseWriter, r *http.Request) {
	p, err := predicateFromQuery(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	h.respondPage(w, p, ParsePagination(r, defaultPageLimit, maxPageLimit))
}

// QueryCustomers filters the population with query-builder conditions.
func (h *Handlers) QueryCustomers(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	if errs := h.engine.ValidateConditions(req.Conditions); len(errs) > 0 {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "invalid_conditions", "one or more conditions are invalid", errs)
		return
	}
	p, err := segmentation.BuildPredicate(req.Conditions)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	h.respondPage(w, p, NewPagination(req.Page, req.Limit, defaultPageLimit, maxPageLimit))
}

func (h *Handlers) respondPage(w http.ResponseWriter, p segmentation.Predicate, page PaginationParams) {
	view, err := h.engine.Filter(p)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	records := view.Records()
	start, end := page.Window(len(records))

	respondOK(w, CustomerPage{
		Customers:  records[start:end],
		Pagination: page.Meta(len(records)),
		Means:      view.Means(),
		Breakdown:  view.Breakdown(),
	})
}

// ListOperators returns the condition operators accepted by the query endpoint.
func (h *Handlers) ListOperators(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]interface{}{
		"operators": segmentation.GetOperatorMetadata(),
	})
}

// GetCustomer looks up one customer with percentile and segment comparison.
func (h *Handlers) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	profile, ok, err := h.engine.Lookup(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	logger.Debug("customer lookup", "customer_id", id, "found", ok)
	if !ok {
		httputil.NotFound(w, "customer not found")
		return
	}
	respondOK(w, profile)
}

// ==========================================
// QUERY PARSING
// ==========================================

// predicateFromQuery builds a predicate from segment, cluster, recency_min,
// recency_max, monetary_min and monetary_max.
func predicateFromQuery(r *http.Request) (segmentation.Predicate, error) {
	var p segmentation.Predicate

	if values, present := httputil.QueryList(r, "segment"); present && len(values) > 0 {
		if isNone(values) {
			p = p.WithSegments()
		} else {
			p = p.WithSegments(values...)
		}
	}

	if values, present := httputil.QueryList(r, "cluster"); present && len(values) > 0 {
		if isNone(values) {
			p = p.WithClusters()
		} else {
			ids := make([]int, 0, len(values))
			for _, v := range values {
				id, err := strconv.Atoi(v)
				if err != nil {
					return p, fmt.Errorf("cluster %q is not an integer", v)
				}
				ids = append(ids, id)
			}
			p = p.WithClusters(ids...)
		}
	}

	var err error
	if p.Recency, err = rangeFromQuery(r, "recency"); err != nil {
		return p, err
	}
	if p.Monetary, err = rangeFromQuery(r, "monetary"); err != nil {
		return p, err
	}
	return p, nil
}

func isNone(values []string) bool {
	return len(values) == 1 && strings.EqualFold(values[0], "none")
}

// rangeFromQuery reads <name>_min and <name>_max. A missing bound is open.
func rangeFromQuery(r *http.Request, name string) (*segmentation.Range, error) {
	lo, hasLo, err := httputil.QueryFloat(r, name+"_min")
	if err != nil {
		return nil, err
	}
	hi, hasHi, err := httputil.QueryFloat(r, name+"_max")
	if err != nil {
		return nil, err
	}
	if !hasLo && !hasHi {
		return nil, nil
	}
	if !hasLo {
		lo = math.Inf(-1)
	}
	if !hasHi {
		hi = math.Inf(1)
	}
	if lo > hi {
		return nil, fmt.Errorf("%s_min must not exceed %s_max", name, name)
	}
	return &segmentation.Range{Min: lo, Max: hi}, nil
}
