package segmentation

import (
	"strings"
	"sync"
)

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies in [Min, Max].
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Predicate is a conjunction of optional constraints.
//
// A nil membership slice leaves that dimension unconstrained. A non-nil empty
// slice matches nothing, the same as a multi-select with every option
// cleared. Nil ranges are unconstrained.
type Predicate struct {
	Segments []string `json:"segments"`
	Clusters []int    `json:"clusters"`
	Recency  *Range   `json:"recency,omitempty"`
	Monetary *Range   `json:"monetary,omitempty"`
}

// WithSegments returns a copy constrained to the given segment names.
// Calling it with no names selects nothing.
func (p Predicate) WithSegments(names ...string) Predicate {
	p.Segments = append(make([]string, 0, len(names)), names...)
	return p
}

// WithClusters returns a copy constrained to the given cluster ids.
// Calling it with no ids selects nothing.
func (p Predicate) WithClusters(ids ...int) Predicate {
	p.Clusters = append(make([]int, 0, len(ids)), ids...)
	return p
}

// WithRecency returns a copy constrained to recency in [lo, hi].
func (p Predicate) WithRecency(lo, hi float64) Predicate {
	p.Recency = &Range{Min: lo, Max: hi}
	return p
}

// WithMonetary returns a copy constrained to monetary in [lo, hi].
func (p Predicate) WithMonetary(lo, hi float64) Predicate {
	p.Monetary = &Range{Min: lo, Max: hi}
	return p
}

// IsEmpty returns true if no dimension is constrained.
func (p Predicate) IsEmpty() bool {
	return p.Segments == nil && p.Clusters == nil && p.Recency == nil && p.Monetary == nil
}

type compiledPredicate struct {
	segments map[string]bool
	clusters map[int]bool
	recency  *Range
	monetary *Range
	none     bool
}

func (p Predicate) compile() compiledPredicate {
	c := compiledPredicate{recency: p.Recency, monetary: p.Monetary}
	if p.Segments != nil {
		if len(p.Segments) == 0 {
			c.none = true
		}
		c.segments = make(map[string]bool, len(p.Segments))
		for _, s := range p.Segments {
			c.segments[strings.TrimSpace(s)] = true
		}
	}
	if p.Clusters != nil {
		if len(p.Clusters) == 0 {
			c.none = true
		}
		c.clusters = make(map[int]bool, len(p.Clusters))
		for _, id := range p.Clusters {
			c.clusters[id] = true
		}
	}
	return c
}

func (c compiledPredicate) match(r CustomerRecord) bool {
	if c.segments != nil && !c.segments[r.SegmentName] {
		return false
	}
	if c.clusters != nil && !c.clusters[r.ClusterID] {
		return false
	}
	if c.recency != nil && !c.recency.Contains(r.RecencyDays) {
		return false
	}
	if c.monetary != nil && !c.monetary.Contains(r.Monetary) {
		return false
	}
	return true
}

// ==========================================
// FILTERED VIEW
// ==========================================

// FilteredView is the result of a filter: the matching records in input
// order plus aggregates computed on first use.
type FilteredView struct {
	records []CustomerRecord

	breakdownOnce sync.Once
	breakdown     []SegmentAggregate

	meansOnce sync.Once
	means     Means
}

// Filter returns the records matching every constraint of p, preserving
// input order. It never modifies records.
func Filter(records []CustomerRecord, p Predicate) *FilteredView {
	c := p.compile()
	if c.none {
		return &FilteredView{records: []CustomerRecord{}}
	}

	out := make([]CustomerRecord, 0, len(records))
	for _, r := range records {
		if c.match(r) {
			out = append(out, r)
		}
	}
	return &FilteredView{records: out}
}

// Filter applies p to the whole store.
func (s *Store) Filter(p Predicate) *FilteredView {
	return Filter(s.view(), p)
}

// Len returns the number of matched records.
func (v *FilteredView) Len() int { return len(v.records) }

// Records returns the matched records. Callers must not modify the slice.
func (v *FilteredView) Records() []CustomerRecord { return v.records }

// Breakdown returns the revenue breakdown of the matched records.
func (v *FilteredView) Breakdown() []SegmentAggregate {
	v.breakdownOnce.Do(func() {
		v.breakdown = RevenueBreakdown(v.records)
	})
	return v.breakdown
}

// Means returns the RFM means of the matched records; zero when empty.
func (v *FilteredView) Means() Means {
	v.meansOnce.Do(func() {
		v.means = PopulationMeans(v.records)
	})
	return v.means
}

// Overview returns population KPIs of the matched records.
func (v *FilteredView) Overview() Overview {
	return Summarize(v.records)
}
