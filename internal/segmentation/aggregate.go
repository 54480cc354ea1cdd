package segmentation

import (
	"math"
	"sort"
	"strings"
)

// ==========================================
// ACCUMULATION
// ==========================================

type accumulator struct {
	count    int
	recency  float64
	freq     float64
	monetary float64
}

func (a *accumulator) add(r CustomerRecord) {
	a.count++
	a.recency += r.RecencyDays
	a.freq += r.Frequency
	a.monetary += r.Monetary
}

func (a accumulator) means() Means {
	if a.count == 0 {
		return Means{}
	}
	n := float64(a.count)
	return Means{
		AvgRecency:   a.recency / n,
		AvgFrequency: a.freq / n,
		AvgMonetary:  a.monetary / n,
	}
}

// groupBySegment accumulates records per segment, keeping first-seen order.
func groupBySegment(records []CustomerRecord) ([]string, map[string]*accumulator) {
	groups := make(map[string]*accumulator)
	var order []string
	for _, r := range records {
		acc, ok := groups[r.SegmentName]
		if !ok {
			acc = &accumulator{}
			groups[r.SegmentName] = acc
			order = append(order, r.SegmentName)
		}
		acc.add(r)
	}
	return order, groups
}

// ==========================================
// REVENUE BREAKDOWN
// ==========================================

// RevenueBreakdown aggregates records per segment, sorted by total revenue
// descending with ties broken by segment name ascending.
// RevenueSharePct is rounded to one decimal; a zero grand total yields
// zero shares.
func RevenueBreakdown(records []CustomerRecord) []SegmentAggregate {
	order, groups := groupBySegment(records)

	var grand float64
	for _, acc := range groups {
		grand += acc.monetary
	}

	out := make([]SegmentAggregate, 0, len(order))
	for _, name := range order {
		acc := groups[name]
		m := acc.means()
		out = append(out, SegmentAggregate{
			SegmentName:     name,
			CustomerCount:   acc.count,
			TotalRevenue:    acc.monetary,
			AvgRecency:      m.AvgRecency,
			AvgFrequency:    m.AvgFrequency,
			AvgMonetary:     m.AvgMonetary,
			RevenueSharePct: SharePct(acc.monetary, grand),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalRevenue != out[j].TotalRevenue {
			return out[i].TotalRevenue > out[j].TotalRevenue
		}
		return out[i].SegmentName < out[j].SegmentName
	})
	return out
}

// FindAggregate returns the aggregate for a segment name.
func FindAggregate(aggregates []SegmentAggregate, name string) (SegmentAggregate, bool) {
	name = strings.TrimSpace(name)
	for _, a := range aggregates {
		if a.SegmentName == name {
			return a, true
		}
	}
	return SegmentAggregate{}, false
}

// ==========================================
// MEANS
// ==========================================

// SegmentMeans averages the RFM metrics of one segment.
// It fails with an *EmptySegmentError when no record belongs to it.
func SegmentMeans(records []CustomerRecord, segment string) (Means, error) {
	segment = strings.TrimSpace(segment)
	var acc accumulator
	for _, r := range records {
		if r.SegmentName == segment {
			acc.add(r)
		}
	}
	if acc.count == 0 {
		return Means{}, &EmptySegmentError{Segment: segment}
	}
	return acc.means(), nil
}

// PopulationMeans averages the RFM metrics of all records.
// An empty population yields zero means.
func PopulationMeans(records []CustomerRecord) Means {
	var acc accumulator
	for _, r := range records {
		acc.add(r)
	}
	return acc.means()
}

// ==========================================
// OVERVIEW & CLUSTERS
// ==========================================

// Summarize computes the population-wide KPIs.
func Summarize(records []CustomerRecord) Overview {
	var acc accumulator
	segments := make(map[string]struct{})
	for _, r := range records {
		acc.add(r)
		segments[r.SegmentName] = struct{}{}
	}
	m := acc.means()
	return Overview{
		TotalCustomers:        acc.count,
		TotalRevenue:          acc.monetary,
		AvgRevenuePerCustomer: m.AvgMonetary,
		SegmentCount:          len(segments),
		AvgRecency:            m.AvgRecency,
		AvgFrequency:          m.AvgFrequency,
	}
}

// ClusterBreakdown aggregates records per numeric cluster, ascending by id.
func ClusterBreakdown(records []CustomerRecord) []ClusterAggregate {
	groups := make(map[int]*accumulator)
	names := make(map[int]string)
	for _, r := range records {
		acc, ok := groups[r.ClusterID]
		if !ok {
			acc = &accumulator{}
			groups[r.ClusterID] = acc
			names[r.ClusterID] = r.SegmentName
		}
		acc.add(r)
	}

	out := make([]ClusterAggregate, 0, len(groups))
	for id, acc := range groups {
		out = append(out, ClusterAggregate{
			ClusterID:     id,
			SegmentName:   names[id],
			CustomerCount: acc.count,
			TotalRevenue:  acc.monetary,
			Means:         acc.means(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClusterID < out[j].ClusterID })
	return out
}

// ==========================================
// ROUNDING
// ==========================================

// SharePct returns part as a percentage of total, rounded to one decimal.
// A zero total yields 0.
func SharePct(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return Round1(100 * part / total)
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
