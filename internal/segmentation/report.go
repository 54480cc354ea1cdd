package segmentation

import "errors"

// SegmentReport is the full narrative for one segment.
type SegmentReport struct {
	Aggregate SegmentAggregate   `json:"aggregate"`
	Insights  []InsightStatement `json:"insights"`
	Playbook  *PlaybookEntry     `json:"playbook,omitempty"`
}

// BuildReport assembles a report for the playbook's segments followed by any
// other segment in the store, in breakdown order. Segments without records
// are skipped.
func BuildReport(store *Store, rules *RuleSet, pb Playbook) ([]SegmentReport, error) {
	if rules == nil {
		rules = defaultRuleSet
	}
	records := store.view()
	breakdown := RevenueBreakdown(records)

	names := make([]string, 0, len(pb.Segments)+len(breakdown))
	listed := make(map[string]bool)
	for _, e := range pb.Segments {
		if !listed[e.Segment] {
			listed[e.Segment] = true
			names = append(names, e.Segment)
		}
	}
	for _, a := range breakdown {
		if !listed[a.SegmentName] {
			listed[a.SegmentName] = true
			names = append(names, a.SegmentName)
		}
	}

	out := make([]SegmentReport, 0, len(names))
	for _, name := range names {
		insights, err := rules.Generate(name, records, breakdown)
		if errors.Is(err, ErrEmptySegment) {
			continue
		}
		if err != nil {
			return nil, err
		}
		agg, _ := FindAggregate(breakdown, name)
		r := SegmentReport{Aggregate: agg, Insights: insights}
		if e, ok := pb.Entry(name); ok {
			r.Playbook = &e
		}
		out = append(out, r)
	}
	return out, nil
}
