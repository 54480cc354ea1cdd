package segmentation

import "strings"

// Find returns the record whose customer id equals id, ignoring case and
// surrounding whitespace. With duplicate ids the lowest row index wins.
func (s *Store) Find(id string) (CustomerRecord, bool) {
	i, ok := s.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return CustomerRecord{}, false
	}
	return s.records[i], true
}

// PercentileRank is the percentage of the population with monetary value at
// or below rec's. The top spender ranks 100 and ties share a rank.
// An empty store ranks 0.
func (s *Store) PercentileRank(rec CustomerRecord) float64 {
	if len(s.records) == 0 {
		return 0
	}
	var atOrBelow int
	for _, r := range s.records {
		if r.Monetary <= rec.Monetary {
			atOrBelow++
		}
	}
	return 100 * float64(atOrBelow) / float64(len(s.records))
}

// CompareToSegment contrasts rec's recency, frequency and monetary values
// with the averages of its segment. The *EmptySegmentError branch cannot
// fire for a record taken from the same store.
func (s *Store) CompareToSegment(rec CustomerRecord) (Comparison, error) {
	means, err := SegmentMeans(s.records, rec.SegmentName)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{
		SegmentName: strings.TrimSpace(rec.SegmentName),
		Metrics: []MetricComparison{
			compare(MetricRecency, rec.RecencyDays, means.AvgRecency),
			compare(MetricFrequency, rec.Frequency, means.AvgFrequency),
			compare(MetricMonetary, rec.Monetary, means.AvgMonetary),
		},
	}, nil
}

func compare(metric string, value, avg float64) MetricComparison {
	return MetricComparison{
		Metric:        metric,
		CustomerValue: value,
		SegmentAvg:    avg,
		Difference:    value - avg,
	}
}

// Profile looks up a customer and computes its percentile and segment
// comparison. profiles may be nil.
func (s *Store) Profile(id string, profiles []ClusterProfile) (CustomerProfile, bool, error) {
	rec, ok := s.Find(id)
	if !ok {
		return CustomerProfile{}, false, nil
	}
	cmp, err := s.CompareToSegment(rec)
	if err != nil {
		return CustomerProfile{}, true, err
	}
	out := CustomerProfile{
		Record:     rec,
		Percentile: s.PercentileRank(rec),
		Comparison: cmp,
	}
	for i := range profiles {
		if profiles[i].ClusterID == rec.ClusterID {
			p := s.labelProfile(profiles[i])
			out.Cluster = &p
			break
		}
	}
	return out, true, nil
}

// labelProfile fills a missing segment name from the cluster mapping.
func (s *Store) labelProfile(p ClusterProfile) ClusterProfile {
	if p.SegmentName == "" {
		if name, ok := s.SegmentForCluster(p.ClusterID); ok {
			p.SegmentName = name
		}
	}
	return p
}
