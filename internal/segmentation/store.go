package segmentation

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Store is an immutable, loaded customer population.
// It is safe for concurrent readers; nothing writes to it after Load.
type Store struct {
	records  []CustomerRecord
	segments []string
	clusters []int

	// lower-cased customer id -> first row index
	byID map[string]int
	// cluster id -> segment name
	clusterSegment map[int]string
}

// ==========================================
// LOADING
// ==========================================

// Load validates a raw table and builds a Store from it.
// Any missing column or invalid value fails the whole load with a *SchemaError.
// Duplicate customer IDs are kept as separate rows.
func Load(table Table, cols ColumnMap) (*Store, error) {
	cols = cols.WithDefaults()

	idx, err := resolveColumns(table.Header, cols)
	if err != nil {
		return nil, err
	}

	records := make([]CustomerRecord, 0, len(table.Rows))
	for i, row := range table.Rows {
		rec, err := parseRow(i+1, row, idx, cols)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return newStore(records)
}

// FromRecords builds a Store from already-typed records, applying the same
// trimming and invariant checks as Load.
func FromRecords(records []CustomerRecord) (*Store, error) {
	cp := make([]CustomerRecord, len(records))
	for i, r := range records {
		r.CustomerID = strings.TrimSpace(r.CustomerID)
		r.SegmentName = strings.TrimSpace(r.SegmentName)
		if err := validateRecord(i+1, r, DefaultColumns()); err != nil {
			return nil, err
		}
		cp[i] = r
	}
	return newStore(cp)
}

func newStore(records []CustomerRecord) (*Store, error) {
	s := &Store{
		records:        records,
		byID:           make(map[string]int, len(records)),
		clusterSegment: make(map[int]string),
	}

	seenSegment := make(map[string]bool)
	for i, r := range records {
		if existing, ok := s.clusterSegment[r.ClusterID]; ok {
			if existing != r.SegmentName {
				return nil, &SchemaError{
					Row:    i + 1,
					Column: DefaultColumns().Segment,
					Reason: fmt.Sprintf("cluster %d maps to both %q and %q", r.ClusterID, existing, r.SegmentName),
				}
			}
		} else {
			s.clusterSegment[r.ClusterID] = r.SegmentName
			s.clusters = append(s.clusters, r.ClusterID)
		}

		if !seenSegment[r.SegmentName] {
			seenSegment[r.SegmentName] = true
			s.segments = append(s.segments, r.SegmentName)
		}

		key := strings.ToLower(r.CustomerID)
		if _, dup := s.byID[key]; !dup {
			s.byID[key] = i
		}
	}
	sort.Ints(s.clusters)

	return s, nil
}

type columnIndex struct {
	id, recency, frequency, monetary, cluster, segment int
}

func resolveColumns(header []string, cols ColumnMap) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, ok := positions[key]; !ok {
			positions[key] = i
		}
	}

	find := func(name string) (int, error) {
		i, ok := positions[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, &SchemaError{Column: name, Reason: "required column is missing"}
		}
		return i, nil
	}

	var idx columnIndex
	var err error
	if idx.id, err = find(cols.CustomerID); err != nil {
		return idx, err
	}
	if idx.recency, err = find(cols.Recency); err != nil {
		return idx, err
	}
	if idx.frequency, err = find(cols.Frequency); err != nil {
		return idx, err
	}
	if idx.monetary, err = find(cols.Monetary); err != nil {
		return idx, err
	}
	if idx.cluster, err = find(cols.Cluster); err != nil {
		return idx, err
	}
	if idx.segment, err = find(cols.Segment); err != nil {
		return idx, err
	}
	return idx, nil
}

func parseRow(rowNum int, row []string, idx columnIndex, cols ColumnMap) (CustomerRecord, error) {
	cell := func(i int, name string) (string, error) {
		if i >= len(row) {
			return "", &SchemaError{Row: rowNum, Column: name, Reason: "row is too short"}
		}
		return strings.TrimSpace(row[i]), nil
	}
	number := func(i int, name string) (float64, error) {
		raw, err := cell(i, name)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &SchemaError{Row: rowNum, Column: name, Reason: fmt.Sprintf("%q is not a number", raw)}
		}
		return v, nil
	}

	var rec CustomerRecord
	var err error

	if rec.CustomerID, err = cell(idx.id, cols.CustomerID); err != nil {
		return rec, err
	}
	if rec.RecencyDays, err = number(idx.recency, cols.Recency); err != nil {
		return rec, err
	}
	if rec.Frequency, err = number(idx.frequency, cols.Frequency); err != nil {
		return rec, err
	}
	if rec.Monetary, err = number(idx.monetary, cols.Monetary); err != nil {
		return rec, err
	}
	cluster, err := number(idx.cluster, cols.Cluster)
	if err != nil {
		return rec, err
	}
	if cluster != math.Trunc(cluster) {
		return rec, &SchemaError{Row: rowNum, Column: cols.Cluster, Reason: fmt.Sprintf("%v is not an integer", cluster)}
	}
	rec.ClusterID = int(cluster)
	if rec.SegmentName, err = cell(idx.segment, cols.Segment); err != nil {
		return rec, err
	}

	return rec, validateRecord(rowNum, rec, cols)
}

func validateRecord(rowNum int, rec CustomerRecord, cols ColumnMap) error {
	switch {
	case rec.CustomerID == "":
		return &SchemaError{Row: rowNum, Column: cols.CustomerID, Reason: "customer id is empty"}
	case rec.RecencyDays < 0:
		return &SchemaError{Row: rowNum, Column: cols.Recency, Reason: "recency must be >= 0"}
	case rec.Frequency <= 0:
		return &SchemaError{Row: rowNum, Column: cols.Frequency, Reason: "frequency must be > 0"}
	case rec.Monetary < 0:
		return &SchemaError{Row: rowNum, Column: cols.Monetary, Reason: "monetary must be >= 0"}
	case rec.SegmentName == "":
		return &SchemaError{Row: rowNum, Column: cols.Segment, Reason: "segment name is empty"}
	}
	return nil
}

// ==========================================
// ACCESSORS
// ==========================================

// Len returns the number of rows.
func (s *Store) Len() int { return len(s.records) }

// At returns the record at row index i.
func (s *Store) At(i int) CustomerRecord { return s.records[i] }

// Records returns a copy of every record in load order.
func (s *Store) Records() []CustomerRecord {
	out := make([]CustomerRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Segments returns the distinct segment names in first-seen order.
func (s *Store) Segments() []string {
	out := make([]string, len(s.segments))
	copy(out, s.segments)
	return out
}

// Clusters returns the distinct cluster ids in ascending order.
func (s *Store) Clusters() []int {
	out := make([]int, len(s.clusters))
	copy(out, s.clusters)
	return out
}

// SegmentForCluster returns the segment label of a cluster.
func (s *Store) SegmentForCluster(cluster int) (string, bool) {
	name, ok := s.clusterSegment[cluster]
	return name, ok
}

// view exposes the backing slice to package code without copying.
func (s *Store) view() []CustomerRecord { return s.records }
