package segmentation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Operator represents a comparison operator
type Operator string

const (
	OpEquals  Operator = "equals"
	OpIn      Operator = "in"
	OpBetween Operator = "between"
	OpGte     Operator = "gte"
	OpLte     Operator = "lte"
)

// Filterable fields
const (
	FieldSegment  = "segment"
	FieldCluster  = "cluster"
	FieldRecency  = "recency"
	FieldMonetary = "monetary"
)

// OperatorMetadata contains info about an operator
type OperatorMetadata struct {
	Operator          Operator `json:"operator"`
	Label             string   `json:"label"`
	Description       string   `json:"description"`
	Fields            []string `json:"fields"`
	RequiresValue     bool     `json:"requires_value"`
	RequiresSecondary bool     `json:"requires_secondary"` // For "between"
	RequiresArray     bool     `json:"requires_array"`     // For "in"
}

// GetOperatorMetadata returns metadata for all operators
func GetOperatorMetadata() []OperatorMetadata {
	numeric := []string{FieldRecency, FieldMonetary}
	all := []string{FieldSegment, FieldCluster, FieldRecency, FieldMonetary}
	return []OperatorMetadata{
		{OpEquals, "Equals", "Exact match", all, true, false, false},
		{OpIn, "Is any of", "Matches one of the listed values; an empty list matches nothing", []string{FieldSegment, FieldCluster}, false, false, true},
		{OpBetween, "Between", "Value is between two numbers (inclusive)", numeric, true, true, false},
		{OpGte, "Greater than or equal", "Value is greater than or equal to", numeric, true, false, false},
		{OpLte, "Less than or equal", "Value is less than or equal to", numeric, true, false, false},
	}
}

// Condition is a single filter condition as submitted by API clients.
type Condition struct {
	Field          string   `json:"field"`
	Operator       Operator `json:"operator"`
	Value          string   `json:"value,omitempty"`
	ValueSecondary string   `json:"value_secondary,omitempty"`
	ValuesArray    []string `json:"values_array,omitempty"`
}

// BuildPredicate ANDs conditions into a Predicate. Several conditions on the
// same field intersect.
func BuildPredicate(conditions []Condition) (Predicate, error) {
	var p Predicate
	for _, c := range conditions {
		field := strings.ToLower(strings.TrimSpace(c.Field))
		var err error
		switch field {
		case FieldSegment:
			err = p.addSegments(c)
		case FieldCluster:
			err = p.addClusters(c)
		case FieldRecency:
			p.Recency, err = narrowRange(p.Recency, c)
		case FieldMonetary:
			p.Monetary, err = narrowRange(p.Monetary, c)
		default:
			err = &QueryError{Field: c.Field, Operator: c.Operator, Reason: "unknown field"}
		}
		if err != nil {
			return Predicate{}, err
		}
	}
	return p, nil
}

func (p *Predicate) addSegments(c Condition) error {
	var values []string
	switch c.Operator {
	case OpEquals:
		values = []string{c.Value}
	case OpIn:
		values = c.ValuesArray
	default:
		return &QueryError{Field: c.Field, Operator: c.Operator, Reason: "unsupported operator for segment"}
	}
	set := make([]string, 0, len(values))
	for _, v := range values {
		set = append(set, strings.TrimSpace(v))
	}
	if p.Segments == nil {
		p.Segments = set
		return nil
	}
	p.Segments = intersect(p.Segments, set)
	return nil
}

func (p *Predicate) addClusters(c Condition) error {
	var values []string
	switch c.Operator {
	case OpEquals:
		values = []string{c.Value}
	case OpIn:
		values = c.ValuesArray
	default:
		return &QueryError{Field: c.Field, Operator: c.Operator, Reason: "unsupported operator for cluster"}
	}
	set := make([]int, 0, len(values))
	for _, v := range values {
		id, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &QueryError{Field: c.Field, Operator: c.Operator, Reason: fmt.Sprintf("%q is not a cluster id", v)}
		}
		set = append(set, id)
	}
	if p.Clusters == nil {
		p.Clusters = set
		return nil
	}
	p.Clusters = intersect(p.Clusters, set)
	return nil
}

func narrowRange(current *Range, c Condition) (*Range, error) {
	num := func(s string) (float64, error) {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, &QueryError{Field: c.Field, Operator: c.Operator, Reason: fmt.Sprintf("%q is not a number", s)}
		}
		return v, nil
	}

	r := Range{Min: math.Inf(-1), Max: math.Inf(1)}
	switch c.Operator {
	case OpEquals:
		v, err := num(c.Value)
		if err != nil {
			return nil, err
		}
		r.Min, r.Max = v, v
	case OpBetween:
		lo, err := num(c.Value)
		if err != nil {
			return nil, err
		}
		hi, err := num(c.ValueSecondary)
		if err != nil {
			return nil, err
		}
		r.Min, r.Max = lo, hi
	case OpGte:
		v, err := num(c.Value)
		if err != nil {
			return nil, err
		}
		r.Min = v
	case OpLte:
		v, err := num(c.Value)
		if err != nil {
			return nil, err
		}
		r.Max = v
	default:
		return nil, &QueryError{Field: c.Field, Operator: c.Operator, Reason: "unsupported operator for numeric field"}
	}

	if current != nil {
		r.Min = math.Max(r.Min, current.Min)
		r.Max = math.Min(r.Max, current.Max)
	}
	return &r, nil
}

func intersect[T comparable](a, b []T) []T {
	keep := make(map[T]bool, len(b))
	for _, v := range b {
		keep[v] = true
	}
	out := make([]T, 0, len(a))
	for _, v := range a {
		if keep[v] {
			out = append(out, v)
		}
	}
	return out
}
