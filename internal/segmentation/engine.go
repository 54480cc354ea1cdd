package segmentation

import (
	"context"
	"fmt"
	"strings"
)

// Engine is the read facade over the current snapshot used by the API and CLI.
// Each call reads a single Version, so results within one call are consistent.
type Engine struct {
	snap     *Snapshot
	rules    *RuleSet
	playbook Playbook
}

// NewEngine creates an engine. A nil rule set uses DefaultRuleSet.
func NewEngine(snap *Snapshot, rules *RuleSet, playbook Playbook) *Engine {
	if rules == nil {
		rules = defaultRuleSet
	}
	return &Engine{snap: snap, rules: rules, playbook: playbook.normalize()}
}

// Snapshot returns the underlying snapshot
func (e *Engine) Snapshot() *Snapshot {
	return e.snap
}

// Playbook returns the segment playbook.
func (e *Engine) Playbook() Playbook {
	return e.playbook
}

// Version returns the current snapshot version.
func (e *Engine) Version() (*Version, error) {
	return e.snap.Current()
}

// Reload refreshes the snapshot from its sources.
func (e *Engine) Reload(ctx context.Context) (*Version, error) {
	return e.snap.Reload(ctx)
}

// ==========================================
// AGGREGATES
// ==========================================

// Overview returns population KPIs.
func (e *Engine) Overview() (Overview, error) {
	v, err := e.snap.Current()
	if err != nil {
		return Overview{}, err
	}
	return Summarize(v.Store.view()), nil
}

// Breakdown returns the revenue breakdown by segment.
func (e *Engine) Breakdown() ([]SegmentAggregate, error) {
	v, err := e.snap.Current()
	if err != nil {
		return nil, err
	}
	return v.Breakdown(), nil
}

// Segment returns one segment's aggregate. It fails with an
// *EmptySegmentError when the segment has no records.
func (e *Engine) Segment(name string) (SegmentAggregate, error) {
	v, err := e.snap.Current()
	if err != nil {
		return SegmentAggregate{}, err
	}
	agg, ok := FindAggregate(v.Breakdown(), name)
	if !ok {
		return SegmentAggregate{}, &EmptySegmentError{Segment: strings.TrimSpace(name)}
	}
	return agg, nil
}

// Clusters returns per-cluster statistics.
func (e *Engine) Clusters() ([]ClusterAggregate, error) {
	v, err := e.snap.Current()
	if err != nil {
		return nil, err
	}
	return ClusterBreakdown(v.Store.view()), nil
}

// Profiles returns the cluster display profiles of the current version.
// Profiles without a segment name take the label the store assigns to
// their cluster.
func (e *Engine) Profiles() ([]ClusterProfile, error) {
	v, err := e.snap.Current()
	if err != nil {
		return nil, err
	}
	if v.Profiles == nil {
		return nil, nil
	}
	out := make([]ClusterProfile, len(v.Profiles))
	for i, p := range v.Profiles {
		out[i] = v.Store.labelProfile(p)
	}
	return out, nil
}

// ==========================================
// INSIGHTS
// ==========================================

// Insights generates the narrative statements for one segment.
func (e *Engine) Insights(segment string) ([]InsightStatement, error) {
	v, err := e.snap.Current()
	if err != nil {
		return nil, err
	}
	return e.rules.Generate(segment, v.Store.view(), v.Breakdown())
}

// Report builds the per-segment report with playbook guidance.
func (e *Engine) Report() ([]SegmentReport, error) {
	v, err := e.snap.Current()
	if err != nil {
		return nil, err
	}
	return BuildReport(v.Store, e.rules, e.playbook)
}

// ==========================================
// FILTERING
// ==========================================

// Preview is a page of a filtered view with its aggregates.
type Preview struct {
	Total     int                `json:"total"`
	Customers []CustomerRecord   `json:"customers"`
	Means     Means              `json:"means"`
	Breakdown []SegmentAggregate `json:"breakdown"`
}

// Filter applies a predicate to the current population.
func (e *Engine) Filter(p Predicate) (*FilteredView, error) {
	v, err := e.snap.Current()
	if err != nil {
		return nil, err
	}
	return v.Store.Filter(p), nil
}

// Preview filters and returns at most limit customers. A limit <= 0 returns
// every match.
func (e *Engine) Preview(p Predicate, limit int) (*Preview, error) {
	view, err := e.Filter(p)
	if err != nil {
		return nil, err
	}
	customers := view.Records()
	if limit > 0 && len(customers) > limit {
		customers = customers[:limit]
	}
	return &Preview{
		Total:     view.Len(),
		Customers: customers,
		Means:     view.Means(),
		Breakdown: view.Breakdown(),
	}, nil
}

// ValidateConditions returns one message per unusable condition.
func (e *Engine) ValidateConditions(conditions []Condition) []string {
	var errs []string
	for i, c := range conditions {
		if _, err := BuildPredicate([]Condition{c}); err != nil {
			errs = append(errs, fmt.Sprintf("condition %d: %v", i+1, err))
		}
	}
	return errs
}

// ==========================================
// LOOKUP
// ==========================================

// Lookup finds a customer and profiles it against its segment.
func (e *Engine) Lookup(id string) (CustomerProfile, bool, error) {
	v, err := e.snap.Current()
	if err != nil {
		return CustomerProfile{}, false, err
	}
	profile, ok, err := v.Store.Profile(id, v.Profiles)
	if !ok || err != nil {
		return profile, ok, err
	}
	for i, m := range profile.Comparison.Metrics {
		if tier, found := e.rules.Tier(m.Metric, m.CustomerValue); found {
			profile.Comparison.Metrics[i].Tier = tier
		}
	}
	return profile, true, nil
}
