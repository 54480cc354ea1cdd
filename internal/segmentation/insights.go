package segmentation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/osteele/liquid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Fixed business thresholds for tiering segment means.
const (
	RecencyExcellentBelow = 50.0
	RecencyModerateBelow  = 60.0

	FrequencyHighAbove     = 1.3
	FrequencyModerateAbove = 1.1

	MonetaryHighAbove = 2000.0
	MonetaryMidAbove  = 500.0
)

// Tier keys.
const (
	TierExcellent = "excellent"
	TierModerate  = "moderate"
	TierHigh      = "high"
	TierMid       = "mid"
	TierLow       = "low"
	TierSummary   = "summary"
)

// InsightRule pairs a predicate on a metric value with the statement template
// emitted when it matches.
type InsightRule struct {
	Tier     string
	Match    func(v float64) bool
	Template string
}

// RuleGroup is an ordered rule list for one metric. The first matching rule
// wins, so the last rule of every group must match everything.
type RuleGroup struct {
	Metric string
	Value  func(m Means) float64
	Rules  []InsightRule
}

// DefaultRuleGroups returns the recency, frequency and monetary tier tables.
func DefaultRuleGroups() []RuleGroup {
	always := func(float64) bool { return true }
	return []RuleGroup{
		{
			Metric: MetricRecency,
			Value:  func(m Means) float64 { return m.AvgRecency },
			Rules: []InsightRule{
				{TierExcellent, func(v float64) bool { return v < RecencyExcellentBelow },
					"Excellent recency ({{ value | fixed: 1 }} days) - customers very active"},
				{TierModerate, func(v float64) bool { return v < RecencyModerateBelow },
					"Moderate recency ({{ value | fixed: 1 }} days) - monitor engagement"},
				{TierHigh, always,
					"High recency ({{ value | fixed: 1 }} days) - requires reactivation"},
			},
		},
		{
			Metric: MetricFrequency,
			Value:  func(m Means) float64 { return m.AvgFrequency },
			Rules: []InsightRule{
				{TierHigh, func(v float64) bool { return v > FrequencyHighAbove },
					"High frequency ({{ value | fixed: 2 }}) - loyal, repeat customers"},
				{TierModerate, func(v float64) bool { return v > FrequencyModerateAbove },
					"Moderate frequency ({{ value | fixed: 2 }}) - growth potential"},
				{TierLow, always,
					"Low frequency ({{ value | fixed: 2 }}) - encourage repeat purchases"},
			},
		},
		{
			Metric: MetricMonetary,
			Value:  func(m Means) float64 { return m.AvgMonetary },
			Rules: []InsightRule{
				{TierHigh, func(v float64) bool { return v > MonetaryHighAbove },
					"High value customers (avg {{ currency }}{{ value | grouped }}) - premium segment"},
				{TierMid, func(v float64) bool { return v > MonetaryMidAbove },
					"Mid value customers (avg {{ currency }}{{ value | grouped }}) - upsell potential"},
				{TierLow, always,
					"Low value customers (avg {{ currency }}{{ value | grouped }}) - growth focus"},
			},
		},
	}
}

const summaryTemplate = "Represents {{ count | grouped }} customers ({{ population_pct | fixed: 1 }}%) " +
	"generating {{ revenue_pct | fixed: 1 }}% of total revenue"

// ==========================================
// RULE SET
// ==========================================

type compiledRule struct {
	tier string
	// first match wins
	match func(float64) bool
	tpl   *liquid.Template
}

type compiledGroup struct {
	metric string
	value  func(Means) float64
	rules  []compiledRule
}

// RuleSet is a compiled, read-only insight classifier.
type RuleSet struct {
	currency string
	groups   []compiledGroup
	summary  *liquid.Template
}

// RuleOption customises a RuleSet.
type RuleOption func(*RuleSet)

// WithCurrencySymbol sets the symbol prefixed to monetary values.
func WithCurrencySymbol(symbol string) RuleOption {
	return func(rs *RuleSet) { rs.currency = symbol }
}

var numberPrinter = message.NewPrinter(language.English)

// NewRuleSet compiles rule groups into a RuleSet.
func NewRuleSet(groups []RuleGroup, opts ...RuleOption) (*RuleSet, error) {
	engine := liquid.NewEngine()
	engine.RegisterFilter("fixed", func(v float64, places int) string {
		return strconv.FormatFloat(v, 'f', places, 64)
	})
	engine.RegisterFilter("grouped", func(v float64) string {
		return numberPrinter.Sprintf("%.0f", v)
	})

	rs := &RuleSet{currency: "£"}
	for _, opt := range opts {
		opt(rs)
	}

	for _, g := range groups {
		if len(g.Rules) == 0 {
			return nil, fmt.Errorf("rule group %s has no rules", g.Metric)
		}
		if g.Value == nil {
			return nil, fmt.Errorf("rule group %s has no value accessor", g.Metric)
		}
		cg := compiledGroup{metric: g.Metric, value: g.Value}
		for _, r := range g.Rules {
			if r.Match == nil {
				return nil, fmt.Errorf("rule %s/%s has no predicate", g.Metric, r.Tier)
			}
			tpl, err := engine.ParseString(r.Template)
			if err != nil {
				return nil, fmt.Errorf("parse %s/%s template: %w", g.Metric, r.Tier, err)
			}
			if _, err := tpl.RenderString(liquid.Bindings{"value": 0.0, "currency": rs.currency}); err != nil {
				return nil, fmt.Errorf("render %s/%s template: %w", g.Metric, r.Tier, err)
			}
			cg.rules = append(cg.rules, compiledRule{tier: r.Tier, match: r.Match, tpl: tpl})
		}
		last := g.Rules[len(g.Rules)-1]
		for _, v := range []float64{-math.MaxFloat64, 0, math.MaxFloat64} {
			if !last.Match(v) {
				return nil, fmt.Errorf("last %s rule %q does not match %v", g.Metric, last.Tier, v)
			}
		}
		rs.groups = append(rs.groups, cg)
	}

	summary, err := engine.ParseString(summaryTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse summary template: %w", err)
	}
	rs.summary = summary

	return rs, nil
}

var defaultRuleSet = mustRuleSet(NewRuleSet(DefaultRuleGroups()))

func mustRuleSet(rs *RuleSet, err error) *RuleSet {
	if err != nil {
		panic(err)
	}
	return rs
}

// DefaultRuleSet returns the built-in rule set.
func DefaultRuleSet() *RuleSet { return defaultRuleSet }

// ==========================================
// GENERATION
// ==========================================

// GenerateInsights runs the default rule set. See RuleSet.Generate.
func GenerateInsights(segment string, records []CustomerRecord, aggregates []SegmentAggregate) ([]InsightStatement, error) {
	return defaultRuleSet.Generate(segment, records, aggregates)
}

// Generate emits one statement per rule group followed by the population and
// revenue summary. records is the whole population; aggregates supplies the
// segment's revenue share and is recomputed from records when it lacks the
// segment. An empty segment returns an *EmptySegmentError.
func (rs *RuleSet) Generate(segment string, records []CustomerRecord, aggregates []SegmentAggregate) ([]InsightStatement, error) {
	segment = strings.TrimSpace(segment)

	means, err := SegmentMeans(records, segment)
	if err != nil {
		return nil, err
	}

	agg, ok := FindAggregate(aggregates, segment)
	if !ok {
		agg, _ = FindAggregate(RevenueBreakdown(records), segment)
	}

	out := make([]InsightStatement, 0, len(rs.groups)+1)
	for _, g := range rs.groups {
		v := g.value(means)
		stmt, err := rs.classify(g, v)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}

	popPct := SharePct(float64(agg.CustomerCount), float64(len(records)))
	text, serr := rs.summary.RenderString(liquid.Bindings{
		"count":          float64(agg.CustomerCount),
		"population_pct": popPct,
		"revenue_pct":    agg.RevenueSharePct,
	})
	if serr != nil {
		return nil, fmt.Errorf("render summary: %w", serr)
	}
	out = append(out, InsightStatement{
		Metric: MetricPopulation,
		Tier:   TierSummary,
		Value:  float64(agg.CustomerCount),
		Text:   text,
	})

	return out, nil
}

func (rs *RuleSet) classify(g compiledGroup, v float64) (InsightStatement, error) {
	for _, r := range g.rules {
		if !r.match(v) {
			continue
		}
		text, err := r.tpl.RenderString(liquid.Bindings{
			"value":    v,
			"currency": rs.currency,
		})
		if err != nil {
			return InsightStatement{}, fmt.Errorf("render %s/%s: %w", g.metric, r.tier, err)
		}
		return InsightStatement{Metric: g.metric, Tier: r.tier, Value: v, Text: text}, nil
	}
	return InsightStatement{}, fmt.Errorf("no %s rule matched %v", g.metric, v)
}

// Tier returns the tier a value falls into for a metric, without rendering.
func (rs *RuleSet) Tier(metric string, v float64) (string, bool) {
	for _, g := range rs.groups {
		if g.metric != metric {
			continue
		}
		for _, r := range g.rules {
			if r.match(v) {
				return r.tier, true
			}
		}
	}
	return "", false
}
