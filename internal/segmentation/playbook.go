package segmentation

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlaybookEntry is the marketing guidance attached to a segment.
type PlaybookEntry struct {
	Segment             string   `yaml:"segment" json:"segment"`
	Description         string   `yaml:"description" json:"description"`
	Recommendations     []string `yaml:"recommendations" json:"recommendations"`
	MarketingStrategies []string `yaml:"marketing_strategies" json:"marketing_strategies"`
}

// StrategyRow is one line of the strategic summary table.
type StrategyRow struct {
	Goal           string `yaml:"goal" json:"goal"`
	FocusSegment   string `yaml:"focus_segment" json:"focus_segment"`
	Priority       string `yaml:"priority" json:"priority"`
	ExpectedImpact string `yaml:"expected_impact" json:"expected_impact"`
}

// Playbook holds per-segment guidance and the strategic summary.
type Playbook struct {
	Segments []PlaybookEntry `yaml:"segments" json:"segments"`
	Strategy []StrategyRow   `yaml:"strategy" json:"strategy"`
}

// Entry returns the guidance for a segment name.
func (p Playbook) Entry(segment string) (PlaybookEntry, bool) {
	segment = strings.TrimSpace(segment)
	for _, e := range p.Segments {
		if e.Segment == segment {
			return e, true
		}
	}
	return PlaybookEntry{}, false
}

// normalize trims segment keys so " Big Spenders" and "Big Spenders" are the
// same segment.
func (p Playbook) normalize() Playbook {
	out := Playbook{
		Segments: make([]PlaybookEntry, len(p.Segments)),
		Strategy: make([]StrategyRow, len(p.Strategy)),
	}
	for i, e := range p.Segments {
		e.Segment = strings.TrimSpace(e.Segment)
		out.Segments[i] = e
	}
	for i, r := range p.Strategy {
		r.FocusSegment = strings.TrimSpace(r.FocusSegment)
		out.Strategy[i] = r
	}
	return out
}

// LoadPlaybook reads a YAML playbook. An empty path returns DefaultPlaybook.
func LoadPlaybook(path string) (Playbook, error) {
	if path == "" {
		return DefaultPlaybook(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Playbook{}, fmt.Errorf("read playbook: %w", err)
	}
	var p Playbook
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Playbook{}, fmt.Errorf("parse playbook: %w", err)
	}
	for i, e := range p.Segments {
		if strings.TrimSpace(e.Segment) == "" {
			return Playbook{}, fmt.Errorf("playbook entry %d has no segment", i+1)
		}
	}
	return p.normalize(), nil
}

// DefaultPlaybook returns the built-in guidance for the four standard segments.
func DefaultPlaybook() Playbook {
	return Playbook{
		Segments: []PlaybookEntry{
			{
				Segment:     "Big Spenders",
				Description: "Customers with the highest monetary value but weaker recency and frequency",
				Recommendations: []string{
					"Reactivation campaigns: target with win-back offers to reduce recency",
					"VIP programs: consider exclusive perks or loyalty programs",
					"Personalized communication: reach out with high-value product recommendations",
					"Upselling opportunities: promote premium services to customers with high spending capacity",
				},
				MarketingStrategies: []string{
					"Email campaigns: personalized reactivation emails with exclusive offers",
					"Direct mail: high-value physical mailers with premium product information",
					"Phone outreach: personal calls from relationship managers to re-engage",
					"Loyalty rewards: tiered loyalty program with exclusive benefits",
					"Premium products: premium accounts and investment services",
					"Time-limited offers: limited-time reactivation bonuses",
					"Referral incentives: rewards for referring other high-value customers",
				},
			},
			{
				Segment:     "Loyal Customers",
				Description: "Best performing segment with excellent recency, high frequency, and substantial monetary value",
				Recommendations: []string{
					"Retention focus: maintain excellent service and reward loyalty",
					"Referral programs: leverage satisfaction for new customer acquisition",
					"Premium services: introduce higher-tier banking products",
					"Relationship building: assign dedicated relationship managers where applicable",
				},
				MarketingStrategies: []string{
					"VIP treatment: exclusive access to premium services and early product launches",
					"Referral programs: reward customers for bringing in new customers",
					"Upsell campaigns: investment products, insurance, and premium accounts",
					"Community building: exclusive events, webinars, and financial workshops",
					"Personalized offers: product recommendations based on behavior",
					"Loyalty points: enhanced rewards with points for every transaction",
					"Cross-sell opportunities: credit cards, loans, and savings",
				},
			},
			{
				Segment:     "Recent Low Value",
				Description: "Recently active customers but with low transaction frequency and monetary value",
				Recommendations: []string{
					"Growth campaigns: encourage repeat purchases and increase transaction frequency",
					"Incentives: discounts or cashback for additional transactions",
					"Engagement: increase digital touchpoints and product awareness",
					"Education: information about additional banking services",
				},
				MarketingStrategies: []string{
					"Welcome series: automated email sequence introducing all services",
					"Cashback offers: 2-5% cashback on the first 3 transactions",
					"Product education: webinars and guides on maximizing benefits",
					"Mobile app push: notifications about new features and offers",
					"Transaction incentives: bonus rewards for multiple transactions per month",
					"Budgeting tools: financial planning tools to increase engagement",
					"Low-value upsells: savings accounts and basic insurance",
				},
			},
			{
				Segment:     "At-Risk",
				Description: "Customers showing poor performance across all RFM metrics with the highest churn risk",
				Recommendations: []string{
					"Churn prevention: immediate intervention with win-back offers",
					"Feedback collection: understand reasons for decreased engagement",
					"Special promotions: aggressive discounting or bonus offers",
					"Product review: assess whether current products meet their needs",
					"Prioritization: focus resources on high-value At-Risk customers first",
				},
				MarketingStrategies: []string{
					"Win-back campaigns: email and SMS campaigns with special offers",
					"Exit surveys: feedback forms to understand disengagement",
					"Retention offers: discounts or fee waivers for the next 6 months",
					"Product simplification: simpler, more suitable product alternatives",
					"Customer success calls: proactive outreach to address concerns",
					"Segmented approach: personal outreach for high-value At-Risk customers",
					"Last chance offers: final value propositions before churn",
				},
			},
		},
		Strategy: []StrategyRow{
			{Goal: "Retention", FocusSegment: "Loyal Customers", Priority: "High", ExpectedImpact: "Maintain revenue base"},
			{Goal: "Reactivation", FocusSegment: "Big Spenders", Priority: "Medium", ExpectedImpact: "Recapture high value"},
			{Goal: "Growth", FocusSegment: "Recent Low Value", Priority: "Medium", ExpectedImpact: "Increase transaction value"},
			{Goal: "Churn Management", FocusSegment: "At-Risk", Priority: "High", ExpectedImpact: "Prevent revenue loss"},
		},
	}
}
