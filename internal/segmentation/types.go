// Package segmentation provides the RFM segment analytics engine: an
// immutable customer record store, revenue aggregation, rule-based insight
// generation, predicate filtering and single-customer lookup.
package segmentation

// ==========================================
// INPUT TABLE
// ==========================================

// Table is a raw, string-celled table handed to the engine by a source.
// Header names are matched through a ColumnMap.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// ColumnMap names the input columns holding each CustomerRecord field.
type ColumnMap struct {
	CustomerID string `yaml:"customer_id" json:"customer_id"`
	Recency    string `yaml:"recency" json:"recency"`
	Frequency  string `yaml:"frequency" json:"frequency"`
	Monetary   string `yaml:"monetary" json:"monetary"`
	Cluster    string `yaml:"cluster" json:"cluster"`
	Segment    string `yaml:"segment" json:"segment"`
}

// DefaultColumns matches the column names written by the clustering pipeline.
func DefaultColumns() ColumnMap {
	return ColumnMap{
		CustomerID: "CustomerID",
		Recency:    "recency_days",
		Frequency:  "frequency",
		Monetary:   "monetary",
		Cluster:    "Cluster",
		Segment:    "Segment_Name",
	}
}

// WithDefaults fills empty column names from DefaultColumns.
func (c ColumnMap) WithDefaults() ColumnMap {
	d := DefaultColumns()
	if c.CustomerID == "" {
		c.CustomerID = d.CustomerID
	}
	if c.Recency == "" {
		c.Recency = d.Recency
	}
	if c.Frequency == "" {
		c.Frequency = d.Frequency
	}
	if c.Monetary == "" {
		c.Monetary = d.Monetary
	}
	if c.Cluster == "" {
		c.Cluster = d.Cluster
	}
	if c.Segment == "" {
		c.Segment = d.Segment
	}
	return c
}

// ==========================================
// RECORDS
// ==========================================

// CustomerRecord is one customer's RFM scores and segment assignment.
type CustomerRecord struct {
	CustomerID  string  `json:"customer_id"`
	RecencyDays float64 `json:"recency_days"`
	Frequency   float64 `json:"frequency"`
	Monetary    float64 `json:"monetary"`
	ClusterID   int     `json:"cluster_id"`
	SegmentName string  `json:"segment_name"`
}

// ClusterProfile is the display description of a numeric cluster.
type ClusterProfile struct {
	ClusterID   int    `json:"cluster_id" dynamodbav:"cluster_id"`
	SegmentName string `json:"segment_name,omitempty" dynamodbav:"segment_name"`
	Description string `json:"description" dynamodbav:"description"`
}

// ==========================================
// AGGREGATES
// ==========================================

// SegmentAggregate holds revenue and RFM means for one segment.
type SegmentAggregate struct {
	SegmentName     string  `json:"segment_name"`
	CustomerCount   int     `json:"customer_count"`
	TotalRevenue    float64 `json:"total_revenue"`
	AvgRecency      float64 `json:"avg_recency"`
	AvgFrequency    float64 `json:"avg_frequency"`
	AvgMonetary     float64 `json:"avg_monetary"`
	RevenueSharePct float64 `json:"revenue_share_pct"`
}

// Means are the average RFM metrics of a population.
type Means struct {
	AvgRecency   float64 `json:"avg_recency"`
	AvgFrequency float64 `json:"avg_frequency"`
	AvgMonetary  float64 `json:"avg_monetary"`
}

// ClusterAggregate holds stats for one numeric cluster.
type ClusterAggregate struct {
	ClusterID     int     `json:"cluster_id"`
	SegmentName   string  `json:"segment_name"`
	CustomerCount int     `json:"customer_count"`
	TotalRevenue  float64 `json:"total_revenue"`
	Means
}

// Overview is the population-wide KPI set.
type Overview struct {
	TotalCustomers        int     `json:"total_customers"`
	TotalRevenue          float64 `json:"total_revenue"`
	AvgRevenuePerCustomer float64 `json:"avg_revenue_per_customer"`
	SegmentCount          int     `json:"segment_count"`
	AvgRecency            float64 `json:"avg_recency"`
	AvgFrequency          float64 `json:"avg_frequency"`
}

// ==========================================
// INSIGHTS
// ==========================================

// Metric names used by insights and comparisons.
const (
	MetricRecency    = "recency"
	MetricFrequency  = "frequency"
	MetricMonetary   = "monetary"
	MetricPopulation = "population"
)

// InsightStatement is one plain-text narrative line about a segment.
type InsightStatement struct {
	Metric string  `json:"metric"`
	Tier   string  `json:"tier"`
	Value  float64 `json:"value"`
	Text   string  `json:"text"`
}

// ==========================================
// LOOKUP
// ==========================================

// MetricComparison contrasts a customer's value with the segment average.
type MetricComparison struct {
	Metric        string  `json:"metric"`
	CustomerValue float64 `json:"customer_value"`
	SegmentAvg    float64 `json:"segment_avg"`
	Difference    float64 `json:"difference"`
	// Tier the customer's own value falls into.
	Tier string `json:"tier,omitempty"`
}

// Comparison is a customer's recency, frequency and monetary comparison,
// in that order.
type Comparison struct {
	SegmentName string             `json:"segment_name"`
	Metrics     []MetricComparison `json:"metrics"`
}

// Get returns the comparison for a metric name.
func (c Comparison) Get(metric string) (MetricComparison, bool) {
	for _, m := range c.Metrics {
		if m.Metric == metric {
			return m, true
		}
	}
	return MetricComparison{}, false
}

// CustomerProfile bundles everything known about a single customer.
type CustomerProfile struct {
	Record     CustomerRecord  `json:"record"`
	Percentile float64         `json:"monetary_percentile"`
	Comparison Comparison      `json:"comparison"`
	Cluster    *ClusterProfile `json:"cluster,omitempty"`
}
