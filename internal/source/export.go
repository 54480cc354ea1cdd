package source

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ignite/segment-insights/internal/segmentation"
)

// WriteRecords writes records as CSV under the given column names.
// Numbers use the shortest exact representation, so reading the output back
// through ReadTable and segmentation.Load reproduces the same records.
func WriteRecords(w io.Writer, cols segmentation.ColumnMap, records []segmentation.CustomerRecord) error {
	cols = cols.WithDefaults()
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{cols.CustomerID, cols.Recency, cols.Frequency, cols.Monetary, cols.Cluster, cols.Segment}); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{
			r.CustomerID,
			formatFloat(r.RecencyDays),
			formatFloat(r.Frequency),
			formatFloat(r.Monetary),
			strconv.Itoa(r.ClusterID),
			r.SegmentName,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteBreakdown writes the per-segment summary table as CSV.
func WriteBreakdown(w io.Writer, aggregates []segmentation.SegmentAggregate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"segment", "customers", "avg_recency", "avg_frequency", "avg_monetary", "total_revenue", "revenue_share_pct",
	}); err != nil {
		return err
	}
	for _, a := range aggregates {
		if err := cw.Write([]string{
			a.SegmentName,
			strconv.Itoa(a.CustomerCount),
			strconv.FormatFloat(a.AvgRecency, 'f', 1, 64),
			strconv.FormatFloat(a.AvgFrequency, 'f', 2, 64),
			strconv.FormatFloat(a.AvgMonetary, 'f', 2, 64),
			strconv.FormatFloat(a.TotalRevenue, 'f', 2, 64),
			strconv.FormatFloat(a.RevenueSharePct, 'f', 1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
