package segmentation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	s := mustLoad(t, sampleTable())

	got, ok := s.Find("  c3 ")
	require.True(t, ok)
	assert.Equal(t, "C3", got.CustomerID)
	assert.Equal(t, "Loyal Customers", got.SegmentName)
}

func TestFind_MissInTenRowStore(t *testing.T) {
	records := make([]CustomerRecord, 10)
	for i := range records {
		records[i] = rec(fmt.Sprintf("ID%d", i), "A", 1, 1, float64(i), 0)
	}
	s := mustRecords(t, records...)

	got, ok := s.Find("missing")
	assert.False(t, ok)
	assert.Equal(t, CustomerRecord{}, got)

	_, ok, err := s.Profile("missing", nil)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestPercentileRank(t *testing.T) {
	s := mustLoad(t, sampleTable())

	top, ok := s.Find("C5")
	require.True(t, ok)
	assert.Equal(t, 100.0, s.PercentileRank(top))

	bottom, _ := s.Find("C4")
	assert.Equal(t, 20.0, s.PercentileRank(bottom))

	mid, _ := s.Find("C1")
	assert.Equal(t, 80.0, s.PercentileRank(mid))
}

func TestPercentileRank_Ties(t *testing.T) {
	s := mustRecords(t,
		rec("a", "A", 1, 1, 100, 0),
		rec("b", "A", 1, 1, 100, 0),
		rec("c", "A", 1, 1, 50, 0),
		rec("d", "A", 1, 1, 100, 0),
	)
	a, _ := s.Find("a")
	b, _ := s.Find("b")

	assert.Equal(t, 100.0, s.PercentileRank(a))
	assert.Equal(t, s.PercentileRank(a), s.PercentileRank(b))
}

func TestPercentileRank_EmptyStore(t *testing.T) {
	s := mustRecords(t)
	assert.Equal(t, 0.0, s.PercentileRank(rec("x", "A", 1, 1, 10, 0)))
}

func TestCompareToSegment(t *testing.T) {
	s := mustLoad(t, sampleTable())
	c1, _ := s.Find("C1")

	cmp, err := s.CompareToSegment(c1)
	require.NoError(t, err)
	assert.Equal(t, "Loyal Customers", cmp.SegmentName)
	require.Len(t, cmp.Metrics, 3)

	recency, ok := cmp.Get(MetricRecency)
	require.True(t, ok)
	assert.Equal(t, 10.0, recency.CustomerValue)
	assert.Equal(t, 27.5, recency.SegmentAvg)
	assert.Equal(t, -17.5, recency.Difference)

	monetary, _ := cmp.Get(MetricMonetary)
	assert.Equal(t, 2750.0, monetary.SegmentAvg)
	assert.Equal(t, 250.0, monetary.Difference)

	freq, _ := cmp.Get(MetricFrequency)
	assert.Equal(t, 1.75, freq.SegmentAvg)
	assert.Equal(t, 0.25, freq.Difference)
}

func TestProfile(t *testing.T) {
	s := mustLoad(t, sampleTable())
	profiles := []ClusterProfile{
		{ClusterID: 1, SegmentName: "Loyal Customers", Description: "Frequent, recent buyers"},
		{ClusterID: 0, SegmentName: "Big Spenders", Description: "High value, lapsing"},
	}

	p, ok, err := s.Profile("c5", profiles)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "C5", p.Record.CustomerID)
	assert.Equal(t, 100.0, p.Percentile)
	require.NotNil(t, p.Cluster)
	assert.Equal(t, "High value, lapsing", p.Cluster.Description)

	p, ok, err = s.Profile("C2", profiles)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, p.Cluster)
}
