package segmentation

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPredicate(t *testing.T) {
	p, err := BuildPredicate([]Condition{
		{Field: "segment", Operator: OpIn, ValuesArray: []string{"Loyal Customers", " At-Risk"}},
		{Field: "cluster", Operator: OpEquals, Value: "1"},
		{Field: "monetary", Operator: OpBetween, Value: "100", ValueSecondary: "5000"},
		{Field: "recency", Operator: OpLte, Value: "60"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Loyal Customers", "At-Risk"}, p.Segments)
	assert.Equal(t, []int{1}, p.Clusters)
	assert.Equal(t, &Range{Min: 100, Max: 5000}, p.Monetary)
	require.NotNil(t, p.Recency)
	assert.True(t, math.IsInf(p.Recency.Min, -1))
	assert.Equal(t, 60.0, p.Recency.Max)
}

func TestBuildPredicate_NoConditions(t *testing.T) {
	p, err := BuildPredicate(nil)
	require.NoError(t, err)
	assert.True(t, p.IsEmpty())
}

func TestBuildPredicate_Intersects(t *testing.T) {
	p, err := BuildPredicate([]Condition{
		{Field: "segment", Operator: OpIn, ValuesArray: []string{"A", "B"}},
		{Field: "segment", Operator: OpEquals, Value: "B"},
		{Field: "recency", Operator: OpGte, Value: "10"},
		{Field: "recency", Operator: OpLte, Value: "20"},
		{Field: "cluster", Operator: OpIn, ValuesArray: []string{"1"}},
		{Field: "cluster", Operator: OpIn, ValuesArray: []string{"2"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"B"}, p.Segments)
	assert.Equal(t, &Range{Min: 10, Max: 20}, p.Recency)
	assert.NotNil(t, p.Clusters)
	assert.Empty(t, p.Clusters)
}

func TestBuildPredicate_EmptyInSelectsNothing(t *testing.T) {
	p, err := BuildPredicate([]Condition{{Field: "segment", Operator: OpIn}})
	require.NoError(t, err)

	s := mustLoad(t, sampleTable())
	assert.Equal(t, 0, s.Filter(p).Len())
}

func TestBuildPredicate_Errors(t *testing.T) {
	tests := []struct {
		name string
		c    Condition
	}{
		{"unknown field", Condition{Field: "email", Operator: OpEquals, Value: "x"}},
		{"range on segment", Condition{Field: "segment", Operator: OpBetween, Value: "a", ValueSecondary: "b"}},
		{"in on recency", Condition{Field: "recency", Operator: OpIn, ValuesArray: []string{"1"}}},
		{"non-numeric cluster", Condition{Field: "cluster", Operator: OpEquals, Value: "one"}},
		{"non-numeric bound", Condition{Field: "monetary", Operator: OpGte, Value: "lots"}},
		{"missing secondary", Condition{Field: "monetary", Operator: OpBetween, Value: "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPredicate([]Condition{tt.c})
			var qErr *QueryError
			require.True(t, errors.As(err, &qErr), "got %v", err)
			assert.Equal(t, tt.c.Field, qErr.Field)
		})
	}
}

func TestGetOperatorMetadata(t *testing.T) {
	meta := GetOperatorMetadata()
	require.Len(t, meta, 5)

	for _, m := range meta {
		assert.NotEmpty(t, m.Label)
		assert.NotEmpty(t, m.Fields)
	}
}
