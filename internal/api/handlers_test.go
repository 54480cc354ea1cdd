package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/segment-insights/internal/config"
	"github.com/ignite/segment-insights/internal/segmentation"
)

type tableFunc func(ctx context.Context) (segmentation.Table, error)

func (f tableFunc) Load(ctx context.Context) (segmentation.Table, error) { return f(ctx) }

type refusingLock struct{}

func (refusingLock) Acquire(ctx context.Context) (bool, error) { return false, nil }
func (refusingLock) Release(ctx context.Context) error         { return nil }

func customerTable() segmentation.Table {
	return segmentation.Table{
		Header: []string{"CustomerID", "recency_days", "frequency", "monetary", "Cluster", "Segment_Name"},
		Rows: [][]string{
			{"C1", "10", "5", "1000", "1", "Loyal Customers"},
			{"C2", "20", "3", "500", "1", "Loyal Customers"},
			{"C3", "200", "1", "100", "3", "At-Risk"},
			{"C4", "40", "2", "5000", "0", " Big Spenders"},
			{"C5", "5", "1", "50", "2", "Recent Low Value"},
		},
	}
}

func staticLoader() segmentation.TableLoader {
	return tableFunc(func(ctx context.Context) (segmentation.Table, error) {
		return customerTable(), nil
	})
}

func newTestServer(t *testing.T, loader segmentation.TableLoader, opts ...segmentation.SnapshotOption) (*Server, *segmentation.Engine) {
	t.Helper()
	snap := segmentation.NewSnapshot(loader, segmentation.DefaultColumns(), opts...)
	engine := segmentation.NewEngine(snap, nil, segmentation.DefaultPlaybook())
	return NewServer(config.ServerConfig{AllowedOrigins: []string{"*"}}, engine, nil), engine
}

func loadedServer(t *testing.T) *Server {
	t.Helper()
	srv, engine := newTestServer(t, staticLoader())
	_, err := engine.Reload(context.Background())
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNotLoaded(t *testing.T) {
	srv, _ := newTestServer(t, staticLoader())

	for _, path := range []string{"/api/overview", "/api/segments", "/api/customers", "/api/customers/C1", "/api/version"} {
		rec := do(t, srv, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}

	// playbook does not depend on the snapshot
	rec := do(t, srv, http.MethodGet, "/api/playbook", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetOverview(t *testing.T) {
	srv := loadedServer(t)

	rec := do(t, srv, http.MethodGet, "/api/overview", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	ov := decode[segmentation.Overview](t, rec)
	assert.Equal(t, 5, ov.TotalCustomers)
	assert.Equal(t, 6650.0, ov.TotalRevenue)
	assert.Equal(t, 4, ov.SegmentCount)
}

func TestListSegments(t *testing.T) {
	srv := loadedServer(t)

	rec := do(t, srv, http.MethodGet, "/api/segments", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Segments []segmentation.SegmentAggregate `json:"segments"`
		Count    int                             `json:"count"`
	}](t, rec)
	assert.Equal(t, 4, body.Count)
	assert.Equal(t, "Big Spenders", body.Segments[0].SegmentName)
}

func TestGetSegment(t *testing.T) {
	srv := loadedServer(t)

	rec := do(t, srv, http.MethodGet, "/api/segments/Big%20Spenders", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	detail := decode[SegmentDetail](t, rec)
	assert.Equal(t, 1, detail.Aggregate.CustomerCount)
	require.NotNil(t, detail.Playbook)
	assert.Equal(t, "Big Spenders", detail.Playbook.Segment)

	rec = do(t, srv, http.MethodGet, "/api/segments/Dormant", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSegmentInsights(t *testing.T) {
	srv := loadedServer(t)

	rec := do(t, srv, http.MethodGet, "/api/segments/Loyal%20Customers/insights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Insights []segmentation.InsightStatement `json:"insights"`
	}](t, rec)
	assert.NotEmpty(t, body.Insights)

	rec = do(t, srv, http.MethodGet, "/api/segments/%20Big%20Spenders/insights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trimmed := decode[struct {
		Segment string `json:"segment"`
	}](t, rec)
	assert.Equal(t, "Big Spenders", trimmed.Segment)

	rec = do(t, srv, http.MethodGet, "/api/segments/Dormant/insights", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClustersAndReport(t *testing.T) {
	srv := loadedServer(t)

	rec := do(t, srv, http.MethodGet, "/api/clusters", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	clusters := decode[struct {
		Clusters []segmentation.ClusterAggregate `json:"clusters"`
	}](t, rec)
	require.Len(t, clusters.Clusters, 4)
	assert.Equal(t, 0, clusters.Clusters[0].ClusterID)

	rec = do(t, srv, http.MethodGet, "/api/clusters/profiles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"profiles":[]}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[struct {
		Segments []segmentation.SegmentReport `json:"segments"`
	}](t, rec)
	assert.Len(t, report.Segments, 4)

	rec = do(t, srv, http.MethodGet, "/api/playbook/strategy", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Churn Management")
}

func TestListCustomers(t *testing.T) {
	srv := loadedServer(t)

	tests := []struct {
		name    string
		query   string
		status  int
		wantIDs []string
	}{
		{"all", "", http.StatusOK, []string{"C1", "C2", "C3", "C4", "C5"}},
		{"segment", "?segment=Loyal+Customers", http.StatusOK, []string{"C1", "C2"}},
		{"segment list", "?segment=At-Risk,Big+Spenders", http.StatusOK, []string{"C3", "C4"}},
		{"segment none", "?segment=none", http.StatusOK, []string{}},
		{"cluster repeat", "?cluster=0&cluster=2", http.StatusOK, []string{"C4", "C5"}},
		{"recency max", "?recency_max=30", http.StatusOK, []string{"C1", "C2", "C5"}},
		{"monetary range", "?monetary_min=100&monetary_max=1000", http.StatusOK, []string{"C1", "C2", "C3"}},
		{"combined", "?segment=Loyal+Customers&recency_max=15", http.StatusOK, []string{"C1"}},
		{"bad cluster", "?cluster=x", http.StatusBadRequest, nil},
		{"bad number", "?recency_min=soon", http.StatusBadRequest, nil},
		{"inverted range", "?monetary_min=10&monetary_max=1", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, "/api/customers"+tt.query, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			page := decode[CustomerPage](t, rec)
			ids := []string{}
			for _, c := range page.Customers {
				ids = append(ids, c.CustomerID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, len(tt.wantIDs), page.Pagination.Total)
		})
	}
}

func TestListCustomers_Pagination(t *testing.T) {
	srv := loadedServer(t)

	rec := do(t, srv, http.MethodGet, "/api/customers?limit=2&page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	page := decode[CustomerPage](t, rec)
	require.Len(t, page.Customers, 2)
	assert.Equal(t, "C3", page.Customers[0].CustomerID)
	assert.Equal(t, PaginationMeta{Page: 2, Limit: 2, Total: 5, TotalPages: 3, HasMore: true}, page.Pagination)
	// aggregates cover the whole view, not the page
	assert.Len(t, page.Breakdown, 4)
}

func TestListCustomers_PageBeyondEnd(t *testing.T) {
	srv := loadedServer(t)

	for _, path := range []string{
		"/api/customers?limit=2&page=4",
		"/api/customers?limit=100&page=9223372036854775807",
	} {
		rec := do(t, srv, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)

		page := decode[CustomerPage](t, rec)
		assert.Empty(t, page.Customers, path)
		assert.Equal(t, 5, page.Pagination.Total, path)
		assert.False(t, page.Pagination.HasMore, path)
	}

	rec := do(t, srv, http.MethodPost, "/api/customers/query",
		[]byte(`{"conditions":[],"page":9223372036854775807,"limit":1000}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[CustomerPage](t, rec).Customers)
}

func TestQueryCustomers(t *testing.T) {
	srv := loadedServer(t)

	body := []byte(`{"conditions":[
		{"field":"segment","operator":"in","values_array":["Loyal Customers","At-Risk"]},
		{"field":"monetary","operator":"gte","value":"500"}
	]}`)
	rec := do(t, srv, http.MethodPost, "/api/customers/query", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	page := decode[CustomerPage](t, rec)
	require.Len(t, page.Customers, 2)
	assert.Equal(t, "C1", page.Customers[0].CustomerID)
	assert.Equal(t, "C2", page.Customers[1].CustomerID)
}

func TestQueryCustomers_Invalid(t *testing.T) {
	srv := loadedServer(t)

	rec := do(t, srv, http.MethodPost, "/api/customers/query", []byte(`{"conditions":[
		{"field":"segment","operator":"equals","value":"At-Risk"},
		{"field":"email","operator":"equals","value":"x"}
	]}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode[struct {
		Code    string   `json:"code"`
		Details []string `json:"details"`
	}](t, rec)
	assert.Equal(t, "invalid_conditions", body.Code)
	require.Len(t, body.Details, 1)
	assert.True(t, strings.HasPrefix(body.Details[0], "condition 2:"))

	rec = do(t, srv, http.MethodPost, "/api/customers/query", []byte(`{"filters":[]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCustomer(t *testing.T) {
	srv := loadedServer(t)

	rec := do(t, srv, http.MethodGet, "/api/customers/C2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	profile := decode[segmentation.CustomerProfile](t, rec)
	assert.Equal(t, "Loyal Customers", profile.Record.SegmentName)
	m, ok := profile.Comparison.Get(segmentation.MetricMonetary)
	require.True(t, ok)
	assert.Equal(t, 750.0, m.SegmentAvg)

	rec = do(t, srv, http.MethodGet, "/api/customers/C99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOperators(t *testing.T) {
	srv := loadedServer(t)

	rec := do(t, srv, http.MethodGet, "/api/customers/operators", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"between"`)
}

func TestReload(t *testing.T) {
	var calls atomic.Int32
	loader := tableFunc(func(ctx context.Context) (segmentation.Table, error) {
		if calls.Add(1) == 3 {
			return segmentation.Table{}, errors.New("bucket unavailable")
		}
		return customerTable(), nil
	})
	srv, engine := newTestServer(t, loader)
	_, err := engine.Reload(context.Background())
	require.NoError(t, err)
	first, err := engine.Version()
	require.NoError(t, err)

	rec := do(t, srv, http.MethodPost, "/api/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	second, err := engine.Version()
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	rec = do(t, srv, http.MethodPost, "/api/reload", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	current, err := engine.Version()
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)
}

func TestReload_InvalidTable(t *testing.T) {
	loader := tableFunc(func(ctx context.Context) (segmentation.Table, error) {
		table := customerTable()
		table.Rows[0][3] = "-5"
		return table, nil
	})
	srv, _ := newTestServer(t, loader)

	rec := do(t, srv, http.MethodPost, "/api/reload", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_table")
}

func TestReload_LockHeld(t *testing.T) {
	srv, _ := newTestServer(t, staticLoader(), segmentation.WithLocker(refusingLock{}))

	rec := do(t, srv, http.MethodPost, "/api/reload", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestExport(t *testing.T) {
	srv := loadedServer(t)

	rec := do(t, srv, http.MethodGet, "/api/export/customers?segment=Loyal+Customers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "customers.csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Equal(t, []string{
		"CustomerID,recency_days,frequency,monetary,Cluster,Segment_Name",
		"C1,10,5,1000,1,Loyal Customers",
		"C2,20,3,500,1,Loyal Customers",
	}, lines)

	rec = do(t, srv, http.MethodGet, "/api/export/segments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lines = strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 5)

	rec = do(t, srv, http.MethodGet, "/api/export/customers?cluster=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv := loadedServer(t)

	rec := do(t, srv, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
