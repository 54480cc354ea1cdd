package source

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/ignite/segment-insights/internal/segmentation"
)

// CSVProfileSource reads cluster profiles from a CSV file with a cluster id
// column, a description column and an optional segment name column.
type CSVProfileSource struct {
	Path string
}

// LoadProfiles reads the file.
func (s *CSVProfileSource) LoadProfiles(ctx context.Context) ([]segmentation.ClusterProfile, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()

	table, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return ParseProfiles(table)
}

// ParseProfiles converts a profile table, sorted by cluster id.
func ParseProfiles(table segmentation.Table) ([]segmentation.ClusterProfile, error) {
	find := func(names ...string) int {
		for i, h := range table.Header {
			h = strings.ToLower(strings.TrimSpace(h))
			for _, n := range names {
				if h == n {
					return i
				}
			}
		}
		return -1
	}

	clusterCol := find("cluster", "cluster_id")
	descCol := find("description", "segment_description")
	segCol := find("segment_name", "segment")
	if clusterCol < 0 || descCol < 0 {
		return nil, &segmentation.SchemaError{Column: "cluster/description", Reason: "required column is missing"}
	}

	out := make([]segmentation.ClusterProfile, 0, len(table.Rows))
	for i, row := range table.Rows {
		if clusterCol >= len(row) || descCol >= len(row) {
			return nil, &segmentation.SchemaError{Row: i + 1, Column: "cluster/description", Reason: "row is too short"}
		}
		id, err := strconv.Atoi(strings.TrimSpace(row[clusterCol]))
		if err != nil {
			return nil, &segmentation.SchemaError{Row: i + 1, Column: table.Header[clusterCol], Reason: fmt.Sprintf("%q is not a cluster id", row[clusterCol])}
		}
		p := segmentation.ClusterProfile{ClusterID: id, Description: strings.TrimSpace(row[descCol])}
		if segCol >= 0 && segCol < len(row) {
			p.SegmentName = strings.TrimSpace(row[segCol])
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClusterID < out[j].ClusterID })
	return out, nil
}

// ==========================================
// DYNAMODB
// ==========================================

// DynamoProfileSource scans cluster profiles from a DynamoDB table whose
// items carry cluster_id, segment_name and description attributes.
type DynamoProfileSource struct {
	client dynamodb.ScanAPIClient
	table  string
}

// NewDynamoProfileSource creates a table-backed profile loader.
func NewDynamoProfileSource(client dynamodb.ScanAPIClient, table string) *DynamoProfileSource {
	return &DynamoProfileSource{client: client, table: table}
}

// NewDynamoClient builds a client, honouring a custom endpoint.
func NewDynamoClient(awsCfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// LoadProfiles scans every page of the table.
func (s *DynamoProfileSource) LoadProfiles(ctx context.Context) ([]segmentation.ClusterProfile, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.table),
	})

	var out []segmentation.ClusterProfile
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scanning DynamoDB %s: %w", s.table, err)
		}
		var batch []segmentation.ClusterProfile
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("decoding profiles: %w", err)
		}
		out = append(out, batch...)
	}

	for i := range out {
		out[i].SegmentName = strings.TrimSpace(out[i].SegmentName)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClusterID < out[j].ClusterID })
	return out, nil
}
