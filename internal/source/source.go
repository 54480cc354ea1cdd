// Package source loads the segmented customer table and cluster profiles
// from local files, S3, SQL databases or an HTTP endpoint.
package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/ignite/segment-insights/internal/config"
	"github.com/ignite/segment-insights/internal/segmentation"
)

// Sources bundles the configured loaders.
type Sources struct {
	Table    segmentation.TableLoader
	Profiles segmentation.ProfileLoader // nil when profiles are disabled
	DB       *sql.DB                    // set for SQL sources
	Kind     string
}

// Close releases the database handle, if any.
func (s *Sources) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// New builds the table and profile loaders described by cfg.
func New(ctx context.Context, cfg *config.Config) (*Sources, error) {
	out := &Sources{Kind: cfg.Source.Type}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return aws.Config{}, err
		}
		awsCfg = &c
		return c, nil
	}

	src := cfg.Source
	switch src.Type {
	case config.SourceCSV:
		out.Table = NewCSVSource(src.Path)
	case config.SourceHTTP:
		out.Table = NewHTTPSource(src.URL, nil)
	case config.SourceS3:
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		out.Table = NewS3Source(NewS3Client(c, cfg.AWS.Endpoint), src.Bucket, src.Key)
	case config.SourcePostgres, config.SourceSQLite, config.SourceSnowflake:
		db, err := openSQL(ctx, cfg)
		if err != nil {
			return nil, err
		}
		out.DB = db
		out.Table = NewSQLSource(db, src.Query)
	default:
		return nil, fmt.Errorf("unknown source type %q", src.Type)
	}

	switch cfg.Profiles.Type {
	case config.ProfilesNone, "":
	case config.ProfilesCSV:
		out.Profiles = &CSVProfileSource{Path: cfg.Profiles.Path}
	case config.ProfilesDynamoDB:
		c, err := loadAWS()
		if err != nil {
			out.Close()
			return nil, err
		}
		out.Profiles = NewDynamoProfileSource(NewDynamoClient(c, cfg.AWS.Endpoint), cfg.Profiles.Table)
	default:
		out.Close()
		return nil, fmt.Errorf("unknown profiles type %q", cfg.Profiles.Type)
	}

	return out, nil
}

func openSQL(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	switch cfg.Source.Type {
	case config.SourcePostgres:
		return OpenDB(ctx, "postgres", cfg.Source.DSN)
	case config.SourceSQLite:
		dsn := cfg.Source.DSN
		if dsn == "" {
			dsn = SQLiteDSN(cfg.Source.Path)
		}
		return OpenDB(ctx, "sqlite", dsn)
	default:
		dsn, err := SnowflakeDSN(cfg.Snowflake)
		if err != nil {
			return nil, err
		}
		return OpenDB(ctx, "snowflake", dsn)
	}
}
