// Package store persists the facility table and an audit log of ranking calls.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/zonasi/internal/config"
	"github.com/sells-group/zonasi/internal/facility"
	"github.com/sells-group/zonasi/internal/geo"
	"github.com/sells-group/zonasi/internal/zonation"
)

// DefaultLogLimit caps ListRankLogs when no limit is given.
const DefaultLogLimit = 100

// RankLog records one ranking call.
type RankLog struct {
	ID        string    `json:"id" yaml:"id"`
	Query     geo.Point `json:"query" yaml:"query"`
	Model     string    `json:"model" yaml:"model"`
	RadiusKM  float64   `json:"radius_km" yaml:"radius_km"`
	TopK      int       `json:"top_k" yaml:"top_k"`
	InRange   int       `json:"in_range" yaml:"in_range"`
	Skipped   int       `json:"skipped" yaml:"skipped"`
	ResultIDs []string  `json:"result_ids" yaml:"result_ids"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// NewRankLog builds an audit entry for a ranking result.
func NewRankLog(res *zonation.Result) *RankLog {
	ids := make([]string, len(res.Ranked))
	for i, r := range res.Ranked {
		ids[i] = r.Facility.ID
	}
	return &RankLog{
		ID:        uuid.New().String(),
		Query:     res.Query,
		Model:     res.Model,
		RadiusKM:  res.Config.RadiusKM,
		TopK:      res.Config.TopK,
		InRange:   res.InRange,
		Skipped:   len(res.Skipped),
		ResultIDs: ids,
		CreatedAt: time.Now().UTC(),
	}
}

// FacilityStore defines the persistence interface for facilities and rank logs.
type FacilityStore interface {
	// Facilities
	ReplaceFacilities(ctx context.Context, facilities []facility.Facility) (int64, error)
	UpsertFacilities(ctx context.Context, facilities []facility.Facility) (int64, error)
	ListFacilities(ctx context.Context, filter facility.Filter) ([]facility.Facility, error)

	// Audit
	LogRank(ctx context.Context, entry *RankLog) error
	ListRankLogs(ctx context.Context, limit int) ([]RankLog, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (FacilityStore, error) {
	switch cfg.Driver {
	case "sqlite", "":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "zonasi.db"
		}
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			ConnectAttempts: cfg.ConnectAttempts,
			ConnectBackoff:  time.Duration(cfg.ConnectBackoffMS) * time.Millisecond,
		})
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultLogLimit
	}
	return limit
}
