package segmentation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/segment-insights/internal/pkg/logger"
)

var (
	// ErrNotLoaded is returned before the first successful reload.
	ErrNotLoaded = errors.New("no customer snapshot loaded")
	// ErrReloadInProgress is returned when another reload holds the lock.
	ErrReloadInProgress = errors.New("snapshot reload already in progress")
)

// TableLoader produces the raw customer table.
type TableLoader interface {
	Load(ctx context.Context) (Table, error)
}

// ProfileLoader produces cluster display profiles.
type ProfileLoader interface {
	LoadProfiles(ctx context.Context) ([]ClusterProfile, error)
}

// Locker coordinates reloads across processes. distlock.DistLock satisfies it.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Version is one immutable loaded generation of the customer population.
type Version struct {
	ID        uuid.UUID `json:"id"`
	LoadedAt  time.Time `json:"loaded_at"`
	Customers int       `json:"customers"`

	Store    *Store           `json:"-"`
	Profiles []ClusterProfile `json:"-"`

	breakdownOnce sync.Once
	breakdown     []SegmentAggregate
}

// Breakdown returns the revenue breakdown of the version, computed once.
func (v *Version) Breakdown() []SegmentAggregate {
	v.breakdownOnce.Do(func() {
		v.breakdown = RevenueBreakdown(v.Store.view())
	})
	return v.breakdown
}

// ==========================================
// SNAPSHOT
// ==========================================

// Snapshot holds the current Version and swaps it atomically on reload.
// Readers always see a complete Version.
type Snapshot struct {
	tables   TableLoader
	profiles ProfileLoader
	cols     ColumnMap
	lock     Locker

	reloading sync.Mutex
	current   atomic.Pointer[Version]
	now       func() time.Time
}

// SnapshotOption customises a Snapshot.
type SnapshotOption func(*Snapshot)

// WithProfileLoader attaches a cluster profile source.
func WithProfileLoader(p ProfileLoader) SnapshotOption {
	return func(s *Snapshot) { s.profiles = p }
}

// WithLocker serialises reloads across processes.
func WithLocker(l Locker) SnapshotOption {
	return func(s *Snapshot) { s.lock = l }
}

// NewSnapshot creates an empty snapshot. Call Reload or Publish before use.
func NewSnapshot(tables TableLoader, cols ColumnMap, opts ...SnapshotOption) *Snapshot {
	s := &Snapshot{
		tables: tables,
		cols:   cols.WithDefaults(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the active version.
func (s *Snapshot) Current() (*Version, error) {
	v := s.current.Load()
	if v == nil {
		return nil, ErrNotLoaded
	}
	return v, nil
}

// Publish installs an already-built store as the current version.
func (s *Snapshot) Publish(store *Store, profiles []ClusterProfile) *Version {
	v := &Version{
		ID:        uuid.New(),
		LoadedAt:  s.now().UTC(),
		Customers: store.Len(),
		Store:     store,
		Profiles:  profiles,
	}
	s.current.Store(v)
	return v
}

// Reload loads the table and profiles, validates them and swaps in the new
// version. On any error the previous version stays current.
func (s *Snapshot) Reload(ctx context.Context) (*Version, error) {
	if s.tables == nil {
		return nil, errors.New("snapshot has no table loader")
	}
	if !s.reloading.TryLock() {
		return nil, ErrReloadInProgress
	}
	defer s.reloading.Unlock()

	if s.lock != nil {
		ok, err := s.lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire reload lock: %w", err)
		}
		if !ok {
			return nil, ErrReloadInProgress
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release reload lock failed", "error", err)
			}
		}()
	}

	start := s.now()
	table, err := s.tables.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load customer table: %w", err)
	}
	store, err := Load(table, s.cols)
	if err != nil {
		return nil, err
	}

	var profiles []ClusterProfile
	if s.profiles != nil {
		profiles, err = s.profiles.LoadProfiles(ctx)
		if err != nil {
			return nil, fmt.Errorf("load cluster profiles: %w", err)
		}
	}

	v := s.Publish(store, profiles)
	logger.Info("customer snapshot loaded",
		"version", v.ID,
		"customers", store.Len(),
		"segments", len(store.Segments()),
		"profiles", len(profiles),
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)
	return v, nil
}
