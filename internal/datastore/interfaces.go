// Package datastore persists the detection history.
package datastore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/gardenlab/pestnet-go/internal/conf"
	"github.com/gardenlab/pestnet-go/internal/errors"
	"github.com/gardenlab/pestnet-go/internal/observability/metrics"
)

// Paging limits for List.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

const (
	statsCacheKey = "stats"
	statsTTL      = 30 * time.Second
)

// Interface is the detection history used by the HTTP layer.
type Interface interface {
	Open() error
	Save(ctx context.Context, d *Detection) error
	Get(ctx context.Context, id uint) (*Detection, error)
	// List returns one page, newest first, and the total row count.
	List(ctx context.Context, page, limit int) ([]Detection, int64, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Metrics is what the datastore reports about itself.
type Metrics interface {
	metrics.Recorder
	RecordCacheLookup(cache string, hit bool)
}

type noopMetrics struct{ metrics.NoopRecorder }

func (noopMetrics) RecordCacheLookup(string, bool) {}

// DataStore implements the queries on top of a GORM connection. The
// concrete stores only differ in how they open it.
type DataStore struct {
	DB      *gorm.DB
	stats   *statsMemo
	metrics Metrics
}

// statsMemo caches Stats. A result computed before an invalidation is never
// stored: set only succeeds when the generation read by get is still current.
type statsMemo struct {
	mu    sync.Mutex
	gen   uint64
	cache *cache.Cache
}

func newStatsMemo() *statsMemo {
	// No janitor: expired entries are never returned and there is a single key.
	return &statsMemo{cache: cache.New(statsTTL, 0)}
}

func (m *statsMemo) get() (*Stats, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.cache.Get(statsCacheKey); ok {
		return v.(*Stats), m.gen, true
	}
	return nil, m.gen, false
}

func (m *statsMemo) set(gen uint64, s *Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.gen {
		m.cache.SetDefault(statsCacheKey, s)
	}
}

func (m *statsMemo) invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.cache.Delete(statsCacheKey)
}

// Option configures a store.
type Option func(*DataStore)

// WithMetrics attaches datastore metrics.
func WithMetrics(m Metrics) Option {
	return func(ds *DataStore) {
		if m != nil {
			ds.metrics = m
		}
	}
}

func newDataStore(opts ...Option) DataStore {
	ds := DataStore{
		stats:   newStatsMemo(),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(&ds)
	}
	return ds
}

// New returns the store selected by settings. It is not opened yet.
func New(settings *conf.Settings, opts ...Option) (Interface, error) {
	switch settings.Database.Type {
	case "sqlite":
		return &SQLiteStore{DataStore: newDataStore(opts...), Path: settings.Database.Path, Debug: settings.Debug}, nil
	case "mysql":
		return &MySQLStore{DataStore: newDataStore(opts...), DSN: settings.Database.DSN, Debug: settings.Debug}, nil
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Database.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// Save inserts d, assigning its ID. Lock contention is retried briefly.
func (ds *DataStore) Save(ctx context.Context, d *Detection) error {
	if ds.DB == nil {
		return errNotOpen()
	}
	start := time.Now()
	err := withRetry(ctx, func() error {
		return ds.DB.WithContext(ctx).Create(d).Error
	})
	ds.metrics.RecordDuration("save_detection", time.Since(start).Seconds())
	if err != nil {
		ds.metrics.RecordOperation("save_detection", "error")
		ds.metrics.RecordError("save_detection", "database")
		return dbError("save_detection", err).Context("pest", d.PestName).Build()
	}
	ds.metrics.RecordOperation("save_detection", "success")
	ds.stats.invalidate()
	return nil
}

// Get returns the detection with id, or a not-found error.
func (ds *DataStore) Get(ctx context.Context, id uint) (*Detection, error) {
	if ds.DB == nil {
		return nil, errNotOpen()
	}
	var d Detection
	if err := ds.DB.WithContext(ctx).First(&d, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(fmt.Errorf("detection %d not found", id)).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		ds.metrics.RecordError("get_detection", "database")
		return nil, dbError("get_detection", err).Context("id", id).Build()
	}
	ds.metrics.RecordOperation("get_detection", "success")
	return &d, nil
}

// List clamps page to >= 1 and limit to [1, MaxPageSize], using DefaultPageSize for zero.
func (ds *DataStore) List(ctx context.Context, page, limit int) ([]Detection, int64, error) {
	if ds.DB == nil {
		return nil, 0, errNotOpen()
	}
	page, limit = NormalizePage(page, limit)

	var total int64
	db := ds.DB.WithContext(ctx)
	if err := db.Model(&Detection{}).Count(&total).Error; err != nil {
		ds.metrics.RecordError("list_detections", "database")
		return nil, 0, dbError("list_detections", err).Build()
	}

	detections := []Detection{}
	err := db.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&detections).Error
	if err != nil {
		ds.metrics.RecordError("list_detections", "database")
		return nil, 0, dbError("list_detections", err).Build()
	}
	ds.metrics.RecordOperation("list_detections", "success")
	return detections, total, nil
}

// NormalizePage applies the paging defaults and limits used by List.
func NormalizePage(page, limit int) (normalizedPage, normalizedLimit int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	return page, limit
}

// Stats returns per-pest counts, cached for statsTTL or until the next Save.
func (ds *DataStore) Stats(ctx context.Context) (*Stats, error) {
	if ds.DB == nil {
		return nil, errNotOpen()
	}
	cached, gen, ok := ds.stats.get()
	if ok {
		ds.metrics.RecordCacheLookup("stats", true)
		return cached, nil
	}
	ds.metrics.RecordCacheLookup("stats", false)

	stats := &Stats{Pests: []PestCount{}, GeneratedAt: time.Now().UTC()}
	err := ds.DB.WithContext(ctx).Model(&Detection{}).
		Select("pest_name, COUNT(*) AS count, AVG(confidence) AS average_confidence").
		Group("pest_name").
		Order("count DESC").Order("pest_name ASC").
		Scan(&stats.Pests).Error
	if err != nil {
		ds.metrics.RecordError("detection_stats", "database")
		return nil, dbError("detection_stats", err).Build()
	}
	for _, p := range stats.Pests {
		stats.Total += p.Count
	}

	ds.stats.set(gen, stats)
	return stats, nil
}

// Close releases the connection pool.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
