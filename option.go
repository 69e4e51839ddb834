package shadowdb

import "github.com/Curzsu/ShadowDB/internal/mvcc"

// SyncMode controls when the page store's writeback is forced to disk.
// The write-ahead log itself is always fsynced on every Append
// regardless of SyncMode — that durability is load-bearing for
// recovery and is not a tunable. SyncMode only affects how eagerly
// evicted, dirty pages are forced to disk outside of the log's own
// guarantee.
type SyncMode int

const (
	// SyncEveryCommit forces a dirty page to disk as soon as it is
	// evicted from the cache. This is the default.
	SyncEveryCommit SyncMode = iota

	// SyncOff leaves dirty pages to the operating system's own
	// writeback, relying entirely on the write-ahead log for crash
	// durability. Use only for testing or bulk loads.
	SyncOff
)

// Options configures an Engine.
type Options struct {
	cacheSize          int
	pageStoreCacheSize int
	logger             Logger
	defaultIsolation   mvcc.IsolationLevel
	syncMode           SyncMode
}

// defaultOptions returns the engine's default configuration.
func defaultOptions() Options {
	return Options{
		cacheSize:          1024,
		pageStoreCacheSize: 256,
		logger:             DiscardLogger{},
		defaultIsolation:   mvcc.ReadCommitted,
		syncMode:           SyncEveryCommit,
	}
}

// Option configures an Engine using the functional options pattern.
type Option func(*Options)

// WithCacheSize sets the data-item manager's cache capacity.
func WithCacheSize(n int) Option {
	return func(o *Options) { o.cacheSize = n }
}

// WithPageStoreCacheSize sets the page store's cache capacity. Values
// below pagestore.MinCacheSize fail Open/Create with ErrMemTooSmall.
func WithPageStoreCacheSize(n int) Option {
	return func(o *Options) { o.pageStoreCacheSize = n }
}

// WithLogger installs l as the engine's logger, replacing the default
// DiscardLogger.
func WithLogger(l Logger) Option {
	return func(o *Options) { o.logger = l }
}

// WithDefaultIsolation sets the isolation level Begin uses when the
// caller doesn't specify one.
func WithDefaultIsolation(level IsolationLevel) Option {
	return func(o *Options) { o.defaultIsolation = level }
}

// WithSyncMode sets the page store's eviction-time durability mode.
func WithSyncMode(m SyncMode) Option {
	return func(o *Options) { o.syncMode = m }
}
