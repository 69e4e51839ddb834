package pagestore

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/Curzsu/ShadowDB/internal/cache"
	"github.com/Curzsu/ShadowDB/internal/xerrors"
)

// MinCacheSize is the minimum page-cache capacity the store will
// accept; below it, Open/Create fail with ErrMemTooSmall.
const MinCacheSize = 10

// Store is the page file (<db>.db), backed by a reference-counted
// page cache (C1). It implements the cache's load and evict hooks.
type Store struct {
	fileMu sync.Mutex // guards file I/O ordering alongside the page count
	file   *os.File
	count  atomic.Uint32 // highest allocated page number

	cache       *cache.Cache
	syncOnEvict bool
}

// SetSyncOnEvict controls whether a dirty page's writeback at eviction
// is forced to disk immediately (fsync) or left to the operating
// system's own writeback, relying on the write-ahead log for crash
// durability in the meantime. Off by default.
func (s *Store) SetSyncOnEvict(on bool) { s.syncOnEvict = on }

func open(path string, cacheSize int, create bool) (*Store, error) {
	if cacheSize < MinCacheSize {
		return nil, xerrors.ErrMemTooSmall
	}

	flags := os.O_RDWR
	if create {
		if _, err := os.Stat(path); err == nil {
			return nil, xerrors.ErrFileExists
		}
		flags |= os.O_CREATE | os.O_EXCL
	} else if _, err := os.Stat(path); err != nil {
		return nil, xerrors.ErrFileNotExists
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pagestore: stat: %w", err)
	}

	s := &Store{file: f}
	s.count.Store(uint32(info.Size() / Size))
	s.cache = cache.New(cacheSize, s.load, s.evict)
	return s, nil
}

// Create initializes a new, empty page file.
func Create(path string, cacheSize int) (*Store, error) {
	return open(path, cacheSize, true)
}

// Open opens an existing page file.
func Open(path string, cacheSize int) (*Store, error) {
	return open(path, cacheSize, false)
}

func (s *Store) load(key uint64) (any, error) {
	pgno := PageNo(key)
	p := &Page{No: pgno}

	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	off := int64(pgno-1) * Size
	if _, err := s.file.ReadAt(p.Data[:], off); err != nil {
		return nil, fmt.Errorf("pagestore: read page %d: %w", pgno, err)
	}
	return p, nil
}

func (s *Store) evict(key uint64, resource any) {
	p := resource.(*Page)
	if p.Dirty {
		_ = s.flushLocked(p)
		if s.syncOnEvict {
			_ = s.file.Sync()
		}
		p.Dirty = false
	}
}

func (s *Store) flushLocked(p *Page) error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	off := int64(p.No-1) * Size
	if _, err := s.file.WriteAt(p.Data[:], off); err != nil {
		return fmt.Errorf("pagestore: write page %d: %w", p.No, err)
	}
	return nil
}

// Flush seeks, writes, and forces a single page to disk.
func (s *Store) Flush(p *Page) error {
	if err := s.flushLocked(p); err != nil {
		return err
	}
	return s.file.Sync()
}

// SetCacheHooks installs observability hooks on the store's page
// cache. See cache.Hooks.
func (s *Store) SetCacheHooks(h cache.Hooks) { s.cache.SetHooks(h) }

// Acquire returns the page numbered pgno, loading it from disk if
// necessary. The caller must call Release exactly once per Acquire.
func (s *Store) Acquire(pgno PageNo) (*Page, error) {
	res, err := s.cache.Acquire(uint64(pgno))
	if err != nil {
		return nil, err
	}
	return res.(*Page), nil
}

// Release drops the caller's hold on pgno, flushing and evicting it if
// no one else holds it.
func (s *Store) Release(pgno PageNo) {
	s.cache.Release(uint64(pgno))
}

// NewPage allocates a fresh page number, synchronously writes init as
// its body, and returns the page number. The page is not cached; the
// caller typically re-Acquires it through the cache.
func (s *Store) NewPage(init [Size]byte) (PageNo, error) {
	pgno := PageNo(s.count.Add(1))

	s.fileMu.Lock()
	off := int64(pgno-1) * Size
	_, err := s.file.WriteAt(init[:], off)
	s.fileMu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("pagestore: write new page %d: %w", pgno, err)
	}
	if err := s.file.Sync(); err != nil {
		return 0, fmt.Errorf("pagestore: sync new page %d: %w", pgno, err)
	}
	return pgno, nil
}

// PageCount returns the highest allocated page number.
func (s *Store) PageCount() PageNo {
	return PageNo(s.count.Load())
}

// RebuildIndex repopulates idx from every page's own live FSO value.
// Called once on Open, since the free-space index itself is never
// persisted: without this, a reopened database would never reuse
// space in partially-filled pages and would allocate a fresh page for
// every insert until the process had re-Added enough pages on its own.
func (s *Store) RebuildIndex(idx *Index) error {
	for pgno := PageNo(1); pgno <= s.PageCount(); pgno++ {
		page, err := s.Acquire(pgno)
		if err != nil {
			return fmt.Errorf("pagestore: rebuild index: acquire page %d: %w", pgno, err)
		}
		page.Lock()
		free := FreeSpace(page)
		page.Unlock()
		s.Release(pgno)

		idx.Add(pgno, free)
	}
	return nil
}

// TruncateTo discards all pages beyond maxPgno and resets the page
// counter. Recovery does not call it: every allocated page is kept.
func (s *Store) TruncateTo(maxPgno PageNo) error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	if err := s.file.Truncate(int64(maxPgno) * Size); err != nil {
		return fmt.Errorf("pagestore: truncate: %w", err)
	}
	s.count.Store(uint32(maxPgno))
	return nil
}

// Close evicts (flushing dirty pages) and closes the underlying file.
func (s *Store) Close() error {
	s.cache.Close()
	return s.file.Close()
}
