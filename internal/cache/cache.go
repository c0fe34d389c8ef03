// Package cache stores analysis results on disk keyed by everything that can
// change them, so re-analyzing an unchanged file skips the compiler.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/ieee-cs-bmsit/structsight/internal/extract"
	"github.com/ieee-cs-bmsit/structsight/internal/layout"
)

// SchemaVersion is mixed into every key and stored in every entry. Bump it
// when Entry or the analyzer output changes shape.
const SchemaVersion uint16 = 2

// DefaultTTL is how long an entry stays valid.
const DefaultTTL = 24 * time.Hour

// ErrMiss is returned by Get when no valid entry exists.
var ErrMiss = errors.New("cache miss")

// Key identifies one analysis request.
type Key [sha256.Size]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// KeyFor hashes the request fields that influence the analysis result.
func KeyFor(req extract.Request) Key {
	h := sha256.New()

	field := func(b []byte) {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(b)))
		h.Write(n[:])
		h.Write(b)
	}

	var schema [2]byte
	binary.LittleEndian.PutUint16(schema[:], SchemaVersion)
	h.Write(schema[:])

	field(req.Source)
	field([]byte(req.FilePath))
	field([]byte(req.StructName))
	field([]byte(req.Arch.String()))
	field([]byte(req.Compiler))
	field([]byte(strings.Join(req.Flags, "\x00")))

	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// Entry is the on-disk payload.
type Entry struct {
	Schema    uint16              `msgpack:"schema"`
	CreatedAt time.Time           `msgpack:"created"`
	Layouts   []layout.Descriptor `msgpack:"layouts"`
}

// Cache is a directory of msgpack entries. A nil *Cache is a valid, always
// missing cache. Safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
	ttl time.Duration
	now func() time.Time
}

// DefaultDir returns $XDG_CACHE_HOME/structsight, falling back to
// ~/.cache/structsight.
func DefaultDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "structsight"), nil
}

// Open returns a cache rooted at dir, creating it if needed. An empty dir
// selects DefaultDir and a non-positive ttl selects DefaultTTL.
func Open(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		dir = d
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir, ttl: ttl, now: time.Now}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *Cache) pathFor(key Key) string {
	s := key.String()
	return filepath.Join(c.dir, "results", s[:2], s+".mp")
}

// Get returns the layouts stored under key. Missing, expired and
// schema-mismatched entries return ErrMiss.
func (c *Cache) Get(key Key) ([]layout.Descriptor, error) {
	if c == nil {
		return nil, ErrMiss
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrMiss
		}
		return nil, err
	}

	var e Entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		Logger().Debug("discarding unreadable cache entry", zap.Stringer("key", key), zap.Error(err))
		return nil, ErrMiss
	}
	if e.Schema != SchemaVersion || c.now().Sub(e.CreatedAt) > c.ttl {
		return nil, ErrMiss
	}
	return e.Layouts, nil
}

// Put stores layouts under key, replacing any previous entry atomically.
func (c *Cache) Put(key Key, layouts []layout.Descriptor) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	enc := msgpack.NewEncoder(f)
	if err = enc.Encode(&Entry{
		Schema:    SchemaVersion,
		CreatedAt: c.now(),
		Layouts:   layouts,
	}); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Clean removes every entry.
func (c *Cache) Clean() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := filepath.Join(c.dir, "results.old-"+c.now().Format("20060102150405.000000000"))
	if err := os.Rename(filepath.Join(c.dir, "results"), old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}
