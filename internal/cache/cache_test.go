package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee-cs-bmsit/structsight/internal/analyzer"
	"github.com/ieee-cs-bmsit/structsight/internal/extract"
	"github.com/ieee-cs-bmsit/structsight/internal/layout"
)

func sample() []layout.Descriptor {
	d := layout.Descriptor{
		Name:          "Sample",
		QualifiedName: "pkg.Sample",
		TotalSize:     24,
		Alignment:     8,
		Members: []layout.Member{
			{Name: "a", Type: "char", Offset: 0, Size: 1, Alignment: 1},
			{Name: "b", Type: "double", Offset: 8, Size: 8, Alignment: 8},
			{Name: "c", Type: "char", Offset: 16, Size: 1, Alignment: 1},
		},
		IsStandardLayout: true,
		UsefulSize:       17,
	}
	return []layout.Descriptor{analyzer.AnalyzeLayout(d, 8)}
}

func openAt(t *testing.T, now time.Time) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), time.Hour)
	require.NoError(t, err)
	c.now = func() time.Time { return now }
	return c
}

func TestPutGet(t *testing.T) {
	c := openAt(t, time.Unix(1_700_000_000, 0))
	key := KeyFor(extract.Request{Source: []byte("struct S {};"), FilePath: "s.cpp"})

	_, err := c.Get(key)
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Put(key, sample()))

	got, err := c.Get(key)
	require.NoError(t, err)
	require.Len(t, got, 1)

	d := got[0]
	assert.Equal(t, "pkg.Sample", d.QualifiedName)
	assert.Equal(t, uint64(24), d.TotalSize)
	assert.Equal(t, []string{"a", "b", "c"}, d.MemberNames())
	require.Len(t, d.Padding, 2)
	assert.Equal(t, layout.TailPadding, d.Padding[1].Kind)
	require.Len(t, d.Optimizations, 1)
	assert.Equal(t, layout.Reorder, d.Optimizations[0].Kind)
	assert.Equal(t, []string{"b", "a", "c"}, d.Optimizations[0].SuggestedOrder)
	assert.Equal(t, uint64(8), d.Optimizations[0].BytesSaved)
}

func TestExpiry(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	c := openAt(t, start)
	key := KeyFor(extract.Request{FilePath: "a.go"})
	require.NoError(t, c.Put(key, sample()))

	c.now = func() time.Time { return start.Add(59 * time.Minute) }
	_, err := c.Get(key)
	require.NoError(t, err)

	c.now = func() time.Time { return start.Add(61 * time.Minute) }
	_, err = c.Get(key)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCorruptEntryIsMiss(t *testing.T) {
	c := openAt(t, time.Now())
	key := KeyFor(extract.Request{FilePath: "a.go"})

	p := c.pathFor(key)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte{0xc1, 0x00}, 0o644))

	_, err := c.Get(key)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestClean(t *testing.T) {
	c := openAt(t, time.Now())
	require.NoError(t, c.Clean(), "cleaning an empty cache")

	k1 := KeyFor(extract.Request{FilePath: "a.go"})
	k2 := KeyFor(extract.Request{FilePath: "b.go"})
	require.NoError(t, c.Put(k1, sample()))
	require.NoError(t, c.Put(k2, sample()))

	require.NoError(t, c.Clean())

	_, err := c.Get(k1)
	assert.ErrorIs(t, err, ErrMiss)
	_, err = c.Get(k2)
	assert.ErrorIs(t, err, ErrMiss)

	entries, err := os.ReadDir(c.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNilCache(t *testing.T) {
	var c *Cache
	key := KeyFor(extract.Request{})

	_, err := c.Get(key)
	assert.ErrorIs(t, err, ErrMiss)
	assert.NoError(t, c.Put(key, sample()))
	assert.NoError(t, c.Clean())
	assert.Empty(t, c.Dir())
}

func TestKeyFor(t *testing.T) {
	base := extract.Request{
		Source:     []byte("struct S { int x; };"),
		FilePath:   "s.cpp",
		StructName: "S",
		Arch:       layout.X64,
		Compiler:   layout.Clang,
		Flags:      []string{"-O2"},
	}
	assert.Equal(t, KeyFor(base), KeyFor(base), "deterministic")

	variants := []func(r *extract.Request){
		func(r *extract.Request) { r.Source = []byte("struct S { long x; };") },
		func(r *extract.Request) { r.FilePath = "t.cpp" },
		func(r *extract.Request) { r.StructName = "" },
		func(r *extract.Request) { r.Arch = layout.X86 },
		func(r *extract.Request) { r.Compiler = layout.GCC },
		func(r *extract.Request) { r.Flags = []string{"-O2", "-DX"} },
		func(r *extract.Request) { r.Flags = []string{"-O", "2"} },
	}
	seen := map[Key]bool{KeyFor(base): true}
	for i, mutate := range variants {
		r := base
		mutate(&r)
		k := KeyFor(r)
		assert.False(t, seen[k], "variant %d collides", i)
		seen[k] = true
	}
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	dir, err := DefaultDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/tmp/xdg/structsight"), dir)
}
