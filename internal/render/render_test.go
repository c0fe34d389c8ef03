package render

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee-cs-bmsit/structsight/internal/analyzer"
	"github.com/ieee-cs-bmsit/structsight/internal/layout"
	"github.com/ieee-cs-bmsit/structsight/internal/session"
)

func packet() layout.Descriptor {
	return layout.Descriptor{
		Name:          "Packet",
		QualifiedName: "net::Packet",
		TotalSize:     24,
		Alignment:     8,
		Members: []layout.Member{
			{Name: "flag", Type: "char", Offset: 0, Size: 1, Alignment: 1},
			{Name: "length", Type: "uint64_t", Offset: 8, Size: 8, Alignment: 8},
			{Name: "kind", Type: "char", Offset: 16, Size: 1, Alignment: 1},
		},
		IsStandardLayout: true,
		UsefulSize:       17,
	}
}

func widget() layout.Descriptor {
	return layout.Descriptor{
		Name:          "Widget",
		QualifiedName: "Widget",
		TotalSize:     16,
		Alignment:     8,
		Members: []layout.Member{
			{Name: "id", Type: "int", Offset: 8, Size: 4, Alignment: 4},
			{Name: "mode", Type: "unsigned int", Offset: 12, Size: 4, Alignment: 4, IsBitfield: true, BitfieldWidth: 3},
		},
		VTable:        &layout.VTable{VirtualFunctions: []string{"draw", "~Widget"}},
		IsPolymorphic: true,
		UsefulSize:    16,
	}
}

func ring() layout.Descriptor {
	return layout.Descriptor{
		Name:          "Ring",
		QualifiedName: "ring::Ring",
		TotalSize:     68,
		Alignment:     4,
		Members: []layout.Member{
			{Name: "head", Type: "uint8_t[60]", Offset: 0, Size: 60, Alignment: 1},
			{Name: "value", Type: "int64_t", Offset: 60, Size: 8, Alignment: 4},
		},
		IsStandardLayout: true,
		UsefulSize:       68,
	}
}

func result() session.Result {
	var layouts []layout.Descriptor
	for _, d := range []layout.Descriptor{packet(), widget(), ring()} {
		layouts = append(layouts, analyzer.AnalyzeLayout(d, 8))
	}
	return session.Result{Success: true, Layouts: layouts, RunID: "0190c6d2-7a1e-7000-8000-000000000000"}
}

func TestTextGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, result(), Options{}))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "text", buf.Bytes())
}

func TestTextColor(t *testing.T) {
	var plain, colored bytes.Buffer
	require.NoError(t, Text(&plain, result(), Options{}))
	require.NoError(t, Text(&colored, result(), Options{Color: true}))

	assert.NotContains(t, plain.String(), "\x1b[")
	assert.Contains(t, colored.String(), "\x1b[")
	assert.Contains(t, colored.String(), "Packet")
}

func TestTextFailureAndEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, session.Result{ErrorMessage: "compilation failed: a.cpp:1: error"}, Options{}))
	assert.Equal(t, "analysis failed: compilation failed: a.cpp:1: error\n", buf.String())

	buf.Reset()
	require.NoError(t, Text(&buf, session.Result{Success: true}, Options{}))
	assert.Equal(t, "no records found\n", buf.String())
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, result()))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, true, doc["success"])
	assert.Equal(t, "0190c6d2-7a1e-7000-8000-000000000000", doc["runId"])

	layouts := doc["layouts"].([]any)
	require.Len(t, layouts, 3)

	first := layouts[0].(map[string]any)
	assert.Equal(t, "net::Packet", first["qualifiedName"])
	assert.Equal(t, float64(24), first["totalSize"])
	assert.Equal(t, float64(17), first["usefulSize"])
	assert.Equal(t, false, first["isPolymorphic"])

	padding := first["padding"].([]any)
	require.Len(t, padding, 2)
	assert.Equal(t, "tail", padding[1].(map[string]any)["kind"])

	opt := first["optimizations"].([]any)[0].(map[string]any)
	assert.Equal(t, "reorder", opt["kind"])
	assert.Equal(t, float64(8), opt["bytesSaved"])
	assert.Equal(t, []any{"length", "flag", "kind"}, opt["suggestedOrder"])

	second := layouts[1].(map[string]any)
	vt := second["vtable"].(map[string]any)
	assert.Equal(t, []any{"draw", "~Widget"}, vt["virtualFunctions"])
}

func TestHover(t *testing.T) {
	r := result()

	assert.Equal(t,
		"Packet (net::Packet): 24 bytes, alignment 8. Padding: 14 bytes (58.3%). Reordering saves 8 bytes.",
		Hover(r.Layouts[0]))
	assert.Equal(t,
		"Widget: 16 bytes, alignment 8, polymorphic. Padding: 0 bytes (0.0%).",
		Hover(r.Layouts[1]))
	assert.Equal(t,
		"Ring (ring::Ring): 68 bytes, alignment 4. Padding: 0 bytes (0.0%). Member 'value' spans multiple cache lines.",
		Hover(r.Layouts[2]))
}

func TestByteCount(t *testing.T) {
	assert.Equal(t, "1 byte", byteCount(1))
	assert.Equal(t, "0 bytes", byteCount(0))
	assert.Equal(t, "1,048,576 bytes", byteCount(1<<20))
}

func TestTableWideRunes(t *testing.T) {
	d := analyzer.AnalyzeLayout(layout.Descriptor{
		Name:      "W",
		TotalSize: 8,
		Alignment: 4,
		Members: []layout.Member{
			{Name: "名前", Type: "int", Offset: 0, Size: 4, Alignment: 4},
			{Name: "ab", Type: "int", Offset: 4, Size: 4, Alignment: 4},
		},
	}, 8)

	var b bytes.Buffer
	require.NoError(t, Text(&b, session.Result{Success: true, Layouts: []layout.Descriptor{d}}, Options{}))
	assert.Contains(t, b.String(), "  名前  int\n")
	assert.Contains(t, b.String(), "  ab    int\n")
}
