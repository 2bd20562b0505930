package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(gen int64, preset, frame string, width int) MapKey {
	return MapKey{Generation: gen, Preset: preset, Frame: frame, Width: width}
}

func TestRenderCache_GetPut(t *testing.T) {
	c := NewRenderCache(10, time.Minute)
	_, ok := c.Get(key(1, "usa-counties", "1990", 320))
	assert.False(t, ok)

	c.Put(key(1, "usa-counties", "1990", 320), Rendered{SVG: []byte("<svg/>"), FooterTop: 290})
	got, ok := c.Get(key(1, "usa-counties", "1990", 320))
	require.True(t, ok)
	assert.Equal(t, "<svg/>", string(got.SVG))
	assert.Equal(t, 290, got.FooterTop)

	_, ok = c.Get(key(1, "usa-counties", "1990", 321))
	assert.False(t, ok, "width is part of the key")
}

func TestRenderCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewRenderCache(2, time.Minute)
	c.Put(key(1, "p", "a", 1), Rendered{})
	c.Put(key(1, "p", "b", 1), Rendered{})
	_, _ = c.Get(key(1, "p", "a", 1))
	c.Put(key(1, "p", "c", 1), Rendered{})

	_, ok := c.Get(key(1, "p", "b", 1))
	assert.False(t, ok)
	_, ok = c.Get(key(1, "p", "a", 1))
	assert.True(t, ok)
	_, ok = c.Get(key(1, "p", "c", 1))
	assert.True(t, ok)
}

func TestRenderCache_TTL(t *testing.T) {
	c := NewRenderCache(10, time.Millisecond)
	c.Put(key(1, "p", "a", 1), Rendered{})
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(key(1, "p", "a", 1))
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestRenderCache_Generations(t *testing.T) {
	c := NewRenderCache(10, time.Minute)
	c.Put(key(1, "p", "1990", 320), Rendered{SVG: []byte("old")})

	assert.Equal(t, 1, c.Advance(2))
	assert.Equal(t, 0, c.Stats().Entries)
	assert.Equal(t, 0, c.Advance(1), "going backwards is ignored")
	assert.Equal(t, int64(2), c.Stats().Generation)

	// A render of the old dataset finishing after the reload is dropped.
	c.Put(key(1, "p", "1990", 320), Rendered{SVG: []byte("old")})
	assert.Equal(t, 0, c.Stats().Entries)

	c.Put(key(2, "p", "1990", 320), Rendered{SVG: []byte("new")})
	c.Put(key(3, "p", "2015", 320), Rendered{SVG: []byte("newer")})
	_, ok := c.Get(key(2, "p", "1990", 320))
	assert.False(t, ok, "a newer generation evicts older entries")
	got, ok := c.Get(key(3, "p", "2015", 320))
	require.True(t, ok)
	assert.Equal(t, "newer", string(got.SVG))
}

func TestRenderCache_Invalidate(t *testing.T) {
	c := NewRenderCache(10, time.Minute)
	c.Put(key(1, "usa-counties", "1990", 320), Rendered{})
	c.Put(key(1, "usa-counties", "2015", 320), Rendered{})
	c.Put(key(1, "usa-counties-national", "1990", 320), Rendered{})

	assert.Equal(t, 2, c.InvalidatePreset("usa-counties"))
	_, ok := c.Get(key(1, "usa-counties", "1990", 320))
	assert.False(t, ok)
	_, ok = c.Get(key(1, "usa-counties-national", "1990", 320))
	assert.True(t, ok)

	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestRenderCache_Disabled(t *testing.T) {
	c := NewRenderCache(0, time.Minute)
	c.Put(key(1, "p", "a", 1), Rendered{})
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestRenderCache_Stats(t *testing.T) {
	c := NewRenderCache(5, time.Minute)
	c.Put(key(1, "p", "a", 1), Rendered{})
	c.Get(key(1, "p", "a", 1))
	c.Get(key(1, "p", "a", 1))
	c.Get(key(1, "p", "x", 1))

	s := c.Stats()
	assert.Equal(t, 1, s.Entries)
	assert.Equal(t, 5, s.MaxEntries)
	assert.Equal(t, int64(1), s.Generation)
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 2.0/3, s.HitRate, 1e-9)
}
