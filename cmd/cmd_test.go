package main

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terracol/terracol/internal/catalog"
	"github.com/terracol/terracol/internal/config"
	"github.com/terracol/terracol/internal/journal"
	"github.com/terracol/terracol/internal/model"
)

func TestShortID(t *testing.T) {
	assert.Equal(t, "0123abcd", shortID("0123abcd-ffff-ffff"))
	assert.Equal(t, "short", shortID("short"))
}

func TestFormatRegions(t *testing.T) {
	var buf bytes.Buffer
	formatRegions(&buf, []catalog.Region{
		{Name: "netherlands", South: 50, West: 3, North: 54, East: 8},
		{Name: "global", South: -82, West: -180, North: 82, East: 180},
	})

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "netherlands")
	assert.Contains(t, out, "50N..54N 3E..8E")
	assert.Contains(t, out, "20")
	// Southern and western bounds carry their own hemisphere letters.
	assert.Contains(t, out, "82S..82N 180W..180E")
}

func TestFormatRuns(t *testing.T) {
	var buf bytes.Buffer
	finished := time.Now()
	formatRuns(&buf, []journal.Run{
		{
			ID: "aaaabbbb-cccc", Region: "netherlands", Tiles: 20,
			Converted: 18, Failed: 2, Rows: 12345, Status: "failed",
			Started: time.Now().Add(-time.Hour), Finished: &finished,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "aaaabbbb")
	assert.Contains(t, out, "netherlands")
	assert.Contains(t, out, "12345")
	assert.NotContains(t, out, "aaaabbbb-cccc")
}

func TestTileStateFromDisk(t *testing.T) {
	rawDir := t.TempDir()
	outDir := t.TempDir()
	cfg = &config.Config{RawDir: rawDir, OutDir: outDir}
	cfg.Download.Verify = "none"
	t.Cleanup(func() { cfg = nil })

	tile := model.NewTile(52, 4, "https://example.com")
	assert.Equal(t, model.TileStatePending, tileState(tile))

	// A non-empty raw file counts as downloaded under verify=none.
	require.NoError(t, os.WriteFile(tile.RawPath(rawDir), []byte("xx"), 0644))
	assert.Equal(t, model.TileStateDownloaded, tileState(tile))
}

func TestFormatStatus(t *testing.T) {
	rawDir := t.TempDir()
	cfg = &config.Config{RawDir: rawDir, OutDir: t.TempDir()}
	cfg.Download.Verify = "none"
	t.Cleanup(func() { cfg = nil })

	tiles := []model.Tile{
		model.NewTile(52, 4, "https://example.com"),
		model.NewTile(52, 5, "https://example.com"),
	}
	require.NoError(t, os.WriteFile(tiles[0].RawPath(rawDir), []byte("xx"), 0644))

	var buf bytes.Buffer
	formatStatus(&buf, "netherlands", tiles, true)

	out := buf.String()
	assert.Contains(t, out, "N052E004")
	assert.Contains(t, out, "downloaded")
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "tiles")
}

func TestRegisteredCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"convert", "fetch", "status", "regions", "runs"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestConvertRejectsInvalidConfig(t *testing.T) {
	cfg = &config.Config{}
	t.Cleanup(func() { cfg = nil })

	err := runRegion(t.Context(), "netherlands", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw_dir is required")
}
