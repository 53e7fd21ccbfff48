package app

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/subtractor-go/config"
	"github.com/soocke/subtractor-go/domain/batch"
	"github.com/soocke/subtractor-go/domain/roi"
	"github.com/soocke/subtractor-go/domain/stack"
	"github.com/soocke/subtractor-go/domain/subtract"
)

// writeStack stores n 32x32 frames; odd frames carry a bright block in the
// top-left region.
func writeStack(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		img := image.NewGray(image.Rect(0, 0, 32, 32))
		for p := range img.Pix {
			img.Pix[p] = 90
		}
		if i%2 == 1 {
			for y := 2; y < 12; y++ {
				for x := 2; x < 12; x++ {
					img.SetGray(x, y, color.Gray{Y: 200})
				}
			}
		}
		require.NoError(t, imaging.Save(img, filepath.Join(dir, fmt.Sprintf("frame_%03d.tif", i))))
	}
	return dir
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Workers = 2
	cfg.TickMS = 5
	return cfg
}

func writeGrid(t *testing.T, dir string) {
	t.Helper()
	g := &roi.Grid{Rows: 1, Cols: 2, X: 2, Y: 2, XInterval: 16, Width: 10, Height: 10}
	require.NoError(t, g.Save(filepath.Join(dir, roi.DefaultFileName)))
}

func TestBuildContainer_DefaultGridIsSaved(t *testing.T) {
	dir := writeStack(t, 3)
	c, err := BuildContainer(testConfig(), nil, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Frames.Len())
	assert.Equal(t, 48, c.Grid.RegionCount())

	saved, err := roi.Load(filepath.Join(dir, roi.DefaultFileName))
	require.NoError(t, err)
	assert.True(t, roi.DefaultGrid().Equal(saved))
}

func TestBuildContainer_MalformedGridFallsBack(t *testing.T) {
	dir := writeStack(t, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, roi.DefaultFileName), []byte("{"), 0o644))
	c, err := BuildContainer(testConfig(), nil, dir)
	require.NoError(t, err)
	assert.True(t, roi.DefaultGrid().Equal(c.Grid))
}

func TestBuildContainer_NoFrames(t *testing.T) {
	_, err := BuildContainer(testConfig(), nil, t.TempDir())
	require.ErrorIs(t, err, stack.ErrNoFramesFound)
}

func TestRun_PreviewAndBatch(t *testing.T) {
	dir := writeStack(t, 5)
	writeGrid(t, dir)
	cfg := testConfig()
	cfg.SQLiteFile = "runs.db"
	c, err := BuildContainer(cfg, nil, dir)
	require.NoError(t, err)

	preview := filepath.Join(t.TempDir(), "preview.png")
	err = c.Run(context.Background(), Options{
		PreviewPath: preview,
		PreviewPos:  1,
		Params:      batch.Params{Start: 1, End: 4, Step: 1, Threshold: 1},
	})
	require.NoError(t, err)

	img, err := imaging.Open(preview)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 32), img.Bounds())

	raw, err := os.ReadFile(filepath.Join(dir, "Area.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Area,Area", lines[0])
	for i, row := range lines[1:] {
		cols := strings.Split(row, ",")
		require.Len(t, cols, 2)
		// Pairs ending on a bright frame darken the block below the level;
		// pairs ending on a plain frame push it above.
		if i%2 == 0 {
			assert.NotEqual(t, "0", cols[0], "row %d", i)
		} else {
			assert.Equal(t, "0", cols[0], "row %d", i)
		}
		assert.Equal(t, "0", cols[1], "nothing changes in the second region")
	}

	_, err = os.Stat(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	assert.Equal(t, batch.StateCompleted, c.View.Status().State)
	assert.False(t, c.Batch.Active())
}

func TestRun_FailedBatchReturnsError(t *testing.T) {
	dir := writeStack(t, 3)
	// An undecodable frame sorted into the middle of the stack.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_001b.tif"), []byte("not a tiff"), 0o644))
	c, err := BuildContainer(testConfig(), nil, dir)
	require.NoError(t, err)

	err = c.Run(context.Background(), Options{Params: batch.Params{Start: 1, End: 3, Step: 1}})
	require.ErrorIs(t, err, subtract.ErrDecode)
	assert.Equal(t, batch.StateFailed, c.View.Status().State)
}

func TestRun_PreviewScaledWithoutBatch(t *testing.T) {
	dir := writeStack(t, 3)
	c, err := BuildContainer(testConfig(), nil, dir)
	require.NoError(t, err)

	preview := filepath.Join(t.TempDir(), "small.png")
	require.NoError(t, c.Run(context.Background(), Options{PreviewPath: preview, PreviewPos: 1, PreviewMax: 16, SkipBatch: true}))

	img, err := imaging.Open(preview)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())
	_, err = os.Stat(filepath.Join(dir, "Area.csv"))
	assert.True(t, os.IsNotExist(err), "preview-only run must not write measurements")
}

func TestRun_PreviewError(t *testing.T) {
	dir := writeStack(t, 2)
	c, err := BuildContainer(testConfig(), nil, dir)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "frame_001.tif")))

	err = c.Run(context.Background(), Options{PreviewPath: filepath.Join(t.TempDir(), "p.png"), PreviewPos: 1, SkipBatch: true})
	require.ErrorIs(t, err, subtract.ErrDecode)
}
