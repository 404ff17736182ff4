package capture

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, dir, name string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadDirectoryImageFiles_Order(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame-10.png", "frame-2.png", "b.png", "a.png", "frame-1.png"} {
		writePNG(t, dir, name, 4, 4)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	files, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f.Path))
	}
	assert.Equal(t, []string{"frame-1.png", "frame-2.png", "frame-10.png", "a.png", "b.png"}, names)
	assert.Equal(t, 10, files[2].Frame)
	assert.Equal(t, -1, files[3].Frame)
}

func TestDirectory_Read(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "frame-1.png", 8, 6)
	writePNG(t, dir, "frame-2.png", 16, 12)

	d, err := OpenDirectory(dir, false)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(8, 6), d.Size())

	img, err := d.Read()
	require.NoError(t, err)
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	_, err = d.Read()
	require.NoError(t, err)
	assert.Equal(t, image.Pt(16, 12), d.Size())

	_, err = d.Read()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, d.Close())
}

func TestDirectory_Loop(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "only.png", 4, 4)

	d, err := OpenDirectory(dir, true)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := d.Read()
		require.NoError(t, err)
	}

	require.NoError(t, d.Close())
	_, err = d.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenDirectory_Errors(t *testing.T) {
	_, err := OpenDirectory(filepath.Join(t.TempDir(), "missing"), false)
	assert.Error(t, err)

	_, err = OpenDirectory(t.TempDir(), false)
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0o644))
	_, err = OpenDirectory(dir, false)
	assert.Error(t, err)
}
