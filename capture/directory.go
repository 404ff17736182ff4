package capture

import (
	"bytes"
	"image"
	_ "image/jpeg" // register JPEG decoding
	_ "image/png"  // register PNG decoding
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp" // register BMP decoding
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Frame is the frame number parsed from names like "frame-42.jpg", or -1.
	Frame int
}

// LoadDirectoryImageFiles lists the image files of a directory in frame order.
//
// Files named "frame-N.ext" sort by N; the rest follow in name order.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: The files in playback order.
//   - error: Error if the directory cannot be read.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []ImageFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		switch ext {
		case ".jpg", ".jpeg", ".png", ".bmp":
		default:
			continue
		}
		frame, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), "frame-"))
		if err != nil {
			frame = -1
		}
		files = append(files, ImageFile{Path: filepath.Join(dir, e.Name()), Frame: frame})
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		switch {
		case a.Frame >= 0 && b.Frame >= 0:
			return a.Frame < b.Frame
		case a.Frame >= 0 || b.Frame >= 0:
			return a.Frame >= 0
		default:
			return a.Path < b.Path
		}
	})
	return files, nil
}

// Directory plays a directory of still images as a frame source.
type Directory struct {
	files []ImageFile
	loop  bool

	mu   sync.Mutex
	next int
	size image.Point
}

// OpenDirectory lists dir and decodes its first frame to learn the frame size.
//
// Arguments:
//   - dir: The directory.
//   - loop: Restart from the first file instead of ending.
//
// Returns:
//   - *Directory: The source.
//   - error: An error if the directory has no decodable images.
func OpenDirectory(dir string, loop bool) (*Directory, error) {
	files, err := LoadDirectoryImageFiles(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", dir)
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no images in %s", dir)
	}

	d := &Directory{files: files, loop: loop}
	first, err := decode(files[0].Path)
	if err != nil {
		return nil, err
	}
	d.size = first.Bounds().Size()
	return d, nil
}

// Read decodes the next image. It returns io.EOF after the last one unless looping.
func (d *Directory) Read() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.next >= len(d.files) {
		if !d.loop || len(d.files) == 0 {
			return nil, io.EOF
		}
		d.next = 0
	}
	f := d.files[d.next]
	d.next++

	img, err := decode(f.Path)
	if err != nil {
		return nil, err
	}
	d.size = img.Bounds().Size()
	return img, nil
}

// Size returns the size of the last decoded frame.
func (d *Directory) Size() image.Point {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

// Close ends playback.
func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files = nil
	d.next = 0
	return nil
}

func decode(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return img, nil
}
