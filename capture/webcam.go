// Package capture - Camera frame sources backed by OpenCV.
package capture

import (
	"image"
	"io"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/logger"
)

// Config describes the capture device.
type Config struct {
	// Device is a camera index (int) or a video file / stream URL (string).
	Device interface{}
	Width  int
	Height int
	FPS    int
}

// maxEmptyReads bounds how many empty frames in a row Read skips before giving up.
const maxEmptyReads = 50

// ErrNoSignal is returned when the device keeps delivering empty frames.
var ErrNoSignal = errors.New("capture device delivers only empty frames")

// frameReader is the part of gocv.VideoCapture that Read uses.
type frameReader interface {
	Read(m *gocv.Mat) bool
}

// readFrame reads into m, skipping up to maxEmptyReads empty frames.
func readFrame(r frameReader, m *gocv.Mat) error {
	for empty := 0; empty < maxEmptyReads; empty++ {
		if !r.Read(m) {
			return io.EOF
		}
		if !m.Empty() {
			return nil
		}
	}
	return ErrNoSignal
}

// Webcam reads frames from an OpenCV video capture.
type Webcam struct {
	cfg     Config
	capture *gocv.VideoCapture
	mat     gocv.Mat
	size    image.Point
	preview chan gocv.Mat
	log     *logger.Logger

	mu     sync.Mutex
	closed bool
}

// Open opens the capture device and applies the requested resolution and frame rate.
//
// Arguments:
//   - cfg: The device configuration. Zero sizes and rates keep the device defaults.
//   - log: The logger.
//
// Returns:
//   - *Webcam: The opened webcam.
//   - error: An error if the device cannot be opened.
func Open(cfg Config, log *logger.Logger) (*Webcam, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open capture device %v", cfg.Device)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, errors.Errorf("capture device %v is not available", cfg.Device)
	}

	if cfg.Width > 0 && cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
	}

	w := &Webcam{
		cfg:     cfg,
		capture: vc,
		mat:     gocv.NewMat(),
		size: image.Pt(
			int(vc.Get(gocv.VideoCaptureFrameWidth)),
			int(vc.Get(gocv.VideoCaptureFrameHeight)),
		),
		log: log.Named("capture"),
	}
	preset := "custom"
	if res, ok := images.GetHighestResolutionUnderDimensions(w.size.X, w.size.Y); ok {
		preset = res.String()
	}
	w.log.Info("capture opened", "device", cfg.Device, "size", w.size, "preset", preset,
		"fps", vc.Get(gocv.VideoCaptureFPS))
	if cfg.Width > 0 && cfg.Height > 0 && (w.size.X != cfg.Width || w.size.Y != cfg.Height) {
		w.log.Warn("capture size differs from the requested size",
			"requested", image.Pt(cfg.Width, cfg.Height), "actual", w.size)
	}
	return w, nil
}

// Preview returns a channel that receives a copy of each captured frame. Frames are dropped when
// the receiver falls behind; the receiver owns and must Close every Mat it takes.
func (w *Webcam) Preview() <-chan gocv.Mat {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.preview == nil {
		w.preview = make(chan gocv.Mat, 1)
	}
	return w.preview
}

// Read blocks until the next frame and returns it as an image.
//
// Returns:
//   - image.Image: The frame in RGBA.
//   - error: io.EOF once the device stops producing frames or is closed, ErrNoSignal when it
//     only produces empty ones.
func (w *Webcam) Read() (image.Image, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, io.EOF
	}
	if err := readFrame(w.capture, &w.mat); err != nil {
		w.log.Info("capture ended", "device", w.cfg.Device, "err", err)
		return nil, err
	}

	if r := w.mat.Rows(); r > 0 {
		w.size = image.Pt(w.mat.Cols(), r)
	}
	if w.preview != nil {
		clone := w.mat.Clone()
		select {
		case w.preview <- clone:
		default:
			_ = clone.Close()
		}
	}

	img, err := w.mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "converting frame")
	}
	return img, nil
}

// Size returns the frame size reported by the device, updated from each frame read.
func (w *Webcam) Size() image.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Close releases the device. It is safe to call more than once.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	if w.preview != nil {
		close(w.preview)
	}
	if err := w.mat.Close(); err != nil {
		return err
	}
	return w.capture.Close()
}
