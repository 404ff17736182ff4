package pipeline

import (
	"context"
	"image"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Source produces video frames. capture.Webcam is the production implementation.
type Source interface {
	// Read blocks until the next frame is available. It returns io.EOF when the stream ends.
	Read() (image.Image, error)
	// Size is the native frame size.
	Size() image.Point
	Close() error
}

// Run pulls frames from src until ctx is cancelled or the source ends.
//
// Each frame is handed to Process on its own goroutine so capture never waits on inference;
// frames that arrive while a cycle is in flight are dropped. Run waits for the last cycle before
// returning.
//
// Arguments:
//   - ctx: Cancels the loop.
//   - src: The frame source. Run does not close it.
//
// Returns:
//   - error: nil on cancellation or end of stream, otherwise the source error.
func (p *Pipeline) Run(ctx context.Context, src Source) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	p.log.Info("capture loop started", "frame_size", src.Size())
	for {
		if err := ctx.Err(); err != nil {
			p.log.Info("capture loop cancelled")
			return nil
		}
		if p.closed.Load() {
			return nil
		}

		frame, err := src.Read()
		if errors.Is(err, io.EOF) {
			p.log.Info("capture source ended")
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading frame")
		}

		if !p.Running() {
			continue
		}
		if p.Busy() {
			p.stats.drop()
			continue
		}

		wg.Add(1)
		go func(frame image.Image) {
			defer wg.Done()
			if _, err := p.Process(ctx, frame); err != nil && !errors.Is(err, ErrBusy) && !errors.Is(err, ErrStopped) {
				p.log.Warn("process failed", "err", err)
			}
		}(frame)
	}
}
