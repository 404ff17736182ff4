package capture

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

// scriptedReader replays a list of read results; true entries at fill produce a 2x2 frame.
type scriptedReader struct {
	ok    []bool
	fill  map[int]bool
	reads int
}

func (r *scriptedReader) Read(m *gocv.Mat) bool {
	i := r.reads
	r.reads++
	if i >= len(r.ok) {
		return false
	}
	if r.fill[i] {
		frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 2, 3, 0), 2, 2, gocv.MatTypeCV8UC3)
		defer frame.Close()
		frame.CopyTo(m)
	}
	return r.ok[i]
}

func TestReadFrame(t *testing.T) {
	always := func(n int) []bool {
		out := make([]bool, n)
		for i := range out {
			out[i] = true
		}
		return out
	}

	tests := []struct {
		name      string
		reader    *scriptedReader
		wantErr   error
		wantReads int
	}{
		{
			name:      "first frame",
			reader:    &scriptedReader{ok: always(1), fill: map[int]bool{0: true}},
			wantReads: 1,
		},
		{
			name:      "skips a few empty frames",
			reader:    &scriptedReader{ok: always(4), fill: map[int]bool{3: true}},
			wantReads: 4,
		},
		{
			name:      "device ended",
			reader:    &scriptedReader{},
			wantErr:   io.EOF,
			wantReads: 1,
		},
		{
			name:      "only empty frames",
			reader:    &scriptedReader{ok: always(maxEmptyReads * 2)},
			wantErr:   ErrNoSignal,
			wantReads: maxEmptyReads,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := gocv.NewMat()
			defer m.Close()

			err := readFrame(tt.reader, &m)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.False(t, m.Empty())
			}
			assert.Equal(t, tt.wantReads, tt.reader.reads)
		})
	}
}
