package trainer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"path/filepath"

	"github.com/pggan-go/pggan/internal/cmn/fileutil"
	"github.com/pggan-go/pggan/internal/core"
	"github.com/pggan-go/pggan/internal/tensor"
)

// previewWriter renders generator samples as PNG files.
type previewWriter struct {
	dir string
}

// write stores a square grid of every sample under grid/ and the first
// sample under resl_{level}/. It returns both paths.
func (w *previewWriter) write(n int64, st core.ScheduleState, samples *tensor.Batch) ([]string, error) {
	name := fmt.Sprintf("%d_%s_G%.2f_D%.2f.png", n, st.Phase, st.Complete.Gen, st.Complete.Dis)
	gridPath := filepath.Join(w.dir, "grid", name)
	singlePath := filepath.Join(w.dir, fmt.Sprintf("resl_%d", st.Level()), name)

	cols := int(math.Ceil(math.Sqrt(float64(samples.N))))
	if err := savePNG(gridPath, renderGrid(samples, cols)); err != nil {
		return nil, err
	}
	if err := savePNG(singlePath, renderGrid(firstSample(samples), 1)); err != nil {
		return nil, err
	}
	return []string{gridPath, singlePath}, nil
}

func firstSample(b *tensor.Batch) *tensor.Batch {
	return &tensor.Batch{N: 1, C: b.C, H: b.H, W: b.W, Data: b.Data[:b.Sample()]}
}

// renderGrid tiles the samples of b row by row, mapping [-1, 1] to [0, 255].
func renderGrid(b *tensor.Batch, cols int) *image.NRGBA {
	rows := (b.N + cols - 1) / cols
	img := image.NewNRGBA(image.Rect(0, 0, cols*b.W, rows*b.H))
	for n := range b.N {
		ox, oy := (n%cols)*b.W, (n/cols)*b.H
		for y := range b.H {
			for x := range b.W {
				var rgb [3]uint8
				for c := range min(b.C, 3) {
					rgb[c] = toByte(b.At(n, c, y, x))
				}
				if b.C == 1 {
					rgb[1], rgb[2] = rgb[0], rgb[0]
				}
				img.SetNRGBA(ox+x, oy+y, color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255})
			}
		}
	}
	return img
}

func toByte(v float32) uint8 {
	f := (float64(v) + 1) / 2 * 255
	return uint8(math.Round(min(255, max(0, f))))
}

func savePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}
