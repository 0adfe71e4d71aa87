// Package tensor holds the minimal dense NCHW batch type exchanged between
// the trainer, the data loader and the network backends.
package tensor

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// ErrShapeMismatch is returned when two batches must share a shape and do not.
var ErrShapeMismatch = errors.New("tensor shape mismatch")

// Batch is a dense float32 tensor laid out as N×C×H×W.
type Batch struct {
	N, C, H, W int
	Data       []float32
}

// New returns a zero-filled batch.
func New(n, c, h, w int) *Batch {
	return &Batch{N: n, C: c, H: h, W: w, Data: make([]float32, n*c*h*w)}
}

// Full returns a batch with every element set to v.
func Full(n, c, h, w int, v float32) *Batch {
	b := New(n, c, h, w)
	for i := range b.Data {
		b.Data[i] = v
	}
	return b
}

// Len returns the number of elements.
func (b *Batch) Len() int { return len(b.Data) }

// Sample returns the number of elements in one sample.
func (b *Batch) Sample() int { return b.C * b.H * b.W }

// Shape formats the dimensions for error messages.
func (b *Batch) Shape() string {
	return fmt.Sprintf("[%d %d %d %d]", b.N, b.C, b.H, b.W)
}

// SameShape reports whether b and o have identical dimensions.
func (b *Batch) SameShape(o *Batch) bool {
	return b.N == o.N && b.C == o.C && b.H == o.H && b.W == o.W
}

// Index returns the flat offset of element (n, c, y, x).
func (b *Batch) Index(n, c, y, x int) int {
	return ((n*b.C+c)*b.H+y)*b.W + x
}

// At returns element (n, c, y, x).
func (b *Batch) At(n, c, y, x int) float32 {
	return b.Data[b.Index(n, c, y, x)]
}

// Clone returns a deep copy.
func (b *Batch) Clone() *Batch {
	out := &Batch{N: b.N, C: b.C, H: b.H, W: b.W, Data: make([]float32, len(b.Data))}
	copy(out.Data, b.Data)
	return out
}

// Fill sets every element to v.
func (b *Batch) Fill(v float32) {
	for i := range b.Data {
		b.Data[i] = v
	}
}

// FillNormal overwrites b with samples from N(0, std²).
func (b *Batch) FillNormal(rng *rand.Rand, std float64) {
	for i := range b.Data {
		b.Data[i] = float32(rng.NormFloat64() * std)
	}
}

// AddScaled performs b += s·o in place.
func (b *Batch) AddScaled(o *Batch, s float64) error {
	if !b.SameShape(o) {
		return fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, b.Shape(), o.Shape())
	}
	for i, v := range o.Data {
		b.Data[i] += float32(s) * v
	}
	return nil
}

// Mean returns the arithmetic mean of all elements, or 0 for an empty batch.
func (b *Batch) Mean() float64 {
	if len(b.Data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range b.Data {
		sum += float64(v)
	}
	return sum / float64(len(b.Data))
}

// IsFinite reports whether no element is NaN or infinite.
func (b *Batch) IsFinite() bool {
	for _, v := range b.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Lerp returns alpha·a + (1−alpha)·b.
func Lerp(a, b *Batch, alpha float64) (*Batch, error) {
	if !a.SameShape(b) {
		return nil, fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, a.Shape(), b.Shape())
	}
	out := New(a.N, a.C, a.H, a.W)
	al := float32(alpha)
	for i := range out.Data {
		out.Data[i] = al*a.Data[i] + (1-al)*b.Data[i]
	}
	return out, nil
}

// ResizeNearest resamples every channel to h×w with nearest neighbour
// lookup, source index floor(dst·in/out).
func ResizeNearest(b *Batch, h, w int) *Batch {
	out := New(b.N, b.C, h, w)
	for n := 0; n < b.N; n++ {
		for c := 0; c < b.C; c++ {
			for y := 0; y < h; y++ {
				sy := y * b.H / h
				for x := 0; x < w; x++ {
					sx := x * b.W / w
					out.Data[out.Index(n, c, y, x)] = b.At(n, c, sy, sx)
				}
			}
		}
	}
	return out
}

// ResizeNearestGrad propagates a gradient of ResizeNearest back to an
// h×w input by summing over every output that read a given input pixel.
func ResizeNearestGrad(grad *Batch, h, w int) *Batch {
	out := New(grad.N, grad.C, h, w)
	for n := 0; n < grad.N; n++ {
		for c := 0; c < grad.C; c++ {
			for y := 0; y < grad.H; y++ {
				sy := y * h / grad.H
				for x := 0; x < grad.W; x++ {
					sx := x * w / grad.W
					out.Data[out.Index(n, c, sy, sx)] += grad.At(n, c, y, x)
				}
			}
		}
	}
	return out
}

// MSE returns mean((pred−target)²) and its gradient with respect to pred.
func MSE(pred, target *Batch) (float64, *Batch, error) {
	if !pred.SameShape(target) {
		return 0, nil, fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, pred.Shape(), target.Shape())
	}
	grad := New(pred.N, pred.C, pred.H, pred.W)
	if len(pred.Data) == 0 {
		return 0, grad, nil
	}
	scale := 2 / float64(len(pred.Data))
	var sum float64
	for i, p := range pred.Data {
		d := float64(p) - float64(target.Data[i])
		sum += d * d
		grad.Data[i] = float32(scale * d)
	}
	return sum / float64(len(pred.Data)), grad, nil
}
