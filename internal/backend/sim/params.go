package sim

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"maps"
	"slices"
)

// param is one weight matrix or bias vector stored row major.
type param struct {
	rows, cols int
	data       []float32
	grad       []float32
}

// paramSet holds the trainable tensors of a network by name. A dense layer
// "x" owns the entries "x.w" and "x.b".
type paramSet struct {
	entries map[string]*param
}

func newParamSet() *paramSet {
	return &paramSet{entries: make(map[string]*param)}
}

// addLayer creates a dense layer mapping in features to out features.
func (s *paramSet) addLayer(name string, in, out int, rng *rand.Rand) {
	bound := 1 / math.Sqrt(float64(in))
	w := &param{rows: out, cols: in, data: make([]float32, out*in), grad: make([]float32, out*in)}
	for i := range w.data {
		w.data[i] = float32((rng.Float64()*2 - 1) * bound)
	}
	s.entries[name+".w"] = w
	s.entries[name+".b"] = &param{rows: out, cols: 1, data: make([]float32, out), grad: make([]float32, out)}
}

func (s *paramSet) removeLayer(name string) {
	delete(s.entries, name+".w")
	delete(s.entries, name+".b")
}

func (s *paramSet) hasLayer(name string) bool {
	_, ok := s.entries[name+".w"]
	return ok
}

func (s *paramSet) names() []string {
	return slices.Sorted(maps.Keys(s.entries))
}

func (s *paramSet) zeroGrad() {
	for _, p := range s.entries {
		clear(p.grad)
	}
}

func (s *paramSet) marshal() ([]byte, error) {
	out := make(map[string][]float32, len(s.entries))
	for name, p := range s.entries {
		out[name] = p.data
	}
	return json.Marshal(out)
}

// unmarshal replaces parameter values. The serialized set must have
// exactly the same entries and sizes as s.
func (s *paramSet) unmarshal(data []byte) error {
	var in map[string][]float32
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if len(in) != len(s.entries) {
		return fmt.Errorf("parameter set has %d entries, expected %d", len(in), len(s.entries))
	}
	for name, values := range in {
		p, ok := s.entries[name]
		if !ok {
			return fmt.Errorf("unexpected parameter %q", name)
		}
		if len(values) != len(p.data) {
			return fmt.Errorf("parameter %q has %d values, expected %d", name, len(values), len(p.data))
		}
	}
	for name, values := range in {
		copy(s.entries[name].data, values)
	}
	return nil
}

// forward applies layer name to every row of x, with tanh when act is set.
func (s *paramSet) forward(name string, x [][]float64, act bool) [][]float64 {
	w, b := s.entries[name+".w"], s.entries[name+".b"]
	out := make([][]float64, len(x))
	for n, xi := range x {
		yi := make([]float64, w.rows)
		for o := range w.rows {
			sum := float64(b.data[o])
			row := w.data[o*w.cols : (o+1)*w.cols]
			for i, v := range xi {
				sum += float64(row[i]) * v
			}
			if act {
				sum = math.Tanh(sum)
			}
			yi[o] = sum
		}
		out[n] = yi
	}
	return out
}

// backward accumulates the gradients of layer name for inputs x, outputs y
// and output gradient gy, and returns the gradient with respect to x.
func (s *paramSet) backward(name string, x, y, gy [][]float64, act bool) [][]float64 {
	w, b := s.entries[name+".w"], s.entries[name+".b"]
	gx := make([][]float64, len(x))
	for n := range x {
		gxi := make([]float64, w.cols)
		for o := range w.rows {
			g := gy[n][o]
			if act {
				g *= 1 - y[n][o]*y[n][o]
			}
			b.grad[o] += float32(g)
			base := o * w.cols
			for i := range w.cols {
				w.grad[base+i] += float32(g * x[n][i])
				gxi[i] += g * float64(w.data[base+i])
			}
		}
		gx[n] = gxi
	}
	return gx
}

// layerName formats the name of a per level layer.
func layerName(kind string, level int) string {
	return fmt.Sprintf("%s%d", kind, level)
}

// mix returns a·x + (1−a)·y row by row.
func mix(a float64, x, y [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for n := range x {
		out[n] = make([]float64, len(x[n]))
		for i := range x[n] {
			out[n][i] = a*x[n][i] + (1-a)*y[n][i]
		}
	}
	return out
}

// scale returns a·x.
func scale(a float64, x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for n := range x {
		out[n] = make([]float64, len(x[n]))
		for i, v := range x[n] {
			out[n][i] = a * v
		}
	}
	return out
}

// addInto performs dst += src.
func addInto(dst, src [][]float64) {
	for n := range dst {
		for i := range dst[n] {
			dst[n][i] += src[n][i]
		}
	}
}
