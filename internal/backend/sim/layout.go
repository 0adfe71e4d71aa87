package sim

import "github.com/pggan-go/pggan/internal/tensor"

// rows flattens each sample of b into one row.
func rows(b *tensor.Batch) [][]float64 {
	size := b.Sample()
	out := make([][]float64, b.N)
	for n := range b.N {
		row := make([]float64, size)
		for i, v := range b.Data[n*size : (n+1)*size] {
			row[i] = float64(v)
		}
		out[n] = row
	}
	return out
}

// fromRows packs rows into a batch of len(row)/(h·w) channels.
func fromRows(r [][]float64, h, w int) *tensor.Batch {
	if len(r) == 0 {
		return tensor.New(0, 0, h, w)
	}
	out := tensor.New(len(r), len(r[0])/(h*w), h, w)
	for n, row := range r {
		for i, v := range row {
			out.Data[n*len(row)+i] = float32(v)
		}
	}
	return out
}

// pool reduces every channel of b over its spatial extent, averaging when
// mean is set and summing otherwise.
func pool(b *tensor.Batch, mean bool) [][]float64 {
	area := b.H * b.W
	out := make([][]float64, b.N)
	for n := range b.N {
		row := make([]float64, b.C)
		for c := range b.C {
			base := b.Index(n, c, 0, 0)
			var sum float64
			for _, v := range b.Data[base : base+area] {
				sum += float64(v)
			}
			if mean && area > 0 {
				sum /= float64(area)
			}
			row[c] = sum
		}
		out[n] = row
	}
	return out
}

// broadcast expands per-channel values to size×size planes.
func broadcast(values [][]float64, size int) *tensor.Batch {
	if len(values) == 0 {
		return tensor.New(0, 3, size, size)
	}
	out := tensor.New(len(values), len(values[0]), size, size)
	area := size * size
	for n, row := range values {
		for c, v := range row {
			base := out.Index(n, c, 0, 0)
			for i := range area {
				out.Data[base+i] = float32(v)
			}
		}
	}
	return out
}
