package core

// Blend is a plain fade-in coefficient kept in [0, 1]. Backends embed it in
// their fade-in blocks; dry runs use it on its own.
type Blend struct {
	alpha float64
}

// UpdateAlpha adds delta to alpha and clamps the result to [0, 1].
func (b *Blend) UpdateAlpha(delta float64) {
	b.alpha = min(1, max(0, b.alpha+delta))
}

// Alpha returns the current coefficient.
func (b *Blend) Alpha() float64 {
	return b.alpha
}

var _ FadeIn = (*Blend)(nil)
