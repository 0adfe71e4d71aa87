package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/pggan-go/pggan/internal/core"
)

const adamEpsilon = 1e-8

// Adam is the Adam optimizer bound to the parameters a network had when
// the optimizer was created. Parameters removed by a later flush are
// skipped.
type Adam struct {
	params *paramSet
	names  []string
	opts   core.OptimizerOptions
	state  adamState
}

type adamState struct {
	Step int64                `json:"step"`
	M    map[string][]float64 `json:"m"`
	V    map[string][]float64 `json:"v"`
}

func newAdam(params *paramSet, opts core.OptimizerOptions) *Adam {
	return &Adam{
		params: params,
		names:  params.names(),
		opts:   opts,
		state:  adamState{M: make(map[string][]float64), V: make(map[string][]float64)},
	}
}

// LearningRate returns the step size the optimizer was created with.
func (a *Adam) LearningRate() float64 { return a.opts.LearningRate }

func (a *Adam) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.state.Step++
	t := float64(a.state.Step)
	b1, b2 := a.opts.Beta1, a.opts.Beta2
	c1 := 1 - math.Pow(b1, t)
	c2 := 1 - math.Pow(b2, t)
	for _, name := range a.names {
		p, ok := a.params.entries[name]
		if !ok {
			continue
		}
		m, v := a.moments(name, len(p.data))
		for i, g32 := range p.grad {
			g := float64(g32)
			m[i] = b1*m[i] + (1-b1)*g
			v[i] = b2*v[i] + (1-b2)*g*g
			p.data[i] -= float32(a.opts.LearningRate * (m[i] / c1) / (math.Sqrt(v[i]/c2) + adamEpsilon))
		}
	}
	return nil
}

func (a *Adam) moments(name string, size int) ([]float64, []float64) {
	m, ok := a.state.M[name]
	if !ok || len(m) != size {
		m = make([]float64, size)
		a.state.M[name] = m
	}
	v, ok := a.state.V[name]
	if !ok || len(v) != size {
		v = make([]float64, size)
		a.state.V[name] = v
	}
	return m, v
}

func (a *Adam) StateDict() ([]byte, error) {
	return json.Marshal(a.state)
}

func (a *Adam) LoadStateDict(data []byte) error {
	var st adamState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("failed to decode optimizer state: %w", err)
	}
	if st.M == nil {
		st.M = make(map[string][]float64)
	}
	if st.V == nil {
		st.V = make(map[string][]float64)
	}
	a.state = st
	return nil
}

var _ core.Optimizer = (*Adam)(nil)
