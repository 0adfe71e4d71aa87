package core

import "fmt"

// Phase is the position of a training run inside one growth cycle.
type Phase int

const (
	// PhaseInit covers the first level, before any growth has happened.
	PhaseInit Phase = iota
	// PhaseGenTransition fades the newest generator block in.
	PhaseGenTransition
	// PhaseGenStabilize trains the grown generator at full strength.
	PhaseGenStabilize
	// PhaseDisTransition fades the newest discriminator block in.
	PhaseDisTransition
	// PhaseDisStabilize trains the grown discriminator at full strength.
	PhaseDisStabilize
	// PhaseFinal is reached once the maximum level has stabilized. It is absorbing.
	PhaseFinal
)

var phaseNames = map[Phase]string{
	PhaseInit:          "init",
	PhaseGenTransition: "gtrns",
	PhaseGenStabilize:  "gstab",
	PhaseDisTransition: "dtrns",
	PhaseDisStabilize:  "dstab",
	PhaseFinal:         "final",
}

// String returns the short token used in logs, file names and records.
func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

// Phases returns every phase in schedule order.
func Phases() []Phase {
	return []Phase{PhaseInit, PhaseGenTransition, PhaseGenStabilize, PhaseDisTransition, PhaseDisStabilize, PhaseFinal}
}

// IsStable reports whether checkpoints may be taken in this phase.
func (p Phase) IsStable() bool {
	return p == PhaseGenStabilize || p == PhaseDisStabilize || p == PhaseFinal
}

// IsTransition reports whether a fade-in is in progress.
func (p Phase) IsTransition() bool {
	return p == PhaseGenTransition || p == PhaseDisTransition
}

// ParsePhase converts a token produced by String back into a Phase.
func ParsePhase(s string) (Phase, error) {
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return PhaseInit, fmt.Errorf("unknown phase %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	if _, ok := phaseNames[p]; !ok {
		return nil, fmt.Errorf("unknown phase %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
