package core

import "math"

// MinLevel is the starting level, 4×4 images.
const MinLevel = 2

// ScheduleState is the complete resumable position of a training run.
type ScheduleState struct {
	// Resolution is level plus the fractional progress through the current cycle.
	Resolution float64 `json:"resolution"`
	Phase      Phase   `json:"phase"`
	GlobalTick int64   `json:"globalTick"`
	GlobalIter int64   `json:"globalIter"`
	// KImgs counts every image consumed since the run began.
	KImgs int64 `json:"kimgs"`
	// Stack is the dataset cursor inside the current epoch.
	Stack int64 `json:"stack"`
	Epoch int64 `json:"epoch"`
	// Complete is the fade-in progress of each network in percent.
	Complete Pair[float64] `json:"complete"`
	// Flush marks networks that still carry a fade-in block.
	Flush        Pair[bool] `json:"flush"`
	LearningRate float64    `json:"learningRate"`
}

// NewScheduleState returns the state of a run that has not started yet.
func NewScheduleState(lr float64) ScheduleState {
	return ScheduleState{
		Resolution:   MinLevel,
		Phase:        PhaseInit,
		LearningRate: lr,
	}
}

// Level returns floor(Resolution).
func (s ScheduleState) Level() int {
	return int(math.Floor(s.Resolution))
}

// Fraction returns the progress through the current cycle, in [0, 1).
func (s ScheduleState) Fraction() float64 {
	return s.Resolution - math.Floor(s.Resolution)
}

// ImageSize returns the side length in pixels at the current level.
func (s ScheduleState) ImageSize() int {
	return 1 << s.Level()
}
