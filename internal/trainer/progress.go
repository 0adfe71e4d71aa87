package trainer

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
)

// stageProgress shows one progress bar per outer stage. A nil
// *stageProgress does nothing.
type stageProgress struct {
	pw      progress.Writer
	tracker *progress.Tracker
}

func newStageProgress(w io.Writer) *stageProgress {
	if w == nil {
		return nil
	}
	pw := progress.NewWriter()
	pw.SetOutputWriter(w)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(200 * time.Millisecond)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Value = true
	go pw.Render()
	return &stageProgress{pw: pw}
}

func (p *stageProgress) begin(stage, stages int, total int64) {
	if p == nil {
		return
	}
	p.tracker = &progress.Tracker{
		Message: fmt.Sprintf("stage %d/%d", stage+1, stages),
		Total:   total,
		Units:   progress.UnitsDefault,
	}
	p.pw.AppendTracker(p.tracker)
}

func (p *stageProgress) step() {
	if p == nil || p.tracker == nil {
		return
	}
	p.tracker.Increment(1)
}

func (p *stageProgress) end() {
	if p == nil || p.tracker == nil {
		return
	}
	p.tracker.MarkAsDone()
	p.tracker = nil
}

// stop ends rendering and waits for the last frame.
func (p *stageProgress) stop() {
	if p == nil {
		return
	}
	p.end()
	p.pw.Stop()
	for p.pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}
