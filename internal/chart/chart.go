// Package chart draws the switch trace of a run as a Gantt chart: one row
// per task, one bar per stretch of ticks the task held the CPU.
package chart

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"

	"github.com/me/tickos/pkg/model"
)

// Segment is a stretch of ticks [Start, End) during which Task ran.
type Segment struct {
	Task  model.TaskID
	Start uint32
	End   uint32
}

// Segments turns a switch trace into run segments. The task running before
// the first switch is taken from that switch's From; ticks closes the last
// segment. Switches that last less than a tick are dropped.
func Segments(events []model.SwitchEvent, ticks uint32) []Segment {
	if len(events) == 0 || ticks == 0 {
		return nil
	}
	var out []Segment
	add := func(task model.TaskID, start, end uint32) {
		if end > ticks {
			end = ticks
		}
		if end <= start || task == model.NoTask {
			return
		}
		if n := len(out); n > 0 && out[n-1].Task == task && out[n-1].End == start {
			out[n-1].End = end
			return
		}
		out = append(out, Segment{Task: task, Start: start, End: end})
	}

	add(events[0].From, 0, events[0].Tick)
	for i, e := range events {
		end := ticks
		if i+1 < len(events) {
			end = events[i+1].Tick
		}
		add(e.To, e.Tick, end)
	}
	return out
}

// Options controls the chart layout.
type Options struct {
	Width     int
	RowHeight int
	Label     int    // width of the task name column
	From, To  uint32 // tick window; To == 0 means the end of the run
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{Width: 1200, RowHeight: 22, Label: 110}
}

var (
	background = color.White
	gridColor  = color.RGBA{0xdd, 0xdd, 0xdd, 0xff}
	textColor  = color.Black
)

// PolicyColor returns the bar colour used for tasks of policy p.
func PolicyColor(p model.Policy) color.RGBA {
	switch p {
	case model.PolicyPeriodicCatchup:
		return color.RGBA{0x1f, 0x77, 0xb4, 0xff}
	case model.PolicyPeriodicSkip:
		return color.RGBA{0x2c, 0xa0, 0x2c, 0xff}
	case model.PolicyEventDriven:
		return color.RGBA{0xff, 0x7f, 0x0e, 0xff}
	}
	return color.RGBA{0x99, 0x99, 0x99, 0xff}
}

// Render draws the chart for run. The run's task reports name the rows.
func Render(run *model.Run, events []model.SwitchEvent, opts Options) (image.Image, error) {
	if run == nil || len(run.Tasks) == 0 {
		return nil, errors.New("chart: run has no task reports")
	}
	to := opts.To
	if to == 0 || to > run.Ticks {
		to = run.Ticks
	}
	if opts.From >= to {
		return nil, fmt.Errorf("chart: empty tick window [%d, %d)", opts.From, to)
	}
	if opts.Width <= opts.Label+10 || opts.RowHeight < 4 {
		return nil, fmt.Errorf("chart: canvas %dx%d too small", opts.Width, opts.RowHeight)
	}

	rows := make(map[model.TaskID]int, len(run.Tasks))
	for i, t := range run.Tasks {
		rows[t.ID] = i
	}
	height := (len(run.Tasks) + 1) * opts.RowHeight
	dc := gg.NewContext(opts.Width, height)
	dc.SetColor(background)
	dc.Clear()

	span := float64(to - opts.From)
	plot := float64(opts.Width - opts.Label)
	x := func(tick uint32) float64 {
		return float64(opts.Label) + float64(tick-opts.From)*plot/span
	}

	// Row labels and separators.
	dc.SetLineWidth(1)
	for i, t := range run.Tasks {
		y := float64(i * opts.RowHeight)
		dc.SetColor(gridColor)
		dc.DrawLine(0, y+float64(opts.RowHeight), float64(opts.Width), y+float64(opts.RowHeight))
		dc.Stroke()
		dc.SetColor(textColor)
		dc.DrawStringAnchored(t.Name, 4, y+float64(opts.RowHeight)/2, 0, 0.5)
	}

	// Bars.
	for _, s := range Segments(events, run.Ticks) {
		row, ok := rows[s.Task]
		if !ok || s.End <= opts.From || s.Start >= to {
			continue
		}
		start, end := max(s.Start, opts.From), min(s.End, to)
		y := float64(row*opts.RowHeight) + 3
		dc.SetColor(PolicyColor(run.Tasks[row].Policy))
		dc.DrawRectangle(x(start), y, x(end)-x(start), float64(opts.RowHeight-6))
		dc.Fill()
	}

	// Tick axis.
	axis := float64(len(run.Tasks) * opts.RowHeight)
	dc.SetColor(textColor)
	step := tickStep(to-opts.From, (opts.Width-opts.Label)/80)
	for tick := opts.From - opts.From%step; tick <= to; tick += step {
		if tick < opts.From {
			continue
		}
		dc.DrawLine(x(tick), axis, x(tick), axis+4)
		dc.Stroke()
		dc.DrawStringAnchored(fmt.Sprint(tick), x(tick), axis+float64(opts.RowHeight)/2+2, 0.5, 0.5)
	}
	return dc.Image(), nil
}

// WritePNG renders the chart and encodes it as PNG.
func WritePNG(w io.Writer, run *model.Run, events []model.SwitchEvent, opts Options) error {
	img, err := Render(run, events, opts)
	if err != nil {
		return err
	}
	return gg.NewContextForImage(img).EncodePNG(w)
}

// tickStep picks a round axis step giving at most marks labels over span.
func tickStep(span uint32, marks int) uint32 {
	if marks < 1 {
		marks = 1
	}
	for _, s := range []uint32{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000} {
		if span/s <= uint32(marks) {
			return s
		}
	}
	return span/uint32(marks) + 1
}
