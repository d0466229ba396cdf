// Package display composes the monitor's sink targets into one set of
// pipeline sinks.
package display

import (
	"time"

	"github.com/wikipulse/wikipulse/monitor/internal/pipeline"
	"github.com/wikipulse/wikipulse/pkg/types"
)

// Target receives every kind of display update.
type Target interface {
	pipeline.ChartSink
	pipeline.LabelSink
	pipeline.AnnotationSink
}

// Display forwards every sink call to the targets registered for it, in
// registration order. It is called only from the presentation scheduler and
// is not safe for concurrent registration.
type Display struct {
	charts      []pipeline.ChartSink
	labels      []pipeline.LabelSink
	annotations []pipeline.AnnotationSink
}

// New returns a Display with targets registered for all three sinks.
func New(targets ...Target) *Display {
	d := &Display{}
	for _, t := range targets {
		d.Add(t)
	}
	return d
}

// Add registers t for all three sinks.
func (d *Display) Add(t Target) {
	d.AddChart(t)
	d.AddLabel(t)
	d.AddAnnotations(t)
}

// AddChart registers s for rate samples only.
func (d *Display) AddChart(s pipeline.ChartSink) { d.charts = append(d.charts, s) }

// AddLabel registers s for ticker text only.
func (d *Display) AddLabel(s pipeline.LabelSink) { d.labels = append(d.labels, s) }

// AddAnnotations registers s for annotations only.
func (d *Display) AddAnnotations(s pipeline.AnnotationSink) {
	d.annotations = append(d.annotations, s)
}

func (d *Display) AppendRateSample(value float64, at time.Time) {
	for _, s := range d.charts {
		s.AppendRateSample(value, at)
	}
}

func (d *Display) SetDisplayText(text string) {
	for _, s := range d.labels {
		s.SetDisplayText(text)
	}
}

func (d *Display) AddAnnotation(a types.Annotation) {
	for _, s := range d.annotations {
		s.AddAnnotation(a)
	}
}
