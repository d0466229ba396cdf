package pipeline

import (
	"time"

	"github.com/wikipulse/wikipulse/pkg/types"
)

// ChartSink receives one rate sample per window.
type ChartSink interface {
	AppendRateSample(value float64, at time.Time)
}

// LabelSink receives the ticker text. Only the latest value matters.
type LabelSink interface {
	SetDisplayText(text string)
}

// AnnotationSink receives chart annotations.
type AnnotationSink interface {
	AddAnnotation(a types.Annotation)
}

// ChartSinkFunc adapts a function to ChartSink.
type ChartSinkFunc func(value float64, at time.Time)

func (f ChartSinkFunc) AppendRateSample(value float64, at time.Time) { f(value, at) }

// LabelSinkFunc adapts a function to LabelSink.
type LabelSinkFunc func(text string)

func (f LabelSinkFunc) SetDisplayText(text string) { f(text) }

// AnnotationSinkFunc adapts a function to AnnotationSink.
type AnnotationSinkFunc func(a types.Annotation)

func (f AnnotationSinkFunc) AddAnnotation(a types.Annotation) { f(a) }
