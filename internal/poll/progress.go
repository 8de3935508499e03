package poll

import "time"

// Progress is one observation reported while waiting.
type Progress struct {
	Phase   string
	Done    int
	Total   int
	Detail  map[string]string
	Elapsed time.Duration
	Attempt int
}

// ProgressReporter receives progress updates from a wait phase.
type ProgressReporter interface {
	OnProgress(p Progress)
}

// ProgressFunc adapts a plain function to ProgressReporter.
type ProgressFunc func(p Progress)

func (f ProgressFunc) OnProgress(p Progress) { f(p) }

type noopReporter struct{}

func (noopReporter) OnProgress(Progress) {}

// NoProgress discards every update.
var NoProgress ProgressReporter = noopReporter{}
