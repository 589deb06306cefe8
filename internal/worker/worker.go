// Package worker runs a single conversion off the UI loop and reports its
// progress as events.
//
// A run normalizes the input encoding, waits for the settle delay so the UI
// can show the encoding check, then calls the conversion function. Every
// failure ends the run with an error status on the event channel; nothing
// escapes to the caller.
package worker

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/nconklindev/oct/internal/charset"
	"github.com/nconklindev/oct/internal/converter"
	"github.com/nconklindev/oct/internal/logging"
	"github.com/nconklindev/oct/internal/types"
)

const (
	MsgPrepareFailed = "Failed to prepare the file for conversion."
	MsgCompleted     = "Conversion completed successfully!"
)

var ErrRunInProgress = errors.New("a conversion is already running")

// Job is a snapshot of the session taken when the run starts.
type Job struct {
	InputFile  string
	OutputFile string
	Kind       types.ConversionKind
	Conversion converter.Conversion
}

type Worker struct {
	settleDelay time.Duration
	running     atomic.Bool
}

func New(settleDelay time.Duration) *Worker {
	if settleDelay < 0 {
		settleDelay = 0
	}
	return &Worker{settleDelay: settleDelay}
}

// Running reports whether a run has started and not yet finished.
func (w *Worker) Running() bool {
	return w.running.Load()
}

// Start launches the run and returns its event channel, which is closed when
// the run is over. Only one run may be active at a time.
func (w *Worker) Start(job Job) (<-chan types.Event, error) {
	if job.Conversion.Run == nil {
		return nil, fmt.Errorf("%w: no conversion selected", converter.ErrUnsupportedFormat)
	}
	if !w.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}

	events := make(chan types.Event, 128)
	go func() {
		defer close(events)
		defer w.running.Store(false)
		w.run(job, events)
	}()

	return events, nil
}

func (w *Worker) run(job Job, events chan<- types.Event) {
	start := time.Now()
	logger := logging.WithFields(
		"input", job.InputFile,
		"output", job.OutputFile,
		"conversion", job.Conversion.Name,
	)
	logger.Info("conversion started")

	emit := func(e types.Event) { events <- e }

	normalized, err := charset.Normalize(job.InputFile, emit)
	if err != nil {
		logger.Error("input preparation failed", "error", err)
		emit(types.StatusEvent(types.SeverityError, MsgPrepareFailed))
		return
	}
	defer func() {
		if err := charset.Cleanup(normalized); err != nil {
			logger.Warn("could not remove temporary file", "path", normalized.Path, "error", err)
		}
	}()
	if normalized.Converted {
		logger.Info("input transcoded to UTF-8", "encoding", normalized.Encoding, "temp", normalized.Path)
	}

	if w.settleDelay > 0 {
		time.Sleep(w.settleDelay)
	}

	before, _ := os.Stat(job.OutputFile)
	result, err := convert(job.Conversion.Run, normalized.Path, job.OutputFile, emit)
	if err != nil {
		if removed := removePartial(job.OutputFile, before); removed {
			logger.Info("removed partial output")
		}
		logger.Error("conversion failed", "error", err, "duration", time.Since(start))
		emit(types.StatusEvent(types.SeverityError, fmt.Sprintf("Conversion error:\n%v", err)))
		return
	}

	logger.Info("conversion completed", "rows", result.RowsProcessed, "duration", time.Since(start))
	emit(types.StatusEvent(types.SeveritySuccess, MsgCompleted))
	emit(types.ProgressEvent(100))
}

// convert runs fn, turning its progress fractions into percent events that
// only ever increase. A panic inside fn is returned as an error.
func convert(fn converter.Func, inputFile, outputFile string, emit func(types.Event)) (result *types.ConversionResult, err error) {
	progressChan := make(chan float64, 100)
	done := make(chan struct{})

	go func() {
		defer close(done)
		last := -1
		for p := range progressChan {
			percent := int(p * 100)
			if percent > 100 {
				percent = 100
			}
			if percent > last {
				last = percent
				emit(types.ProgressEvent(percent))
			}
		}
	}()

	defer func() {
		close(progressChan)
		<-done
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("unexpected failure: %v", r)
		}
	}()

	result, err = fn(inputFile, outputFile, progressChan)
	if err == nil && result == nil {
		result = &types.ConversionResult{InputFile: inputFile, OutputFile: outputFile}
	}
	return result, err
}

// removePartial deletes an output file left by a failed run. A file that
// existed before the run and was not touched by it is kept.
func removePartial(path string, before os.FileInfo) bool {
	after, err := os.Stat(path)
	if err != nil {
		return false
	}
	if before != nil && after.ModTime().Equal(before.ModTime()) && after.Size() == before.Size() {
		return false
	}
	return os.Remove(path) == nil
}
