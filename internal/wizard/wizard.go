// Package wizard holds the four-step navigation state of a conversion pass
// and the display state fed by the running conversion.
package wizard

import (
	"errors"
	"path/filepath"

	"github.com/nconklindev/oct/internal/converter"
	"github.com/nconklindev/oct/internal/types"
	"github.com/nconklindev/oct/internal/worker"
)

type Step int

const (
	StepSelectInput Step = iota
	StepChooseType
	StepSelectOutput
	StepConfirm
)

const (
	FirstStep = StepSelectInput
	LastStep  = StepConfirm
)

func (s Step) Title() string {
	switch s {
	case StepSelectInput:
		return "Select Input File"
	case StepChooseType:
		return "Choose Conversion Type"
	case StepSelectOutput:
		return "Select Output Location"
	case StepConfirm:
		return "Confirm & Convert"
	}
	return ""
}

// Phase tracks the conversion run as seen by the wizard.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseSucceeded
	PhaseFailed
)

const (
	MsgMissingSelection = "Error: Please select both an input file and an output file location."
	MsgUnsupported      = "Unsupported file format or operation."
)

var ErrMissingSelection = errors.New("input file and output location are required")

// Starter launches a conversion run. *worker.Worker implements it.
type Starter interface {
	Start(job worker.Job) (<-chan types.Event, error)
}

type Controller struct {
	session *types.Session
	starter Starter

	step       Step
	phase      Phase
	failed     bool
	conversion string

	message  string
	severity types.Severity
	percent  int
}

func New(session *types.Session, starter Starter) *Controller {
	if session == nil {
		session = &types.Session{}
	}
	return &Controller{session: session, starter: starter}
}

func (c *Controller) Session() types.Session { return *c.session }
func (c *Controller) Step() Step             { return c.step }
func (c *Controller) Phase() Phase           { return c.phase }
func (c *Controller) Percent() int           { return c.percent }

// Conversion is the name of the conversion started by the last Confirm.
func (c *Controller) Conversion() string { return c.conversion }

func (c *Controller) Status() (string, types.Severity) {
	return c.message, c.severity
}

// SetInput records the input file. A previously chosen output location is
// kept but renamed after the new input.
func (c *Controller) SetInput(path string) {
	c.session.InputFile = path
	if path == "" {
		c.session.OutputFile = ""
		return
	}
	c.rederiveOutput()
}

// SetKind records the conversion kind and renames any chosen output to match.
func (c *Controller) SetKind(kind types.ConversionKind) {
	c.session.Kind = kind
	c.rederiveOutput()
}

// SetOutputDir derives the output file from the input base name and kind.
func (c *Controller) SetOutputDir(dir string) error {
	if c.session.InputFile == "" || dir == "" {
		return ErrMissingSelection
	}
	c.session.OutputFile = filepath.Join(dir, converter.OutputName(c.session.InputFile, c.session.Kind))
	return nil
}

func (c *Controller) rederiveOutput() {
	if c.session.OutputFile == "" || c.session.InputFile == "" {
		return
	}
	dir := filepath.Dir(c.session.OutputFile)
	c.session.OutputFile = filepath.Join(dir, converter.OutputName(c.session.InputFile, c.session.Kind))
}

// CanAdvance reports whether the current step's completion condition holds.
func (c *Controller) CanAdvance() bool {
	switch c.step {
	case StepSelectInput:
		return c.session.InputFile != ""
	case StepSelectOutput:
		return c.session.OutputFile != ""
	case LastStep:
		return false
	}
	return true
}

func (c *Controller) CanRetreat() bool {
	return c.step > FirstStep && c.phase != PhaseRunning
}

func (c *Controller) Advance() bool {
	if !c.CanAdvance() {
		return false
	}
	c.step++
	return true
}

func (c *Controller) Retreat() bool {
	if !c.CanRetreat() {
		return false
	}
	c.step--
	return true
}

// Confirm validates the session, resolves the conversion and starts the run.
// Every failure is also recorded as an error status.
func (c *Controller) Confirm() (<-chan types.Event, error) {
	if c.phase == PhaseRunning {
		c.setStatus(types.SeverityError, worker.ErrRunInProgress.Error())
		return nil, worker.ErrRunInProgress
	}

	s := *c.session
	if s.InputFile == "" || s.OutputFile == "" {
		c.setStatus(types.SeverityError, MsgMissingSelection)
		return nil, ErrMissingSelection
	}

	conv, err := converter.Resolve(s.InputFile, s.Kind)
	if err != nil {
		c.setStatus(types.SeverityError, MsgUnsupported)
		return nil, err
	}

	events, err := c.starter.Start(worker.Job{
		InputFile:  s.InputFile,
		OutputFile: s.OutputFile,
		Kind:       s.Kind,
		Conversion: conv,
	})
	if err != nil {
		c.setStatus(types.SeverityError, err.Error())
		return nil, err
	}

	c.conversion = conv.Name
	c.phase = PhaseRunning
	c.failed = false
	c.percent = 0
	c.message = ""
	c.severity = types.SeverityInfo
	return events, nil
}

// Apply folds a worker event into the display state.
func (c *Controller) Apply(e types.Event) {
	switch e.Type {
	case types.EventProgress:
		if e.Percent > c.percent {
			c.percent = e.Percent
		}
	case types.EventStatus:
		c.setStatus(e.Severity, e.Message)
		if e.Severity == types.SeverityError {
			c.failed = true
		}
	}
}

// Finish marks the run as over once its event channel has closed.
func (c *Controller) Finish() {
	if c.phase != PhaseRunning {
		return
	}
	if c.failed {
		c.phase = PhaseFailed
	} else {
		c.phase = PhaseSucceeded
	}
}

// Reset clears the session and display and returns to the first step.
func (c *Controller) Reset() error {
	if c.phase == PhaseRunning {
		return worker.ErrRunInProgress
	}
	c.session.Clear()
	c.step = FirstStep
	c.phase = PhaseIdle
	c.failed = false
	c.conversion = ""
	c.percent = 0
	c.message = ""
	c.severity = types.SeverityInfo
	return nil
}

func (c *Controller) setStatus(severity types.Severity, message string) {
	c.severity = severity
	c.message = message
}
