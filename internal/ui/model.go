package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nconklindev/oct/internal/types"
	"github.com/nconklindev/oct/internal/wizard"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// InputTypes are the extensions offered by the input picker.
var InputTypes = []string{".csv", ".xlsx", ".xls"}

type Options struct {
	StartDir   string
	ShowHidden bool
}

type Model struct {
	ctrl *wizard.Controller

	inputPicker  filepicker.Model
	outputPicker filepicker.Model
	kindCursor   int

	progress progress.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap

	events <-chan types.Event
	prompt bool
	notice string

	width  int
	height int
}

// eventMsg carries one worker event onto the UI loop.
type eventMsg types.Event

// runFinishedMsg is sent once the worker has closed its event channel.
type runFinishedMsg struct{}

func newPicker(startDir string, showHidden bool) filepicker.Model {
	fp := filepicker.New()
	fp.CurrentDirectory = startDir
	fp.ShowHidden = showHidden

	fp.Styles.Cursor = lipgloss.NewStyle().Foreground(colorAccent)
	fp.Styles.Symlink = lipgloss.NewStyle().Foreground(colorAccentLo)
	fp.Styles.Directory = lipgloss.NewStyle().Foreground(colorAccentLo)
	fp.Styles.File = lipgloss.NewStyle().Foreground(colorText)
	fp.Styles.Permission = lipgloss.NewStyle().Foreground(colorMuted)
	fp.Styles.Selected = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	fp.Styles.FileSize = lipgloss.NewStyle().Foreground(colorMuted)

	return fp
}

func InitialModel(ctrl *wizard.Controller, opts Options) Model {
	startDir := opts.StartDir
	if startDir == "" {
		startDir, _ = os.Getwd()
	}

	in := newPicker(startDir, opts.ShowHidden)
	in.AllowedTypes = InputTypes

	out := newPicker(startDir, opts.ShowHidden)
	out.DirAllowed = false
	out.FileAllowed = false

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(colorAccent)),
	)

	return Model{
		ctrl:         ctrl,
		inputPicker:  in,
		outputPicker: out,
		progress:     progress.New(progress.WithGradient("#3FA7D6", "#7CC6E8")),
		spinner:      sp,
		help:         help.New(),
		keys:         defaultKeyMap(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.inputPicker.Init(), m.outputPicker.Init())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Leave room for the title, step line, status and help text
		height := msg.Height - 16
		if height < 5 {
			height = 5
		}
		m.inputPicker.SetHeight(height)
		m.outputPicker.SetHeight(height)

		m.progress.Width = msg.Width - 12
		if m.progress.Width > 60 {
			m.progress.Width = 60
		}
		if m.progress.Width < 10 {
			m.progress.Width = 10
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.ctrl.Apply(types.Event(msg))
		cmds := []tea.Cmd{waitForEvent(m.events)}
		if msg.Type == types.EventProgress {
			cmds = append(cmds, m.progress.SetPercent(float64(m.ctrl.Percent())/100))
		}
		return m, tea.Batch(cmds...)

	case runFinishedMsg:
		m.ctrl.Finish()
		m.events = nil
		if m.ctrl.Phase() == wizard.PhaseSucceeded {
			m.prompt = true
		}
		return m, nil

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case spinner.TickMsg:
		if m.ctrl.Phase() != wizard.PhaseRunning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// Directory listings and picker errors are tagged with the picker's id,
	// so both pickers can see every other message.
	var inCmd, outCmd tea.Cmd
	m.inputPicker, inCmd = m.inputPicker.Update(msg)
	m.outputPicker, outCmd = m.outputPicker.Update(msg)
	return m, tea.Batch(inCmd, outCmd)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prompt {
		switch {
		case key.Matches(msg, m.keys.Again):
			return m.reset()
		case key.Matches(msg, m.keys.Exit), key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Next):
		if m.ctrl.Advance() {
			m.notice = ""
			m.syncKindCursor()
		}
		return m, nil
	case key.Matches(msg, m.keys.Back):
		if m.ctrl.Retreat() {
			m.notice = ""
			m.syncKindCursor()
		}
		return m, nil
	}

	switch m.ctrl.Step() {
	case wizard.StepSelectInput:
		return m.updateInputPicker(msg)

	case wizard.StepChooseType:
		switch {
		case key.Matches(msg, m.keys.Up):
			if m.kindCursor > 0 {
				m.kindCursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.kindCursor < len(types.Kinds)-1 {
				m.kindCursor++
			}
		case key.Matches(msg, m.keys.Choose):
			m.ctrl.SetKind(types.Kinds[m.kindCursor])
			m.ctrl.Advance()
		}
		return m, nil

	case wizard.StepSelectOutput:
		if key.Matches(msg, m.keys.UseFolder) {
			if err := m.ctrl.SetOutputDir(m.outputPicker.CurrentDirectory); err != nil {
				m.notice = "Select an input file first."
			} else {
				m.notice = ""
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.outputPicker, cmd = m.outputPicker.Update(msg)
		return m, cmd

	case wizard.StepConfirm:
		switch {
		case key.Matches(msg, m.keys.Convert):
			return m.confirm()
		case key.Matches(msg, m.keys.StartOver):
			if m.ctrl.Phase() == wizard.PhaseFailed {
				return m.reset()
			}
		}
	}

	return m, nil
}

func (m Model) updateInputPicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.inputPicker, cmd = m.inputPicker.Update(msg)

	if didSelect, path := m.inputPicker.DidSelectFile(msg); didSelect {
		m.ctrl.SetInput(path)
		m.suggestKind(path)
		m.notice = ""
		return m, cmd
	}
	if didSelect, path := m.inputPicker.DidSelectDisabledFile(msg); didSelect {
		m.notice = fmt.Sprintf("%s is not a supported file (%s)", filepath.Base(path), strings.Join(InputTypes, ", "))
		return m, cmd
	}

	return m, cmd
}

// suggestKind preselects Excel to CSV for workbooks; CSV keeps the current choice.
func (m *Model) suggestKind(path string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		m.ctrl.SetKind(types.ExcelToCSV)
	default:
		if m.ctrl.Session().Kind == types.ExcelToCSV {
			m.ctrl.SetKind(types.ToTSV)
		}
	}
	m.syncKindCursor()
}

func (m *Model) syncKindCursor() {
	kind := m.ctrl.Session().Kind
	for i, k := range types.Kinds {
		if k == kind {
			m.kindCursor = i
		}
	}
}

func (m Model) confirm() (tea.Model, tea.Cmd) {
	if m.ctrl.Phase() == wizard.PhaseRunning {
		return m, nil
	}

	events, err := m.ctrl.Confirm()
	if err != nil {
		return m, nil
	}
	m.events = events

	return m, tea.Batch(
		waitForEvent(events),
		m.spinner.Tick,
		m.progress.SetPercent(0),
	)
}

func (m Model) reset() (tea.Model, tea.Cmd) {
	if err := m.ctrl.Reset(); err != nil {
		return m, nil
	}
	m.prompt = false
	m.notice = ""
	m.kindCursor = 0
	return m, m.progress.SetPercent(0)
}

// waitForEvent blocks on the worker's channel so events are applied on the
// UI loop rather than from the worker goroutine.
func waitForEvent(events <-chan types.Event) tea.Cmd {
	return func() tea.Msg {
		if events == nil {
			return nil
		}
		e, ok := <-events
		if !ok {
			return runFinishedMsg{}
		}
		return eventMsg(e)
	}
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("📄 OCT Wizard - Office Conversion Tool"))
	s.WriteString("\n")
	step := m.ctrl.Step()
	s.WriteString(StepStyle.Render(fmt.Sprintf("Step %d of %d · %s", int(step)+1, int(wizard.LastStep)+1, step.Title())))
	s.WriteString("\n\n")

	switch step {
	case wizard.StepSelectInput:
		s.WriteString(m.viewSelectInput())
	case wizard.StepChooseType:
		s.WriteString(m.viewChooseType())
	case wizard.StepSelectOutput:
		s.WriteString(m.viewSelectOutput())
	case wizard.StepConfirm:
		s.WriteString(m.viewConfirm())
	}

	if m.notice != "" {
		s.WriteString("\n")
		s.WriteString(WarningStyle.Render(m.notice))
	}

	s.WriteString("\n")
	s.WriteString(HelpStyle.Render(m.help.ShortHelpView(m.helpKeys())))

	return BoxStyle.Render(s.String())
}

func (m Model) viewSelectInput() string {
	var s strings.Builder

	s.WriteString(SubtitleStyle.Render("Supported formats: " + strings.Join(InputTypes, ", ")))
	s.WriteString("\n")
	s.WriteString(m.inputPicker.View())
	s.WriteString("\n\n")
	s.WriteString("Input: ")
	s.WriteString(displayName(m.ctrl.Session().InputFile, "No File Selected"))

	return s.String()
}

func (m Model) viewChooseType() string {
	var s strings.Builder

	s.WriteString(SubtitleStyle.Render("File: " + filepath.Base(m.ctrl.Session().InputFile)))
	s.WriteString("\n")

	chosen := m.ctrl.Session().Kind
	for i, kind := range types.Kinds {
		cursor := " "
		if m.kindCursor == i {
			cursor = ">"
		}
		radio := "( )"
		if kind == chosen {
			radio = "(•)"
		}

		line := fmt.Sprintf("%s %s %s", cursor, radio, kind.Label())
		if m.kindCursor == i {
			line = SelectedStyle.Render(line)
		} else {
			line = UnselectedStyle.Render(line)
		}
		s.WriteString(line)
		s.WriteString("\n")
	}

	return s.String()
}

func (m Model) viewSelectOutput() string {
	var s strings.Builder

	s.WriteString(SubtitleStyle.Render("Folder: " + m.outputPicker.CurrentDirectory))
	s.WriteString("\n")
	s.WriteString(m.outputPicker.View())
	s.WriteString("\n\n")
	s.WriteString("Output: ")
	out := m.ctrl.Session().OutputFile
	s.WriteString(displayName(out, "No Output Location Selected"))
	if out != "" {
		s.WriteString(SubtitleStyle.Render("\nin " + filepath.Dir(out)))
	}

	return s.String()
}

func (m Model) viewConfirm() string {
	var s strings.Builder

	session := m.ctrl.Session()
	s.WriteString(fmt.Sprintf("Input:  %s\n", m.truncate(session.InputFile)))
	s.WriteString(fmt.Sprintf("Output: %s\n", m.truncate(session.OutputFile)))
	s.WriteString(fmt.Sprintf("Type:   %s\n\n", session.Kind.Label()))

	s.WriteString(m.progress.ViewAs(float64(m.ctrl.Percent()) / 100))
	s.WriteString("\n\n")

	msg, severity := m.ctrl.Status()
	if m.ctrl.Phase() == wizard.PhaseRunning {
		s.WriteString(m.spinner.View())
		s.WriteString(" ")
	}
	if msg != "" {
		s.WriteString(StatusStyle(severity).Render(msg))
	}

	if m.prompt {
		s.WriteString("\n\n")
		s.WriteString("Your file has been converted. Would you like to convert something else?")
	}

	return s.String()
}

func (m Model) helpKeys() []key.Binding {
	if m.prompt {
		return []key.Binding{m.keys.Again, m.keys.Exit}
	}

	var bindings []key.Binding
	switch m.ctrl.Step() {
	case wizard.StepChooseType:
		bindings = append(bindings, m.keys.Up, m.keys.Down, m.keys.Choose)
	case wizard.StepSelectOutput:
		bindings = append(bindings, m.keys.UseFolder)
	case wizard.StepConfirm:
		switch m.ctrl.Phase() {
		case wizard.PhaseIdle:
			bindings = append(bindings, m.keys.Convert)
		case wizard.PhaseFailed:
			bindings = append(bindings, m.keys.StartOver)
		}
	}

	if m.ctrl.CanAdvance() {
		bindings = append(bindings, m.keys.Next)
	}
	if m.ctrl.CanRetreat() {
		bindings = append(bindings, m.keys.Back)
	}
	return append(bindings, m.keys.Quit)
}

func (m Model) truncate(path string) string {
	maxPathLen := m.width - 20
	if maxPathLen < 30 {
		maxPathLen = 30
	}
	if width := ansi.StringWidth(path); width > maxPathLen {
		return ansi.TruncateLeft(path, width-maxPathLen+3, "...")
	}
	return path
}

func displayName(path, empty string) string {
	if path == "" {
		return SubtitleStyle.Render(empty)
	}
	return ValueStyle.Render(filepath.Base(path))
}
