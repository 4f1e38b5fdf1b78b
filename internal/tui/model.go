// Package tui renders the documentation session workflow as a terminal
// UI. It is a pure presentation layer: every keystroke becomes a
// command on the workflow driver, and every render reflects the latest
// state snapshot the driver emitted.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/medscribe/scribe/internal/notes"
	"github.com/medscribe/scribe/internal/tui/components/labeledspinner"
	"github.com/medscribe/scribe/internal/tui/components/waveform"
	"github.com/medscribe/scribe/internal/tui/style"
	"github.com/medscribe/scribe/internal/workflow"
	"github.com/medscribe/scribe/pkg/uictl"
)

// Driver is the workflow machine as the UI sees it.
type Driver interface {
	State() workflow.State
	StartRecording(ctx context.Context)
	StopRecording()
	CancelRecording()
	Save(ctx context.Context)
	BeginEdit()
	UpdateDraft(draft notes.SoapNote)
	SaveEdit(ctx context.Context)
	DiscardEdit()
	RecordAgain(ctx context.Context)
	Retry(ctx context.Context)
}

// Controls are the live capture readouts rendered during recording.
// Any of them may be nil; the corresponding widget is then omitted.
type Controls struct {
	Levels  uictl.Levels[int16]
	Elapsed uictl.CappedDial[int64]
	Bytes   uictl.Dial[int64]
}

// Config wires a Model.
type Config struct {
	Driver   Driver
	States   <-chan workflow.State
	Controls Controls
	Cancel   context.CancelFunc
}

// StateMsg carries a workflow state snapshot into the update loop.
type StateMsg struct {
	State workflow.State
}

type statesClosedMsg struct{}

// Model is the top-level bubbletea model for a documentation session.
type Model struct {
	config Config
	keys   KeyMap
	state  workflow.State

	spinner   spinner.Model
	stopwatch stopwatch.Model
	progress  progress.Model
	wave      waveform.Model
	noteView  viewport.Model
	editor    textarea.Model

	showTranscript bool
	editorOpen     bool
	windowWidth    int
	windowHeight   int
}

// New creates the session UI. The driver must already be subscribed to
// the states channel before its Start.
func New(config Config) *Model {
	s := spinner.New()
	s.Spinner = spinner.Points

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	vp := viewport.New(78, 16)

	ed := textarea.New()
	ed.SetWidth(78)
	ed.SetHeight(16)
	ed.CharLimit = 0

	return &Model{ //nolint:exhaustruct
		config:    config,
		keys:      DefaultKeyMap(),
		state:     config.Driver.State(),
		spinner:   s,
		stopwatch: stopwatch.New(),
		progress:  p,
		wave:      waveform.New(config.Controls.Levels, 60, 3),
		noteView:  vp,
		editor:    ed,
	}
}

// Init starts the spinner and the state pump.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForState())
}

// waitForState pumps the next workflow snapshot into the update loop.
func (m *Model) waitForState() tea.Cmd {
	return func() tea.Msg {
		state, ok := <-m.config.States
		if !ok {
			return statesClosedMsg{}
		}

		return StateMsg{State: state}
	}
}

// Update handles messages.
func (m *Model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.resizePanels()

		return m, nil

	case StateMsg:
		return m, tea.Batch(m.applyState(msg.State), m.waitForState())

	case statesClosedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case waveform.TickMsg:
		var cmd tea.Cmd
		m.wave, cmd = m.wave.Update(msg)

		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model) //nolint:forcetypeassert // bubbles library contract

		return m, cmd
	}

	var cmd tea.Cmd
	m.stopwatch, cmd = m.stopwatch.Update(teaMsg)

	return m, cmd
}

// applyState folds a workflow snapshot into the UI, starting or
// stopping widgets on phase boundaries.
func (m *Model) applyState(state workflow.State) tea.Cmd {
	prev := m.state
	m.state = state

	var cmds []tea.Cmd

	if state.Phase == workflow.PhaseRecording && prev.Phase != workflow.PhaseRecording {
		cmds = append(cmds, m.stopwatch.Reset(), m.stopwatch.Start(), m.wave.Init())
	}

	if state.Phase != workflow.PhaseRecording && prev.Phase == workflow.PhaseRecording {
		cmds = append(cmds, m.stopwatch.Stop())
	}

	if state.Phase == workflow.PhaseComplete {
		m.noteView.SetContent(m.completeContent())

		if state.Editing && !m.editorOpen {
			m.editor.SetValue(notes.FormatSoap(state.Draft))
			m.editorOpen = true
			cmds = append(cmds, m.editor.Focus())
		}

		if !state.Editing && m.editorOpen {
			m.editorOpen = false
			m.editor.Blur()
		}
	}

	return tea.Batch(cmds...)
}

//nolint:cyclop // one branch per key binding
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()

	if key.Matches(msg, m.keys.ForceQuit) {
		return m.quit()
	}

	// While editing, everything except the edit controls belongs to the
	// textarea.
	if m.editorOpen {
		switch {
		case key.Matches(msg, m.keys.SaveEdit):
			m.config.Driver.UpdateDraft(notes.ExtractSoap(m.editor.Value()))
			m.config.Driver.SaveEdit(ctx)

			return m, nil

		case key.Matches(msg, m.keys.DiscardEdit):
			m.config.Driver.DiscardEdit()

			return m, nil
		}

		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)

		return m, cmd
	}

	if key.Matches(msg, m.keys.Quit) {
		return m.quit()
	}

	switch m.state.Phase {
	case workflow.PhaseReady:
		if key.Matches(msg, m.keys.Record) {
			m.config.Driver.StartRecording(ctx)
		}

	case workflow.PhaseRecording:
		switch {
		case key.Matches(msg, m.keys.Stop):
			m.config.Driver.StopRecording()
		case key.Matches(msg, m.keys.Cancel):
			m.config.Driver.CancelRecording()
		}

	case workflow.PhaseComplete:
		switch {
		case key.Matches(msg, m.keys.Save):
			m.config.Driver.Save(ctx)
		case key.Matches(msg, m.keys.Edit):
			m.config.Driver.BeginEdit()
		case key.Matches(msg, m.keys.Transcript):
			m.showTranscript = !m.showTranscript
			m.noteView.SetContent(m.completeContent())
		case key.Matches(msg, m.keys.RecordAgain):
			m.config.Driver.RecordAgain(ctx)
		}

	case workflow.PhaseError:
		if key.Matches(msg, m.keys.Retry) {
			m.config.Driver.Retry(ctx)
		}

	case workflow.PhaseInit, workflow.PhaseTranscribing:
		// Nothing to drive while waiting.
	}

	var cmd tea.Cmd
	m.noteView, cmd = m.noteView.Update(msg)

	return m, cmd
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	if m.config.Cancel != nil {
		m.config.Cancel()
	}

	return m, tea.Quit
}

func (m *Model) resizePanels() {
	width := min(m.windowWidth-2, 100)
	if width < 20 {
		width = 20
	}

	height := max(m.windowHeight-8, 5)

	m.noteView.Width = width
	m.noteView.Height = height
	m.editor.SetWidth(width)
	m.editor.SetHeight(height)
}

// View renders the current phase.
func (m *Model) View() string {
	switch m.state.Phase {
	case workflow.PhaseInit:
		return m.viewWaiting("Preparing session",
			fmt.Sprintf("Setting up documentation for visit %d", m.state.VisitID))
	case workflow.PhaseReady:
		return m.viewReady()
	case workflow.PhaseRecording:
		return m.viewRecording()
	case workflow.PhaseTranscribing:
		return m.viewWaiting("Processing recording",
			"Transcribing audio and drafting the clinical note")
	case workflow.PhaseComplete:
		return m.viewComplete()
	case workflow.PhaseError:
		return m.viewError()
	default:
		return ""
	}
}

func (m *Model) viewWaiting(title, subtitle string) string {
	ls := labeledspinner.Model{
		Spinner:  m.spinner,
		Title:    title,
		Subtitle: subtitle,
		Help:     renderKeyHelp(m.keys.ForceQuit, ""),
	}

	return ls.View()
}

func (m *Model) viewReady() string {
	var sb strings.Builder

	sb.WriteString(style.Title.Render("Ready to record"))
	sb.WriteString("\n\n")
	sb.WriteString(style.Subtitle.Render(
		fmt.Sprintf("Visit %d, session %s", m.state.VisitID, m.state.Handle.ThreadID)))
	sb.WriteString("\n\n")
	sb.WriteString(renderKeyHelp(m.keys.Record, " "))
	sb.WriteString(renderKeyHelp(m.keys.Quit, ""))

	return sb.String()
}

func (m *Model) viewRecording() string {
	var sb strings.Builder

	sb.WriteString(m.spinner.View())
	sb.WriteString(" ")
	sb.WriteString(style.Title.Render("Recording"))
	sb.WriteString(" ")
	sb.WriteString(style.Subtitle.Render(m.stopwatch.View()))
	sb.WriteString("\n\n")

	sb.WriteString(m.wave.View())
	sb.WriteString("\n\n")

	if m.config.Controls.Elapsed != nil {
		elapsed, maxElapsed := m.config.Controls.Elapsed.Cap()
		percent := float64(0)
		if maxElapsed > 0 {
			percent = float64(elapsed) / float64(maxElapsed)
		}

		sb.WriteString(m.progress.ViewAs(percent))
		sb.WriteString("\n")

		readout := formatElapsed(elapsed, maxElapsed)
		if m.config.Controls.Bytes != nil {
			readout += fmt.Sprintf("  %.1f KB", float64(m.config.Controls.Bytes.Read())/1024)
		}

		sb.WriteString(style.Subtitle.Render(readout))
		sb.WriteString("\n\n")
	}

	sb.WriteString(renderKeyHelp(m.keys.Stop, " "))
	sb.WriteString(renderKeyHelp(m.keys.Cancel, ""))

	return sb.String()
}

func (m *Model) viewComplete() string {
	var sb strings.Builder

	sb.WriteString(style.Title.Render("Documentation ready"))
	if m.state.Saved {
		sb.WriteString(" ")
		sb.WriteString(style.Success.Render("(saved)"))
	}
	sb.WriteString("\n")

	if m.state.Notice != "" {
		noticeStyle := style.Success
		if strings.HasPrefix(m.state.Notice, "Failed") {
			noticeStyle = style.Error
		}

		sb.WriteString(noticeStyle.Render(m.state.Notice))
		sb.WriteString("\n")
	}

	if m.state.Saving {
		sb.WriteString(m.spinner.View())
		sb.WriteString(" ")
		sb.WriteString(style.Subtitle.Render("Saving..."))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")

	if m.editorOpen {
		sb.WriteString(style.Viewport.Render(m.editor.View()))
		sb.WriteString("\n\n")
		sb.WriteString(renderKeyHelp(m.keys.SaveEdit, " "))
		sb.WriteString(renderKeyHelp(m.keys.DiscardEdit, ""))

		return sb.String()
	}

	sb.WriteString(style.Viewport.Render(m.noteView.View()))
	sb.WriteString("\n\n")

	sb.WriteString(renderKeyHelp(m.keys.Save, " "))
	sb.WriteString(renderKeyHelp(m.keys.Edit, " "))
	sb.WriteString(renderKeyHelp(m.keys.Transcript, " "))
	sb.WriteString(renderKeyHelp(m.keys.RecordAgain, " "))
	sb.WriteString(renderKeyHelp(m.keys.Quit, ""))

	return sb.String()
}

func (m *Model) viewError() string {
	var sb strings.Builder

	sb.WriteString(style.Error.Render("Something went wrong"))
	sb.WriteString("\n\n")
	sb.WriteString(m.state.Message)
	sb.WriteString("\n\n")
	sb.WriteString(renderKeyHelp(m.keys.Retry, " "))
	sb.WriteString(renderKeyHelp(m.keys.Quit, ""))

	return sb.String()
}

// completeContent builds the viewport body: either the transcript as
// speaker turns or the formatted note, plus the verification summary
// when present.
func (m *Model) completeContent() string {
	var sb strings.Builder

	if m.showTranscript {
		sb.WriteString(style.Label.Render("Transcript"))
		sb.WriteString("\n\n")

		for _, turn := range m.state.Turns {
			sb.WriteString(style.Key.Render(turn.Speaker + ":"))
			sb.WriteString("\n")
			sb.WriteString(turn.Text)
			sb.WriteString("\n\n")
		}

		return sb.String()
	}

	sb.WriteString(m.state.NoteText)

	if m.state.Verification != "" {
		sb.WriteString("\n")
		sb.WriteString(style.Label.Render("Verification"))
		sb.WriteString("\n")
		sb.WriteString(m.state.Verification)
		sb.WriteString("\n")
	}

	return sb.String()
}

func renderKeyHelp(binding key.Binding, trailer string) string {
	help := binding.Help()

	return style.Key.Render(help.Key) + " " + style.Help.Render(help.Desc) + trailer
}

func formatElapsed(elapsed, maxElapsed int64) string {
	format := func(n int64) string {
		d := time.Duration(n).Round(time.Second)

		return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
	}

	if maxElapsed == 0 {
		return format(elapsed)
	}

	return format(elapsed) + " / " + format(maxElapsed)
}
