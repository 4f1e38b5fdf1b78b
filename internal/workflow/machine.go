// Package workflow is the documentation session orchestrator: a
// finite-state machine composing session setup, audio capture, pipeline
// processing, parsing, and persistence into one lifecycle per visit.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/medscribe/scribe/internal/audio"
	"github.com/medscribe/scribe/internal/notes"
	"github.com/medscribe/scribe/internal/session"
	"github.com/medscribe/scribe/pkg/channels"
)

// User-facing failure messages. The underlying errors go to the log;
// the state carries text specific enough to drive the retry action.
const (
	msgSessionInit = "Failed to initialize documentation session. Please try again."
	msgMicAccess   = "Could not access microphone. Please ensure you have given permission."
	msgRecording   = "Recording failed. Please try again."
	msgProcessing  = "Failed to process recording. Please try again."
)

// Phase tags the workflow state variant.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseReady
	PhaseRecording
	PhaseTranscribing
	PhaseComplete
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseReady:
		return "ready"
	case PhaseRecording:
		return "recording"
	case PhaseTranscribing:
		return "transcribing"
	case PhaseComplete:
		return "complete"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// State is the workflow's tagged variant. Exactly one State is live at
// a time per visit; each emission is a self-contained snapshot.
type State struct {
	Phase   Phase
	VisitID notes.VisitID

	// Ready and later: the session correlation handle.
	Handle session.Handle

	// Transcribing: the artifact being processed, carried as evidence of
	// what is in flight.
	Artifact *audio.Artifact

	// Complete payload.
	Results      notes.ResultSet
	Note         notes.SoapNote
	NoteText     string // authoritative formatted representation of Note
	Transcript   string // raw transcription agent content
	Turns        []notes.Turn
	Verification string // empty when the verification agent is absent

	Editing bool
	Draft   notes.SoapNote // working copy, meaningful only while Editing

	Saving bool
	Saved  bool
	Notice string // transient persistence message, never a phase change

	// Error payload.
	Message string
}

// SessionOpener is the session coordinator as the machine sees it.
type SessionOpener interface {
	Open(ctx context.Context, visitID notes.VisitID) (session.Outcome, error)
	Mint(ctx context.Context, visitID notes.VisitID) (session.Handle, error)
}

// Processor is the remote pipeline as the machine sees it.
type Processor interface {
	Process(ctx context.Context, threadID string, visitID notes.VisitID,
		audio []byte, mimeType string) (notes.ResultSet, error)
}

// Saver is the persistence gateway as the machine sees it.
type Saver interface {
	SaveDocumentation(ctx context.Context, visitID notes.VisitID,
		transcript string, note notes.SoapNote) error
	SaveEditedSoap(ctx context.Context, visitID notes.VisitID, note notes.SoapNote) error
}

// Recorder is one audio capture attempt as the machine sees it.
type Recorder interface {
	Start(ctx context.Context) error
	Stop()
	Cancel()
	Done() <-chan audio.Result
}

// RecorderFactory supplies a fresh Recorder per attempt; capture
// controllers are single-use.
type RecorderFactory func() (Recorder, error)

// Config wires a Machine's collaborators.
type Config struct {
	VisitID     notes.VisitID
	Sessions    SessionOpener
	Processor   Processor
	Saver       Saver
	NewRecorder RecorderFactory
}

// Machine drives the documented lifecycle for one visit:
//
//	Init -> Ready -> Recording -> Transcribing -> Complete
//	Init -> Complete                   (resume shortcut)
//	any  -> Error                      (retry re-enters Init)
//
// Commands are non-blocking; long-running steps run in their own
// goroutine and report back through state emissions. Results of a
// superseded attempt (after cancel, retry, or record-again) are
// discarded on arrival.
type Machine struct {
	conf Config

	mu       sync.Mutex
	state    State
	handle   session.Handle
	recorder Recorder
	abortC   chan struct{}
	attempt  int

	bc       *channels.Broadcaster[State]
	statesIn chan<- State
}

// New creates a workflow machine for a visit.
func New(conf Config) (*Machine, error) {
	if conf.Sessions == nil || conf.Processor == nil || conf.Saver == nil {
		return nil, errors.New("sessions, processor, and saver are required")
	}

	if conf.NewRecorder == nil {
		return nil, errors.New("recorder factory is required")
	}

	return &Machine{ //nolint:exhaustruct // zero values are the Init state
		conf:  conf,
		state: State{Phase: PhaseInit, VisitID: conf.VisitID}, //nolint:exhaustruct
		bc:    channels.NewBroadcaster[State](),
	}, nil
}

// Subscribe registers a channel to receive state snapshots. Must be
// called before Start. Slow subscribers drop snapshots rather than
// stalling the workflow.
func (m *Machine) Subscribe(ch chan<- State) {
	m.bc.Subscribe(ch)
}

// Start runs the state broadcaster and begins session setup. The
// context bounds the whole workflow instance.
func (m *Machine) Start(ctx context.Context) error {
	in, err := m.bc.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to start state broadcaster: %w", err)
	}

	m.mu.Lock()
	m.statesIn = in
	m.mu.Unlock()

	m.open(ctx)

	return nil
}

// State returns a snapshot of the current workflow state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// open (re-)enters Init and establishes or resumes a session.
func (m *Machine) open(ctx context.Context) {
	attempt := m.bumpAttempt()
	m.transition(func(s *State) {
		*s = State{Phase: PhaseInit, VisitID: m.conf.VisitID} //nolint:exhaustruct
	})

	go func() {
		outcome, err := m.conf.Sessions.Open(ctx, m.conf.VisitID)
		if m.stale(attempt) {
			return
		}

		if err != nil {
			m.fail(msgSessionInit, err)
			return
		}

		switch outcome.Kind {
		case session.OutcomeExisting:
			// Resume shortcut: straight to Complete, skipping
			// Ready/Recording/Transcribing entirely.
			m.completeExisting(outcome)

		case session.OutcomeFresh:
			m.mu.Lock()
			m.handle = outcome.Handle
			m.mu.Unlock()

			m.transition(func(s *State) {
				s.Phase = PhaseReady
				s.Handle = outcome.Handle
			})
		}
	}()
}

// StartRecording acquires the microphone and enters Recording. Valid
// only in Ready; anywhere else it is ignored.
func (m *Machine) StartRecording(ctx context.Context) {
	m.mu.Lock()
	if m.state.Phase != PhaseReady {
		m.mu.Unlock()
		return
	}
	handle := m.handle
	m.mu.Unlock()

	rec, err := m.conf.NewRecorder()
	if err != nil {
		m.fail(msgMicAccess, err)
		return
	}

	if err := rec.Start(ctx); err != nil {
		m.fail(msgMicAccess, err)
		return
	}

	abortC := make(chan struct{})

	m.mu.Lock()
	m.recorder = rec
	m.abortC = abortC
	attempt := m.attempt
	m.mu.Unlock()

	m.transition(func(s *State) {
		s.Phase = PhaseRecording
		s.Handle = handle
	})

	go m.awaitArtifact(ctx, rec, handle, attempt, abortC)
}

// StopRecording requests finalization of the running capture. The
// finalized artifact flows into processing automatically.
func (m *Machine) StopRecording() {
	m.mu.Lock()
	rec := m.recorder
	capturing := m.state.Phase == PhaseRecording
	m.mu.Unlock()

	if capturing && rec != nil {
		rec.Stop()
	}
}

// CancelRecording discards the running capture and returns to Ready.
// The session handle is kept: nothing was submitted under it.
func (m *Machine) CancelRecording() {
	m.mu.Lock()
	if m.state.Phase != PhaseRecording {
		m.mu.Unlock()
		return
	}
	rec := m.recorder
	abortC := m.abortC
	m.recorder = nil
	m.attempt++
	handle := m.handle
	m.mu.Unlock()

	if abortC != nil {
		close(abortC)
	}

	rec.Cancel()

	m.transition(func(s *State) {
		*s = State{Phase: PhaseReady, VisitID: m.conf.VisitID, Handle: handle} //nolint:exhaustruct
	})
}

// awaitArtifact waits for the capture result, then submits it to the
// pipeline. Runs in its own goroutine for the life of one attempt.
func (m *Machine) awaitArtifact(
	ctx context.Context,
	rec Recorder,
	handle session.Handle,
	attempt int,
	abortC <-chan struct{},
) {
	var result audio.Result
	select {
	case result = <-rec.Done():
	case <-abortC:
		return
	case <-ctx.Done():
		return
	}

	if m.stale(attempt) {
		return
	}

	if result.Err != nil {
		m.fail(msgRecording, result.Err)
		return
	}

	artifact := result.Artifact

	m.transition(func(s *State) {
		s.Phase = PhaseTranscribing
		s.Artifact = artifact
	})

	results, err := m.conf.Processor.Process(ctx, handle.ThreadID, m.conf.VisitID,
		artifact.Bytes(), artifact.MIMEType())
	if m.stale(attempt) {
		slog.Info("discarding results of superseded attempt",
			"visitID", m.conf.VisitID, "threadID", handle.ThreadID)
		return
	}

	if err != nil {
		m.fail(msgProcessing, err)
		return
	}

	m.completeFromResults(results)
}

// completeFromResults derives the Complete payload from a fresh agent
// result set. A degraded set (missing agents, unparseable text) still
// completes: placeholders are a valid, savable result.
func (m *Machine) completeFromResults(results notes.ResultSet) {
	transcript := ""
	if r, ok := results.Find(notes.AgentTranscription); ok {
		transcript = r.Content
	} else {
		slog.Warn("pipeline returned no transcription agent result", "visitID", m.conf.VisitID)
	}

	note := notes.PlaceholderNote()
	if r, ok := results.Find(notes.AgentDocumentation); ok {
		note = notes.ExtractSoap(r.Content)
	} else {
		slog.Warn("pipeline returned no documentation agent result", "visitID", m.conf.VisitID)
	}

	verification := ""
	if r, ok := results.Find(notes.AgentVerification); ok {
		verification = r.Content
	}

	m.transition(func(s *State) {
		*s = State{ //nolint:exhaustruct
			Phase:        PhaseComplete,
			VisitID:      m.conf.VisitID,
			Handle:       s.Handle,
			Results:      results,
			Note:         note,
			NoteText:     notes.FormatSoap(note),
			Transcript:   transcript,
			Turns:        notes.ExtractTranscriptTurns(transcript),
			Verification: verification,
		}
	})
}

// completeExisting enters Complete from a resumed, already-saved
// result.
func (m *Machine) completeExisting(outcome session.Outcome) {
	m.transition(func(s *State) {
		*s = State{ //nolint:exhaustruct
			Phase:      PhaseComplete,
			VisitID:    m.conf.VisitID,
			Note:       outcome.Note,
			NoteText:   notes.FormatSoap(outcome.Note),
			Transcript: outcome.Transcript,
			Turns:      notes.ExtractTranscriptTurns(outcome.Transcript),
			Saved:      true,
			Notice:     "Loaded previously saved documentation.",
		}
	})
}

// Save persists the completed documentation. A failure keeps the
// rendered results and stays in Complete; saving remains
// re-triggerable.
func (m *Machine) Save(ctx context.Context) {
	m.mu.Lock()
	if m.state.Phase != PhaseComplete || m.state.Editing || m.state.Saving {
		m.mu.Unlock()
		return
	}
	transcript := m.state.Transcript
	note := m.state.Note
	attempt := m.attempt
	m.mu.Unlock()

	m.transition(func(s *State) {
		s.Saving = true
		s.Notice = ""
	})

	go func() {
		err := m.conf.Saver.SaveDocumentation(ctx, m.conf.VisitID, transcript, note)
		if m.stale(attempt) {
			return
		}

		m.transition(func(s *State) {
			s.Saving = false
			if err != nil {
				slog.Error("failed to save documentation", "visitID", m.conf.VisitID, "error", err)
				s.Notice = fmt.Sprintf("Failed to save documentation: %v", err)
				return
			}

			s.Saved = true
			s.Notice = "Documentation saved successfully."
		})
	}()
}

// BeginEdit enters edit mode: the working copy starts as the
// authoritative note. Phase stays Complete.
func (m *Machine) BeginEdit() {
	m.transitionIf(PhaseComplete, func(s *State) {
		if s.Editing {
			return
		}
		s.Editing = true
		s.Draft = s.Note
	})
}

// UpdateDraft replaces the editable working copy. Only the draft
// mutates; the authoritative note is untouched until SaveEdit.
func (m *Machine) UpdateDraft(draft notes.SoapNote) {
	m.transitionIf(PhaseComplete, func(s *State) {
		if !s.Editing {
			return
		}
		s.Draft = draft
	})
}

// DiscardEdit leaves edit mode dropping the working copy.
func (m *Machine) DiscardEdit() {
	m.transitionIf(PhaseComplete, func(s *State) {
		s.Editing = false
		s.Draft = notes.SoapNote{} //nolint:exhaustruct
	})
}

// SaveEdit persists only the edited note. On success the authoritative
// note and its formatted text are replaced together; on failure edit
// mode stays open with the draft intact.
func (m *Machine) SaveEdit(ctx context.Context) {
	m.mu.Lock()
	if m.state.Phase != PhaseComplete || !m.state.Editing || m.state.Saving {
		m.mu.Unlock()
		return
	}
	draft := m.state.Draft
	attempt := m.attempt
	m.mu.Unlock()

	m.transition(func(s *State) {
		s.Saving = true
		s.Notice = ""
	})

	go func() {
		err := m.conf.Saver.SaveEditedSoap(ctx, m.conf.VisitID, draft)
		if m.stale(attempt) {
			return
		}

		m.transition(func(s *State) {
			s.Saving = false
			if err != nil {
				slog.Error("failed to save edited note", "visitID", m.conf.VisitID, "error", err)
				s.Notice = fmt.Sprintf("Failed to save edited note: %v", err)
				return
			}

			s.Note = draft
			s.NoteText = notes.FormatSoap(draft)
			s.Editing = false
			s.Draft = notes.SoapNote{} //nolint:exhaustruct
			s.Notice = "Edited note saved."
		})
	}()
}

// RecordAgain discards the current results and re-enters Ready with a
// freshly minted session handle. Any still-pending remote work from the
// previous attempt is not cancelled; its results are discarded on
// arrival.
func (m *Machine) RecordAgain(ctx context.Context) {
	m.mu.Lock()
	if m.state.Phase != PhaseComplete {
		m.mu.Unlock()
		return
	}
	m.attempt++
	attempt := m.attempt
	m.mu.Unlock()

	m.transition(func(s *State) {
		*s = State{Phase: PhaseInit, VisitID: m.conf.VisitID} //nolint:exhaustruct
	})

	go func() {
		handle, err := m.conf.Sessions.Mint(ctx, m.conf.VisitID)
		if m.stale(attempt) {
			return
		}

		if err != nil {
			m.fail(msgSessionInit, err)
			return
		}

		m.mu.Lock()
		m.handle = handle
		m.mu.Unlock()

		m.transition(func(s *State) {
			s.Phase = PhaseReady
			s.Handle = handle
		})
	}()
}

// Retry restarts from Init after an error. Partial progress is not
// preserved; the session is re-opened from scratch.
func (m *Machine) Retry(ctx context.Context) {
	m.mu.Lock()
	isError := m.state.Phase == PhaseError
	m.mu.Unlock()

	if !isError {
		return
	}

	m.open(ctx)
}

// fail moves to Error with a message specific enough to drive retry.
func (m *Machine) fail(message string, err error) {
	slog.Error("workflow failed", "visitID", m.conf.VisitID, "message", message, "error", err)

	m.transition(func(s *State) {
		*s = State{ //nolint:exhaustruct
			Phase:   PhaseError,
			VisitID: m.conf.VisitID,
			Message: message,
		}
	})
}

// bumpAttempt invalidates all in-flight async work.
func (m *Machine) bumpAttempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempt++

	return m.attempt
}

// stale reports whether the attempt that produced a result has been
// superseded.
func (m *Machine) stale(attempt int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return attempt != m.attempt
}

func (m *Machine) transition(mutate func(s *State)) {
	m.mu.Lock()
	mutate(&m.state)
	snapshot := m.state
	statesIn := m.statesIn
	m.mu.Unlock()

	slog.Debug("workflow state", "visitID", m.conf.VisitID, "phase", snapshot.Phase.String())

	m.emit(statesIn, snapshot)
}

func (m *Machine) transitionIf(phase Phase, mutate func(s *State)) {
	m.mu.Lock()
	if m.state.Phase != phase {
		m.mu.Unlock()
		return
	}
	mutate(&m.state)
	snapshot := m.state
	statesIn := m.statesIn
	m.mu.Unlock()

	m.emit(statesIn, snapshot)
}

// emit hands a snapshot to the broadcaster. The input channel closes
// on shutdown while async work may still be settling; a failed send
// then is expected and dropped.
func (m *Machine) emit(statesIn chan<- State, snapshot State) {
	if statesIn == nil {
		return
	}

	if err := channels.SendWithTimeout(statesIn, snapshot, time.Second); err != nil {
		slog.Debug("dropped state emission", "phase", snapshot.Phase.String(), "error", err)
	}
}
