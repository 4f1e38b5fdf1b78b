// Package session establishes or resumes a documentation processing
// session for a visit.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/medscribe/scribe/internal/api"
	"github.com/medscribe/scribe/internal/notes"
)

// Handle correlates every subsequent pipeline call for one encounter.
// Created once per workflow attempt, never mutated, never reused across
// visits.
type Handle struct {
	VisitID  notes.VisitID
	ThreadID string
}

// InitError reports that a session could neither be created nor
// resumed. Calling Open again is the retry path; Open is idempotent.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to initialize documentation session: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	// OutcomeFresh means a new processing session was created.
	OutcomeFresh OutcomeKind = iota
	// OutcomeExisting means the visit is already documented; the saved
	// result was hydrated and no session was created.
	OutcomeExisting
)

// Outcome is the result of opening a session for a visit.
type Outcome struct {
	Kind OutcomeKind

	// Fresh payload.
	Handle Handle

	// Existing payload. Missing pieces are represented, not omitted: a
	// missing transcript hydrates as notes.NoTranscript and a missing
	// note hydrates as the all-placeholder note.
	Transcript string
	Note       notes.SoapNote
}

// VisitService is the visit collaborator as the coordinator sees it.
type VisitService interface {
	Visit(ctx context.Context, visitID notes.VisitID) (api.Visit, error)
}

// DocumentationService is the documentation collaborator as the
// coordinator sees it.
type DocumentationService interface {
	CreateSession(ctx context.Context, visitID notes.VisitID) (string, error)
	Transcript(ctx context.Context, visitID notes.VisitID) (string, error)
	Soap(ctx context.Context, visitID notes.VisitID) (notes.SoapNote, error)
}

// Coordinator obtains a processing session handle for a visit,
// including resuming an already-completed visit's saved result without
// re-recording.
type Coordinator struct {
	visits VisitService
	docs   DocumentationService
}

// NewCoordinator creates a session coordinator.
func NewCoordinator(visits VisitService, docs DocumentationService) *Coordinator {
	return &Coordinator{
		visits: visits,
		docs:   docs,
	}
}

// Open checks whether the visit already has a completed result and
// either hydrates it (Existing) or mints a new session (Fresh). Safe to
// call repeatedly: each call is a fresh attempt with no retained state.
func (c *Coordinator) Open(ctx context.Context, visitID notes.VisitID) (Outcome, error) {
	visit, statusErr := c.visits.Visit(ctx, visitID)
	if statusErr == nil && visit.Status == notes.StatusCompleted {
		return c.hydrateExisting(ctx, visitID), nil
	}

	if statusErr != nil {
		slog.Warn("visit status check failed, attempting fresh session",
			"visitID", visitID, "error", statusErr)
	}

	handle, err := c.Mint(ctx, visitID)
	if err != nil {
		if statusErr != nil {
			return Outcome{}, &InitError{Err: errors.Join(statusErr, err)}
		}

		return Outcome{}, err
	}

	return Outcome{ //nolint:exhaustruct // Fresh payload only
		Kind:   OutcomeFresh,
		Handle: handle,
	}, nil
}

// Mint creates a new processing session unconditionally, skipping the
// completed-visit check. Re-recording into a completed visit always
// mints a fresh handle; thread ids are never reused.
func (c *Coordinator) Mint(ctx context.Context, visitID notes.VisitID) (Handle, error) {
	threadID, err := c.docs.CreateSession(ctx, visitID)
	if err != nil {
		return Handle{}, &InitError{Err: err}
	}

	return Handle{
		VisitID:  visitID,
		ThreadID: threadID,
	}, nil
}

// hydrateExisting fetches whatever pieces of the completed result still
// exist. Partial retrievability degrades to placeholders rather than
// failing the resume.
func (c *Coordinator) hydrateExisting(ctx context.Context, visitID notes.VisitID) Outcome {
	transcript, err := c.docs.Transcript(ctx, visitID)
	if err != nil {
		slog.Warn("completed visit has no retrievable transcript",
			"visitID", visitID, "error", err)
		transcript = notes.NoTranscript
	}

	note, err := c.docs.Soap(ctx, visitID)
	if err != nil {
		slog.Warn("completed visit has no retrievable SOAP note",
			"visitID", visitID, "error", err)
		note = notes.PlaceholderNote()
	}

	return Outcome{ //nolint:exhaustruct // Existing payload only
		Kind:       OutcomeExisting,
		Transcript: transcript,
		Note:       note,
	}
}
