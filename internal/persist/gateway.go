// Package persist commits a finished documentation result through the
// collaborator save endpoints with correct partial-failure semantics.
package persist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/medscribe/scribe/internal/notes"
)

// Store is the collaborator persistence surface as the gateway sees it.
type Store interface {
	SaveTranscript(ctx context.Context, visitID notes.VisitID, text string) error
	SaveSoap(ctx context.Context, visitID notes.VisitID, note notes.SoapNote) error
	UpdateVisitStatus(ctx context.Context, visitID notes.VisitID, status notes.VisitStatus) error
}

// SaveError reports which part of a documentation save failed. The
// rendered results stay valid; saving is re-triggerable.
type SaveError struct {
	TranscriptErr error
	NoteErr       error
}

func (e *SaveError) Error() string {
	switch {
	case e.TranscriptErr != nil && e.NoteErr != nil:
		return fmt.Sprintf("failed to save transcript (%v) and SOAP note (%v)",
			e.TranscriptErr, e.NoteErr)
	case e.TranscriptErr != nil:
		return fmt.Sprintf("failed to save transcript: %v", e.TranscriptErr)
	default:
		return fmt.Sprintf("failed to save SOAP note: %v", e.NoteErr)
	}
}

// Gateway persists transcripts, notes, and visit status.
type Gateway struct {
	store Store
}

// NewGateway creates a persistence gateway.
func NewGateway(store Store) *Gateway {
	return &Gateway{store: store}
}

// SaveDocumentation saves the transcript and the structured note
// concurrently, waits for both to settle, and marks the visit Completed
// only if both succeeded. The status update is strictly ordered after
// both saves; on any save failure the status is left unchanged and the
// returned SaveError names the failing part.
//
// An absent transcript is tolerated: the SOAP note may still be
// independently useful, so a degraded placeholder is saved instead of
// aborting.
func (g *Gateway) SaveDocumentation(
	ctx context.Context,
	visitID notes.VisitID,
	transcript string,
	note notes.SoapNote,
) error {
	if strings.TrimSpace(transcript) == "" {
		slog.Warn("no transcript to save, substituting placeholder", "visitID", visitID)
		transcript = notes.NoTranscript
	}

	var transcriptErr, noteErr error

	// The single explicitly-concurrent point of the workflow: both saves
	// must be attempted regardless of the other's outcome, so errors are
	// collected rather than short-circuiting the group.
	var group errgroup.Group
	group.Go(func() error {
		transcriptErr = g.store.SaveTranscript(ctx, visitID, transcript)
		return nil
	})
	group.Go(func() error {
		noteErr = g.store.SaveSoap(ctx, visitID, note)
		return nil
	})
	_ = group.Wait()

	if transcriptErr != nil || noteErr != nil {
		return &SaveError{TranscriptErr: transcriptErr, NoteErr: noteErr}
	}

	if err := g.store.UpdateVisitStatus(ctx, visitID, notes.StatusCompleted); err != nil {
		return fmt.Errorf("documentation saved but visit status update failed: %w", err)
	}

	return nil
}

// SaveEditedSoap re-saves only the structured note: no transcript, no
// status change. Used from edit mode.
func (g *Gateway) SaveEditedSoap(ctx context.Context, visitID notes.VisitID, note notes.SoapNote) error {
	if err := g.store.SaveSoap(ctx, visitID, note); err != nil {
		return fmt.Errorf("failed to save edited SOAP note: %w", err)
	}

	return nil
}
