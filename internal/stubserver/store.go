package stubserver

import (
	"fmt"
	"sync"

	"github.com/medscribe/scribe/internal/api"
	"github.com/medscribe/scribe/internal/notes"
)

// Canned agent output, in the marker format the parser expects.
const (
	cannedTranscript = "**Doctor:**\nWhat brings you in today?\n\n" +
		"**Patient:**\nI've had a persistent cough for about a week.\n\n" +
		"**Doctor:**\nAny fever or shortness of breath?\n\n" +
		"**Patient:**\nNo fever, just the cough."

	cannedNote = "**Subjective:**\nPatient reports a persistent cough of one week, denies fever or dyspnea.\n\n" +
		"**Objective:**\nLungs clear to auscultation. Afebrile.\n\n" +
		"**Assessment:**\nLikely post-viral cough.\n\n" +
		"**Plan:**\nSupportive care. Return if symptoms persist beyond two weeks."

	cannedVerification = "No discrepancies found between transcript and documentation."
)

// store is the stub's in-memory state: seeded visits plus whatever the
// client saves back.
type store struct {
	mu          sync.Mutex
	visits      map[notes.VisitID]api.Visit
	transcripts map[notes.VisitID]string
	soaps       map[notes.VisitID]notes.SoapNote
	threads     map[string]notes.VisitID
	nextThread  int
}

func newStore() *store {
	return &store{ //nolint:exhaustruct
		visits: map[notes.VisitID]api.Visit{
			1: {VisitID: 1, PatientID: 101, Status: notes.StatusScheduled},
			2: {VisitID: 2, PatientID: 102, Status: notes.StatusInProgress},
			3: {VisitID: 3, PatientID: 103, Status: notes.StatusCompleted},
		},
		transcripts: map[notes.VisitID]string{
			3: cannedTranscript,
		},
		soaps: map[notes.VisitID]notes.SoapNote{
			3: notes.ExtractSoap(cannedNote),
		},
		threads: map[string]notes.VisitID{},
	}
}

func (s *store) mintThread(visitID notes.VisitID) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextThread++
	threadID := fmt.Sprintf("stub-thread-%d", s.nextThread)
	s.threads[threadID] = visitID

	// Unknown visits get a record on first contact so the workflow can
	// be exercised with arbitrary ids.
	if _, ok := s.visits[visitID]; !ok {
		s.visits[visitID] = api.Visit{VisitID: visitID, PatientID: 0, Status: notes.StatusInProgress}
	}

	return threadID
}

func (s *store) threadKnown(threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.threads[threadID]

	return ok
}

func (s *store) visit(visitID notes.VisitID) (api.Visit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.visits[visitID]

	return v, ok
}

func (s *store) setStatus(visitID notes.VisitID, status notes.VisitStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.visits[visitID]
	if !ok {
		return false
	}

	v.Status = status
	s.visits[visitID] = v

	return true
}

func (s *store) transcript(visitID notes.VisitID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transcripts[visitID]

	return t, ok
}

func (s *store) soap(visitID notes.VisitID) (notes.SoapNote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.soaps[visitID]

	return n, ok
}

func (s *store) saveTranscript(visitID notes.VisitID, transcript string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcripts[visitID] = transcript
}

func (s *store) saveSoap(visitID notes.VisitID, note notes.SoapNote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.soaps[visitID] = note
}
