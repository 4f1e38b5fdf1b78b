// Package notes holds the documentation domain types and the parser for
// the marker-delimited text the agent pipeline produces.
package notes

import "fmt"

// VisitID identifies the clinical encounter being documented. It is
// immutable for the lifetime of a workflow instance.
type VisitID int64

// AgentName identifies a stage of the remote pipeline.
type AgentName string

const (
	AgentTranscription AgentName = "TranscriptionAgent"
	AgentDocumentation AgentName = "DocumentationAgent"
	AgentVerification  AgentName = "VerificationAgent"
)

// AgentResult is one labeled text result from the pipeline.
type AgentResult struct {
	Agent   AgentName `json:"agent"`
	Content string    `json:"content"`
}

// ResultSet is the full set of agent results for one processing call.
type ResultSet []AgentResult

// Find returns the first result for the given agent. Agent names are
// unique within a well-formed response; on duplicates the first match
// is authoritative.
func (rs ResultSet) Find(agent AgentName) (AgentResult, bool) {
	for _, r := range rs {
		if r.Agent == agent {
			return r, true
		}
	}

	return AgentResult{}, false
}

// SoapNote is a structured clinical note. All four fields are always
// populated; sections that could not be parsed carry their placeholder
// text rather than an empty string.
type SoapNote struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"treatment_plan"`
}

// Placeholder returns the text used when a section cannot be parsed.
func Placeholder(section string) string {
	return fmt.Sprintf("No %s information provided.", section)
}

// PlaceholderNote returns a SoapNote with every section set to its
// placeholder. This is a valid, displayable, savable note.
func PlaceholderNote() SoapNote {
	return SoapNote{
		Subjective: Placeholder("subjective"),
		Objective:  Placeholder("objective"),
		Assessment: Placeholder("assessment"),
		Plan:       Placeholder("plan"),
	}
}

// Turn is one speaker turn of a transcript.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// VisitStatus is the lifecycle status of a clinical visit.
type VisitStatus string

const (
	StatusScheduled  VisitStatus = "Scheduled"
	StatusInProgress VisitStatus = "In Progress"
	StatusCompleted  VisitStatus = "Completed"
	StatusCanceled   VisitStatus = "Canceled"
)

// NoTranscript is the degraded stand-in persisted when a transcript is
// missing but the SOAP note is still worth saving.
const NoTranscript = "No transcript available."
