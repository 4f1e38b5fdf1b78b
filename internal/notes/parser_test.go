package notes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSoapAllSections(t *testing.T) {
	content := "**Subjective:** Patient reports mild headache for two days.\n" +
		"**Objective:** BP 120/80, afebrile.\n" +
		"**Assessment:** Tension headache.\n" +
		"**Plan:** Ibuprofen 400mg PRN, follow up in one week."

	note := ExtractSoap(content)

	assert.Equal(t, "Patient reports mild headache for two days.", note.Subjective)
	assert.Equal(t, "BP 120/80, afebrile.", note.Objective)
	assert.Equal(t, "Tension headache.", note.Assessment)
	assert.Equal(t, "Ibuprofen 400mg PRN, follow up in one week.", note.Plan)
}

func TestExtractSoapSingleMissingLabel(t *testing.T) {
	tests := []struct {
		name    string
		omit    string
		content string
	}{
		{
			name: "missing subjective",
			omit: "subjective",
			content: "**Objective:** obj\n**Assessment:** asmt\n**Plan:** plan",
		},
		{
			name: "missing objective",
			omit: "objective",
			content: "**Subjective:** subj\n**Assessment:** asmt\n**Plan:** plan",
		},
		{
			name: "missing assessment",
			omit: "assessment",
			content: "**Subjective:** subj\n**Objective:** obj\n**Plan:** plan",
		},
		{
			name: "missing plan",
			omit: "plan",
			content: "**Subjective:** subj\n**Objective:** obj\n**Assessment:** asmt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note := ExtractSoap(tt.content)

			fields := map[string]string{
				"subjective": note.Subjective,
				"objective":  note.Objective,
				"assessment": note.Assessment,
				"plan":       note.Plan,
			}

			for section, value := range fields {
				if section == tt.omit {
					assert.Equal(t, Placeholder(section), value)
				} else {
					assert.NotEqual(t, Placeholder(section), value)
					assert.NotEmpty(t, value)
				}
			}
		})
	}
}

func TestExtractSoapEmptyInput(t *testing.T) {
	assert.Equal(t, PlaceholderNote(), ExtractSoap(""))
}

func TestExtractSoapOrderIndependent(t *testing.T) {
	content := "**Plan:** plan text\n**Subjective:** subj text\n" +
		"**Assessment:** asmt text\n**Objective:** obj text"

	note := ExtractSoap(content)

	assert.Equal(t, "subj text", note.Subjective)
	assert.Equal(t, "obj text", note.Objective)
	assert.Equal(t, "asmt text", note.Assessment)
	assert.Equal(t, "plan text", note.Plan)
}

func TestExtractSoapStopsAtAnyMarker(t *testing.T) {
	// A section ends at the next marker of any kind, not only at the
	// next SOAP label.
	content := "**Subjective:** subj text\n**Notes:** unrelated\n**Objective:** obj text"

	note := ExtractSoap(content)

	assert.Equal(t, "subj text", note.Subjective)
	assert.Equal(t, "obj text", note.Objective)
}

func TestFormatSoapRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		note SoapNote
	}{
		{
			name: "plain fields",
			note: SoapNote{
				Subjective: "Patient reports cough.",
				Objective:  "Lungs clear to auscultation.",
				Assessment: "Viral URI.",
				Plan:       "Rest and fluids.",
			},
		},
		{
			name: "multiline fields",
			note: SoapNote{
				Subjective: "Line one.\nLine two.",
				Objective:  "Vitals stable.",
				Assessment: "Stable.",
				Plan:       "1. Rest\n2. Hydrate",
			},
		},
		{
			name: "placeholder note",
			note: PlaceholderNote(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.note, ExtractSoap(FormatSoap(tt.note)))
		})
	}
}

func TestExtractTranscriptTurns(t *testing.T) {
	content := "**Doctor:** How are you feeling today?\n" +
		"**Patient:** Much better, thanks.\n" +
		"**Doctor:** Good to hear."

	turns := ExtractTranscriptTurns(content)

	require.Len(t, turns, 3)
	assert.Equal(t, Turn{Speaker: "Doctor", Text: "How are you feeling today?"}, turns[0])
	assert.Equal(t, Turn{Speaker: "Patient", Text: "Much better, thanks."}, turns[1])
	assert.Equal(t, Turn{Speaker: "Doctor", Text: "Good to hear."}, turns[2])
}

func TestExtractTranscriptTurnsNoMarkers(t *testing.T) {
	content := "raw transcription text\nwith no speaker markers at all  "

	turns := ExtractTranscriptTurns(content)

	require.Len(t, turns, 1)
	assert.Empty(t, turns[0].Speaker)
	// The fallback turn carries the content unmodified.
	assert.Equal(t, content, turns[0].Text)
}

func TestResultSetFind(t *testing.T) {
	rs := ResultSet{
		{Agent: AgentTranscription, Content: "first"},
		{Agent: AgentDocumentation, Content: "soap"},
		{Agent: AgentTranscription, Content: "duplicate"},
	}

	r, ok := rs.Find(AgentTranscription)
	require.True(t, ok)
	assert.Equal(t, "first", r.Content)

	_, ok = rs.Find(AgentVerification)
	assert.False(t, ok)
}
