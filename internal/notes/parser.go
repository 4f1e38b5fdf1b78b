package notes

import (
	"fmt"
	"regexp"
	"strings"
)

// The pipeline delimits labeled sections with literal markers of the
// form **Label:**. A section's content runs from its marker to the next
// marker of any kind, or to the end of the input. Both the SOAP
// extractor and the transcript extractor share this one boundary rule.
var markerPattern = regexp.MustCompile(`\*\*([^*\n]+?):\*\*`)

// section is one marker-delimited region of the input.
type section struct {
	label   string
	content string
}

// splitSections returns all marker-delimited sections in document order.
func splitSections(content string) []section {
	matches := markerPattern.FindAllStringSubmatchIndex(content, -1)
	sections := make([]section, 0, len(matches))

	for i, m := range matches {
		end := len(content)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		sections = append(sections, section{
			label:   content[m[2]:m[3]],
			content: content[m[1]:end],
		})
	}

	return sections
}

// ExtractSoap parses agent text into a SoapNote. Each of the four
// labels is located independently; a missing label yields that field's
// placeholder. Extracted text is trimmed of surrounding whitespace.
// Parsing never fails: arbitrary input produces a valid note.
func ExtractSoap(content string) SoapNote {
	note := PlaceholderNote()

	for _, s := range splitSections(content) {
		text := strings.TrimSpace(s.content)

		switch strings.TrimSpace(s.label) {
		case "Subjective":
			note.Subjective = text
		case "Objective":
			note.Objective = text
		case "Assessment":
			note.Assessment = text
		case "Plan":
			note.Plan = text
		}
	}

	return note
}

// ExtractTranscriptTurns parses agent text into speaker turns of the
// form **Speaker:** text. If no marker matches anywhere, the whole
// content is returned verbatim as a single anonymous turn so raw
// transcripts still display. Never an error.
func ExtractTranscriptTurns(content string) []Turn {
	sections := splitSections(content)
	if len(sections) == 0 {
		return []Turn{{Speaker: "", Text: content}}
	}

	turns := make([]Turn, 0, len(sections))
	for _, s := range sections {
		turns = append(turns, Turn{
			Speaker: strings.TrimSpace(s.label),
			Text:    strings.TrimSpace(s.content),
		})
	}

	return turns
}

// FormatSoap renders a note in the same marker convention the pipeline
// produces, in the fixed order Subjective, Objective, Assessment, Plan.
// For any note whose fields contain no marker token this round-trips
// through ExtractSoap without loss.
func FormatSoap(note SoapNote) string {
	var sb strings.Builder

	write := func(label, text string) {
		fmt.Fprintf(&sb, "**%s:**\n%s\n\n", label, text)
	}

	write("Subjective", note.Subjective)
	write("Objective", note.Objective)
	write("Assessment", note.Assessment)
	write("Plan", note.Plan)

	return sb.String()
}
