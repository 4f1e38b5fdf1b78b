package audio

import "time"

// MIMETypeMP3 is the declared type of every artifact this package
// produces.
const MIMETypeMP3 = "audio/mpeg"

// Artifact is a finalized, immutable recording: encoded audio bytes
// plus their declared mime type. It is produced exactly once per
// recording attempt; re-recording produces a new artifact.
type Artifact struct {
	data     []byte
	mimeType string
	duration time.Duration
}

func newArtifact(data []byte, duration time.Duration) *Artifact {
	return &Artifact{
		data:     data,
		mimeType: MIMETypeMP3,
		duration: duration,
	}
}

// TestArtifact builds an artifact from pre-encoded bytes. For tests
// that need an artifact without running a capture.
func TestArtifact(data []byte, duration time.Duration) *Artifact {
	return newArtifact(data, duration)
}

// Bytes returns the encoded audio. Callers must not mutate it.
func (a *Artifact) Bytes() []byte { return a.data }

// MIMEType returns the declared mime type of the encoded audio.
func (a *Artifact) MIMEType() string { return a.mimeType }

// Duration returns the wall-clock length of the recording.
func (a *Artifact) Duration() time.Duration { return a.duration }
