// Package api is the HTTP client for the collaborator services: visit
// lookup, documentation session/processing, and persistence endpoints.
// The transport convention follows the pipeline service: multipart form
// posts in, JSON out.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/medscribe/scribe/internal/notes"
)

// ErrNotFound reports that the requested record does not exist, for
// example a transcript that was never saved for a visit.
var ErrNotFound = errors.New("record not found")

// ProcessingError reports a failed pipeline call: either a non-success
// response (StatusCode > 0) or a transport failure (StatusCode == 0).
type ProcessingError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *ProcessingError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("processing failed with status %d: %s", e.StatusCode, e.Detail)
	}

	return fmt.Sprintf("processing failed: %s", e.Detail)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Visit is the collaborator's view of a clinical visit, reduced to the
// fields the orchestrator reads.
type Visit struct {
	VisitID   notes.VisitID     `json:"VisitID"`
	PatientID int64             `json:"PatientID"`
	Status    notes.VisitStatus `json:"Status"`
}

// Config configures a Client. BaseURL is required; there is no ambient
// default endpoint.
type Config struct {
	BaseURL string

	// HTTPClient overrides the transport, used by tests. The default has
	// no client-side timeout: processing is a minutes-scale call bounded
	// by the caller's context.
	HTTPClient *http.Client
}

// Client calls the collaborator REST surface.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a collaborator API client.
func NewClient(conf Config) (*Client, error) {
	if conf.BaseURL == "" {
		return nil, errors.New("API base URL is required")
	}

	httpc := conf.HTTPClient
	if httpc == nil {
		httpc = &http.Client{} //nolint:exhaustruct // context bounds each call
	}

	return &Client{
		baseURL: strings.TrimRight(conf.BaseURL, "/"),
		httpc:   httpc,
	}, nil
}

// CreateSession asks the pipeline for a new documentation session and
// returns the correlation thread id.
func (c *Client) CreateSession(ctx context.Context, visitID notes.VisitID) (string, error) {
	form := newForm()
	form.field("visit_id", formatVisitID(visitID))

	var resp struct {
		ThreadID string `json:"thread_id"`
	}

	if err := c.postForm(ctx, "/documentation/sessions", form, &resp); err != nil {
		return "", fmt.Errorf("failed to create documentation session: %w", err)
	}

	return resp.ThreadID, nil
}

// Process uploads the session correlation data and the encoded audio in
// one request and blocks until the pipeline returns the full agent
// result set. There are no partial or streaming results.
func (c *Client) Process(
	ctx context.Context,
	threadID string,
	visitID notes.VisitID,
	audio []byte,
	mimeType string,
) (notes.ResultSet, error) {
	form := newForm()
	form.field("thread_id", threadID)
	form.field("visit_id", formatVisitID(visitID))

	if err := form.file("audio", "recording.mp3", mimeType, audio); err != nil {
		return nil, &ProcessingError{StatusCode: 0, Detail: err.Error(), Err: err}
	}

	return c.process(ctx, form)
}

// ProcessTranscript is the pipeline's text-input variant: an existing
// transcript is processed instead of audio.
func (c *Client) ProcessTranscript(
	ctx context.Context,
	threadID string,
	visitID notes.VisitID,
	transcript string,
) (notes.ResultSet, error) {
	form := newForm()
	form.field("thread_id", threadID)
	form.field("visit_id", formatVisitID(visitID))
	form.field("transcript", transcript)

	return c.process(ctx, form)
}

func (c *Client) process(ctx context.Context, form *form) (notes.ResultSet, error) {
	var resp struct {
		Responses notes.ResultSet `json:"responses"`
	}

	if err := c.postForm(ctx, "/documentation/process", form, &resp); err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) {
			return nil, &ProcessingError{
				StatusCode: statusErr.code,
				Detail:     statusErr.detail,
				Err:        err,
			}
		}

		return nil, &ProcessingError{StatusCode: 0, Detail: err.Error(), Err: err}
	}

	return resp.Responses, nil
}

// Visit fetches the visit record, used to detect already-completed
// documentation.
func (c *Client) Visit(ctx context.Context, visitID notes.VisitID) (Visit, error) {
	var visit Visit
	if err := c.get(ctx, "/visits/"+formatVisitID(visitID), &visit); err != nil {
		return Visit{}, fmt.Errorf("failed to fetch visit %d: %w", visitID, err)
	}

	return visit, nil
}

// Transcript fetches a previously saved transcript. Returns ErrNotFound
// when none exists for the visit.
func (c *Client) Transcript(ctx context.Context, visitID notes.VisitID) (string, error) {
	var resp struct {
		TranscriptText string `json:"transcript_text"`
	}

	if err := c.get(ctx, "/documentation/transcript/"+formatVisitID(visitID), &resp); err != nil {
		return "", err
	}

	return resp.TranscriptText, nil
}

// Soap fetches a previously saved structured note. Returns ErrNotFound
// when none exists for the visit.
func (c *Client) Soap(ctx context.Context, visitID notes.VisitID) (notes.SoapNote, error) {
	var note notes.SoapNote
	if err := c.get(ctx, "/documentation/soap/"+formatVisitID(visitID), &note); err != nil {
		return notes.SoapNote{}, err
	}

	return note, nil
}

// SaveTranscript persists the transcript text for a visit.
func (c *Client) SaveTranscript(ctx context.Context, visitID notes.VisitID, text string) error {
	form := newForm()
	form.field("visit_id", formatVisitID(visitID))
	form.field("transcript_text", text)

	if err := c.postForm(ctx, "/documentation/save-transcript", form, nil); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}

	return nil
}

// SaveSoap persists the structured note for a visit.
func (c *Client) SaveSoap(ctx context.Context, visitID notes.VisitID, note notes.SoapNote) error {
	form := newForm()
	form.field("visit_id", formatVisitID(visitID))
	form.field("subjective", note.Subjective)
	form.field("objective", note.Objective)
	form.field("assessment", note.Assessment)
	form.field("treatment_plan", note.Plan)

	if err := c.postForm(ctx, "/documentation/save-soap", form, nil); err != nil {
		return fmt.Errorf("failed to save SOAP note: %w", err)
	}

	return nil
}

// UpdateVisitStatus sets the visit's lifecycle status.
func (c *Client) UpdateVisitStatus(ctx context.Context, visitID notes.VisitID, status notes.VisitStatus) error {
	form := newForm()
	form.field("visit_id", formatVisitID(visitID))
	form.field("status", string(status))

	path := "/visits/" + formatVisitID(visitID) + "/update-status"
	if err := c.postForm(ctx, path, form, nil); err != nil {
		return fmt.Errorf("failed to update visit status: %w", err)
	}

	return nil
}

// statusError carries a non-success HTTP response.
type statusError struct {
	code   int
	detail string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.detail)
}

// form accumulates a multipart request body.
type form struct {
	buf    bytes.Buffer
	writer *multipart.Writer
	err    error
}

func newForm() *form {
	f := &form{} //nolint:exhaustruct
	f.writer = multipart.NewWriter(&f.buf)

	return f
}

func (f *form) field(name, value string) {
	if f.err != nil {
		return
	}

	f.err = f.writer.WriteField(name, value)
}

func (f *form) file(name, filename, mimeType string, data []byte) error {
	if f.err != nil {
		return f.err
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, name, filename))
	header.Set("Content-Type", mimeType)

	part, err := f.writer.CreatePart(header)
	if err != nil {
		f.err = err
		return err
	}

	if _, err := part.Write(data); err != nil {
		f.err = err
		return err
	}

	return nil
}

func (f *form) close() error {
	if f.err != nil {
		return f.err
	}

	return f.writer.Close()
}

func (c *Client) postForm(ctx context.Context, path string, form *form, out any) error {
	if err := form.close(); err != nil {
		return fmt.Errorf("failed to build form body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &form.buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", form.writer.FormDataContentType())

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := readDetail(resp.Body)
		return &statusError{code: resp.StatusCode, detail: detail}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}

	return nil
}

// readDetail pulls a human-meaningful message out of an error response.
// The collaborator returns {"detail": "..."}; anything else is passed
// through truncated.
func readDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "no response body"
	}

	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Detail != "" {
		return parsed.Detail
	}

	return string(raw)
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err)
	}
}

func formatVisitID(id notes.VisitID) string {
	return strconv.FormatInt(int64(id), 10)
}
