// Package summarizer calls the external summarization service that turns a
// finished transcript into structured meeting notes.
package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/meetscribe/meetscribe/server/internal/model"
)

// Client produces a summary from a speaker-labelled transcript.
type Client interface {
	Summarize(ctx context.Context, req Request) (*model.Summary, error)
}

// Line is one transcript line attributed to a speaker.
type Line struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Request carries everything the summarization service needs.
type Request struct {
	MeetingID string `json:"meetingId"`
	Title     string `json:"title"`
	Language  string `json:"language"`
	Lines     []Line `json:"-"`
}

// LinesFromSegments converts stored segments, in store order, into
// summarizer input lines.
func LinesFromSegments(segs []*model.TranscriptSegment) []Line {
	out := make([]Line, 0, len(segs))
	for _, s := range segs {
		out = append(out, Line{Speaker: s.SpeakerName, Text: s.Text})
	}
	return out
}

// FormatTranscript renders lines as "{speakerName}: {text}", one per line.
// This labelled form is what lets the model attribute contributions.
func FormatTranscript(lines []Line) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Speaker)
		b.WriteString(": ")
		b.WriteString(l.Text)
	}
	return b.String()
}

// HTTPClient is the resty-backed implementation.
type HTTPClient struct {
	client *resty.Client
	model  string
}

// NewHTTPClient creates a client for the summarization service at baseURL.
func NewHTTPClient(baseURL, model string, timeout time.Duration) *HTTPClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &HTTPClient{client: c, model: model}
}

type summarizeRequest struct {
	Model      string `json:"model"`
	MeetingID  string `json:"meetingId"`
	Title      string `json:"title"`
	Language   string `json:"language,omitempty"`
	Transcript string `json:"transcript"`
}

type summarizeResponse struct {
	Overview             string   `json:"overview"`
	KeyPoints            []string `json:"keyPoints"`
	ActionItems          []string `json:"actionItems"`
	Decisions            []string `json:"decisions"`
	SpeakerContributions []struct {
		Speaker      string `json:"speaker"`
		Contribution string `json:"contribution"`
	} `json:"speakerContributions"`
}

// Summarize posts the labelled transcript and decodes the structured notes.
// Any transport failure or non-200 status is surfaced as an error; the
// caller decides what to do with the existing summary (nothing).
func (c *HTTPClient) Summarize(ctx context.Context, req Request) (*model.Summary, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("summarize: empty transcript: %w", model.ErrValidation)
	}

	body := summarizeRequest{
		Model:      c.model,
		MeetingID:  req.MeetingID,
		Title:      req.Title,
		Language:   req.Language,
		Transcript: FormatTranscript(req.Lines),
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&body).
		Post("/v1/summarize")
	if err != nil {
		return nil, fmt.Errorf("summarizer request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("summarizer status %d: %s", resp.StatusCode(), resp.String())
	}

	var sr summarizeResponse
	if err := json.Unmarshal(resp.Body(), &sr); err != nil {
		return nil, fmt.Errorf("decode summarizer response: %w", err)
	}

	out := &model.Summary{
		Overview:    sr.Overview,
		KeyPoints:   sr.KeyPoints,
		ActionItems: sr.ActionItems,
		Decisions:   sr.Decisions,
		GeneratedAt: time.Now().UTC(),
	}
	for _, c := range sr.SpeakerContributions {
		out.SpeakerContributions = append(out.SpeakerContributions, model.SpeakerContribution{
			Speaker:      c.Speaker,
			Contribution: c.Contribution,
		})
	}
	return out, nil
}
