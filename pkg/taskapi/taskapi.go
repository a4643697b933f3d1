// Package taskapi submits stamped batches to the task service.
//
// A submission is one multipart/form-data POST carrying the head-level
// fields (poNumber, qtNumber, customer), one "files" part per stamped
// document and a "meta" JSON array describing those files in the same order.
package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// DefaultTimeout bounds a whole submission.
const DefaultTimeout = 60 * time.Second

// ErrUnauthorized is returned when the service rejects the credential. The
// caller is expected to tear the session down.
var ErrUnauthorized = errors.New("task service rejected the credential")

// Options configures a Client.
type Options struct {
	URL     string        // Full submission endpoint
	Token   string        // Bearer credential (empty = no Authorization header)
	Timeout time.Duration // Per-request timeout (0 = DefaultTimeout)
	Headers map[string]string
}

// Head carries the order-level fields of a submission.
type Head struct {
	PONumber string
	QTNumber string
	Customer string
}

// File is one stamped document.
type File struct {
	Name       string
	Data       []byte
	Page       int
	Identifier string
	Material   string
}

// Meta describes one submitted file.
type Meta struct {
	Page       int    `json:"page"`
	FileName   string `json:"fileName"`
	FullTaskID string `json:"fullTaskId"`
	Material   string `json:"material"`
}

// Receipt is what the service answered to an accepted submission.
type Receipt struct {
	StatusCode int
	Body       []byte
}

// SubmissionError reports a submission the service did not accept.
type SubmissionError struct {
	StatusCode int // 0 when no response was received
	Message    string
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("task submission failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("task submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the same submission may succeed.
func (e *SubmissionError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests || e.StatusCode/100 == 5
}

// Client posts batches to the task service.
type Client struct {
	url     string
	token   string
	headers map[string]string
	do      func(*http.Request) (*http.Response, error)
}

// New returns a client for the given options.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("task service URL is empty")
	}
	if !strings.HasPrefix(opts.URL, "http://") && !strings.HasPrefix(opts.URL, "https://") {
		return nil, fmt.Errorf("task service URL %q is not http(s)", opts.URL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	hc := &http.Client{Timeout: opts.Timeout}
	return &Client{
		url:     opts.URL,
		token:   opts.Token,
		headers: opts.Headers,
		do:      hc.Do,
	}, nil
}

// Submit uploads files with their metadata as a single request. A 401
// response yields an error wrapping ErrUnauthorized; any other failure is a
// *SubmissionError.
func (c *Client) Submit(ctx context.Context, head Head, files []File) (*Receipt, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("nothing to submit")
	}
	body, contentType, err := encodeSubmission(head, files)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &SubmissionError{Err: ctxErr}
		}
		return nil, &SubmissionError{Err: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &SubmissionError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
			Err:        ErrUnauthorized,
		}
	case resp.StatusCode/100 != 2:
		return nil, &SubmissionError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
		}
	}
	return &Receipt{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// encodeSubmission builds the multipart body. Files and meta records share
// one order.
func encodeSubmission(head Head, files []File) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"poNumber", head.PONumber},
		{"qtNumber", head.QTNumber},
		{"customer", head.Customer},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	meta := make([]Meta, 0, len(files))
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Name))
		h.Set("Content-Type", "application/pdf")
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
		meta = append(meta, Meta{
			Page:       f.Page,
			FileName:   f.Name,
			FullTaskID: f.Identifier,
			Material:   f.Material,
		})
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField("meta", string(metaJSON)); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
