// Package opentimestamps submits SHA-256 digests to OpenTimestamps calendar
// servers and builds the resulting .ots proof files.
package opentimestamps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	acceptHeader = "application/vnd.opentimestamps.v1"
	userAgent    = "webmarcas-backend"

	// Calendar responses are small; anything larger is not a timestamp.
	maxResponseSize = 10000
)

// headerMagic opens every detached timestamp file.
var headerMagic = []byte("\x00OpenTimestamps\x00\x00Proof\x00\xbf\x89\xe2\xe8\x84\xe8\x92\x94")

// ProofContentType is the media type of a detached timestamp file.
const ProofContentType = "application/vnd.opentimestamps.ots"

const (
	proofVersion = 0x01
	opSHA256     = 0x08
)

type Client struct {
	calendars  []string
	httpClient *http.Client
	backoffs   []time.Duration
	maxRetries int
}

// Stamp is a calendar's pending attestation for one digest.
type Stamp struct {
	Calendar string
	Digest   []byte
	Response []byte
}

type Option func(*Client)

// WithBackoffs replaces the wait schedule between retries of one calendar.
func WithBackoffs(backoffs ...time.Duration) Option {
	return func(c *Client) {
		c.backoffs = backoffs
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(calendars []string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		calendars: calendars,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		backoffs:   []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// permanentError marks a calendar answer that retrying will not change.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Stamp submits digest to the calendars in order and returns the first
// successful attestation. Each calendar is retried with backoff before
// moving on to the next one.
func (c *Client) Stamp(ctx context.Context, digest []byte) (*Stamp, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	if len(c.calendars) == 0 {
		return nil, errors.New("no calendar configured")
	}

	var errs []error
	for _, calendar := range c.calendars {
		var body []byte
		err := c.RetryWithBackoff(ctx, func() error {
			var err error
			body, err = c.submit(ctx, calendar, digest)
			return err
		}, c.maxRetries)
		if err == nil {
			return &Stamp{Calendar: calendar, Digest: digest, Response: body}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", calendar, err))
	}
	return nil, fmt.Errorf("all calendars failed: %w", errors.Join(errs...))
}

func (c *Client) submit(ctx context.Context, calendar string, digest []byte) ([]byte, error) {
	url := strings.TrimSuffix(calendar, "/") + "/digest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(digest))
	if err != nil {
		return nil, &permanentError{fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("calendar returned status %d, body: %s", resp.StatusCode, truncate(body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, &permanentError{err}
		}
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("calendar returned an empty timestamp")
	}
	if len(body) > maxResponseSize {
		return nil, &permanentError{fmt.Errorf("calendar response exceeds %d bytes", maxResponseSize)}
	}
	return body, nil
}

// RetryWithBackoff executes a function with exponential backoff retry logic.
// It stops early on permanent errors and when ctx is done.
func (c *Client) RetryWithBackoff(ctx context.Context, fn func() error, maxRetries int) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		var perm *permanentError
		if errors.As(err, &perm) {
			return err
		}
		if i == maxRetries-1 {
			break
		}
		if i < len(c.backoffs) && c.backoffs[i] > 0 {
			timer := time.NewTimer(c.backoffs[i])
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// Proof serializes a detached timestamp file for the stamped digest: header,
// version, the SHA-256 file hash op, the digest, then the calendar's
// timestamp for that digest.
func (s *Stamp) Proof() []byte {
	var buf bytes.Buffer
	buf.Grow(len(headerMagic) + 2 + len(s.Digest) + len(s.Response))
	buf.Write(headerMagic)
	buf.WriteByte(proofVersion)
	buf.WriteByte(opSHA256)
	buf.Write(s.Digest)
	buf.Write(s.Response)
	return buf.Bytes()
}

// IsProof reports whether data starts with the detached timestamp header.
func IsProof(data []byte) bool {
	return bytes.HasPrefix(data, headerMagic)
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
