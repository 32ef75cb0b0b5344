// Package scoring submits encoded payment documents to the external
// fraud-scoring oracle and normalizes its heterogeneous responses into a
// single probability in [0, 1].
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrorKind distinguishes transport-level failures from responses that
// arrived but could not be understood.
type ErrorKind int

const (
	// KindUnavailable covers network failures, timeouts and non-2xx statuses.
	KindUnavailable ErrorKind = iota
	// KindMalformed covers responses that parsed to no usable probability,
	// including explicit error envelopes and out-of-range values.
	KindMalformed
)

// Error is the typed failure returned by the client. Callers decide the
// fail-open policy; the client only reports what happened.
type Error struct {
	Kind ErrorKind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return "scoring: " + e.msg + ": " + e.err.Error()
	}
	return "scoring: " + e.msg
}

func (e *Error) Unwrap() error { return e.err }

// PayloadVariant selects the request body shape for the configured endpoint.
type PayloadVariant string

const (
	// PayloadXML posts the raw payment document.
	PayloadXML PayloadVariant = "xml"
	// PayloadJSON wraps the document in a {"data": ...} envelope.
	PayloadJSON PayloadVariant = "json"
)

// maxResponseBytes bounds how much of a scoring response is read.
const maxResponseBytes = 1 << 20

// Client calls the fraud-scoring endpoint. One request, one attempt, bounded
// by the configured timeout; no retries.
type Client struct {
	endpoint   string
	variant    PayloadVariant
	httpClient *http.Client
}

// NewClient constructs a Client for the given endpoint. A non-positive
// timeout falls back to 10 seconds.
func NewClient(endpoint string, variant PayloadVariant, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		variant:    variant,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type jsonEnvelope struct {
	Data string `json:"data"`
}

// Score submits the encoded payment document and returns the normalized
// fraud probability. It performs no persistence and holds no locks.
func (c *Client) Score(ctx context.Context, document []byte) (float64, error) {
	var (
		body        []byte
		contentType string
	)
	switch c.variant {
	case PayloadJSON:
		encoded, err := json.Marshal(jsonEnvelope{Data: string(document)})
		if err != nil {
			return 0, &Error{Kind: KindMalformed, msg: "encode request envelope", err: err}
		}
		body = encoded
		contentType = "application/json"
	default:
		body = document
		contentType = "application/xml"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, &Error{Kind: KindUnavailable, msg: "build request", err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &Error{Kind: KindUnavailable, msg: "request failed", err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, &Error{Kind: KindUnavailable, msg: "read response", err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &Error{
			Kind: KindUnavailable,
			msg:  fmt.Sprintf("endpoint returned status %d", resp.StatusCode),
		}
	}

	return Normalize(payload)
}
