// Package remote performs single delivery attempts against the todo
// server and classifies the HTTP outcome into the small set of semantic
// results the retry orchestrator branches on. It holds no local state:
// one call, one outbound request.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mova-app/widget-tasks/internal/domain"
)

// OutcomeKind is the semantic classification of one delivery attempt.
type OutcomeKind string

// Possible outcome kinds
const (
	// OutcomeSuccess means the server accepted the todo (2xx).
	OutcomeSuccess OutcomeKind = "success"

	// OutcomeAuthFailure means the server rejected the credentials
	// (401). Never retried: repeating the request cannot fix bad
	// credentials.
	OutcomeAuthFailure OutcomeKind = "auth_failure"

	// OutcomeServerUnavailable means the server reported 502 or 503.
	// Eligible for a one-time restart request before further retries.
	OutcomeServerUnavailable OutcomeKind = "server_unavailable"

	// OutcomeOtherFailure covers every other non-2xx status and
	// transport-level errors. Retried like a generic transient failure.
	OutcomeOtherFailure OutcomeKind = "other_failure"
)

// Outcome is the classified result of one SubmitOnce call. Reason is a
// short machine-readable tag ("http_500", "network_error") used as the
// user-invisible error string when retries are exhausted.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

// createRequest is the body of POST /create.
type createRequest struct {
	Title string `json:"title"`
}

// Client talks to the remote todo API with Basic credentials read from
// the shared store at call time.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client whose requests time out after
// requestTimeout. The timeout keeps a hung server from eating the whole
// wall-clock budget the host grants one task invocation.
func NewClient(requestTimeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// SubmitOnce performs exactly one create attempt and classifies the
// result. It never mutates local state.
func (c *Client) SubmitOnce(ctx context.Context, creds domain.Credentials, text string) Outcome {
	body, err := json.Marshal(createRequest{Title: text})
	if err != nil {
		// Marshaling a plain string field cannot realistically fail,
		// but classify it rather than panic.
		return Outcome{Kind: OutcomeOtherFailure, Reason: "encode_error"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.ServerURL+"/create", bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: OutcomeOtherFailure, Reason: "request_error"}
	}
	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("create request failed at transport level", "error", err)
		return Outcome{Kind: OutcomeOtherFailure, Reason: "network_error"}
	}
	defer func() { _ = resp.Body.Close() }()

	return classifyStatus(resp.StatusCode)
}

// RequestRestart asks the server to recover from a detected unavailable
// state. Best-effort: any failure, transport or HTTP, yields false and
// is logged rather than surfaced, because a restart is an optimization
// and not a correctness requirement.
func (c *Client) RequestRestart(ctx context.Context, creds domain.Credentials) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.ServerURL+"/restart", nil)
	if err != nil {
		return false
	}
	req.SetBasicAuth(creds.Username, creds.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("restart request failed at transport level", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	acknowledged := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !acknowledged {
		c.logger.Debug("restart request rejected", "status", resp.StatusCode)
	}
	return acknowledged
}

// classifyStatus maps an HTTP status to an outcome.
func classifyStatus(status int) Outcome {
	switch {
	case status >= 200 && status < 300:
		return Outcome{Kind: OutcomeSuccess}
	case status == http.StatusUnauthorized:
		return Outcome{Kind: OutcomeAuthFailure, Reason: "http_401"}
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		return Outcome{Kind: OutcomeServerUnavailable, Reason: fmt.Sprintf("http_%d", status)}
	default:
		return Outcome{Kind: OutcomeOtherFailure, Reason: fmt.Sprintf("http_%d", status)}
	}
}
