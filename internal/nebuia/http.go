package nebuia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/records-pipeline/internal/common"
)

const maxResponseBytes = 32 << 20

// request is one remote call.
type request struct {
	op          string
	method      string
	url         string
	body        io.Reader
	contentType string
	timeout     time.Duration
	schema      *jsonschema.Schema
}

// send performs the call and sorts the outcome into success, RemoteRejected or
// RemoteUnavailable. It never retries.
func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	rid := uuid.New().String()
	start := time.Now()
	log := common.LoggerFrom(ctx, c.logger).With("req_id", rid, "op", r.op)

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, r.method, r.url, r.body)
	if err != nil {
		log.Error("nebuia.http.build_request_error", "error", err)
		return nil, common.Unavailable(r.op, 0, "build request", err)
	}
	req.Header.Set("X-Client-ID", c.cfg.ClientID)
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	req.Header.Set("X-API-Secret", c.cfg.APISecret)
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	log.Debug("nebuia.http.request", "method", r.method, "url", r.url)

	resp, err := c.http.Do(req)
	if err != nil {
		elapsed := time.Since(start).Milliseconds()
		if ctx.Err() != nil {
			log.Warn("nebuia.http.cancelled", "error", err, "elapsed_ms", elapsed)
			return nil, common.Cancelled(r.op, ctx.Err())
		}
		log.Error("nebuia.http.send_error", "error", err, "elapsed_ms", elapsed)
		return nil, common.Unavailable(r.op, 0, "transport failure", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.Warn("nebuia.http.response_body_close_error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, common.Cancelled(r.op, ctx.Err())
		}
		log.Error("nebuia.http.read_error", "error", err)
		return nil, common.Unavailable(r.op, resp.StatusCode, "read response", err)
	}

	log.Info("nebuia.http.response",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if err := classify(r.op, resp.StatusCode, raw); err != nil {
		log.Warn("nebuia.http.remote_error", "status", resp.StatusCode, "kind", common.KindOf(err).String(), "error", err)
		return nil, err
	}
	if r.schema != nil {
		if err := validatePayload(r.schema, raw); err != nil {
			log.Error("nebuia.http.malformed_response", "error", err, "raw", truncate(string(raw), 512))
			return nil, &common.Error{
				Kind:       common.KindRemoteUnavailable,
				Code:       common.CodeMalformedResponse,
				Op:         r.op,
				StatusCode: resp.StatusCode,
				Message:    "unexpected response shape",
				Cause:      err,
			}
		}
	}
	return raw, nil
}

type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
}

// parseEnvelope reports whether raw is a structured {error, message} body and
// whether it flags an error.
func parseEnvelope(raw []byte) (msg string, structured, flagged bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false, false
	}
	var env errorEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return "", false, false
	}
	msg = env.Message
	if msg == "" {
		msg = env.Detail
	}
	var b bool
	var s string
	switch {
	case json.Unmarshal(env.Error, &b) == nil:
		flagged = b
	case json.Unmarshal(env.Error, &s) == nil && s != "":
		flagged = true
		if msg == "" {
			msg = s
		}
	}
	structured = msg != "" || flagged
	return msg, structured, flagged
}

func classify(op string, status int, raw []byte) error {
	msg, structured, flagged := parseEnvelope(raw)
	switch {
	case status >= 200 && status < 300:
		if flagged {
			return common.Rejected(op, status, msg)
		}
		return nil
	case status == http.StatusTooManyRequests:
		return common.Unavailable(op, status, orStatusText(msg, status), nil)
	case status >= 400 && status < 500 && structured:
		return common.Rejected(op, status, msg)
	default:
		return common.Unavailable(op, status, orStatusText(msg, status), nil)
	}
}

func orStatusText(msg string, status int) string {
	if msg != "" {
		return msg
	}
	return http.StatusText(status)
}

func (c *Client) getJSON(ctx context.Context, op, url string, timeout time.Duration, schema *jsonschema.Schema, out any) error {
	raw, err := c.send(ctx, request{op: op, method: http.MethodGet, url: url, timeout: timeout, schema: schema})
	if err != nil {
		return err
	}
	return decode(op, raw, out)
}

func (c *Client) postJSON(ctx context.Context, op, url string, body any, schema *jsonschema.Schema, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", op, err)
	}
	raw, err := c.send(ctx, request{
		op:          op,
		method:      http.MethodPost,
		url:         url,
		body:        bytes.NewReader(b),
		contentType: "application/json",
		timeout:     c.cfg.Timeout,
		schema:      schema,
	})
	if err != nil {
		return err
	}
	return decode(op, raw, out)
}

func decode(op string, raw []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		msg := "decode response"
		if errors.As(err, &typeErr) {
			msg = "decode response field " + typeErr.Field
		}
		return &common.Error{Kind: common.KindRemoteUnavailable, Code: common.CodeMalformedResponse, Op: op, Message: msg, Cause: err}
	}
	return nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "…"
}
