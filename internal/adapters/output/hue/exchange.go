package hue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hue-rest-client/internal/domain/model"
	xlog "hue-rest-client/internal/log"
)

// maxResponseBytes bounds a bridge reply; a full /api dump of a busy bridge
// stays well under this.
const maxResponseBytes = 4 << 20

type outcomeKind int

const (
	outcomeTransportFailure outcomeKind = iota
	outcomeBridgeError
	outcomeSuccess
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeSuccess:
		return "success"
	case outcomeBridgeError:
		return "bridge_error"
	default:
		return "transport_failure"
	}
}

// outcome is the classified result of one exchange.
type outcome struct {
	kind    outcomeKind
	status  int
	payload json.RawMessage    // success
	bridge  *model.BridgeError // bridge error
	cause   error              // transport failure
}

// err converts a non-success outcome into the error returned by op.
func (o outcome) err(op string) error {
	switch o.kind {
	case outcomeSuccess:
		return nil
	case outcomeBridgeError:
		return fmt.Errorf("hue: %s: %w", op, o.bridge)
	default:
		return &TransportError{Op: op, Status: o.status, Err: o.cause}
	}
}

func transportFailure(status int, cause error) outcome {
	return outcome{kind: outcomeTransportFailure, status: status, cause: cause}
}

// execute performs exactly one request/response exchange and classifies it.
// body, when not nil, is serialized as JSON.
func (c *Client) execute(ctx context.Context, verb, path string, body any) outcome {
	start := time.Now()
	c.pending = exchange{}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return c.finish(verb, path, start, transportFailure(0, fmt.Errorf("encode request: %w", err)))
		}
		c.pending.request = data
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, verb, c.base+path, reader)
	if err != nil {
		return c.finish(verb, path, start, transportFailure(0, err))
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	ev := c.log.Debug().Str(xlog.FieldVerb, verb).Str(xlog.FieldPath, redactPath(path))
	if c.pending.request != nil {
		ev = ev.RawJSON("body", c.pending.request)
	}
	ev.Msg("request")

	if err := c.handle.limiter.Wait(ctx); err != nil {
		return c.finish(verb, path, start, transportFailure(0, err))
	}
	resp, err := c.handle.http.Do(req)
	if err != nil {
		return c.finish(verb, path, start, transportFailure(0, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return c.finish(verb, path, start, transportFailure(resp.StatusCode, fmt.Errorf("read response: %w", err)))
	}
	if len(data) > maxResponseBytes {
		return c.finish(verb, path, start, transportFailure(resp.StatusCode, fmt.Errorf("%w: response exceeds %d bytes", ErrProtocol, maxResponseBytes)))
	}
	c.pending.response = data
	c.pending.status = resp.StatusCode

	return c.finish(verb, path, start, classify(resp.StatusCode, data))
}

func (c *Client) finish(verb, path string, start time.Time, o outcome) outcome {
	observeExchange(verb, o.kind)

	ev := c.log.Debug()
	switch o.kind {
	case outcomeBridgeError:
		ev = c.log.Info().Int(xlog.FieldCode, int(o.bridge.Code)).Str("description", o.bridge.Description)
	case outcomeTransportFailure:
		ev = c.log.Error().Err(o.cause)
	}
	ev.Str(xlog.FieldVerb, verb).
		Str(xlog.FieldPath, redactPath(path)).
		Int(xlog.FieldStatus, o.status).
		Str(xlog.FieldOutcome, o.kind.String()).
		Dur(xlog.FieldDuration, time.Since(start)).
		Msg("exchange")
	return o
}

// redactPath masks the path segments that carry usernames: the one after
// "api" and the one after "whitelist".
func redactPath(path string) string {
	segs := strings.Split(path, "/")
	for i := 1; i < len(segs); i++ {
		if segs[i-1] == "api" || segs[i-1] == "whitelist" {
			segs[i] = xlog.Redact(segs[i])
		}
	}
	return strings.Join(segs, "/")
}

// wireError is the bridge's in-band error object.
type wireError struct {
	Type        *int   `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

// classify tells an error shaped body from a success shaped one. Anything
// else is a protocol violation.
func classify(status int, data []byte) outcome {
	body := bytes.TrimSpace(data)
	if len(body) == 0 {
		return transportFailure(status, fmt.Errorf("%w: empty body", ErrProtocol))
	}

	switch body[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return transportFailure(status, fmt.Errorf("%w: %v", ErrProtocol, err))
		}
		for _, item := range items {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(item, &fields); err != nil {
				return transportFailure(status, fmt.Errorf("%w: array element is not an object", ErrProtocol))
			}
			// Errors are normally wrapped as {"error":{...}}; a bare {"type":...} object is accepted too.
			raw, ok := fields["error"]
			if !ok {
				if _, bare := fields["type"]; !bare {
					continue
				}
				raw = item
			}
			var we wireError
			if err := json.Unmarshal(raw, &we); err != nil || we.Type == nil {
				return transportFailure(status, fmt.Errorf("%w: malformed error object", ErrProtocol))
			}
			// A refusal always carries a positive code.
			if *we.Type <= 0 {
				return transportFailure(status, fmt.Errorf("%w: error code %d", ErrProtocol, *we.Type))
			}
			return outcome{
				kind:   outcomeBridgeError,
				status: status,
				bridge: &model.BridgeError{
					Code:        model.ErrorCode(*we.Type),
					Address:     we.Address,
					Description: we.Description,
				},
			}
		}
	case '{':
		if !json.Valid(body) {
			return transportFailure(status, fmt.Errorf("%w: invalid JSON object", ErrProtocol))
		}
	default:
		return transportFailure(status, fmt.Errorf("%w: body is not a JSON object or array", ErrProtocol))
	}

	if status < 200 || status > 299 {
		return transportFailure(status, fmt.Errorf("unexpected HTTP status %d", status))
	}
	return outcome{kind: outcomeSuccess, status: status, payload: body}
}
