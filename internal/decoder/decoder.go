// Package decoder turns the raw invocation payload into an ExecutionRequest.
package decoder

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
)

// payload is the wire shape of an invocation.
type payload struct {
	Code  *string `json:"code"`
	Input *string `json:"input"`
}

// Decoder validates invocation payloads. It has no side effects.
type Decoder struct {
	maxCodeBytes int
}

// New creates a Decoder that rejects code longer than maxCodeBytes.
// A non-positive maxCodeBytes disables the size check.
func New(maxCodeBytes int) *Decoder {
	return &Decoder{maxCodeBytes: maxCodeBytes}
}

// Decode parses raw into an ExecutionRequest. Errors wrap
// domain.ErrMalformed, domain.ErrMissingCode or domain.ErrCodeTooLarge.
func (d *Decoder) Decode(raw []byte) (*domain.ExecutionRequest, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, domain.ErrMalformed
	}

	var p payload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformed, err)
	}

	if p.Code == nil {
		return nil, domain.ErrMissingCode
	}
	req := &domain.ExecutionRequest{Code: *p.Code}
	if p.Input != nil {
		req.Stdin = *p.Input
	}
	if err := d.Validate(req); err != nil {
		return nil, err
	}
	return req, nil
}

// Validate applies the code checks to a request that arrived already
// decoded, such as a queued job.
func (d *Decoder) Validate(req *domain.ExecutionRequest) error {
	if req.Code == "" {
		return domain.ErrMissingCode
	}
	if d.maxCodeBytes > 0 && len(req.Code) > d.maxCodeBytes {
		return fmt.Errorf("%w of %d bytes", domain.ErrCodeTooLarge, d.maxCodeBytes)
	}
	return nil
}
